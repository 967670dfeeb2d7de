package pptx

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// Default slide size: 28 cm by 15.75 cm, 16:9.
const (
	DefaultSlideWidth  Length = 10080000
	DefaultSlideHeight Length = 5670000
)

// BlankLayoutIndex is the index of the "Blank" layout in generated templates.
const BlankLayoutIndex = 6

// templateLayouts follows the order of the stock PowerPoint master.
var templateLayouts = []struct {
	name string
	typ  string
}{
	{"Title Slide", "title"},
	{"Title and Content", "obj"},
	{"Section Header", "secHead"},
	{"Two Content", "twoObj"},
	{"Comparison", "twoTxTwoObj"},
	{"Title Only", "titleOnly"},
	{"Blank", "blank"},
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const pmlRoot = `xmlns:a="` + nsDrawingML + `" xmlns:r="` + nsRelationships + `" xmlns:p="` + nsPresentationML + `"`

// WriteTemplate writes an empty presentation with one master, the stock
// layouts and the given slide size.
func WriteTemplate(w io.Writer, cx, cy Length) error {
	if cx <= 0 || cy <= 0 {
		return fmt.Errorf("slide size must be positive, got %dx%d", cx, cy)
	}

	pkg := newPackage()
	ct := &contentTypes{}
	ct.ensureDefault("rels", ctRels)
	ct.ensureDefault("xml", ctXML)

	rootRels := &relationships{}
	rootRels.add(relOfficeDocument, "ppt/presentation.xml")
	rootRels.add(relCoreProps, "docProps/core.xml")
	rootRels.add(relExtendedProps, "docProps/app.xml")

	pkg.put(contentTypesPart, nil)
	if err := pkg.writeRels("", rootRels); err != nil {
		return err
	}

	pkg.put("docProps/app.xml", []byte(appPropsXML()))
	ct.setOverride("docProps/app.xml", "application/vnd.openxmlformats-officedocument.extended-properties+xml")
	pkg.put("docProps/core.xml", []byte(corePropsXML(time.Now())))
	ct.setOverride("docProps/core.xml", "application/vnd.openxmlformats-package.core-properties+xml")

	presRels := &relationships{}
	presRels.add(relSlideMaster, "slideMasters/slideMaster1.xml")
	presRels.add(relPresProps, "presProps.xml")
	presRels.add(relViewProps, "viewProps.xml")
	presRels.add(relTheme, "theme/theme1.xml")
	presRels.add(relTableStyles, "tableStyles.xml")

	pkg.put("ppt/presentation.xml", []byte(templatePresentationXML(cx, cy)))
	ct.setOverride("ppt/presentation.xml", "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml")
	if err := pkg.writeRels("ppt/presentation.xml", presRels); err != nil {
		return err
	}

	pkg.put("ppt/presProps.xml", []byte(xmlHeader+`<p:presentationPr `+pmlRoot+`/>`))
	ct.setOverride("ppt/presProps.xml", "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml")
	pkg.put("ppt/viewProps.xml", []byte(xmlHeader+`<p:viewPr `+pmlRoot+`><p:gridSpacing cx="76200" cy="76200"/></p:viewPr>`))
	ct.setOverride("ppt/viewProps.xml", "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml")
	pkg.put("ppt/tableStyles.xml", []byte(xmlHeader+`<a:tblStyleLst xmlns:a="`+nsDrawingML+`" def="{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"/>`))
	ct.setOverride("ppt/tableStyles.xml", "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml")

	pkg.put("ppt/theme/theme1.xml", []byte(themeXML()))
	ct.setOverride("ppt/theme/theme1.xml", "application/vnd.openxmlformats-officedocument.theme+xml")

	const masterPart = "ppt/slideMasters/slideMaster1.xml"
	masterRels := &relationships{}
	layoutRIDs := make([]string, 0, len(templateLayouts))
	for i, l := range templateLayouts {
		part := fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1)
		layoutRIDs = append(layoutRIDs, masterRels.add(relSlideLayout, relTarget(masterPart, part)))

		pkg.put(part, []byte(layoutXMLFor(l.name, l.typ)))
		ct.setOverride(part, "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml")

		lrels := &relationships{}
		lrels.add(relSlideMaster, relTarget(part, masterPart))
		if err := pkg.writeRels(part, lrels); err != nil {
			return err
		}
	}
	masterRels.add(relTheme, relTarget(masterPart, "ppt/theme/theme1.xml"))

	pkg.put(masterPart, []byte(masterXMLFor(layoutRIDs)))
	ct.setOverride(masterPart, "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml")
	if err := pkg.writeRels(masterPart, masterRels); err != nil {
		return err
	}

	ctData, err := marshalPart(ct)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", contentTypesPart, err)
	}
	pkg.put(contentTypesPart, ctData)

	return pkg.writeTo(w)
}

// DefaultTemplate returns a 16:9 template whose layout BlankLayoutIndex is blank.
func DefaultTemplate() ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTemplate(&buf, DefaultSlideWidth, DefaultSlideHeight); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// New returns an empty presentation built from DefaultTemplate.
func New() (*Presentation, error) {
	data, err := DefaultTemplate()
	if err != nil {
		return nil, err
	}
	return OpenBytes(data)
}

func templatePresentationXML(cx, cy Length) string {
	return xmlHeader +
		`<p:presentation ` + pmlRoot + ` saveSubsetFonts="1">` +
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
		fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/>`, cx, cy) +
		`<p:notesSz cx="6858000" cy="9144000"/>` +
		`<p:defaultTextStyle/>` +
		`</p:presentation>`
}

func appPropsXML() string {
	return xmlHeader +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` +
		`<Application>pdf2ppt</Application>` +
		`<PresentationFormat>Custom</PresentationFormat>` +
		`<AppVersion>16.0000</AppVersion>` +
		`</Properties>`
}

func corePropsXML(now time.Time) string {
	ts := now.UTC().Format(time.RFC3339)
	return xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title/>` +
		`<dc:creator>pdf2ppt</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

const emptyShapeTree = `<p:spTree>` +
	`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>` +
	`</p:spTree>`

func masterXMLFor(layoutRIDs []string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:sldMaster ` + pmlRoot + `>`)
	b.WriteString(`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg>` + emptyShapeTree + `</p:cSld>`)
	b.WriteString(`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`)
	b.WriteString(`<p:sldLayoutIdLst>`)
	for i, rid := range layoutRIDs {
		fmt.Fprintf(&b, `<p:sldLayoutId id="%d" r:id="%s"/>`, 2147483649+i, rid)
	}
	b.WriteString(`</p:sldLayoutIdLst>`)
	b.WriteString(`<p:txStyles><p:titleStyle/><p:bodyStyle/><p:otherStyle/></p:txStyles>`)
	b.WriteString(`</p:sldMaster>`)
	return b.String()
}

func layoutXMLFor(name, typ string) string {
	return xmlHeader +
		`<p:sldLayout ` + pmlRoot + ` type="` + typ + `" preserve="1">` +
		`<p:cSld name="` + escapeAttr(name) + `">` + emptyShapeTree + `</p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>` +
		`</p:sldLayout>`
}

func themeXML() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<a:theme xmlns:a="` + nsDrawingML + `" name="Office Theme"><a:themeElements>`)

	b.WriteString(`<a:clrScheme name="Office">`)
	b.WriteString(`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>`)
	b.WriteString(`<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>`)
	for _, c := range []struct{ name, rgb string }{
		{"dk2", "44546A"}, {"lt2", "E7E6E6"},
		{"accent1", "4472C4"}, {"accent2", "ED7D31"}, {"accent3", "A5A5A5"},
		{"accent4", "FFC000"}, {"accent5", "5B9BD5"}, {"accent6", "70AD47"},
		{"hlink", "0563C1"}, {"folHlink", "954F72"},
	} {
		fmt.Fprintf(&b, `<a:%s><a:srgbClr val="%s"/></a:%s>`, c.name, c.rgb, c.name)
	}
	b.WriteString(`</a:clrScheme>`)

	b.WriteString(`<a:fontScheme name="Office">`)
	b.WriteString(`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>`)
	b.WriteString(`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>`)
	b.WriteString(`</a:fontScheme>`)

	b.WriteString(`<a:fmtScheme name="Office">`)
	b.WriteString(`<a:fillStyleLst>` + strings.Repeat(`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`, 3) + `</a:fillStyleLst>`)
	b.WriteString(`<a:lnStyleLst>` + strings.Repeat(`<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`, 3) + `</a:lnStyleLst>`)
	b.WriteString(`<a:effectStyleLst>` + strings.Repeat(`<a:effectStyle><a:effectLst/></a:effectStyle>`, 3) + `</a:effectStyleLst>`)
	b.WriteString(`<a:bgFillStyleLst>` + strings.Repeat(`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`, 3) + `</a:bgFillStyleLst>`)
	b.WriteString(`</a:fmtScheme>`)

	b.WriteString(`</a:themeElements></a:theme>`)
	return b.String()
}
