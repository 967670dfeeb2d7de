package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// XML namespaces used in PPTX files.
const (
	nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels    = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// Relationship types.
const (
	relOfficeDocument = nsRelationships + "/officeDocument"
	relSlide          = nsRelationships + "/slide"
	relSlideLayout    = nsRelationships + "/slideLayout"
	relSlideMaster    = nsRelationships + "/slideMaster"
	relImage          = nsRelationships + "/image"
	relTheme          = nsRelationships + "/theme"
	relPresProps      = nsRelationships + "/presProps"
	relViewProps      = nsRelationships + "/viewProps"
	relTableStyles    = nsRelationships + "/tableStyles"
	relCoreProps      = nsPackageRels + "/metadata/core-properties"
	relExtendedProps  = nsRelationships + "/extended-properties"
)

// Content types.
const (
	ctSlide = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctRels  = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML   = "application/xml"
)

const contentTypesPart = "[Content_Types].xml"

// opcPackage is an in-memory zip package: part name -> bytes, in archive order.
type opcPackage struct {
	names []string
	parts map[string][]byte
}

func newPackage() *opcPackage {
	return &opcPackage{parts: make(map[string][]byte)}
}

func readPackage(data []byte) (*opcPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	p := newPackage()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		p.put(f.Name, b)
	}
	return p, nil
}

func (p *opcPackage) get(name string) ([]byte, bool) {
	b, ok := p.parts[name]
	return b, ok
}

func (p *opcPackage) has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

func (p *opcPackage) put(name string, data []byte) {
	if _, ok := p.parts[name]; !ok {
		p.names = append(p.names, name)
	}
	p.parts[name] = data
}

func (p *opcPackage) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	names := make([]string, 0, len(p.names))
	if p.has(contentTypesPart) {
		names = append(names, contentTypesPart)
	}
	for _, n := range p.names {
		if n != contentTypesPart {
			names = append(names, n)
		}
	}

	for _, name := range names {
		method := zip.Deflate
		switch strings.ToLower(path.Ext(name)) {
		case ".png", ".jpeg", ".jpg":
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := fw.Write(p.parts[name]); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

// relationships is a *.rels part.
type relationships struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Items   []relationship `xml:"Relationship"`
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

func relsPartFor(part string) string {
	if part == "" {
		return "_rels/.rels"
	}
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

func (p *opcPackage) readRels(part string) (*relationships, error) {
	rels := &relationships{}
	data, ok := p.get(relsPartFor(part))
	if !ok {
		return rels, nil
	}
	if err := xml.Unmarshal(data, rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relsPartFor(part), err)
	}
	return rels, nil
}

func (p *opcPackage) writeRels(part string, rels *relationships) error {
	data, err := marshalPart(rels)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", relsPartFor(part), err)
	}
	p.put(relsPartFor(part), data)
	return nil
}

func (r *relationships) byID(id string) (relationship, bool) {
	for _, rel := range r.Items {
		if rel.ID == id {
			return rel, true
		}
	}
	return relationship{}, false
}

func (r *relationships) firstOfType(relType string) (relationship, bool) {
	for _, rel := range r.Items {
		if rel.Type == relType {
			return rel, true
		}
	}
	return relationship{}, false
}

// nextID returns an unused rIdN.
func (r *relationships) nextID() string {
	max := 0
	for _, rel := range r.Items {
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n > max {
			max = n
		}
	}
	return "rId" + strconv.Itoa(max+1)
}

func (r *relationships) add(relType, target string) string {
	id := r.nextID()
	r.Items = append(r.Items, relationship{ID: id, Type: relType, Target: target})
	return id
}

// contentTypes is the [Content_Types].xml part.
type contentTypes struct {
	XMLName   xml.Name     `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

func (c *contentTypes) ensureDefault(ext, contentType string) {
	for _, d := range c.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return
		}
	}
	c.Defaults = append(c.Defaults, ctDefault{Extension: ext, ContentType: contentType})
}

func (c *contentTypes) setOverride(part, contentType string) {
	name := "/" + part
	for i, o := range c.Overrides {
		if o.PartName == name {
			c.Overrides[i].ContentType = contentType
			return
		}
	}
	c.Overrides = append(c.Overrides, ctOverride{PartName: name, ContentType: contentType})
}

// resolveTarget turns a relationship target into a part name.
func resolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(sourcePart), target))
}

// relTarget is the relative reference from fromPart to toPart.
func relTarget(fromPart, toPart string) string {
	var fromDir []string
	if d := path.Dir(fromPart); d != "." {
		fromDir = strings.Split(d, "/")
	}
	to := strings.Split(toPart, "/")

	i := 0
	for i < len(fromDir) && i < len(to)-1 && fromDir[i] == to[i] {
		i++
	}

	parts := make([]string, 0, len(fromDir)-i+len(to)-i)
	for j := i; j < len(fromDir); j++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}

// nextPartName returns prefix+N+suffix for the smallest N above every existing one.
func (p *opcPackage) nextPartName(prefix, suffix string) string {
	max := 0
	for _, name := range p.names {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		mid := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		if n, err := strconv.Atoi(mid); err == nil && n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1) + suffix
}

func marshalPart(v interface{}) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// idPair is an element carrying both a plain id and an r:id attribute, such
// as p:sldId. encoding/xml would let an unqualified "id" field also match r:id.
type idPair struct {
	ID  string
	RID string
}

func (p *idPair) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local != "id" {
			continue
		}
		switch a.Name.Space {
		case "":
			p.ID = a.Value
		case nsRelationships:
			p.RID = a.Value
		}
	}
	return d.Skip()
}

// span is a byte range of one element in a part.
type span struct {
	start, end int64
}

// outline is the top-level shape of an XML part: its root prefix, the prefix
// it binds to nsRelationships, where the root start tag ends, and the byte
// ranges of selected direct children.
type outline struct {
	rootPrefix  string
	relPrefix   string
	rootOpenEnd int64
	children    map[string]span
}

func outlineOf(data []byte, names ...string) (*outline, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	o := &outline{children: make(map[string]span)}

	d := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	current := ""
	var currentStart int64

	for {
		offset := d.InputOffset()
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				o.rootPrefix = t.Name.Space
				o.rootOpenEnd = d.InputOffset()
				for _, a := range t.Attr {
					if a.Name.Space == "xmlns" && a.Value == nsRelationships {
						o.relPrefix = a.Name.Local
					}
				}
			}
			if depth == 1 && want[t.Name.Local] {
				if _, seen := o.children[t.Name.Local]; !seen {
					current = t.Name.Local
					currentStart = offset
				}
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 1 && current != "" && t.Name.Local == current {
				o.children[current] = span{start: currentStart, end: d.InputOffset()}
				current = ""
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced document")
	}
	return o, nil
}

// after returns the end of the last present child among names, or the end of
// the root start tag when none is present.
func (o *outline) after(names ...string) int64 {
	at := o.rootOpenEnd
	for _, n := range names {
		if s, ok := o.children[n]; ok && s.end > at {
			at = s.end
		}
	}
	return at
}

// edit replaces data[start:end] with text.
type edit struct {
	start, end int64
	text       string
}

// applyEdits applies non-overlapping edits. An insertion sharing its offset
// with a replacement lands in front of it.
func applyEdits(data []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start > edits[j].start
		}
		return edits[i].end > edits[j].end
	})
	out := append([]byte(nil), data...)
	for _, e := range edits {
		var buf bytes.Buffer
		buf.Grow(len(out) + len(e.text))
		buf.Write(out[:e.start])
		buf.WriteString(e.text)
		buf.Write(out[e.end:])
		out = buf.Bytes()
	}
	return out
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}
