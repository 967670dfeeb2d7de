package pptx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoLayouts is returned when a package has no slide master layouts.
var ErrNoLayouts = errors.New("presentation has no slide layouts")

// Layout is a slide layout of the first slide master, in master order.
type Layout struct {
	Index int
	Name  string
	Part  string
}

// Presentation is an open deck. It is not safe for concurrent use.
type Presentation struct {
	pkg      *opcPackage
	part     string // usually ppt/presentation.xml
	rels     *relationships
	ctypes   *contentTypes
	layouts  []Layout
	slideIDs []idPair
	slides   []*Slide
	cx, cy   Length
}

type presentationXML struct {
	Masters []idPair `xml:"sldMasterIdLst>sldMasterId"`
	Slides  []idPair `xml:"sldIdLst>sldId"`
	Size    *struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

type masterXML struct {
	Layouts []idPair `xml:"sldLayoutIdLst>sldLayoutId"`
}

type layoutXML struct {
	CSld struct {
		Name string `xml:"name,attr"`
	} `xml:"cSld"`
}

// Open reads the presentation at path.
func Open(path string) (*Presentation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presentation: %w", err)
	}
	return OpenBytes(data)
}

// OpenBytes reads a presentation from memory.
func OpenBytes(data []byte) (*Presentation, error) {
	pkg, err := readPackage(data)
	if err != nil {
		return nil, err
	}

	rootRels, err := pkg.readRels("")
	if err != nil {
		return nil, err
	}
	doc, ok := rootRels.firstOfType(relOfficeDocument)
	if !ok {
		return nil, errors.New("package has no main document")
	}

	p := &Presentation{pkg: pkg, part: resolveTarget("", doc.Target)}

	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Presentation) load() error {
	data, ok := p.pkg.get(p.part)
	if !ok {
		return fmt.Errorf("missing part %s", p.part)
	}

	var doc presentationXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", p.part, err)
	}
	if doc.Size != nil {
		p.cx, p.cy = Length(doc.Size.CX), Length(doc.Size.CY)
	}
	p.slideIDs = doc.Slides

	rels, err := p.pkg.readRels(p.part)
	if err != nil {
		return err
	}
	p.rels = rels

	ctData, ok := p.pkg.get(contentTypesPart)
	if !ok {
		return fmt.Errorf("missing part %s", contentTypesPart)
	}
	p.ctypes = &contentTypes{}
	if err := xml.Unmarshal(ctData, p.ctypes); err != nil {
		return fmt.Errorf("parse %s: %w", contentTypesPart, err)
	}

	if len(doc.Masters) > 0 {
		if err := p.loadLayouts(doc.Masters[0].RID); err != nil {
			return err
		}
	}

	for _, id := range doc.Slides {
		rel, ok := rels.byID(id.RID)
		if !ok {
			return fmt.Errorf("slide %s has no relationship %s", id.ID, id.RID)
		}
		slide, err := p.loadSlide(resolveTarget(p.part, rel.Target))
		if err != nil {
			return err
		}
		p.slides = append(p.slides, slide)
	}
	return nil
}

func (p *Presentation) loadLayouts(masterRID string) error {
	rel, ok := p.rels.byID(masterRID)
	if !ok {
		return fmt.Errorf("slide master relationship %s not found", masterRID)
	}
	masterPart := resolveTarget(p.part, rel.Target)

	data, ok := p.pkg.get(masterPart)
	if !ok {
		return fmt.Errorf("missing part %s", masterPart)
	}
	var master masterXML
	if err := xml.Unmarshal(data, &master); err != nil {
		return fmt.Errorf("parse %s: %w", masterPart, err)
	}

	masterRels, err := p.pkg.readRels(masterPart)
	if err != nil {
		return err
	}

	for i, id := range master.Layouts {
		lrel, ok := masterRels.byID(id.RID)
		if !ok {
			return fmt.Errorf("layout relationship %s not found in %s", id.RID, masterPart)
		}
		part := resolveTarget(masterPart, lrel.Target)

		var name string
		if ldata, ok := p.pkg.get(part); ok {
			var l layoutXML
			if err := xml.Unmarshal(ldata, &l); err != nil {
				return fmt.Errorf("parse %s: %w", part, err)
			}
			name = l.CSld.Name
		}
		p.layouts = append(p.layouts, Layout{Index: i, Name: name, Part: part})
	}
	return nil
}

// Layouts returns the slide layouts of the first slide master.
func (p *Presentation) Layouts() []Layout {
	return append([]Layout(nil), p.layouts...)
}

// Layout returns the layout at index.
func (p *Presentation) Layout(index int) (Layout, error) {
	if len(p.layouts) == 0 {
		return Layout{}, ErrNoLayouts
	}
	if index < 0 || index >= len(p.layouts) {
		return Layout{}, fmt.Errorf("layout index %d out of range [0, %d)", index, len(p.layouts))
	}
	return p.layouts[index], nil
}

// SlideSize returns the slide width and height.
func (p *Presentation) SlideSize() (cx, cy Length) {
	return p.cx, p.cy
}

// SetSlideSize changes the slide width and height.
func (p *Presentation) SetSlideSize(cx, cy Length) error {
	if cx <= 0 || cy <= 0 {
		return fmt.Errorf("slide size must be positive, got %dx%d", cx, cy)
	}
	p.cx, p.cy = cx, cy
	return p.syncPresentationPart()
}

// Slides returns the template's slides followed by the added ones.
func (p *Presentation) Slides() []*Slide {
	return append([]*Slide(nil), p.slides...)
}

// AddSlide appends an empty slide using layout.
func (p *Presentation) AddSlide(layout Layout) (*Slide, error) {
	if !p.pkg.has(layout.Part) {
		return nil, fmt.Errorf("layout part %s not found", layout.Part)
	}

	part := p.pkg.nextPartName("ppt/slides/slide", ".xml")
	s := &Slide{
		pres:   p,
		part:   part,
		layout: layout.Part,
		added:  true,
		rels:   &relationships{},
	}
	s.rels.add(relSlideLayout, relTarget(part, layout.Part))

	if err := s.flush(); err != nil {
		return nil, err
	}
	p.ctypes.setOverride(part, ctSlide)

	rid := p.rels.add(relSlide, relTarget(p.part, part))
	p.slideIDs = append(p.slideIDs, idPair{ID: strconv.Itoa(p.nextSlideID()), RID: rid})

	if err := p.pkg.writeRels(p.part, p.rels); err != nil {
		return nil, err
	}
	if err := p.syncPresentationPart(); err != nil {
		return nil, err
	}

	p.slides = append(p.slides, s)
	return s, nil
}

// nextSlideID returns a slide id above every existing one. Ids start at 256.
func (p *Presentation) nextSlideID() int {
	max := 255
	for _, id := range p.slideIDs {
		if n, err := strconv.Atoi(id.ID); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// syncPresentationPart rewrites sldIdLst and sldSz in place, leaving the rest
// of the part byte for byte.
func (p *Presentation) syncPresentationPart() error {
	data, ok := p.pkg.get(p.part)
	if !ok {
		return fmt.Errorf("missing part %s", p.part)
	}

	o, err := outlineOf(data, "sldMasterIdLst", "notesMasterIdLst", "handoutMasterIdLst", "sldIdLst", "sldSz")
	if err != nil {
		return fmt.Errorf("scan %s: %w", p.part, err)
	}

	var list strings.Builder
	if len(p.slideIDs) > 0 {
		relPrefix := o.relPrefix
		nsDecl := ""
		if relPrefix == "" {
			relPrefix = "r"
			nsDecl = ` xmlns:r="` + nsRelationships + `"`
		}
		fmt.Fprintf(&list, `<%s>`, qualify(o.rootPrefix, "sldIdLst"))
		for _, id := range p.slideIDs {
			fmt.Fprintf(&list, `<%s id="%s"%s %s:id="%s"/>`, qualify(o.rootPrefix, "sldId"), id.ID, nsDecl, relPrefix, id.RID)
		}
		fmt.Fprintf(&list, `</%s>`, qualify(o.rootPrefix, "sldIdLst"))
	}

	size := ""
	if p.cx > 0 && p.cy > 0 {
		size = fmt.Sprintf(`<%s cx="%d" cy="%d"/>`, qualify(o.rootPrefix, "sldSz"), p.cx, p.cy)
	}

	var edits []edit
	lst, hasList := o.children["sldIdLst"]
	sz, hasSize := o.children["sldSz"]
	switch {
	case hasList && hasSize:
		edits = append(edits, edit{lst.start, lst.end, list.String()}, edit{sz.start, sz.end, size})
	case hasList:
		edits = append(edits, edit{lst.start, lst.end, list.String() + size})
	case hasSize:
		at := o.after("sldMasterIdLst", "notesMasterIdLst", "handoutMasterIdLst")
		edits = append(edits, edit{at, at, list.String()}, edit{sz.start, sz.end, size})
	default:
		at := o.after("sldMasterIdLst", "notesMasterIdLst", "handoutMasterIdLst")
		edits = append(edits, edit{at, at, list.String() + size})
	}

	p.pkg.put(p.part, applyEdits(data, edits))
	return nil
}

// Write serializes the presentation. It may be called more than once.
func (p *Presentation) Write(w io.Writer) error {
	ct, err := marshalPart(p.ctypes)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", contentTypesPart, err)
	}
	p.pkg.put(contentTypesPart, ct)
	return p.pkg.writeTo(w)
}

// Bytes serializes the presentation into memory.
func (p *Presentation) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the presentation to path. The file is replaced atomically, so a
// failed save leaves any previous file at path untouched.
func (p *Presentation) Save(path string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = p.Write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
