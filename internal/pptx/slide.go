package pptx

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Picture is an image placed on a slide.
type Picture struct {
	ID    int
	Name  string
	Media string // part name of the image, e.g. ppt/media/image1.png
	X, Y  Length
	CX    Length
	CY    Length
}

// Slide is one slide of a presentation. Only slides added through AddSlide
// accept new pictures; template slides are read-only.
type Slide struct {
	pres     *Presentation
	part     string
	layout   string
	added    bool
	rels     *relationships
	pictures []Picture
}

type slideXML struct {
	Pics []picXML `xml:"cSld>spTree>pic"`
}

type picXML struct {
	CNvPr struct {
		ID   int    `xml:"id,attr"`
		Name string `xml:"name,attr"`
	} `xml:"nvPicPr>cNvPr"`
	Blip struct {
		Embed string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships embed,attr"`
	} `xml:"blipFill>blip"`
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"spPr>xfrm>off"`
	Ext struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"spPr>xfrm>ext"`
}

func (p *Presentation) loadSlide(part string) (*Slide, error) {
	data, ok := p.pkg.get(part)
	if !ok {
		return nil, fmt.Errorf("missing part %s", part)
	}

	rels, err := p.pkg.readRels(part)
	if err != nil {
		return nil, err
	}

	var doc slideXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", part, err)
	}

	s := &Slide{pres: p, part: part, rels: rels}
	if rel, ok := rels.firstOfType(relSlideLayout); ok {
		s.layout = resolveTarget(part, rel.Target)
	}
	for _, pic := range doc.Pics {
		media := ""
		if rel, ok := rels.byID(pic.Blip.Embed); ok {
			media = resolveTarget(part, rel.Target)
		}
		s.pictures = append(s.pictures, Picture{
			ID:    pic.CNvPr.ID,
			Name:  pic.CNvPr.Name,
			Media: media,
			X:     Length(pic.Off.X),
			Y:     Length(pic.Off.Y),
			CX:    Length(pic.Ext.CX),
			CY:    Length(pic.Ext.CY),
		})
	}
	return s, nil
}

// Part returns the slide's part name.
func (s *Slide) Part() string {
	return s.part
}

// LayoutPart returns the part name of the slide's layout.
func (s *Slide) LayoutPart() string {
	return s.layout
}

// Pictures returns the pictures on the slide in drawing order.
func (s *Slide) Pictures() []Picture {
	return append([]Picture(nil), s.pictures...)
}

// AddPicture stores data as a media part and places it at (x, y) with size
// cx by cy. ext is the image format, "png" or "jpeg".
func (s *Slide) AddPicture(data []byte, ext string, x, y, cx, cy Length) (Picture, error) {
	if !s.added {
		return Picture{}, fmt.Errorf("slide %s belongs to the template and cannot be edited", s.part)
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var contentType string
	switch ext {
	case "png":
		contentType = "image/png"
	case "jpeg", "jpg":
		ext, contentType = "jpeg", "image/jpeg"
	default:
		return Picture{}, fmt.Errorf("unsupported image format %q", ext)
	}
	if len(data) == 0 {
		return Picture{}, fmt.Errorf("empty image")
	}
	if cx <= 0 || cy <= 0 {
		return Picture{}, fmt.Errorf("picture size must be positive, got %dx%d", cx, cy)
	}

	pkg := s.pres.pkg
	media := pkg.nextPartName("ppt/media/image", "."+ext)
	pkg.put(media, data)
	s.pres.ctypes.ensureDefault(ext, contentType)

	s.rels.add(relImage, relTarget(s.part, media))

	// id 1 is the shape tree itself
	id := len(s.pictures) + 2
	pic := Picture{
		ID:    id,
		Name:  fmt.Sprintf("Picture %d", id-1),
		Media: media,
		X:     x,
		Y:     y,
		CX:    cx,
		CY:    cy,
	}
	s.pictures = append(s.pictures, pic)

	if err := s.flush(); err != nil {
		return Picture{}, err
	}
	return pic, nil
}

// flush regenerates the XML and relationships of an added slide.
func (s *Slide) flush() error {
	embeds := make(map[string]string, len(s.rels.Items))
	for _, rel := range s.rels.Items {
		if rel.Type == relImage {
			embeds[resolveTarget(s.part, rel.Target)] = rel.ID
		}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<p:sld xmlns:a="` + nsDrawingML + `" xmlns:r="` + nsRelationships + `" xmlns:p="` + nsPresentationML + `">`)
	b.WriteString(`<p:cSld><p:spTree>`)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	b.WriteString(`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`)
	for _, pic := range s.pictures {
		b.WriteString(`<p:pic><p:nvPicPr>`)
		fmt.Fprintf(&b, `<p:cNvPr id="%d" name="%s"/>`, pic.ID, escapeAttr(pic.Name))
		b.WriteString(`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/>`)
		b.WriteString(`</p:nvPicPr>`)
		fmt.Fprintf(&b, `<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`, embeds[pic.Media])
		fmt.Fprintf(&b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`, pic.X, pic.Y, pic.CX, pic.CY)
		b.WriteString(`</p:pic>`)
	}
	b.WriteString(`</p:spTree></p:cSld>`)
	b.WriteString(`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`)
	b.WriteString(`</p:sld>`)

	s.pres.pkg.put(s.part, []byte(b.String()))
	return s.pres.pkg.writeRels(s.part, s.rels)
}

func escapeAttr(v string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(v))
	return b.String()
}
