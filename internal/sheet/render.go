package sheet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

var ErrEmptyDocument = errors.New("document has no pages")

// Renderer paints documents with fpdf. Each Render call owns one fpdf
// instance and paints pages sequentially into it.
type Renderer struct {
	compress bool
}

type RendererOption func(*Renderer)

// WithoutCompression leaves content streams readable, for inspection.
func WithoutCompression() RendererOption {
	return func(r *Renderer) { r.compress = false }
}

func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the PDF bytes for doc.
func (r *Renderer) Render(doc *Document) ([]byte, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, ErrEmptyDocument
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: doc.Width, Ht: doc.Height},
	})
	pdf.SetCompression(r.compress)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	pc := &painter{
		pdf:       pdf,
		height:    doc.Height,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	for i, page := range doc.Pages {
		pdf.AddPage()
		for _, e := range page.Elements {
			pc.paint(page, e)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("render page %d (%s): %w", i+1, page.SheetCode, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// painter converts page space (origin bottom-left) to fpdf space (origin
// top-left) as it paints.
type painter struct {
	pdf       *fpdf.Fpdf
	height    float64
	translate func(string) string
}

func (p *painter) y(v float64) float64 {
	return p.height - v
}

func (p *painter) paint(page *Page, e Element) {
	switch e.Kind {
	case KindRect:
		style := p.applyColors(e)
		if style == "" {
			return
		}
		p.pdf.Rect(e.At.X, p.y(e.At.Y+e.Height), e.Width, e.Height, style)
	case KindCircle:
		style := p.applyColors(e)
		if style == "" {
			return
		}
		p.pdf.Circle(e.At.X, p.y(e.At.Y), e.Radius, style)
	case KindLine:
		p.applyColors(e)
		p.pdf.Line(e.At.X, p.y(e.At.Y), e.To.X, p.y(e.To.Y))
	case KindText:
		p.text(e)
	case KindImage:
		p.image(page, e)
	}
}

// applyColors sets fill, stroke and line width and returns the fpdf style
// string for the element.
func (p *painter) applyColors(e Element) string {
	var style string
	if e.Fill != nil {
		p.pdf.SetFillColor(e.Fill.R, e.Fill.G, e.Fill.B)
		style += "F"
	}
	if e.Stroke != nil {
		p.pdf.SetDrawColor(e.Stroke.R, e.Stroke.G, e.Stroke.B)
		if e.LineWidth > 0 {
			p.pdf.SetLineWidth(e.LineWidth)
		}
		style += "D"
	}
	return style
}

func (p *painter) text(e Element) {
	p.pdf.SetFont(e.Font.Family, e.Font.Style, e.Font.Size)
	color := Black
	if e.Fill != nil {
		color = *e.Fill
	}
	p.pdf.SetTextColor(color.R, color.G, color.B)

	s := p.translate(e.Text)
	x := e.At.X
	switch e.Align {
	case AlignCenter:
		x -= p.pdf.GetStringWidth(s) / 2
	case AlignRight:
		x -= p.pdf.GetStringWidth(s)
	}
	p.pdf.Text(x, p.y(e.At.Y), s)
}

func (p *painter) image(page *Page, e Element) {
	name := string(e.Role)
	if e.Role == RoleQRCode {
		name += ":" + page.SheetCode
	}
	opts := fpdf.ImageOptions{ImageType: e.ImageType}
	if p.pdf.GetImageInfo(name) == nil {
		p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(e.Image))
	}
	p.pdf.ImageOptions(name, e.At.X, p.y(e.At.Y+e.Height), e.Width, e.Height, false, opts, 0, "")
}
