// Package sheet lays out one printable answer sheet per student and renders
// batches of them to PDF.
package sheet

import "github.com/SAP-F-2025/answer-sheet-service/internal/omr"

// Kind is the drawing primitive behind an element.
type Kind string

const (
	KindRect   Kind = "rect"
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindLine   Kind = "line"
	KindCircle Kind = "circle"
)

// Role tags what an element is on the page. Tests and debugging tools look
// elements up by role; the renderer ignores it.
type Role string

const (
	RoleBackground      Role = "background"
	RoleLogo            Role = "logo"
	RoleTitle           Role = "title"
	RoleExamLabel       Role = "exam_label"
	RoleQRCode          Role = "qr_code"
	RoleSheetCode       Role = "sheet_code"
	RoleIdentityBox     Role = "identity_box"
	RoleNameCaption     Role = "name_caption"
	RoleName            Role = "name"
	RoleEnrollment      Role = "enrollment"
	RoleClass           Role = "class"
	RoleInstructions    Role = "instructions"
	RoleRule            Role = "rule"
	RoleColumnSeparator Role = "column_separator"
	RoleQuestionNumber  Role = "question_number"
	RoleBubble          Role = "bubble"
	RoleBubbleLabel     Role = "bubble_label"
	RoleMarker          Role = "marker"
	RoleFooter          Role = "footer"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

type Color struct {
	R, G, B int
}

var (
	Black = Color{0, 0, 0}
	White = Color{255, 255, 255}
	Gray  = Color{128, 128, 128}
)

type Font struct {
	Family string
	Style  string // "", "B"
	Size   float64
}

var (
	fontTitle       = Font{Family: "Helvetica", Style: "B", Size: 22}
	fontExamLabel   = Font{Family: "Helvetica", Size: 11}
	fontCaption     = Font{Family: "Helvetica", Size: 8}
	fontName        = Font{Family: "Helvetica", Style: "B", Size: 10}
	fontIdentity    = Font{Family: "Helvetica", Size: 9}
	fontSmall       = Font{Family: "Helvetica", Size: 7}
	fontSheetCode   = Font{Family: "Helvetica", Style: "B", Size: 8}
	fontBubbleLabel = Font{Family: "Helvetica", Style: "B", Size: 7}
)

// Element is one paint operation in page space (points, origin bottom-left).
//
// At is the lower-left corner for rects and images, the text anchor on the
// baseline for text, the center for circles and the start for lines.
type Element struct {
	Kind Kind
	Role Role

	At     omr.Point
	To     omr.Point
	Width  float64
	Height float64
	Radius float64

	Text  string
	Font  Font
	Align Align

	Fill      *Color
	Stroke    *Color
	LineWidth float64

	Image     []byte
	ImageType string
}

// Page is the ordered paint list for one student's sheet.
type Page struct {
	SheetCode string
	Width     float64
	Height    float64
	Elements  []Element
}

// ByRole returns the page's elements with the given role in paint order.
func (p *Page) ByRole(role Role) []Element {
	var out []Element
	for _, e := range p.Elements {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// Document is a batch of pages in print order.
type Document struct {
	Width  float64
	Height float64
	Pages  []*Page
}

func colorRef(c Color) *Color {
	return &c
}
