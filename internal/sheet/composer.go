package sheet

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/omr"
)

const (
	DefaultTitle  = "CARTÃO-RESPOSTA"
	DefaultFooter = "Não dobre, não amasse e não rasure este cartão."

	maxNameRunes = 48
)

var instructionLines = [2]string{
	"INSTRUÇÕES: Preencha completamente o círculo correspondente à resposta correta.",
	"Use caneta esferográfica preta. Não rasure.",
}

var (
	ErrMissingSheetCode = errors.New("student has no sheet code")
	ErrMissingName      = errors.New("student has no name")
)

// mm converts millimetres to points.
func mm(v float64) float64 {
	return v * 72 / 25.4
}

// DayLabel is the exam label printed when none is given.
func DayLabel(day int) string {
	return fmt.Sprintf("Dia %d", day)
}

// Composer builds page paint lists. It holds no per-page state and is safe
// for concurrent use.
type Composer struct {
	template    omr.Template
	layout      omr.Layout
	assets      *Assets
	qr          QREncoder
	title       string
	footer      string
	fillAnswers bool
}

type Option func(*Composer)

func WithTemplate(t omr.Template) Option {
	return func(c *Composer) { c.template = t }
}

func WithQREncoder(e QREncoder) Option {
	return func(c *Composer) { c.qr = e }
}

func WithTitle(title string) Option {
	return func(c *Composer) {
		if title != "" {
			c.title = title
		}
	}
}

func WithFooter(footer string) Option {
	return func(c *Composer) {
		if footer != "" {
			c.footer = footer
		}
	}
}

// WithFilledAnswers paints each student's stored answers as filled bubbles.
// Used to print simulated sheets for scanner calibration.
func WithFilledAnswers() Option {
	return func(c *Composer) { c.fillAnswers = true }
}

func NewComposer(assets *Assets, opts ...Option) *Composer {
	c := &Composer{
		template: omr.Current,
		assets:   assets,
		qr:       SkipQREncoder{},
		title:    DefaultTitle,
		footer:   DefaultFooter,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.layout = c.template.Layout()
	return c
}

// Template returns the template pages are laid out against.
func (c *Composer) Template() omr.Template {
	return c.template
}

// ComposeBatch lays out one page per student in the order given.
func (c *Composer) ComposeBatch(students []*models.AnswerSheetStudent, examLabel string) (*Document, error) {
	doc := &Document{
		Width:  c.template.PageWidth,
		Height: c.template.PageHeight,
		Pages:  make([]*Page, 0, len(students)),
	}
	for i, s := range students {
		page, err := c.ComposePage(s, examLabel)
		if err != nil {
			return nil, fmt.Errorf("compose page %d: %w", i+1, err)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// ComposePage lays out a single sheet. Paint order is fixed: background,
// header, QR code, identity box, instructions, rule, grid, markers, footer.
func (c *Composer) ComposePage(student *models.AnswerSheetStudent, examLabel string) (*Page, error) {
	if student == nil || student.SheetCode == "" {
		return nil, ErrMissingSheetCode
	}
	if student.StudentName == "" {
		return nil, fmt.Errorf("%s: %w", student.SheetCode, ErrMissingName)
	}

	p := &pageBuilder{
		page: &Page{
			SheetCode: student.SheetCode,
			Width:     c.template.PageWidth,
			Height:    c.template.PageHeight,
		},
	}

	p.add(Element{
		Kind:   KindRect,
		Role:   RoleBackground,
		Width:  p.page.Width,
		Height: p.page.Height,
		Fill:   colorRef(White),
	})
	c.header(p, examLabel)
	if err := c.qrCode(p, student.SheetCode); err != nil {
		return nil, err
	}
	c.identityBox(p, student)
	c.instructions(p)
	c.grid(p, c.answersFor(student))
	c.markers(p)
	c.footerText(p)

	return p.page, nil
}

func (c *Composer) answersFor(s *models.AnswerSheetStudent) []string {
	if !c.fillAnswers {
		return nil
	}
	return s.Answers
}

type pageBuilder struct {
	page *Page
}

func (b *pageBuilder) add(e Element) {
	b.page.Elements = append(b.page.Elements, e)
}

func (b *pageBuilder) text(role Role, x, y float64, s string, f Font, align Align, color Color) {
	b.add(Element{
		Kind:  KindText,
		Role:  role,
		At:    omr.Point{X: x, Y: y},
		Text:  s,
		Font:  f,
		Align: align,
		Fill:  colorRef(color),
	})
}

func (c *Composer) header(p *pageBuilder, examLabel string) {
	h := p.page.Height
	titleX := mm(15)

	if c.assets.HasLogo() {
		size := mm(15)
		p.add(Element{
			Kind:      KindImage,
			Role:      RoleLogo,
			At:        omr.Point{X: mm(15), Y: h - size - mm(10)},
			Width:     size,
			Height:    size,
			Image:     c.assets.Logo,
			ImageType: c.assets.LogoType,
		})
		titleX = mm(35)
	}

	p.text(RoleTitle, titleX, h-mm(18), c.title, fontTitle, AlignLeft, Black)
	if examLabel != "" {
		p.text(RoleExamLabel, titleX, h-mm(26), examLabel, fontExamLabel, AlignLeft, Black)
	}
}

func (c *Composer) qrCode(p *pageBuilder, code string) error {
	png, err := c.qr.Encode(code)
	if err != nil {
		return err
	}

	size := mm(22)
	x := p.page.Width - size - mm(12)
	y := p.page.Height - size - mm(10)
	p.add(Element{
		Kind:      KindImage,
		Role:      RoleQRCode,
		At:        omr.Point{X: x, Y: y},
		Width:     size,
		Height:    size,
		Image:     png,
		ImageType: "PNG",
	})
	p.text(RoleSheetCode, x+size/2, y-mm(4), code, fontSheetCode, AlignCenter, Black)
	return nil
}

func (c *Composer) identityBox(p *pageBuilder, s *models.AnswerSheetStudent) {
	x := mm(15)
	top := p.page.Height - mm(35)
	w, h := mm(125), mm(22)

	p.add(Element{
		Kind:      KindRect,
		Role:      RoleIdentityBox,
		At:        omr.Point{X: x, Y: top - h},
		Width:     w,
		Height:    h,
		Stroke:    colorRef(Black),
		LineWidth: 0.5,
	})

	p.text(RoleNameCaption, x+mm(3), top-mm(5), "Nome:", fontCaption, AlignLeft, Black)
	p.text(RoleName, x+mm(3), top-mm(10), truncateRunes(s.StudentName, maxNameRunes), fontName, AlignLeft, Black)

	if s.EnrollmentCode != nil && *s.EnrollmentCode != "" {
		p.text(RoleEnrollment, x+mm(3), top-mm(18), "Matrícula: "+*s.EnrollmentCode, fontIdentity, AlignLeft, Black)
	}
	if s.ClassName != nil && *s.ClassName != "" {
		p.text(RoleClass, x+mm(55), top-mm(18), "Turma: "+*s.ClassName, fontIdentity, AlignLeft, Black)
	}
}

func (c *Composer) instructions(p *pageBuilder) {
	h := p.page.Height
	p.text(RoleInstructions, mm(15), h-mm(65), instructionLines[0], fontSmall, AlignLeft, Black)
	p.text(RoleInstructions, mm(15), h-mm(69), instructionLines[1], fontSmall, AlignLeft, Black)

	p.add(Element{
		Kind:      KindLine,
		Role:      RoleRule,
		At:        omr.Point{X: mm(15), Y: h - mm(72)},
		To:        omr.Point{X: p.page.Width - mm(15), Y: h - mm(72)},
		Stroke:    colorRef(Black),
		LineWidth: 0.5,
	})
}

func (c *Composer) grid(p *pageBuilder, answers []string) {
	for _, sep := range c.layout.Separators {
		p.add(Element{
			Kind:      KindLine,
			Role:      RoleColumnSeparator,
			At:        sep.From,
			To:        sep.To,
			Stroke:    colorRef(Gray),
			LineWidth: 0.3,
		})
	}

	for _, row := range c.layout.Rows {
		p.text(RoleQuestionNumber, row.Label.Anchor.X, row.Label.Anchor.Y-3, row.Label.Text, fontSmall, AlignRight, Black)

		var marked string
		if i := row.Question - 1; i < len(answers) {
			marked = answers[i]
		}

		for _, b := range row.Bubbles {
			bubble := Element{
				Kind:   KindCircle,
				Role:   RoleBubble,
				At:     b.Center,
				Radius: b.Radius,
			}
			labelColor := Black
			if b.Option == marked {
				bubble.Fill = colorRef(Black)
				labelColor = White
			} else {
				bubble.Fill = colorRef(White)
				bubble.Stroke = colorRef(Black)
				bubble.LineWidth = 0.5
			}
			p.add(bubble)
			p.text(RoleBubbleLabel, b.Center.X, b.Center.Y-2.5, b.Option, fontBubbleLabel, AlignCenter, labelColor)
		}
	}
}

func (c *Composer) markers(p *pageBuilder) {
	for _, m := range c.layout.Markers {
		p.add(Element{
			Kind:   KindRect,
			Role:   RoleMarker,
			At:     m.Origin,
			Width:  m.Size,
			Height: m.Size,
			Fill:   colorRef(Black),
		})
	}
}

func (c *Composer) footerText(p *pageBuilder) {
	if c.footer == "" {
		return
	}
	p.text(RoleFooter, p.page.Width/2, mm(10), c.footer, fontSmall, AlignCenter, Gray)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
