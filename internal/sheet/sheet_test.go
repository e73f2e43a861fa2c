package sheet

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/omr"
)

type stubQR struct {
	payloads []string
	err      error
}

func (s *stubQR) Encode(payload string) ([]byte, error) {
	s.payloads = append(s.payloads, payload)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("png:" + payload), nil
}

func strPtr(s string) *string { return &s }

func student(name, code string) *models.AnswerSheetStudent {
	return &models.AnswerSheetStudent{StudentName: name, SheetCode: code}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func roles(p *Page) []Role {
	var out []Role
	for _, e := range p.Elements {
		if len(out) == 0 || out[len(out)-1] != e.Role {
			out = append(out, e.Role)
		}
	}
	return out
}

func TestComposePage_PaintOrder(t *testing.T) {
	c := NewComposer(&Assets{Logo: []byte("logo"), LogoType: "PNG"}, WithQREncoder(&stubQR{}))
	s := &models.AnswerSheetStudent{
		StudentName:    "Ana Souza",
		EnrollmentCode: strPtr("123"),
		ClassName:      strPtr("3A"),
		SheetCode:      "XTRI-ABCDEF",
	}

	page, err := c.ComposePage(s, "Dia 2")
	require.NoError(t, err)

	ordered := roles(page)
	// the grid interleaves numbers, bubbles and labels; collapse it
	var collapsed []Role
	for _, r := range ordered {
		switch r {
		case RoleQuestionNumber, RoleBubble, RoleBubbleLabel:
			r = RoleBubble
		}
		if len(collapsed) == 0 || collapsed[len(collapsed)-1] != r {
			collapsed = append(collapsed, r)
		}
	}

	assert.Equal(t, []Role{
		RoleBackground,
		RoleLogo, RoleTitle, RoleExamLabel,
		RoleQRCode, RoleSheetCode,
		RoleIdentityBox, RoleNameCaption, RoleName, RoleEnrollment, RoleClass,
		RoleInstructions, RoleRule,
		RoleColumnSeparator, RoleBubble,
		RoleMarker,
		RoleFooter,
	}, collapsed)
}

func TestComposePage_Header(t *testing.T) {
	s := student("Ana", "XTRI-ABCDEF")

	t.Run("with logo", func(t *testing.T) {
		c := NewComposer(&Assets{Logo: []byte("logo"), LogoType: "PNG"}, WithQREncoder(&stubQR{}))
		page, err := c.ComposePage(s, "Dia 1")
		require.NoError(t, err)

		logo := page.ByRole(RoleLogo)
		require.Len(t, logo, 1)
		assert.InDelta(t, mm(15), logo[0].At.X, 1e-9)
		assert.InDelta(t, page.Height-mm(25), logo[0].At.Y, 1e-9)
		assert.InDelta(t, mm(35), page.ByRole(RoleTitle)[0].At.X, 1e-9)
	})

	t.Run("without logo the title shifts left", func(t *testing.T) {
		c := NewComposer(&Assets{}, WithQREncoder(&stubQR{}))
		page, err := c.ComposePage(s, "Dia 1")
		require.NoError(t, err)

		assert.Empty(t, page.ByRole(RoleLogo))
		title := page.ByRole(RoleTitle)[0]
		assert.InDelta(t, mm(15), title.At.X, 1e-9)
		assert.Equal(t, DefaultTitle, title.Text)
		assert.InDelta(t, mm(15), page.ByRole(RoleExamLabel)[0].At.X, 1e-9)
	})

	t.Run("nil assets", func(t *testing.T) {
		c := NewComposer(nil, WithQREncoder(&stubQR{}), WithTitle("GABARITO"))
		page, err := c.ComposePage(s, "")
		require.NoError(t, err)
		assert.Empty(t, page.ByRole(RoleLogo))
		assert.Empty(t, page.ByRole(RoleExamLabel))
		assert.Equal(t, "GABARITO", page.ByRole(RoleTitle)[0].Text)
	})
}

func TestComposePage_QRCarriesSheetCode(t *testing.T) {
	qr := &stubQR{}
	c := NewComposer(nil, WithQREncoder(qr))

	page, err := c.ComposePage(student("Ana", "XTRI-QRSTUV"), "Dia 1")
	require.NoError(t, err)

	assert.Equal(t, []string{"XTRI-QRSTUV"}, qr.payloads)

	img := page.ByRole(RoleQRCode)[0]
	assert.InDelta(t, mm(22), img.Width, 1e-9)
	assert.Equal(t, img.Width, img.Height)
	assert.InDelta(t, page.Width-mm(22)-mm(12), img.At.X, 1e-9)
	assert.InDelta(t, page.Height-mm(22)-mm(10), img.At.Y, 1e-9)

	code := page.ByRole(RoleSheetCode)[0]
	assert.Equal(t, "XTRI-QRSTUV", code.Text)
	assert.Equal(t, AlignCenter, code.Align)
	assert.InDelta(t, img.At.X+img.Width/2, code.At.X, 1e-9)
}

func TestComposePage_QRDecodes(t *testing.T) {
	c := NewComposer(nil)
	page, err := c.ComposePage(student("Ana", "XTRI-HJK234"), "Dia 1")
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(page.ByRole(RoleQRCode)[0].Image))
	require.NoError(t, err)
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	result, err := zxingqr.NewQRCodeReader().Decode(bmp, nil)
	require.NoError(t, err)
	assert.Equal(t, "XTRI-HJK234", result.GetText())
}

func TestComposePage_IdentityFields(t *testing.T) {
	c := NewComposer(nil, WithQREncoder(&stubQR{}))

	t.Run("all present", func(t *testing.T) {
		s := &models.AnswerSheetStudent{
			StudentName:    "Ana",
			EnrollmentCode: strPtr("123"),
			ClassName:      strPtr("3A"),
			SheetCode:      "XTRI-ABCDEF",
		}
		page, err := c.ComposePage(s, "Dia 1")
		require.NoError(t, err)
		assert.Equal(t, "Matrícula: 123", page.ByRole(RoleEnrollment)[0].Text)
		assert.Equal(t, "Turma: 3A", page.ByRole(RoleClass)[0].Text)
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		s := &models.AnswerSheetStudent{StudentName: "Ana", ClassName: strPtr(""), SheetCode: "XTRI-ABCDEF"}
		page, err := c.ComposePage(s, "Dia 1")
		require.NoError(t, err)
		assert.Empty(t, page.ByRole(RoleEnrollment))
		assert.Empty(t, page.ByRole(RoleClass))
		assert.Len(t, page.ByRole(RoleName), 1)
	})

	t.Run("long names are truncated by rune", func(t *testing.T) {
		long := "Maria José da Conceição Albuquerque Cavalcanti de Souza Júnior"
		page, err := c.ComposePage(student(long, "XTRI-ABCDEF"), "Dia 1")
		require.NoError(t, err)
		name := page.ByRole(RoleName)[0].Text
		assert.Equal(t, 48, len([]rune(name)))
		assert.Equal(t, string([]rune(long)[:48]), name)
	})
}

func TestComposePage_Errors(t *testing.T) {
	c := NewComposer(nil, WithQREncoder(&stubQR{}))

	_, err := c.ComposePage(nil, "")
	assert.ErrorIs(t, err, ErrMissingSheetCode)

	_, err = c.ComposePage(student("Ana", ""), "")
	assert.ErrorIs(t, err, ErrMissingSheetCode)

	_, err = c.ComposePage(student("", "XTRI-ABCDEF"), "")
	assert.ErrorIs(t, err, ErrMissingName)

	boom := errors.New("boom")
	failing := NewComposer(nil, WithQREncoder(&stubQR{err: boom}))
	_, err = failing.ComposePage(student("Ana", "XTRI-ABCDEF"), "")
	assert.ErrorIs(t, err, boom)
}

func TestComposePage_GridMatchesTemplate(t *testing.T) {
	c := NewComposer(nil, WithQREncoder(&stubQR{}))
	page, err := c.ComposePage(student("Ana", "XTRI-ABCDEF"), "")
	require.NoError(t, err)

	tmpl := omr.XTRIv1
	bubbles := page.ByRole(RoleBubble)
	require.Len(t, bubbles, tmpl.QuestionCount()*len(tmpl.Options))
	assert.Len(t, page.ByRole(RoleQuestionNumber), tmpl.QuestionCount())
	assert.Len(t, page.ByRole(RoleColumnSeparator), tmpl.Columns-1)

	// question 1 option A sits at the grid origin
	first := tmpl.ToPoint(tmpl.GridOrigin)
	assert.InDelta(t, first.X, bubbles[0].At.X, 1e-9)
	assert.InDelta(t, first.Y, bubbles[0].At.Y, 1e-9)
	assert.InDelta(t, 9*0.48, bubbles[0].Radius, 1e-9)

	num := page.ByRole(RoleQuestionNumber)[0]
	assert.Equal(t, "01", num.Text)
	assert.Equal(t, AlignRight, num.Align)
	assert.InDelta(t, (120-30)*0.48, num.At.X, 1e-9)
	assert.InDelta(t, first.Y-3, num.At.Y, 1e-9)

	markers := page.ByRole(RoleMarker)
	require.Len(t, markers, 4)
	assert.InDelta(t, 57*0.48-32*0.48/2, markers[0].At.X, 1e-9)

	for _, b := range bubbles {
		require.NotNil(t, b.Stroke)
		assert.Equal(t, White, *b.Fill)
	}
}

func TestComposePage_FilledAnswers(t *testing.T) {
	s := student("Ana", "XTRI-ABCDEF")
	s.Answers = []string{"C", "", "A"}

	t.Run("ignored by default", func(t *testing.T) {
		page, err := NewComposer(nil, WithQREncoder(&stubQR{})).ComposePage(s, "")
		require.NoError(t, err)
		for _, b := range page.ByRole(RoleBubble) {
			assert.Equal(t, White, *b.Fill)
		}
	})

	t.Run("painted when enabled", func(t *testing.T) {
		page, err := NewComposer(nil, WithQREncoder(&stubQR{}), WithFilledAnswers()).ComposePage(s, "")
		require.NoError(t, err)

		bubbles := page.ByRole(RoleBubble)
		labels := page.ByRole(RoleBubbleLabel)
		var filled []int
		for i, b := range bubbles {
			if *b.Fill == Black {
				filled = append(filled, i)
				assert.Nil(t, b.Stroke)
				assert.Equal(t, White, *labels[i].Fill)
			}
		}
		// question 1 option C, question 3 option A
		assert.Equal(t, []int{2, 10}, filled)
	})
}

func TestComposeBatch(t *testing.T) {
	c := NewComposer(nil, WithQREncoder(&stubQR{}))
	students := []*models.AnswerSheetStudent{
		student("Carla", "XTRI-CCCCCC"),
		student("Ana", "XTRI-AAAAAA"),
		student("Bruno", "XTRI-BBBBBB"),
	}

	doc, err := c.ComposeBatch(students, "Dia 1")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "XTRI-CCCCCC", doc.Pages[0].SheetCode)
	assert.Equal(t, "XTRI-BBBBBB", doc.Pages[2].SheetCode)
	assert.InDelta(t, omr.XTRIv1.PageWidth, doc.Width, 1e-9)

	students[1].SheetCode = ""
	_, err = c.ComposeBatch(students, "Dia 1")
	assert.ErrorIs(t, err, ErrMissingSheetCode)
	assert.Contains(t, err.Error(), "page 2")
}

var pageObject = regexp.MustCompile(`/Type /Page[^s]`)

func TestRenderer_Render(t *testing.T) {
	dir := t.TempDir()
	logoPath := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(logoPath, testPNG(t), 0o600))

	assets, err := LoadAssets(logoPath)
	require.NoError(t, err)
	require.True(t, assets.HasLogo())

	c := NewComposer(assets)
	doc, err := c.ComposeBatch([]*models.AnswerSheetStudent{
		{StudentName: "Ana", EnrollmentCode: strPtr("1"), SheetCode: "XTRI-AAAAA2"},
		{StudentName: "Bruno", ClassName: strPtr("3B"), SheetCode: "XTRI-BBBBB3"},
		{StudentName: "Carla", SheetCode: "XTRI-CCCCC4"},
	}, DayLabel(1))
	require.NoError(t, err)

	out, err := NewRenderer(WithoutCompression()).Render(doc)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Len(t, pageObject.FindAll(out, -1), 3)
	assert.True(t, bytes.Contains(out, []byte("XTRI-BBBBB3")))

	compressed, err := NewRenderer().Render(doc)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(out))
}

func TestRenderer_EmptyDocument(t *testing.T) {
	_, err := NewRenderer().Render(&Document{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestLoadAssets(t *testing.T) {
	a, err := LoadAssets("")
	require.NoError(t, err)
	assert.False(t, a.HasLogo())

	a, err = LoadAssets(filepath.Join(t.TempDir(), "missing.png"))
	require.NoError(t, err)
	assert.False(t, a.HasLogo())

	_, err = LoadAssets("logo.svg")
	assert.Error(t, err)
}

func TestDayLabel(t *testing.T) {
	assert.Equal(t, "Dia 2", DayLabel(2))
}
