package omr

import "fmt"

// Marker is a filled square in page space. Origin is its lower-left corner.
type Marker struct {
	Corner Corner  `json:"corner"`
	Center Point   `json:"center"`
	Origin Point   `json:"origin"`
	Size   float64 `json:"size"`
}

// Bubble is one answer option slot.
type Bubble struct {
	Question int     `json:"question"`
	Option   string  `json:"option"`
	Center   Point   `json:"center"`
	Radius   float64 `json:"radius"`
}

// QuestionLabel is the printed question number, right-aligned at Anchor.
type QuestionLabel struct {
	Question int    `json:"question"`
	Text     string `json:"text"`
	Anchor   Point  `json:"anchor"`
}

// Row is one question: its label and its option bubbles left to right.
type Row struct {
	Question int           `json:"question"`
	Column   int           `json:"column"`
	Row      int           `json:"row"`
	Label    QuestionLabel `json:"label"`
	Bubbles  []Bubble      `json:"bubbles"`
}

// Separator is a vertical rule between two grid columns.
type Separator struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Layout is the full fixed geometry of a sheet.
type Layout struct {
	Version    string      `json:"version"`
	Markers    []Marker    `json:"markers"`
	Rows       []Row       `json:"rows"`
	Separators []Separator `json:"separators"`
}

// MarkerLayout returns the four corner markers in paint order.
func (t Template) MarkerLayout() []Marker {
	size := t.Length(t.MarkerSize)
	markers := make([]Marker, 0, len(t.Markers))
	for _, m := range t.Markers {
		c := t.ToPoint(m.Center)
		markers = append(markers, Marker{
			Corner: m.Corner,
			Center: c,
			Origin: Point{X: c.X - size/2, Y: c.Y - size/2},
			Size:   size,
		})
	}
	return markers
}

// BubbleCenter returns the raster position of one option slot.
func (t Template) BubbleCenter(column, row, option int) PixelPoint {
	return PixelPoint{
		X: t.GridOrigin.X + float64(column)*t.ColumnSpacing + float64(option)*t.OptionSpacing,
		Y: t.GridOrigin.Y + float64(row)*t.RowSpacing,
	}
}

// Grid returns every question row, ordered by question number.
func (t Template) Grid() []Row {
	radius := t.Length(t.BubbleRadius)
	rows := make([]Row, t.QuestionCount())
	for col := 0; col < t.Columns; col++ {
		for r := 0; r < t.RowsPerColumn; r++ {
			q := t.QuestionNumber(col, r)
			y := t.GridOrigin.Y + float64(r)*t.RowSpacing
			labelX := t.GridOrigin.X + float64(col)*t.ColumnSpacing - t.NumberOffset

			bubbles := make([]Bubble, len(t.Options))
			for i, opt := range t.Options {
				bubbles[i] = Bubble{
					Question: q,
					Option:   opt,
					Center:   t.ToPoint(t.BubbleCenter(col, r, i)),
					Radius:   radius,
				}
			}

			rows[q-1] = Row{
				Question: q,
				Column:   col,
				Row:      r,
				Label: QuestionLabel{
					Question: q,
					Text:     formatQuestion(q),
					Anchor:   t.ToPoint(PixelPoint{X: labelX, Y: y}),
				},
				Bubbles: bubbles,
			}
		}
	}
	return rows
}

// Separators returns the vertical rules between adjacent columns. Each sits
// halfway between the last bubble of one column and the number label of the
// next.
func (t Template) Separators() []Separator {
	if t.Columns < 2 {
		return nil
	}
	optionsWidth := float64(len(t.Options)-1) * t.OptionSpacing
	top := t.GridOrigin.Y - t.SeparatorOverrun
	bottom := t.GridOrigin.Y + float64(t.RowsPerColumn-1)*t.RowSpacing + t.SeparatorOverrun

	seps := make([]Separator, 0, t.Columns-1)
	for col := 1; col < t.Columns; col++ {
		x := t.GridOrigin.X + float64(col)*t.ColumnSpacing - (t.ColumnSpacing-optionsWidth)/2 - t.SeparatorShift
		seps = append(seps, Separator{
			From: t.ToPoint(PixelPoint{X: x, Y: top}),
			To:   t.ToPoint(PixelPoint{X: x, Y: bottom}),
		})
	}
	return seps
}

// Layout computes the complete geometry. It depends on nothing but the
// template, so every page of every batch gets identical coordinates.
func (t Template) Layout() Layout {
	return Layout{
		Version:    t.Version,
		Markers:    t.MarkerLayout(),
		Rows:       t.Grid(),
		Separators: t.Separators(),
	}
}

func formatQuestion(q int) string {
	return fmt.Sprintf("%02d", q)
}
