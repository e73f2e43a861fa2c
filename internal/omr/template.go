package omr

// Point is a position in page space: points (1/72 in), origin bottom-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PixelPoint is a position in the reference raster, origin top-left.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Corner identifies one of the four alignment markers.
type Corner string

const (
	CornerTopLeft     Corner = "TL"
	CornerTopRight    Corner = "TR"
	CornerBottomLeft  Corner = "BL"
	CornerBottomRight Corner = "BR"
)

// MarkerSpec places one corner marker by its center.
type MarkerSpec struct {
	Corner Corner
	Center PixelPoint
}

// Template is an immutable description of one revision of the scanner
// template. Every field is expressed in reference-raster pixels unless the
// name says otherwise. The external decoder is calibrated against these exact
// values, so a change to any of them requires a new Version.
type Template struct {
	Version string

	ReferenceDPI float64
	TargetDPI    float64

	// Page size in target units (points).
	PageWidth  float64
	PageHeight float64

	// Marker centers, in paint order, and side length.
	Markers    [4]MarkerSpec
	MarkerSize float64

	// Bubble grid.
	GridOrigin       PixelPoint
	OptionSpacing    float64
	ColumnSpacing    float64
	RowSpacing       float64
	BubbleRadius     float64
	Options          []string
	Columns          int
	RowsPerColumn    int
	NumberOffset     float64 // question-number label distance left of the first bubble
	SeparatorOverrun float64 // separator extension above the first and below the last row
	SeparatorShift   float64 // extra left shift so separators clear the number labels
}

// XTRIv1 is the template the scanner pipeline is currently calibrated for:
// A4 scanned at 150 DPI (1240 x 1754 px), 90 questions in 6 columns.
var XTRIv1 = Template{
	Version:      "xtri-v1",
	ReferenceDPI: 150,
	TargetDPI:    72,
	PageWidth:    595.2755905511812,
	PageHeight:   841.8897637795277,

	Markers: [4]MarkerSpec{
		{Corner: CornerTopLeft, Center: PixelPoint{X: 57, Y: 463}},
		{Corner: CornerTopRight, Center: PixelPoint{X: 1184, Y: 463}},
		{Corner: CornerBottomLeft, Center: PixelPoint{X: 57, Y: 1141}},
		{Corner: CornerBottomRight, Center: PixelPoint{X: 1184, Y: 1141}},
	},
	MarkerSize: 32,

	GridOrigin:       PixelPoint{X: 120, Y: 520},
	OptionSpacing:    25,
	ColumnSpacing:    179,
	RowSpacing:       41.7,
	BubbleRadius:     9,
	Options:          []string{"A", "B", "C", "D", "E"},
	Columns:          6,
	RowsPerColumn:    15,
	NumberOffset:     30,
	SeparatorOverrun: 15,
	SeparatorShift:   15,
}

// Current is the template used for new batches.
var Current = XTRIv1

// Scale converts a reference-raster distance to target units.
func (t Template) Scale() float64 {
	return t.TargetDPI / t.ReferenceDPI
}

// ToPoint maps a raster position to page space, inverting the vertical axis.
func (t Template) ToPoint(p PixelPoint) Point {
	return Point{
		X: p.X * t.Scale(),
		Y: t.PageHeight - p.Y*t.Scale(),
	}
}

// Length maps a raster distance to target units.
func (t Template) Length(px float64) float64 {
	return px * t.Scale()
}

// QuestionCount is the number of answer slots on the sheet.
func (t Template) QuestionCount() int {
	return t.Columns * t.RowsPerColumn
}

// QuestionNumber returns the 1-based question number for a zero-indexed slot.
// Numbering is column-major.
func (t Template) QuestionNumber(column, row int) int {
	return column*t.RowsPerColumn + row + 1
}

// HasOption reports whether opt is one of the template's answer options.
func (t Template) HasOption(opt string) bool {
	for _, o := range t.Options {
		if o == opt {
			return true
		}
	}
	return false
}
