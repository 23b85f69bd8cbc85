// Package printcomp composes print-ready PDF documents from page records
// and raster assets: a square-trim interior with bleed and safety margins,
// and a wraparound cover sized by interior page count.
package printcomp

// Print geometry, in inches unless noted. The trim is square; every
// document adds a uniform bleed on all outer edges and text never leaves
// the safety margin.
const (
	TrimSize     = 8.5
	Bleed        = 0.125
	SafetyMargin = 0.375
	DPI          = 300

	// ImagePixels is the square pixel size a full-bleed illustration needs
	// at print resolution.
	ImagePixels = 2550

	SpinePerPage = 0.002252
	SpineMinimum = 0.0625

	// SpineTextMinPages is the page count below which the spine is too
	// narrow for legible text and gets none.
	SpineTextMinPages = 80
)

// Font sizes in points.
const (
	bodyFontSize   = 16.0
	titleFontSize  = 36.0
	authorFontSize = 16.0
	spineFontSize  = 12.0
	folioFontSize  = 10.0

	textPanelPad = 0.15 // inches around the wrapped text block
)

// Rect is an axis-aligned rectangle in page coordinates (origin top-left,
// inches).
type Rect struct {
	X, Y, W, H float64
}

// PrintLayout is the derived geometry for one document. It is recomputed
// on every render, never cached.
type PrintLayout struct {
	PageWidth  float64
	PageHeight float64
	Bleed      float64
	Safety     float64
	TextArea   Rect    // region text may occupy
	SpineWidth float64 // zero for interior layouts
}

// SpineWidth computes the cover spine width for an interior page count,
// clamped at the printable minimum.
func SpineWidth(pageCount int) float64 {
	w := float64(pageCount) * SpinePerPage
	if w < SpineMinimum {
		w = SpineMinimum
	}
	return w
}

// InteriorLayout returns the geometry of one interior page.
func InteriorLayout() PrintLayout {
	w := TrimSize + 2*Bleed
	h := TrimSize + 2*Bleed
	inset := Bleed + SafetyMargin
	return PrintLayout{
		PageWidth:  w,
		PageHeight: h,
		Bleed:      Bleed,
		Safety:     SafetyMargin,
		TextArea:   Rect{X: inset, Y: inset, W: w - 2*inset, H: h - 2*inset},
	}
}

// CoverLayout returns the geometry of the wraparound cover: back cover,
// spine, front cover, with bleed on the outer edges.
func CoverLayout(pageCount int) PrintLayout {
	spine := SpineWidth(pageCount)
	w := 2*TrimSize + spine + 2*Bleed
	h := TrimSize + 2*Bleed
	inset := Bleed + SafetyMargin
	return PrintLayout{
		PageWidth:  w,
		PageHeight: h,
		Bleed:      Bleed,
		Safety:     SafetyMargin,
		TextArea:   Rect{X: inset, Y: inset, W: w - 2*inset, H: h - 2*inset},
		SpineWidth: spine,
	}
}

// FrontCoverRect returns the front cover trim section (rightmost band) of
// a cover layout.
func (l PrintLayout) FrontCoverRect() Rect {
	return Rect{X: l.Bleed + TrimSize + l.SpineWidth, Y: l.Bleed, W: TrimSize, H: TrimSize}
}

// BackCoverRect returns the back cover trim section (leftmost band).
func (l PrintLayout) BackCoverRect() Rect {
	return Rect{X: l.Bleed, Y: l.Bleed, W: TrimSize, H: TrimSize}
}

// SpineRect returns the spine band between the covers.
func (l PrintLayout) SpineRect() Rect {
	return Rect{X: l.Bleed + TrimSize, Y: l.Bleed, W: l.SpineWidth, H: TrimSize}
}
