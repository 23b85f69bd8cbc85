package printcomp

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/fableforge/fableforge/internal/books"
)

// Barcode placeholder dimensions, inches. The rectangle is reserved for
// the fulfillment partner and always left empty here.
const (
	barcodeWidth  = 2.0
	barcodeHeight = 1.2
)

// ComposeCover renders the wraparound cover as a single page: back cover
// on the left, spine in the center sized by interior page count, front
// cover on the right with the title and author typeset over the cover
// illustration. Spine text is omitted below the legibility threshold.
func (c *Composer) ComposeCover(book *books.Book, interiorPageCount int) ([]byte, error) {
	if interiorPageCount <= 0 {
		return nil, fmt.Errorf("book %s has no interior pages for a cover", book.ID)
	}

	layout := CoverLayout(interiorPageCount)
	pdf := newDoc(layout)
	pdf.AddPage()

	pdf.SetFillColor(248, 244, 236)
	pdf.Rect(0, 0, layout.PageWidth, layout.PageHeight, "F")

	front := layout.FrontCoverRect()
	if book.CoverImage != "" {
		// The illustration covers the front section through the right and
		// vertical bleeds.
		region := Rect{X: front.X, Y: 0, W: front.W + layout.Bleed, H: layout.PageHeight}
		if data, err := c.blobs.Read(book.CoverImage); err != nil {
			c.logger.Warn("cover image unreadable, composing without it", "handle", book.CoverImage, "error", err)
		} else if !drawCoverImage(pdf, data, region) {
			c.logger.Warn("cover image not embeddable, composing without it", "handle", book.CoverImage)
		}
	}

	c.drawTitleBlock(pdf, layout, front, book)
	drawBarcodePlaceholder(pdf, layout)
	if interiorPageCount >= SpineTextMinPages {
		drawSpineText(pdf, layout, book.Title)
	}

	out, err := output(pdf)
	if err != nil {
		return nil, fmt.Errorf("composing cover for book %s: %w", book.ID, err)
	}
	if err := verifyPageCount(out, 1); err != nil {
		return nil, fmt.Errorf("cover for book %s: %w", book.ID, err)
	}
	return out, nil
}

// drawTitleBlock typesets the wrapped title, and the author line beneath
// it, centered on the front cover over a translucent panel.
func (c *Composer) drawTitleBlock(pdf *gofpdf.Fpdf, layout PrintLayout, front Rect, book *books.Book) {
	if book.Title == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", titleFontSize)

	inset := layout.Safety
	maxW := front.W - 2*inset - 2*textPanelPad
	lines := wrapText(pdf.GetStringWidth, book.Title, maxW)
	if len(lines) == 0 {
		return
	}

	titleLineH := titleFontSize / 72 * 1.3
	authorLineH := authorFontSize / 72 * 1.4
	blockH := float64(len(lines))*titleLineH + 2*textPanelPad
	if book.Author != "" {
		blockH += authorLineH
	}

	// Centered on the upper third of the front cover, clamped inside the
	// safety margin.
	y := front.Y + 0.3*front.H - blockH/2
	if y < front.Y+inset {
		y = front.Y + inset
	}
	if max := front.Y + front.H - inset - blockH; y > max {
		y = max
	}

	pdf.SetAlpha(0.75, "Normal")
	pdf.SetFillColor(255, 255, 255)
	pdf.Rect(front.X+inset, y, front.W-2*inset, blockH, "F")
	pdf.SetAlpha(1, "Normal")

	cx := front.X + front.W/2
	for i, line := range lines {
		w := pdf.GetStringWidth(line)
		baseline := y + textPanelPad + float64(i)*titleLineH + titleLineH*0.8
		pdf.Text(cx-w/2, baseline, line)
	}
	if book.Author != "" {
		pdf.SetFont("Helvetica", "", authorFontSize)
		byline := "by " + book.Author
		w := pdf.GetStringWidth(byline)
		baseline := y + textPanelPad + float64(len(lines))*titleLineH + authorLineH*0.8
		pdf.Text(cx-w/2, baseline, byline)
	}
}

// drawBarcodePlaceholder reserves a blank white rectangle near the lower
// outside corner of the back cover.
func drawBarcodePlaceholder(pdf *gofpdf.Fpdf, layout PrintLayout) {
	back := layout.BackCoverRect()
	inset := layout.Safety
	x := back.X + back.W - inset - barcodeWidth
	y := back.Y + back.H - inset - barcodeHeight
	pdf.SetFillColor(255, 255, 255)
	pdf.Rect(x, y, barcodeWidth, barcodeHeight, "F")
}

// drawSpineText renders the title rotated along the spine, reading top to
// bottom.
func drawSpineText(pdf *gofpdf.Fpdf, layout PrintLayout, title string) {
	if title == "" {
		return
	}
	spine := layout.SpineRect()
	pdf.SetFont("Helvetica", "B", spineFontSize)
	w := pdf.GetStringWidth(title)
	if w > spine.H-2*layout.Safety {
		pdf.SetFont("Helvetica", "B", spineFontSize*(spine.H-2*layout.Safety)/w)
		w = pdf.GetStringWidth(title)
	}

	cx := spine.X + spine.W/2
	cy := spine.Y + spine.H/2
	pdf.TransformBegin()
	pdf.TransformRotate(-90, cx, cy)
	pdf.Text(cx-w/2, cy+spineFontSize/72*0.3, title)
	pdf.TransformEnd()
}
