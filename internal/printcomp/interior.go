package printcomp

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"image/jpeg"
	"image/png"
	"log/slog"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"github.com/fableforge/fableforge/internal/assets"
	"github.com/fableforge/fableforge/internal/books"
)

// BlobReader reads stored asset bytes by handle.
type BlobReader interface {
	Read(handle string) ([]byte, error)
}

// Composer builds print PDFs. It holds no shared mutable state, so one
// Composer may render unrelated books concurrently.
type Composer struct {
	blobs  BlobReader
	logger *slog.Logger
}

// NewComposer creates a Composer.
func NewComposer(blobs BlobReader, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{blobs: blobs, logger: logger}
}

// ComposeInterior renders the interior document: one canvas per page in
// page-number order, full-bleed illustration, wrapped text block, and a
// folio on story pages only. Pages without a usable image get a blank
// background; a missing image never aborts the document.
func (c *Composer) ComposeInterior(book *books.Book, pages []books.Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("book %s has no pages to compose", book.ID)
	}
	ordered := append([]books.Page(nil), pages...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	layout := InteriorLayout()
	pdf := newDoc(layout)

	for _, page := range ordered {
		pdf.AddPage()
		c.drawPageImage(pdf, layout, page.ImageAsset)
		if page.TextContent != "" {
			drawTextBlock(pdf, layout, page.TextContent, page.TextPosition, bodyFontSize)
		}
		if page.Type == books.PageTypeStory {
			drawFolio(pdf, layout, page.PageNumber)
		}
	}

	out, err := output(pdf)
	if err != nil {
		return nil, fmt.Errorf("composing interior for book %s: %w", book.ID, err)
	}
	if err := verifyPageCount(out, len(ordered)); err != nil {
		return nil, fmt.Errorf("interior for book %s: %w", book.ID, err)
	}
	return out, nil
}

func newDoc(layout PrintLayout) *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTextColor(40, 40, 40)
	return pdf
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawPageImage paints the page background: the asset scaled to cover the
// full bleed canvas and center-cropped, or a blank paper tone when the
// asset is missing or unreadable.
func (c *Composer) drawPageImage(pdf *gofpdf.Fpdf, layout PrintLayout, handle string) {
	pdf.SetFillColor(252, 250, 245)
	pdf.Rect(0, 0, layout.PageWidth, layout.PageHeight, "F")
	if handle == "" {
		return
	}

	data, err := c.blobs.Read(handle)
	if err != nil {
		c.logger.Warn("page image unreadable, using blank background", "handle", handle, "error", err)
		return
	}
	if !drawCoverImage(pdf, data, Rect{X: 0, Y: 0, W: layout.PageWidth, H: layout.PageHeight}) {
		c.logger.Warn("page image not embeddable, using blank background", "handle", handle)
	}
}

// drawCoverImage embeds raster data scaled to cover the region, cropped by
// a clip rect. It reports false for data that is not a supported raster
// format so the caller can fall back instead of poisoning the document.
func drawCoverImage(pdf *gofpdf.Fpdf, data []byte, region Rect) bool {
	var imageType string
	var pxW, pxH int
	switch assets.SniffImage(data) {
	case "png":
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return false
		}
		imageType, pxW, pxH = "PNG", cfg.Width, cfg.Height
	case "jpg":
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return false
		}
		imageType, pxW, pxH = "JPG", cfg.Width, cfg.Height
	default:
		return false
	}
	if pxW == 0 || pxH == 0 {
		return false
	}

	// Image names are scoped to one document; content-addressing keeps the
	// composer free of shared state.
	name := fmt.Sprintf("img-%08x-%d", crc32.ChecksumIEEE(data), len(data))
	opts := gofpdf.ImageOptions{ImageType: imageType}
	if pdf.GetImageInfo(name) == nil {
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if pdf.Err() {
			pdf.ClearError()
			return false
		}
	}

	// Scale-to-cover: the larger of the two ratios wins, the overflow is
	// cropped symmetrically.
	imgAspect := float64(pxW) / float64(pxH)
	regionAspect := region.W / region.H
	drawW, drawH := region.W, region.H
	if imgAspect > regionAspect {
		drawW = region.H * imgAspect
	} else {
		drawH = region.W / imgAspect
	}
	x := region.X + (region.W-drawW)/2
	y := region.Y + (region.H-drawH)/2

	pdf.ClipRect(region.X, region.Y, region.W, region.H, false)
	pdf.ImageOptions(name, x, y, drawW, drawH, false, opts, 0, "")
	pdf.ClipEnd()
	return !pdf.Err()
}

// textBlockRect wraps text for the layout's text area and computes the
// backed panel rectangle: anchored vertically by textPosition, clamped so
// it never crosses the safety margin.
func textBlockRect(measure func(string) float64, layout PrintLayout, text string, pos books.TextPosition, fontSize float64) ([]string, Rect) {
	maxW := layout.TextArea.W - 2*textPanelPad
	lines := wrapText(measure, text, maxW)
	lineH := fontSize / 72 * 1.45
	blockH := float64(len(lines))*lineH + 2*textPanelPad

	var anchor float64
	switch pos {
	case books.TextTop:
		anchor = 0.15
	case books.TextBottom:
		anchor = 0.85
	default:
		anchor = 0.5
	}
	y := anchor*layout.PageHeight - blockH/2
	if max := layout.TextArea.Y + layout.TextArea.H - blockH; y > max {
		y = max
	}
	if y < layout.TextArea.Y {
		y = layout.TextArea.Y
	}
	return lines, Rect{X: layout.TextArea.X, Y: y, W: layout.TextArea.W, H: blockH}
}

// drawTextBlock renders wrapped, centered text over a translucent panel.
func drawTextBlock(pdf *gofpdf.Fpdf, layout PrintLayout, text string, pos books.TextPosition, fontSize float64) {
	pdf.SetFont("Helvetica", "", fontSize)
	lines, block := textBlockRect(pdf.GetStringWidth, layout, text, pos, fontSize)
	if len(lines) == 0 {
		return
	}

	pdf.SetAlpha(0.75, "Normal")
	pdf.SetFillColor(255, 255, 255)
	pdf.Rect(block.X, block.Y, block.W, block.H, "F")
	pdf.SetAlpha(1, "Normal")

	lineH := fontSize / 72 * 1.45
	for i, line := range lines {
		w := pdf.GetStringWidth(line)
		x := block.X + (block.W-w)/2
		baseline := block.Y + textPanelPad + float64(i)*lineH + lineH*0.8
		pdf.Text(x, baseline, line)
	}
}

// drawFolio prints the page number centered at the bottom safety boundary.
func drawFolio(pdf *gofpdf.Fpdf, layout PrintLayout, pageNumber int) {
	pdf.SetFont("Helvetica", "", folioFontSize)
	folio := fmt.Sprintf("%d", pageNumber)
	w := pdf.GetStringWidth(folio)
	x := (layout.PageWidth - w) / 2
	y := layout.TextArea.Y + layout.TextArea.H - 0.02
	pdf.Text(x, y, folio)
}
