package printcomp

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/fableforge/fableforge/internal/books"
)

// charMeasure approximates glyph width as a fixed per-rune advance, enough
// to exercise wrapping without a live PDF context.
func charMeasure(s string) float64 {
	return float64(len(s)) * 0.1
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	for x := 0; x < 12; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(20 * x), G: 120, B: uint8(30 * y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type mapBlobs map[string][]byte

func (m mapBlobs) Read(handle string) ([]byte, error) {
	b, ok := m[handle]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return b, nil
}

func testPages(withImages bool) []books.Page {
	pages := make([]books.Page, books.StoryPageCount)
	for i := range pages {
		n := i + 1
		p := books.Page{
			BookID:       "book-1",
			PageNumber:   n,
			Type:         books.PageTypeStory,
			TextContent:  fmt.Sprintf("Pip and Wren wander through the tall summer grass on page %d, watching the fireflies blink awake.", n),
			TextPosition: books.TextBottom,
			ImagePrompt:  "meadow scene",
		}
		switch n {
		case 1:
			p.Type = books.PageTypeTitle
			p.TextContent = "The Moonlit Meadow"
			p.TextPosition = books.TextMiddle
		case books.StoryPageCount:
			p.Type = books.PageTypeBackCover
			p.TextContent = "The end."
			p.TextPosition = books.TextMiddle
		}
		if withImages {
			p.ImageAsset = "img.png"
		}
		pages[i] = p
	}
	return pages
}

func TestSpineWidth(t *testing.T) {
	if got := SpineWidth(24); got != SpineMinimum {
		t.Errorf("SpineWidth(24) = %v, want clamped to %v", got, SpineMinimum)
	}
	counts := []int{24, 80, 200}
	prev := 0.0
	for _, n := range counts {
		w := SpineWidth(n)
		if w < prev {
			t.Errorf("SpineWidth(%d) = %v, decreased from %v", n, w, prev)
		}
		prev = w
	}
	if got, want := SpineWidth(200), 200*SpinePerPage; math.Abs(got-want) > 1e-9 {
		t.Errorf("SpineWidth(200) = %v, want %v", got, want)
	}
}

func TestWrapText(t *testing.T) {
	t.Run("long text wraps to multiple lines", func(t *testing.T) {
		text := strings.Repeat("meadow ", 20)
		lines := wrapText(charMeasure, text, 2.0)
		if len(lines) < 2 {
			t.Fatalf("got %d lines, want several", len(lines))
		}
		for _, line := range lines {
			if charMeasure(line) > 2.0 {
				t.Errorf("line %q wider than limit", line)
			}
		}
	})

	t.Run("paragraph break forces a new line", func(t *testing.T) {
		lines := wrapText(charMeasure, "one\ntwo", 100)
		if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("oversized word stands alone unsplit", func(t *testing.T) {
		lines := wrapText(charMeasure, "tiny incomprehensibilities tiny", 1.0)
		found := false
		for _, line := range lines {
			if line == "incomprehensibilities" {
				found = true
			}
		}
		if !found {
			t.Errorf("long word was split or merged: %v", lines)
		}
	})

	t.Run("blank text yields no lines", func(t *testing.T) {
		if lines := wrapText(charMeasure, "  \n ", 1.0); len(lines) != 0 {
			t.Errorf("lines = %v, want none", lines)
		}
	})
}

func TestTextBlockRect(t *testing.T) {
	layout := InteriorLayout()
	long := strings.Repeat("fireflies blinking over the quiet meadow ", 30)

	for _, pos := range []books.TextPosition{books.TextTop, books.TextMiddle, books.TextBottom} {
		t.Run(string(pos), func(t *testing.T) {
			lines, block := textBlockRect(charMeasure, layout, long, pos, bodyFontSize)
			if len(lines) < 2 {
				t.Fatalf("got %d lines, want several", len(lines))
			}
			if block.Y < layout.TextArea.Y {
				t.Errorf("block top %v above safety margin %v", block.Y, layout.TextArea.Y)
			}
			if bottom, limit := block.Y+block.H, layout.TextArea.Y+layout.TextArea.H; bottom > limit+1e-9 {
				t.Errorf("block bottom %v below safety margin %v", bottom, limit)
			}
		})
	}

	t.Run("short text lands near its anchor", func(t *testing.T) {
		_, top := textBlockRect(charMeasure, layout, "hello", books.TextTop, bodyFontSize)
		_, bottom := textBlockRect(charMeasure, layout, "hello", books.TextBottom, bodyFontSize)
		if top.Y >= bottom.Y {
			t.Errorf("top anchor %v not above bottom anchor %v", top.Y, bottom.Y)
		}
	})
}

func TestComposeInterior(t *testing.T) {
	blobs := mapBlobs{"img.png": testPNG(t)}
	book := &books.Book{ID: "book-1", Title: "The Moonlit Meadow"}

	t.Run("full book renders one canvas per page", func(t *testing.T) {
		c := NewComposer(blobs, nil)
		out, err := c.ComposeInterior(book, testPages(true))
		if err != nil {
			t.Fatalf("ComposeInterior() error = %v", err)
		}
		got, err := api.PageCount(bytes.NewReader(out), nil)
		if err != nil {
			t.Fatalf("PageCount() error = %v", err)
		}
		if got != books.StoryPageCount {
			t.Errorf("page count = %d, want %d", got, books.StoryPageCount)
		}
	})

	t.Run("missing images fall back to blank backgrounds", func(t *testing.T) {
		c := NewComposer(mapBlobs{}, nil)
		out, err := c.ComposeInterior(book, testPages(true))
		if err != nil {
			t.Fatalf("ComposeInterior() error = %v", err)
		}
		if len(out) == 0 {
			t.Error("empty document")
		}
	})

	t.Run("undecodable image bytes do not abort the document", func(t *testing.T) {
		c := NewComposer(mapBlobs{"img.png": []byte("not an image at all")}, nil)
		if _, err := c.ComposeInterior(book, testPages(true)); err != nil {
			t.Fatalf("ComposeInterior() error = %v", err)
		}
	})

	t.Run("no pages is an error", func(t *testing.T) {
		c := NewComposer(blobs, nil)
		if _, err := c.ComposeInterior(book, nil); err == nil {
			t.Fatal("expected error for empty page list")
		}
	})

	t.Run("out of order input renders in page order", func(t *testing.T) {
		pages := testPages(false)
		pages[0], pages[10] = pages[10], pages[0]
		c := NewComposer(blobs, nil)
		if _, err := c.ComposeInterior(book, pages); err != nil {
			t.Fatalf("ComposeInterior() error = %v", err)
		}
	})
}

func TestComposeCover(t *testing.T) {
	blobs := mapBlobs{"cover.png": testPNG(t)}

	coverDims := func(t *testing.T, out []byte) (w, h float64) {
		t.Helper()
		dims, err := api.PageDims(bytes.NewReader(out), nil)
		if err != nil {
			t.Fatalf("PageDims() error = %v", err)
		}
		if len(dims) != 1 {
			t.Fatalf("cover has %d pages, want 1", len(dims))
		}
		return dims[0].Width, dims[0].Height
	}

	t.Run("canvas spans both covers plus spine and bleed", func(t *testing.T) {
		book := &books.Book{ID: "book-1", Title: "The Moonlit Meadow", Author: "A. Byrd", CoverImage: "cover.png"}
		c := NewComposer(blobs, nil)
		out, err := c.ComposeCover(book, books.StoryPageCount)
		if err != nil {
			t.Fatalf("ComposeCover() error = %v", err)
		}

		w, h := coverDims(t, out)
		wantW := (2*TrimSize + SpineWidth(books.StoryPageCount) + 2*Bleed) * 72
		wantH := (TrimSize + 2*Bleed) * 72
		if math.Abs(w-wantW) > 0.5 || math.Abs(h-wantH) > 0.5 {
			t.Errorf("dims = %.1fx%.1f pts, want %.1fx%.1f", w, h, wantW, wantH)
		}
	})

	t.Run("spine widens with page count", func(t *testing.T) {
		book := &books.Book{ID: "book-1", Title: "The Moonlit Meadow"}
		c := NewComposer(blobs, nil)

		thin, err := c.ComposeCover(book, 24)
		if err != nil {
			t.Fatalf("ComposeCover(24) error = %v", err)
		}
		thick, err := c.ComposeCover(book, 200)
		if err != nil {
			t.Fatalf("ComposeCover(200) error = %v", err)
		}

		thinW, _ := coverDims(t, thin)
		thickW, _ := coverDims(t, thick)
		if thickW <= thinW {
			t.Errorf("200-page cover width %.2f not wider than 24-page %.2f", thickW, thinW)
		}
	})

	t.Run("missing cover image composes without it", func(t *testing.T) {
		book := &books.Book{ID: "book-1", Title: "The Moonlit Meadow", CoverImage: "gone.png"}
		c := NewComposer(blobs, nil)
		if _, err := c.ComposeCover(book, books.StoryPageCount); err != nil {
			t.Fatalf("ComposeCover() error = %v", err)
		}
	})

	t.Run("zero interior pages is an error", func(t *testing.T) {
		c := NewComposer(blobs, nil)
		if _, err := c.ComposeCover(&books.Book{ID: "book-1"}, 0); err == nil {
			t.Fatal("expected error for zero page count")
		}
	})
}
