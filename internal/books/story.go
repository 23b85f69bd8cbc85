package books

import "fmt"

// StoryPageCount is the fixed page count of every generated book: a title
// page, twenty-two story spreads, and a back cover.
const StoryPageCount = 24

// StoryPage is one page of a narrative result as returned by the text
// provider, before any records are written.
type StoryPage struct {
	PageNumber   int          `json:"page_number"`
	Type         PageType     `json:"page_type"`
	Text         string       `json:"text"`
	TextPosition TextPosition `json:"text_position"`
	ImagePrompt  string       `json:"image_prompt"`
}

// StoryResult is a complete narrative as produced in one generation pass.
// A result that fails Validate is discarded whole; pages are never patched
// or renumbered to rescue a malformed response.
type StoryResult struct {
	Title       string      `json:"title"`
	CoverPrompt string      `json:"cover_prompt"`
	Pages       []StoryPage `json:"pages"`
}

// Validate checks the structural invariants of a narrative result: exactly
// StoryPageCount pages numbered densely from 1, page 1 a title page, the
// last a back cover, everything between a story page, and every page
// carrying an image prompt. Story pages must also carry text and a valid
// text position.
func (r *StoryResult) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("story result missing title")
	}
	if r.CoverPrompt == "" {
		return fmt.Errorf("story result missing cover prompt")
	}
	if len(r.Pages) != StoryPageCount {
		return fmt.Errorf("story result has %d pages, want %d", len(r.Pages), StoryPageCount)
	}
	for i, p := range r.Pages {
		want := i + 1
		if p.PageNumber != want {
			return fmt.Errorf("page at index %d numbered %d, want %d", i, p.PageNumber, want)
		}
		switch {
		case want == 1:
			if p.Type != PageTypeTitle {
				return fmt.Errorf("page 1 has type %q, want %q", p.Type, PageTypeTitle)
			}
		case want == StoryPageCount:
			if p.Type != PageTypeBackCover {
				return fmt.Errorf("page %d has type %q, want %q", want, p.Type, PageTypeBackCover)
			}
		default:
			if p.Type != PageTypeStory {
				return fmt.Errorf("page %d has type %q, want %q", want, p.Type, PageTypeStory)
			}
		}
		if p.ImagePrompt == "" {
			return fmt.Errorf("page %d missing image prompt", want)
		}
		if p.Type == PageTypeStory {
			if p.Text == "" {
				return fmt.Errorf("page %d missing text", want)
			}
			if !ValidTextPosition(p.TextPosition) {
				return fmt.Errorf("page %d has invalid text position %q", want, p.TextPosition)
			}
		}
	}
	return nil
}
