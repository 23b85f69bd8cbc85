package pipeline

import (
	"context"
	"fmt"

	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/providers"
)

// RegeneratePageImage re-renders one page's illustration, optionally with a
// new prompt, and bumps the page's regeneration counter. It runs outside
// any job: no job record is created or touched.
func (o *Orchestrator) RegeneratePageImage(ctx context.Context, pageID, newPrompt string) (*books.Page, error) {
	page, err := o.books.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	book, err := o.books.GetBook(ctx, page.BookID)
	if err != nil {
		return nil, err
	}
	chars, err := o.books.ListCharacters(ctx, page.BookID)
	if err != nil {
		return nil, err
	}

	prompt := page.ImagePrompt
	if newPrompt != "" {
		prompt = newPrompt
	}
	if prompt == "" {
		return nil, &providers.ValidationError{Msg: fmt.Sprintf("page %d has no image prompt", page.PageNumber)}
	}

	data, mime, err := o.illustration.GeneratePage(ctx, prompt, book.ArtStyle, chars)
	if err != nil {
		return nil, err
	}
	handle, err := o.assets.Put(data, mime)
	if err != nil {
		return nil, err
	}
	if err := o.books.RecordRegeneration(ctx, page, prompt, handle); err != nil {
		return nil, err
	}
	o.logger.Info("page regenerated", "page_id", pageID, "page", page.PageNumber, "regenerations", page.Regenerations)
	return page, nil
}

// RegenerateCover re-renders the cover illustration, optionally with a new
// prompt, and bumps the book's cover regeneration counter.
func (o *Orchestrator) RegenerateCover(ctx context.Context, bookID, newPrompt string) (*books.Book, error) {
	book, err := o.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	chars, err := o.books.ListCharacters(ctx, bookID)
	if err != nil {
		return nil, err
	}

	prompt := book.CoverPrompt
	if newPrompt != "" {
		prompt = newPrompt
	}
	if prompt == "" {
		return nil, &providers.ValidationError{Msg: "book has no cover prompt"}
	}

	data, mime, err := o.illustration.GenerateCover(ctx, prompt, book.ArtStyle, chars)
	if err != nil {
		return nil, err
	}
	handle, err := o.assets.Put(data, mime)
	if err != nil {
		return nil, err
	}
	if err := o.books.RecordCoverRegeneration(ctx, book, prompt, handle); err != nil {
		return nil, err
	}
	o.logger.Info("cover regenerated", "book_id", bookID, "regenerations", book.CoverRegens)
	return book, nil
}
