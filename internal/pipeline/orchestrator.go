package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fableforge/fableforge/internal/assets"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/illustration"
	"github.com/fableforge/fableforge/internal/narrative"
)

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Books        *books.Store
	Assets       *assets.Store
	Narrative    *narrative.Generator
	Illustration *illustration.Generator
	Jobs         *Manager
	Logger       *slog.Logger
}

// Orchestrator runs the generation pipeline: character styling, narrative,
// page records, per-page illustration, cover. Steps run strictly in order;
// a single job never fans out across pages, since every provider call must
// respect the shared pacer and later pages reuse style prompts settled by
// earlier steps.
type Orchestrator struct {
	books        *books.Store
	assets       *assets.Store
	narrative    *narrative.Generator
	illustration *illustration.Generator
	jobs         *Manager
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		books:        cfg.Books,
		assets:       cfg.Assets,
		narrative:    cfg.Narrative,
		illustration: cfg.Illustration,
		jobs:         cfg.Jobs,
		logger:       cfg.Logger,
	}
}

// Begin opens a job for the book and runs the pipeline in the background.
// The returned job is pending; callers poll it through the job manager.
// Each call creates a new, independent job and a new set of pages, so it
// is the caller's responsibility not to double-invoke for one book.
func (o *Orchestrator) Begin(ctx context.Context, bookID string) (*Job, error) {
	job, book, chars, err := o.prepare(ctx, bookID)
	if err != nil {
		return nil, err
	}
	// Generation outlives the request that triggered it.
	bg := context.WithoutCancel(ctx)
	go o.run(bg, job.ID, book, chars)
	return job, nil
}

// Run executes the pipeline synchronously and returns the finished job.
func (o *Orchestrator) Run(ctx context.Context, bookID string) (*Job, error) {
	job, book, chars, err := o.prepare(ctx, bookID)
	if err != nil {
		return nil, err
	}
	o.run(ctx, job.ID, book, chars)
	return o.jobs.Get(ctx, job.ID)
}

func (o *Orchestrator) prepare(ctx context.Context, bookID string) (*Job, *books.Book, []books.Character, error) {
	book, err := o.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, nil, nil, err
	}
	chars, err := o.books.ListCharacters(ctx, bookID)
	if err != nil {
		return nil, nil, nil, err
	}
	job, err := o.jobs.Create(ctx, bookID, KindStory)
	if err != nil {
		return nil, nil, nil, err
	}
	return job, book, chars, nil
}

func (o *Orchestrator) run(ctx context.Context, jobID string, book *books.Book, chars []books.Character) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic", "job_id", jobID, "panic", r)
			o.jobs.Fail(ctx, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Character styling. Extraction failures leave the character without a
	// style prompt and the pipeline moves on.
	o.jobs.Progress(ctx, jobID, ProgressStyling, "styling characters")
	for i := range chars {
		ch := &chars[i]
		if ch.ReferenceImage == "" || ch.StylePrompt != "" {
			continue
		}
		prompt, err := o.illustration.StylePrompt(ctx, ch)
		if err != nil {
			o.jobs.Warn(ctx, jobID, fmt.Sprintf("style extraction for %s: %v", ch.Name, err))
			continue
		}
		if prompt == "" {
			continue
		}
		ch.StylePrompt = prompt
		if err := o.books.SetCharacterStylePrompt(ctx, ch.ID, prompt); err != nil {
			o.jobs.Warn(ctx, jobID, fmt.Sprintf("saving style prompt for %s: %v", ch.Name, err))
		}
	}

	// Narrative. Any failure here is fatal and the book never reaches
	// draft.
	o.jobs.Progress(ctx, jobID, ProgressStory, "writing story")
	story, err := o.narrative.Generate(ctx, buildRequest(book, chars))
	if err != nil {
		o.fatal(ctx, jobID, book.ID, fmt.Errorf("narrative generation: %w", err))
		return
	}
	if story.Title != "" && story.Title != book.Title {
		if err := o.books.SetBookTitle(ctx, book.ID, story.Title); err != nil {
			o.fatal(ctx, jobID, book.ID, fmt.Errorf("saving title: %w", err))
			return
		}
		book.Title = story.Title
	}

	pages, err := o.books.CreatePages(ctx, book.ID, story.Pages)
	if err != nil {
		o.fatal(ctx, jobID, book.ID, fmt.Errorf("creating pages: %w", err))
		return
	}
	o.jobs.Progress(ctx, jobID, ProgressPages, "pages created")

	// Per-page illustration. Each page fails on its own: a book missing an
	// image or two is still deliverable and repairable by single-page
	// regeneration.
	span := ProgressCover - ProgressFirstIl - 5
	for i := range pages {
		page := &pages[i]
		pct := ProgressFirstIl + (i+1)*span/len(pages)
		o.jobs.Progress(ctx, jobID, pct, fmt.Sprintf("illustrating page %d of %d", page.PageNumber, len(pages)))

		data, mime, err := o.illustration.GeneratePage(ctx, page.ImagePrompt, book.ArtStyle, chars)
		if err != nil {
			o.jobs.Warn(ctx, jobID, fmt.Sprintf("page %d illustration: %v", page.PageNumber, err))
			continue
		}
		handle, err := o.assets.Put(data, mime)
		if err != nil {
			o.jobs.Warn(ctx, jobID, fmt.Sprintf("page %d image storage: %v", page.PageNumber, err))
			continue
		}
		if err := o.books.SetPageImage(ctx, page.ID, handle); err != nil {
			o.jobs.Warn(ctx, jobID, fmt.Sprintf("page %d image record: %v", page.PageNumber, err))
			continue
		}
		page.ImageAsset = handle
	}

	// Cover. Non-fatal as well; the prompt is persisted either way so the
	// cover can be regenerated later.
	o.jobs.Progress(ctx, jobID, ProgressCover, "painting cover")
	coverHandle := ""
	data, mime, err := o.illustration.GenerateCover(ctx, story.CoverPrompt, book.ArtStyle, chars)
	if err != nil {
		o.jobs.Warn(ctx, jobID, fmt.Sprintf("cover illustration: %v", err))
	} else if coverHandle, err = o.assets.Put(data, mime); err != nil {
		o.jobs.Warn(ctx, jobID, fmt.Sprintf("cover storage: %v", err))
		coverHandle = ""
	}
	if err := o.books.SetBookCover(ctx, book.ID, story.CoverPrompt, coverHandle); err != nil {
		o.jobs.Warn(ctx, jobID, fmt.Sprintf("cover record: %v", err))
	}

	if err := o.books.UpdateBookStatus(ctx, book.ID, books.StatusDraft); err != nil {
		o.fatal(ctx, jobID, book.ID, fmt.Errorf("advancing book to draft: %w", err))
		return
	}
	o.jobs.Complete(ctx, jobID)
	o.logger.Info("generation complete", "job_id", jobID, "book_id", book.ID)
}

func (o *Orchestrator) fatal(ctx context.Context, jobID, bookID string, err error) {
	o.logger.Error("generation failed", "job_id", jobID, "book_id", bookID, "error", err)
	o.jobs.Fail(ctx, jobID, err.Error())
}

func buildRequest(book *books.Book, chars []books.Character) *books.BookRequest {
	return &books.BookRequest{
		Title:      book.Title,
		Theme:      book.Theme,
		Mood:       book.Mood,
		ArtStyle:   book.ArtStyle,
		Setting:    book.Setting,
		Characters: chars,
		Author:     book.Author,
	}
}
