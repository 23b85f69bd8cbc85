package books

import (
	"context"
	"fmt"
	"time"

	"github.com/fableforge/fableforge/internal/store"
)

// Collection names in the document store.
const (
	CollectionBook      = "Book"
	CollectionCharacter = "Character"
	CollectionPage      = "Page"
)

const (
	bookFields      = "title author theme mood art_style setting_description setting_time_of_day setting_season setting_notes status cover_prompt cover_image cover_regenerations created_at"
	characterFields = "book_id name role description relationship reference_image style_prompt"
	pageFields      = "book_id page_number page_type text_content text_position image_prompt image_asset regenerations"
)

// Store persists books, characters, and pages through the document store
// client.
type Store struct {
	client *store.Client
}

// NewStore wraps a document store client.
func NewStore(client *store.Client) *Store {
	return &Store{client: client}
}

// CreateBook writes a new book record plus one character record per cast
// member and returns the populated book.
func (s *Store) CreateBook(ctx context.Context, req *BookRequest) (*Book, error) {
	book := &Book{
		Title:     req.Title,
		Author:    req.Author,
		Theme:     req.Theme,
		Mood:      req.Mood,
		ArtStyle:  req.ArtStyle,
		Setting:   req.Setting,
		Status:    StatusGenerating,
		CreatedAt: time.Now().UTC(),
	}
	docID, err := s.client.Create(ctx, CollectionBook, map[string]any{
		"title":               book.Title,
		"author":              book.Author,
		"theme":               book.Theme,
		"mood":                string(book.Mood),
		"art_style":           string(book.ArtStyle),
		"setting_description": book.Setting.Description,
		"setting_time_of_day": book.Setting.TimeOfDay,
		"setting_season":      book.Setting.Season,
		"setting_notes":       book.Setting.Notes,
		"status":              string(book.Status),
		"created_at":          book.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	book.ID = docID

	for _, c := range req.Characters {
		ch := c
		ch.BookID = docID
		if _, err := s.CreateCharacter(ctx, &ch); err != nil {
			return nil, err
		}
	}
	return book, nil
}

// GetBook fetches one book by document ID.
func (s *Store) GetBook(ctx context.Context, bookID string) (*Book, error) {
	doc, err := s.client.Get(ctx, CollectionBook, bookID, bookFields)
	if err != nil {
		return nil, err
	}
	return parseBook(doc), nil
}

// UpdateBookStatus advances a book's lifecycle status.
func (s *Store) UpdateBookStatus(ctx context.Context, bookID string, status BookStatus) error {
	return s.client.Update(ctx, CollectionBook, bookID, map[string]any{
		"status": string(status),
	})
}

// SetBookCover records the cover prompt and cover image asset handle.
func (s *Store) SetBookCover(ctx context.Context, bookID, prompt, handle string) error {
	input := map[string]any{"cover_prompt": prompt}
	if handle != "" {
		input["cover_image"] = handle
	}
	return s.client.Update(ctx, CollectionBook, bookID, input)
}

// RecordCoverRegeneration stores a regenerated cover image, the prompt
// that produced it if it changed, and bumps the cover regeneration counter.
func (s *Store) RecordCoverRegeneration(ctx context.Context, book *Book, prompt, handle string) error {
	book.CoverRegens++
	input := map[string]any{
		"cover_image":         handle,
		"cover_regenerations": book.CoverRegens,
	}
	if prompt != "" && prompt != book.CoverPrompt {
		book.CoverPrompt = prompt
		input["cover_prompt"] = prompt
	}
	book.CoverImage = handle
	return s.client.Update(ctx, CollectionBook, book.ID, input)
}

// SetBookTitle overwrites the title, used when the narrative supplies one.
func (s *Store) SetBookTitle(ctx context.Context, bookID, title string) error {
	return s.client.Update(ctx, CollectionBook, bookID, map[string]any{
		"title": title,
	})
}

// CreateCharacter writes one character record.
func (s *Store) CreateCharacter(ctx context.Context, ch *Character) (string, error) {
	docID, err := s.client.Create(ctx, CollectionCharacter, map[string]any{
		"book_id":         ch.BookID,
		"name":            ch.Name,
		"role":            string(ch.Role),
		"description":     ch.Description,
		"relationship":    ch.Relationship,
		"reference_image": ch.ReferenceImage,
		"style_prompt":    ch.StylePrompt,
	})
	if err != nil {
		return "", fmt.Errorf("create character %q: %w", ch.Name, err)
	}
	ch.ID = docID
	return docID, nil
}

// ListCharacters returns a book's cast.
func (s *Store) ListCharacters(ctx context.Context, bookID string) ([]Character, error) {
	docs, err := s.client.List(ctx, CollectionCharacter, characterFields, store.ListOptions{
		Filter: fmt.Sprintf("book_id: {_eq: %q}", bookID),
	})
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	chars := make([]Character, 0, len(docs))
	for _, doc := range docs {
		chars = append(chars, *parseCharacter(doc))
	}
	return chars, nil
}

// SetCharacterStylePrompt records the style prompt derived from a reference
// image. It is written once per character.
func (s *Store) SetCharacterStylePrompt(ctx context.Context, characterID, prompt string) error {
	return s.client.Update(ctx, CollectionCharacter, characterID, map[string]any{
		"style_prompt": prompt,
	})
}

// CreatePages writes one record per narrative page for a book.
func (s *Store) CreatePages(ctx context.Context, bookID string, pages []StoryPage) ([]Page, error) {
	out := make([]Page, 0, len(pages))
	for _, sp := range pages {
		p := Page{
			BookID:       bookID,
			PageNumber:   sp.PageNumber,
			Type:         sp.Type,
			TextContent:  sp.Text,
			TextPosition: sp.TextPosition,
			ImagePrompt:  sp.ImagePrompt,
		}
		docID, err := s.client.Create(ctx, CollectionPage, map[string]any{
			"book_id":       p.BookID,
			"page_number":   p.PageNumber,
			"page_type":     string(p.Type),
			"text_content":  p.TextContent,
			"text_position": string(p.TextPosition),
			"image_prompt":  p.ImagePrompt,
			"regenerations": 0,
		})
		if err != nil {
			return nil, fmt.Errorf("create page %d: %w", p.PageNumber, err)
		}
		p.ID = docID
		out = append(out, p)
	}
	return out, nil
}

// GetPage fetches one page by document ID.
func (s *Store) GetPage(ctx context.Context, pageID string) (*Page, error) {
	doc, err := s.client.Get(ctx, CollectionPage, pageID, pageFields)
	if err != nil {
		return nil, err
	}
	return parsePage(doc), nil
}

// ListPages returns a book's pages ordered by page number.
func (s *Store) ListPages(ctx context.Context, bookID string) ([]Page, error) {
	docs, err := s.client.List(ctx, CollectionPage, pageFields, store.ListOptions{
		Filter:  fmt.Sprintf("book_id: {_eq: %q}", bookID),
		OrderBy: "{page_number: ASC}",
	})
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]Page, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, *parsePage(doc))
	}
	return pages, nil
}

// SetPageImage records a page's image asset handle.
func (s *Store) SetPageImage(ctx context.Context, pageID, handle string) error {
	return s.client.Update(ctx, CollectionPage, pageID, map[string]any{
		"image_asset": handle,
	})
}

// RecordRegeneration stores a regenerated page image, the prompt that
// produced it if it changed, and bumps the regeneration counter.
func (s *Store) RecordRegeneration(ctx context.Context, page *Page, prompt, handle string) error {
	page.Regenerations++
	input := map[string]any{
		"image_asset":   handle,
		"regenerations": page.Regenerations,
	}
	if prompt != "" && prompt != page.ImagePrompt {
		page.ImagePrompt = prompt
		input["image_prompt"] = prompt
	}
	page.ImageAsset = handle
	return s.client.Update(ctx, CollectionPage, page.ID, input)
}

func parseBook(doc map[string]any) *Book {
	b := &Book{
		ID:          docStr(doc, "_docID"),
		Title:       docStr(doc, "title"),
		Author:      docStr(doc, "author"),
		Theme:       docStr(doc, "theme"),
		Mood:        Mood(docStr(doc, "mood")),
		ArtStyle:    ArtStyle(docStr(doc, "art_style")),
		Status:      BookStatus(docStr(doc, "status")),
		CoverPrompt: docStr(doc, "cover_prompt"),
		CoverImage:  docStr(doc, "cover_image"),
		CoverRegens: docInt(doc, "cover_regenerations"),
		Setting: Setting{
			Description: docStr(doc, "setting_description"),
			TimeOfDay:   docStr(doc, "setting_time_of_day"),
			Season:      docStr(doc, "setting_season"),
			Notes:       docStr(doc, "setting_notes"),
		},
	}
	if ts := docStr(doc, "created_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			b.CreatedAt = t
		}
	}
	return b
}

func parseCharacter(doc map[string]any) *Character {
	return &Character{
		ID:             docStr(doc, "_docID"),
		BookID:         docStr(doc, "book_id"),
		Name:           docStr(doc, "name"),
		Role:           CharacterRole(docStr(doc, "role")),
		Description:    docStr(doc, "description"),
		Relationship:   docStr(doc, "relationship"),
		ReferenceImage: docStr(doc, "reference_image"),
		StylePrompt:    docStr(doc, "style_prompt"),
	}
}

func parsePage(doc map[string]any) *Page {
	return &Page{
		ID:            docStr(doc, "_docID"),
		BookID:        docStr(doc, "book_id"),
		PageNumber:    docInt(doc, "page_number"),
		Type:          PageType(docStr(doc, "page_type")),
		TextContent:   docStr(doc, "text_content"),
		TextPosition:  TextPosition(docStr(doc, "text_position")),
		ImagePrompt:   docStr(doc, "image_prompt"),
		ImageAsset:    docStr(doc, "image_asset"),
		Regenerations: docInt(doc, "regenerations"),
	}
}

func docStr(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func docInt(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
