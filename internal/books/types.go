// Package books defines the book, character, and page data model shared by
// the generation pipeline and the print composer, plus its persistence
// mapping onto the document store.
package books

import "time"

// Mood is the requested tone of the narrative.
type Mood string

const (
	MoodLighthearted Mood = "lighthearted"
	MoodGentle       Mood = "gentle"
	MoodExciting     Mood = "exciting"
	MoodEducational  Mood = "educational"
)

// ValidMood reports whether m is one of the known tones.
func ValidMood(m Mood) bool {
	switch m {
	case MoodLighthearted, MoodGentle, MoodExciting, MoodEducational:
		return true
	}
	return false
}

// ArtStyle selects an illustration style preset.
type ArtStyle string

const (
	StyleWatercolor ArtStyle = "watercolor"
	StyleCartoon    ArtStyle = "cartoon"
	StyleClassic    ArtStyle = "classic"
	StyleWhimsical  ArtStyle = "whimsical"
	StylePastel     ArtStyle = "pastel"
	StyleBold       ArtStyle = "bold"
)

// ValidArtStyle reports whether s is one of the known presets.
func ValidArtStyle(s ArtStyle) bool {
	switch s {
	case StyleWatercolor, StyleCartoon, StyleClassic, StyleWhimsical, StylePastel, StyleBold:
		return true
	}
	return false
}

// PageType distinguishes the three page kinds of a finished book.
type PageType string

const (
	PageTypeTitle     PageType = "title"
	PageTypeStory     PageType = "story"
	PageTypeBackCover PageType = "back_cover"
)

// ValidPageType reports whether t is in the allowed set.
func ValidPageType(t PageType) bool {
	return t == PageTypeTitle || t == PageTypeStory || t == PageTypeBackCover
}

// TextPosition anchors the text block on a rendered page.
type TextPosition string

const (
	TextTop    TextPosition = "top"
	TextMiddle TextPosition = "middle"
	TextBottom TextPosition = "bottom"
)

// ValidTextPosition reports whether p is in the allowed set.
func ValidTextPosition(p TextPosition) bool {
	return p == TextTop || p == TextMiddle || p == TextBottom
}

// BookStatus tracks a book through its lifecycle.
type BookStatus string

const (
	StatusGenerating BookStatus = "generating"
	StatusDraft      BookStatus = "draft"
	StatusFailed     BookStatus = "failed"
)

// CharacterRole marks a character as a protagonist or supporting cast.
type CharacterRole string

const (
	RoleMain       CharacterRole = "main"
	RoleSupporting CharacterRole = "supporting"
)

// ValidCharacterRole reports whether r is in the allowed set.
func ValidCharacterRole(r CharacterRole) bool {
	return r == RoleMain || r == RoleSupporting
}

// Setting describes where and when the story takes place.
type Setting struct {
	Description string `json:"description"`
	TimeOfDay   string `json:"time_of_day,omitempty"`
	Season      string `json:"season,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Character is one cast member of a book. StylePrompt is derived once by
// the illustration generator's style-extraction step and immutable for the
// rest of the run.
type Character struct {
	ID             string        `json:"id,omitempty"`
	BookID         string        `json:"book_id"`
	Name           string        `json:"name"`
	Role           CharacterRole `json:"role"`
	Description    string        `json:"description"`
	Relationship   string        `json:"relationship,omitempty"`
	ReferenceImage string        `json:"reference_image,omitempty"` // asset handle
	StylePrompt    string        `json:"style_prompt,omitempty"`
}

// BookRequest is the immutable input to the generation pipeline. The core
// never mutates it.
type BookRequest struct {
	Title      string      `json:"title"`
	Theme      string      `json:"theme"`
	Mood       Mood        `json:"mood"`
	ArtStyle   ArtStyle    `json:"art_style"`
	Setting    Setting     `json:"setting"`
	Characters []Character `json:"characters"`
	Author     string      `json:"author,omitempty"`
}

// Book is the persisted book record.
type Book struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Theme       string     `json:"theme"`
	Mood        Mood       `json:"mood"`
	ArtStyle    ArtStyle   `json:"art_style"`
	Setting     Setting    `json:"setting"`
	Status      BookStatus `json:"status"`
	CoverPrompt string     `json:"cover_prompt,omitempty"`
	CoverImage  string     `json:"cover_image,omitempty"` // asset handle
	CoverRegens int        `json:"cover_regenerations"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Page is one persisted page record. Pages are created by the orchestrator
// from the narrative result and mutated afterward only by explicit
// single-page regeneration, never by the composer.
type Page struct {
	ID            string       `json:"id,omitempty"`
	BookID        string       `json:"book_id"`
	PageNumber    int          `json:"page_number"` // 1-based, dense, unique per book
	Type          PageType     `json:"page_type"`
	TextContent   string       `json:"text_content"`
	TextPosition  TextPosition `json:"text_position"`
	ImagePrompt   string       `json:"image_prompt"`
	ImageAsset    string       `json:"image_asset,omitempty"` // asset handle
	Regenerations int          `json:"regenerations"`
}
