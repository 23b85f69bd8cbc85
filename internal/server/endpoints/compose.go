package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/svcctx"
)

// ComposeResponse is returned after a print document is rendered.
type ComposeResponse struct {
	BookID    string `json:"book_id"`
	Kind      string `json:"kind"`
	Asset     string `json:"asset"`
	URL       string `json:"url"`
	PageCount int    `json:"page_count"`
}

// ComposeInteriorEndpoint handles POST /api/books/{book_id}/compose/interior.
// It renders the book's pages into a print-ready interior PDF and stores it
// as an asset.
type ComposeInteriorEndpoint struct{}

func (e *ComposeInteriorEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/compose/interior", e.handler
}

func (e *ComposeInteriorEndpoint) RequiresInit() bool { return true }

func (e *ComposeInteriorEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("book_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	book, pages, ok := loadBookForCompose(w, r, id)
	if !ok {
		return
	}

	composer := svcctx.ComposerFrom(r.Context())
	assetStore := svcctx.AssetsFrom(r.Context())
	if composer == nil || assetStore == nil {
		writeError(w, http.StatusServiceUnavailable, "composer not initialized")
		return
	}

	pdf, err := composer.ComposeInterior(book, pages)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	handle, err := assetStore.Put(pdf, "application/pdf")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ComposeResponse{
		BookID:    id,
		Kind:      "interior",
		Asset:     handle,
		URL:       assetStore.URL(handle),
		PageCount: len(pages),
	})
}

func (e *ComposeInteriorEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "compose-interior <book-id>",
		Short: "Render the print-ready interior PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ComposeResponse
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/compose/interior", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Interior composed: %s (%d pages)\n", resp.Asset, resp.PageCount)
			return nil
		},
	}
}

// ComposeCoverEndpoint handles POST /api/books/{book_id}/compose/cover.
// The cover wrap's spine width is derived from the interior page count.
type ComposeCoverEndpoint struct{}

func (e *ComposeCoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/compose/cover", e.handler
}

func (e *ComposeCoverEndpoint) RequiresInit() bool { return true }

func (e *ComposeCoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("book_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	book, pages, ok := loadBookForCompose(w, r, id)
	if !ok {
		return
	}

	composer := svcctx.ComposerFrom(r.Context())
	assetStore := svcctx.AssetsFrom(r.Context())
	if composer == nil || assetStore == nil {
		writeError(w, http.StatusServiceUnavailable, "composer not initialized")
		return
	}

	pdf, err := composer.ComposeCover(book, len(pages))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	handle, err := assetStore.Put(pdf, "application/pdf")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ComposeResponse{
		BookID:    id,
		Kind:      "cover",
		Asset:     handle,
		URL:       assetStore.URL(handle),
		PageCount: len(pages),
	})
}

func (e *ComposeCoverEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "compose-cover <book-id>",
		Short: "Render the print-ready cover wrap PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ComposeResponse
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/compose/cover", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Cover composed: %s (spine sized for %d pages)\n", resp.Asset, resp.PageCount)
			return nil
		},
	}
}

// loadBookForCompose fetches the book and its pages, writing the error
// response itself when either lookup fails.
func loadBookForCompose(w http.ResponseWriter, r *http.Request, id string) (*books.Book, []books.Page, bool) {
	bookStore := svcctx.BooksFrom(r.Context())
	if bookStore == nil {
		writeError(w, http.StatusServiceUnavailable, "book store not initialized")
		return nil, nil, false
	}

	book, err := bookStore.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, nil, false
	}

	pages, err := bookStore.ListPages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}

	return book, pages, true
}
