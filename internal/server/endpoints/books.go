package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/svcctx"
)

// CreateBookResponse is returned after a book record is created.
type CreateBookResponse struct {
	Book *books.Book `json:"book"`
}

// CreateBookEndpoint handles POST /api/books.
type CreateBookEndpoint struct{}

func (e *CreateBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books", e.handler
}

func (e *CreateBookEndpoint) RequiresInit() bool { return true }

func (e *CreateBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req books.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateBookRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookStore := svcctx.BooksFrom(r.Context())
	if bookStore == nil {
		writeError(w, http.StatusServiceUnavailable, "book store not initialized")
		return
	}

	book, err := bookStore.CreateBook(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateBookResponse{Book: book})
}

func validateBookRequest(req *books.BookRequest) error {
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}
	if req.Theme == "" {
		return fmt.Errorf("theme is required")
	}
	if !books.ValidMood(req.Mood) {
		return fmt.Errorf("unknown mood %q", req.Mood)
	}
	if !books.ValidArtStyle(req.ArtStyle) {
		return fmt.Errorf("unknown art style %q", req.ArtStyle)
	}
	if len(req.Characters) == 0 {
		return fmt.Errorf("at least one character is required")
	}
	for i, ch := range req.Characters {
		if ch.Name == "" {
			return fmt.Errorf("character %d: name is required", i+1)
		}
		if !books.ValidCharacterRole(ch.Role) {
			return fmt.Errorf("character %q: unknown role %q", ch.Name, ch.Role)
		}
	}
	return nil
}

func (e *CreateBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create-book",
		Short: "Create a book from a JSON request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readBookRequest(file)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp CreateBookResponse
			if err := client.Post(cmd.Context(), "/api/books", req, &resp); err != nil {
				return err
			}
			return api.Output(resp.Book)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the book request (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func readBookRequest(path string) (*books.BookRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	var req books.BookRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}
	return &req, nil
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("book_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	bookStore := svcctx.BooksFrom(r.Context())
	if bookStore == nil {
		writeError(w, http.StatusServiceUnavailable, "book store not initialized")
		return
	}

	book, err := bookStore.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <book-id>",
		Short: "Get a book by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var book books.Book
			if err := client.Get(cmd.Context(), "/api/books/"+args[0], &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
}

// ListPagesResponse is the response for listing a book's pages.
type ListPagesResponse struct {
	Pages []books.Page `json:"pages"`
}

// ListPagesEndpoint handles GET /api/books/{book_id}/pages.
type ListPagesEndpoint struct{}

func (e *ListPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/pages", e.handler
}

func (e *ListPagesEndpoint) RequiresInit() bool { return true }

func (e *ListPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("book_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	bookStore := svcctx.BooksFrom(r.Context())
	if bookStore == nil {
		writeError(w, http.StatusServiceUnavailable, "book store not initialized")
		return
	}

	pages, err := bookStore.ListPages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListPagesResponse{Pages: pages})
}

func (e *ListPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <book-id>",
		Short: "List a book's pages in reading order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListPagesResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/pages", &resp); err != nil {
				return err
			}
			return api.Output(resp.Pages)
		},
	}
}
