package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/providers"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/svcctx"
)

// RegenerateRequest optionally replaces the stored image prompt.
type RegenerateRequest struct {
	Prompt string `json:"prompt,omitempty"`
}

// regenStatus maps safety and validation failures to client errors.
func regenStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	var me *providers.ModerationError
	if errors.As(err, &me) {
		return http.StatusUnprocessableEntity
	}
	var ie *providers.InjectionError
	if errors.As(err, &ie) {
		return http.StatusBadRequest
	}
	var ve *providers.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// RegeneratePageEndpoint handles POST /api/pages/{page_id}/regenerate.
// Regeneration replaces a single page illustration without touching job
// state or any other page.
type RegeneratePageEndpoint struct{}

func (e *RegeneratePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/{page_id}/regenerate", e.handler
}

func (e *RegeneratePageEndpoint) RequiresInit() bool { return true }

func (e *RegeneratePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("page_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "page id is required")
		return
	}

	var req RegenerateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not initialized")
		return
	}

	page, err := orch.RegeneratePageImage(r.Context(), id, req.Prompt)
	if err != nil {
		writeError(w, regenStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (e *RegeneratePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "regenerate-page <page-id>",
		Short: "Regenerate a single page illustration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var page books.Page
			err := client.Post(cmd.Context(), "/api/pages/"+args[0]+"/regenerate",
				RegenerateRequest{Prompt: prompt}, &page)
			if err != nil {
				return err
			}
			return api.Output(page)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Replacement image prompt (stored prompt used if empty)")
	return cmd
}

// RegenerateCoverEndpoint handles POST /api/books/{book_id}/cover/regenerate.
type RegenerateCoverEndpoint struct{}

func (e *RegenerateCoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/cover/regenerate", e.handler
}

func (e *RegenerateCoverEndpoint) RequiresInit() bool { return true }

func (e *RegenerateCoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("book_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	var req RegenerateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not initialized")
		return
	}

	book, err := orch.RegenerateCover(r.Context(), id, req.Prompt)
	if err != nil {
		writeError(w, regenStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (e *RegenerateCoverEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "regenerate-cover <book-id>",
		Short: "Regenerate a book's cover illustration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var book books.Book
			err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/cover/regenerate",
				RegenerateRequest{Prompt: prompt}, &book)
			if err != nil {
				return err
			}
			return api.Output(book)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Replacement cover prompt (stored prompt used if empty)")
	return cmd
}
