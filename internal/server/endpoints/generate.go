package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/pipeline"
	"github.com/fableforge/fableforge/internal/svcctx"
)

// GenerateResponse is returned when a generation job is accepted.
type GenerateResponse struct {
	JobID  string `json:"job_id"`
	BookID string `json:"book_id"`
	Status string `json:"status"`
}

// GenerateEndpoint handles POST /api/books/{book_id}/generate.
// It kicks off the full generation pipeline and returns immediately
// with a job ID for progress polling.
type GenerateEndpoint struct{}

func (e *GenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/generate", e.handler
}

func (e *GenerateEndpoint) RequiresInit() bool { return true }

func (e *GenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("book_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not initialized")
		return
	}

	job, err := orch.Begin(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, GenerateResponse{
		JobID:  job.ID,
		BookID: id,
		Status: string(job.Status),
	})
}

func (e *GenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <book-id>",
		Short: "Start full book generation",
		Long: `Start the generation pipeline for a book.

This submits an asynchronous job that derives character style prompts,
generates the narrative, illustrates every page, and renders the cover.
Use 'fableforge api job <job-id>' to check progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GenerateResponse
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/generate", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Generation job submitted: %s\n", resp.JobID)
			fmt.Println("Check progress with: fableforge api job", resp.JobID)
			return nil
		},
	}
}

// GetJobEndpoint handles GET /api/jobs/{job_id}.
type GetJobEndpoint struct{}

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{job_id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("job_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	job, err := jm.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Get a generation job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var job pipeline.Job
			if err := client.Get(cmd.Context(), "/api/jobs/"+args[0], &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}
