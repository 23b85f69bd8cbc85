// Package pipeline drives end-to-end book generation: one tracked job per
// run, ordered steps with progress checkpoints, per-page failure tolerance,
// and the narrow single-asset regeneration paths.
package pipeline

import (
	"strings"
	"time"
)

// Status is a job's lifecycle state. A job moves pending -> in_progress on
// its first progress update and reaches exactly one terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind identifies what a job produces.
type Kind string

const (
	KindStory       Kind = "story"
	KindImages      Kind = "images"
	KindCover       Kind = "cover"
	KindSingleImage Kind = "single_image"
)

// Progress checkpoints for a full generation run. Page illustration fills
// the span between ProgressPages and ProgressCover linearly.
const (
	ProgressStyling = 5
	ProgressStory   = 15
	ProgressPages   = 25
	ProgressFirstIl = 30
	ProgressCover   = 90
	ProgressDone    = 100
)

// Job is one tracked generation run. Progress is monotonically
// non-decreasing while in progress; Warnings collects non-fatal step
// failures, which never surface in Error.
type Job struct {
	ID          string     `json:"id"`
	BookID      string     `json:"book_id"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Step        string     `json:"step,omitempty"`
	Error       string     `json:"error,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	c.Warnings = append([]string(nil), j.Warnings...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func joinWarnings(ws []string) string {
	return strings.Join(ws, "\n")
}

func splitWarnings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
