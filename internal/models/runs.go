package models

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// StageRun is one execution of a stage against a partition.
type StageRun struct {
	ID         string     `json:"id"`
	Stage      string     `json:"stage"`
	Entity     string     `json:"entity"`
	IngestDate string     `json:"ingest_date"`
	Container  string     `json:"container"`
	Path       string     `json:"path"`
	Rows       int        `json:"rows"`
	Fallbacks  int        `json:"fallbacks"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StageResult is returned to callers once a stage has written its document.
type StageResult struct {
	RunID      string `json:"run_id,omitempty"`
	Stage      string `json:"stage"`
	Entity     string `json:"entity"`
	IngestDate string `json:"ingest_date"`
	Container  string `json:"container"`
	Path       string `json:"path"`
	Rows       int    `json:"rows"`
	Fallbacks  int    `json:"fallbacks,omitempty"`
	Message    string `json:"message"`
}

// IngestCommentsRequest is the body accepted by the comment ingest trigger.
type IngestCommentsRequest struct {
	VideoIDs            []string `json:"video_ids"`
	MaxCommentsPerVideo *int     `json:"max_comments_per_video"`
}
