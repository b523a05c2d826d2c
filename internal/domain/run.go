package domain

import (
	"encoding/json"
	"time"
)

// RunStatus enumerates pipeline run lifecycle states.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// GeneratedArtifact is a URL plus provenance. The orchestrator owns it until
// persisted; inline payloads are rewritten to durable URLs before an item is
// considered complete, so consumers never see data URIs.
type GeneratedArtifact struct {
	URL         string       `json:"url"`
	AdaptorID   string       `json:"adaptor_id"`
	ModelID     string       `json:"model_id"`
	Format      OutputFormat `json:"format"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ItemResult holds the outcome of one batch element. Exactly one of
// {Artifact, Error} is populated per item stage.
type ItemResult struct {
	ItemID   string            `json:"item_id"`
	Index    int               `json:"index"`
	Fields   map[string]any    `json:"fields,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Artifact *GeneratedArtifact `json:"artifact,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Succeeded reports whether the item carries an artifact and no error.
func (r ItemResult) Succeeded() bool {
	return r.Error == "" && r.Artifact != nil
}

// PipelineRun is one orchestration invocation over a batch. It is created at
// pipeline start, appended to as items complete, and frozen at pipeline end
// when it is persisted as a single document.
type PipelineRun struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Pipeline     string       `json:"pipeline"`
	Status       RunStatus    `json:"status"`
	Items        []ItemResult `json:"items"`
	Progress     int          `json:"progress"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Recount refreshes the aggregate success/error counters from the item list.
func (r *PipelineRun) Recount() {
	success, failed := 0, 0
	for _, item := range r.Items {
		if item.Succeeded() {
			success++
		} else if item.Error != "" {
			failed++
		}
	}
	r.SuccessCount = success
	r.ErrorCount = failed
}
