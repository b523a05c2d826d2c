package pipeline

import "creatorlab/internal/domain"

// EventType enumerates the orchestrator's streamed event kinds.
type EventType string

const (
	EventStart    EventType = "start"
	EventItem     EventType = "item"
	EventAsset    EventType = "asset"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one entry on a run's ordered event stream. Item events carry the
// parsed element before its asset sub-step; asset events carry the same item
// after it, with either an artifact or an error set. Progress is 0-100 and
// never decreases within a run.
type Event struct {
	Type         EventType          `json:"type"`
	RunID        string             `json:"run_id"`
	Pipeline     string             `json:"pipeline"`
	Item         *domain.ItemResult `json:"item,omitempty"`
	Progress     int                `json:"progress"`
	ItemCount    int                `json:"item_count,omitempty"`
	SuccessCount int                `json:"success_count,omitempty"`
	ErrorCount   int                `json:"error_count,omitempty"`
	Message      string             `json:"message,omitempty"`
}
