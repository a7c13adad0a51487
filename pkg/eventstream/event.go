package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeReductionCompleted is emitted after a reduction run returns,
	// whatever its status.
	EventTypeReductionCompleted = "lamdag.reduction.completed"
)

// ReductionEvent is a transport-neutral event payload for a finished run.
type ReductionEvent struct {
	SchemaVersion int        `json:"schema_version"`
	EventType     string     `json:"event_type"`
	EventID       string     `json:"event_id"`
	EmittedAt     time.Time  `json:"emitted_at"`
	Run           RunMeta    `json:"run"`
	Result        ResultMeta `json:"result"`
}

// RunMeta describes the request and its timing.
type RunMeta struct {
	RunID       string    `json:"run_id"`
	JobID       string    `json:"job_id,omitempty"`
	Mode        string    `json:"mode"`
	Root        int32     `json:"root"`
	Env         int32     `json:"env"`
	Budget      int       `json:"budget"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// ResultMeta describes what the run produced.
type ResultMeta struct {
	Status string `json:"status"`
	Node   int32  `json:"node"`
	Env    int32  `json:"env"`
	Steps  int    `json:"steps"`
	Error  string `json:"error,omitempty"`
}

// NewReductionEvent stamps run and result with a fresh event ID and the
// current time.
func NewReductionEvent(run RunMeta, result ResultMeta) *ReductionEvent {
	return &ReductionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeReductionCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Run:           run,
		Result:        result,
	}
}
