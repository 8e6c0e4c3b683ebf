package journal

import (
	"context"
	"time"

	"github.com/michaelpento.lv/xchainarb/types"
)

// Event is one stage transition of an execution flow
type Event struct {
	ExecutionID   string      `json:"execution_id"`
	OpportunityID string      `json:"opportunity_id"`
	Stage         types.Stage `json:"stage"`
	Reference     string      `json:"reference,omitempty"` // transaction or bridge reference produced by the stage
	Error         string      `json:"error,omitempty"`
	Reconcile     bool        `json:"reconcile"` // funds may be stranded on the source network or in transit
	At            time.Time   `json:"at"`
}

// Recorder persists execution events for reconciliation outside the engine.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
