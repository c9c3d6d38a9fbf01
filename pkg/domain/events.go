package domain

import (
	"context"
	"time"
)

// ActionEvent describes one protocol action as seen by the execution engine.
type ActionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Position  int           `json:"position"` // 1-based index in the protocol
	Kind      string        `json:"kind"`
	Pipette   string        `json:"pipette,omitempty"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the execution goroutine.
type LifecycleHooks struct {
	OnActionStart func(context.Context, *ActionEvent)
	OnActionEnd   func(context.Context, *ActionEvent)
}
