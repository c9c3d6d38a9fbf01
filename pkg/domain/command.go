package domain

import (
	"time"
)

// ActionKind identifies the physical action a CommandRecord describes.
type ActionKind string

const (
	ActionPickUpTip ActionKind = "pick_up_tip"
	ActionDropTip   ActionKind = "drop_tip"
	ActionReturnTip ActionKind = "return_tip"
	ActionAspirate  ActionKind = "aspirate"
	ActionDispense  ActionKind = "dispense"
	ActionBlowOut   ActionKind = "blow_out"
	ActionTouchTip  ActionKind = "touch_tip"
	ActionMoveTo    ActionKind = "move_to"
	ActionProbe     ActionKind = "probe"
	ActionDelay     ActionKind = "delay"
	ActionComment   ActionKind = "comment"
)

// CommandParams carries the numeric parameters of a dispatched action.
// Zero values are omitted from the serialized form.
type CommandParams struct {
	Volume   float64 `json:"volume,omitempty"`
	Rate     float64 `json:"rate,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
	Location string  `json:"location,omitempty"`
}

// CommandRecord is one entry of the run log. It is a value type: once published
// nothing holds a reference that could mutate it.
type CommandRecord struct {
	ID        string        `json:"id"`
	Kind      ActionKind    `json:"action_kind"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	Params    CommandParams `json:"params"`
}

// Texts extracts the human-readable text of every record, in order.
func Texts(log []CommandRecord) []string {
	out := make([]string, len(log))
	for i, rec := range log {
		out[i] = rec.Text
	}
	return out
}
