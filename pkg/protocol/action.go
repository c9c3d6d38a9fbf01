package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// KindTransfer is a compound action. It expands into primitive records only.
const KindTransfer = "transfer"

// Kinds lists every action kind a protocol may use, in document order of the
// reference table.
var Kinds = []string{
	string(domain.ActionPickUpTip),
	string(domain.ActionDropTip),
	string(domain.ActionReturnTip),
	string(domain.ActionAspirate),
	string(domain.ActionDispense),
	string(domain.ActionBlowOut),
	string(domain.ActionTouchTip),
	string(domain.ActionMoveTo),
	string(domain.ActionProbe),
	string(domain.ActionDelay),
	string(domain.ActionComment),
	KindTransfer,
}

// Action is one step of a protocol. Kind and Pipette are common to every
// step; everything else lands in Params and is decoded per kind.
type Action struct {
	Kind    string
	Pipette string
	Params  map[string]any
}

// NeedsPipette reports whether the action kind is performed by a pipette.
func (a Action) NeedsPipette() bool {
	switch a.Kind {
	case string(domain.ActionDelay), string(domain.ActionComment):
		return false
	}
	return true
}

func (a *Action) fromMap(raw map[string]any) error {
	kind, ok := raw["kind"].(string)
	if !ok && raw["kind"] != nil {
		return fmt.Errorf("action kind must be a string, got %T", raw["kind"])
	}
	pip, ok := raw["pipette"].(string)
	if !ok && raw["pipette"] != nil {
		return fmt.Errorf("action pipette must be a string, got %T", raw["pipette"])
	}
	a.Kind = kind
	a.Pipette = pip
	a.Params = make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "kind" || k == "pipette" {
			continue
		}
		a.Params[k] = v
	}
	return nil
}

func (a Action) toMap() map[string]any {
	out := make(map[string]any, len(a.Params)+2)
	for k, v := range a.Params {
		out[k] = v
	}
	out["kind"] = a.Kind
	if a.Pipette != "" {
		out["pipette"] = a.Pipette
	}
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return a.fromMap(raw)
}

// MarshalYAML implements yaml.Marshaler.
func (a Action) MarshalYAML() (any, error) {
	return a.toMap(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return a.fromMap(raw)
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.toMap())
}

// Point is a literal deck coordinate.
type Point struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
}

// TargetRef is where an action happens. At most one of Labware (optionally
// with Well), Slot or Point is set; none means the operation's default.
type TargetRef struct {
	Labware string `mapstructure:"labware"`
	Well    string `mapstructure:"well"`
	Slot    string `mapstructure:"slot"`
	Point   *Point `mapstructure:"point"`
}

// IsZero reports whether no target was given.
func (t TargetRef) IsZero() bool {
	return t.Labware == "" && t.Well == "" && t.Slot == "" && t.Point == nil
}

func (t TargetRef) check() []string {
	var problems []string
	set := 0
	if t.Labware != "" {
		set++
	}
	if t.Slot != "" {
		set++
	}
	if t.Point != nil {
		set++
	}
	if set > 1 {
		problems = append(problems, "only one of labware, slot or point may be set")
	}
	if t.Well != "" && t.Labware == "" {
		problems = append(problems, "well requires labware")
	}
	return problems
}

// TipParams are the parameters of pick_up_tip and drop_tip.
type TipParams struct {
	TargetRef `mapstructure:",squash"`
}

// ReturnTipParams are the parameters of return_tip.
type ReturnTipParams struct{}

// LiquidParams are the parameters of aspirate and dispense.
type LiquidParams struct {
	TargetRef `mapstructure:",squash"`
	Volume    float64 `mapstructure:"volume"`
	Rate      float64 `mapstructure:"rate"`
}

// TargetParams are the parameters of blow_out and touch_tip.
type TargetParams struct {
	TargetRef `mapstructure:",squash"`
}

// MoveParams are the parameters of move_to.
type MoveParams struct {
	TargetRef      `mapstructure:",squash"`
	Speed          float64 `mapstructure:"speed"`
	ForceDirect    bool    `mapstructure:"forceDirect"`
	MinimumZHeight float64 `mapstructure:"minimumZHeight"`
}

// ProbeParams are the parameters of probe.
type ProbeParams struct {
	Axes  map[string]float64 `mapstructure:"axes"`
	Speed float64            `mapstructure:"speed"`
}

// DelayParams are the parameters of delay.
type DelayParams struct {
	Seconds float64 `mapstructure:"seconds"`
	Minutes float64 `mapstructure:"minutes"`
}

// CommentParams are the parameters of comment.
type CommentParams struct {
	Message string `mapstructure:"message"`
}

// TransferParams are the parameters of transfer.
type TransferParams struct {
	Volume       float64 `mapstructure:"volume"`
	Source       WellRef `mapstructure:"source"`
	Destination  WellRef `mapstructure:"destination"`
	NewTip       string  `mapstructure:"newTip"`
	KeepTip      bool    `mapstructure:"keepTip"`
	BlowOut      bool    `mapstructure:"blowOut"`
	TouchTip     bool    `mapstructure:"touchTip"`
	AspirateRate float64 `mapstructure:"aspirateRate"`
	DispenseRate float64 `mapstructure:"dispenseRate"`
}

func newParams(kind string) (any, bool) {
	switch kind {
	case string(domain.ActionPickUpTip), string(domain.ActionDropTip):
		return &TipParams{}, true
	case string(domain.ActionReturnTip):
		return &ReturnTipParams{}, true
	case string(domain.ActionAspirate), string(domain.ActionDispense):
		return &LiquidParams{}, true
	case string(domain.ActionBlowOut), string(domain.ActionTouchTip):
		return &TargetParams{}, true
	case string(domain.ActionMoveTo):
		return &MoveParams{}, true
	case string(domain.ActionProbe):
		return &ProbeParams{}, true
	case string(domain.ActionDelay):
		return &DelayParams{}, true
	case string(domain.ActionComment):
		return &CommentParams{}, true
	case KindTransfer:
		return &TransferParams{}, true
	}
	return nil, false
}

// Decode converts Params into the typed parameter struct for the action kind
// (a pointer such as *LiquidParams). Unknown parameter names are rejected.
func (a Action) Decode() (any, error) {
	out, ok := newParams(a.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(a.Params); err != nil {
		return nil, fmt.Errorf("%s parameters: %w", a.Kind, err)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
