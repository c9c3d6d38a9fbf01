package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/pipette/pkg/domain"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field  string // Path of the offending field, e.g. "actions[2].volume"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// AggregateError collects every validation failure of a document.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns the individual failures if err is (or wraps) an
// AggregateError. Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

type collector struct {
	errs []error
}

func (c *collector) add(field, format string, a ...any) {
	c.errs = append(c.errs, &ValidationError{Field: field, Reason: fmt.Sprintf(format, a...)})
}

// Validate checks the document structure: required fields, unique names and
// slots, references between sections and per-kind action parameters. It does
// not gate the API version and does not look labware definitions up; both
// happen when a run starts.
func (p *Protocol) Validate() error {
	c := &collector{}

	if strings.TrimSpace(p.APIVersion) == "" {
		c.add("apiVersion", "is required")
	} else if _, err := ParseVersion(p.APIVersion); err != nil {
		c.add("apiVersion", "%v", err)
	}

	labware := make(map[string]bool, len(p.Labware))
	slots := make(map[string]string, len(p.Labware))
	for i, l := range p.Labware {
		path := fmt.Sprintf("labware[%d]", i)
		switch {
		case l.Name == "":
			c.add(path+".name", "is required")
		case labware[l.Name]:
			c.add(path+".name", "duplicate labware name %q", l.Name)
		}
		labware[l.Name] = true
		if l.LoadName == "" {
			c.add(path+".loadName", "is required")
		}
		if n, err := strconv.Atoi(l.Slot); err != nil || n < 1 || n > 12 {
			c.add(path+".slot", "must be a deck slot from 1 to 12, got %q", l.Slot)
		} else if other, taken := slots[l.Slot]; taken {
			c.add(path+".slot", "slot %s already holds %q", l.Slot, other)
		} else {
			slots[l.Slot] = l.Name
		}
	}

	pipettes := make(map[string]bool, len(p.Pipettes))
	for i, pip := range p.Pipettes {
		path := fmt.Sprintf("pipettes[%d]", i)
		switch {
		case pip.Name == "":
			c.add(path+".name", "is required")
		case pipettes[pip.Name]:
			c.add(path+".name", "duplicate pipette name %q", pip.Name)
		}
		pipettes[pip.Name] = true
		if pip.Mount != "left" && pip.Mount != "right" {
			c.add(path+".mount", "must be left or right, got %q", pip.Mount)
		}
		if pip.Channels != 0 && pip.Channels != 1 && pip.Channels != 8 {
			c.add(path+".channels", "must be 1 or 8, got %d", pip.Channels)
		}
		if pip.MaxVolume <= 0 {
			c.add(path+".maxVolume", "must be positive")
		}
		for j, rack := range pip.TipRacks {
			if !labware[rack] {
				c.add(fmt.Sprintf("%s.tipRacks[%d]", path, j), "unknown labware %q", rack)
			}
		}
		if st := pip.StartingTip; st != nil {
			if !labware[st.Labware] {
				c.add(path+".startingTip.labware", "unknown labware %q", st.Labware)
			}
			if st.Well == "" {
				c.add(path+".startingTip.well", "is required")
			}
		}
	}

	for i, a := range p.Actions {
		validateAction(c, fmt.Sprintf("actions[%d]", i), a, labware, pipettes)
	}

	if len(c.errs) > 0 {
		return &AggregateError{Errors: c.errs}
	}
	return nil
}

func validateAction(c *collector, path string, a Action, labware, pipettes map[string]bool) {
	if a.Kind == "" {
		c.add(path+".kind", "is required")
		return
	}
	if a.NeedsPipette() {
		if a.Pipette == "" {
			c.add(path+".pipette", "is required for %s", a.Kind)
		} else if !pipettes[a.Pipette] {
			c.add(path+".pipette", "unknown pipette %q", a.Pipette)
		}
	}

	params, err := a.Decode()
	if err != nil {
		c.add(path, "%v", err)
		return
	}

	checkTarget := func(t TargetRef) {
		for _, problem := range t.check() {
			c.add(path, "%s", problem)
		}
		if t.Labware != "" && !labware[t.Labware] {
			c.add(path+".labware", "unknown labware %q", t.Labware)
		}
	}
	checkWell := func(field string, w WellRef) {
		if !labware[w.Labware] {
			c.add(path+"."+field+".labware", "unknown labware %q", w.Labware)
		}
		if w.Well == "" {
			c.add(path+"."+field+".well", "is required")
		}
	}

	switch v := params.(type) {
	case *TipParams:
		checkTarget(v.TargetRef)
	case *TargetParams:
		checkTarget(v.TargetRef)
		if a.Kind == string(domain.ActionTouchTip) && (v.Slot != "" || v.Point != nil) {
			c.add(path, "touch_tip needs a well")
		}
	case *LiquidParams:
		checkTarget(v.TargetRef)
		if _, ok := a.Params["volume"]; !ok {
			c.add(path+".volume", "is required")
		}
	case *MoveParams:
		checkTarget(v.TargetRef)
		if v.IsZero() {
			c.add(path, "move_to needs labware, slot or point")
		}
	case *ProbeParams:
		if len(v.Axes) == 0 {
			c.add(path+".axes", "at least one axis is required")
		}
		for _, axis := range sortedKeys(v.Axes) {
			if len(axis) != 1 || !strings.Contains("XYZABC", strings.ToUpper(axis)) {
				c.add(path+".axes", "unknown axis %q", axis)
			}
		}
	case *DelayParams:
		if v.Seconds < 0 || v.Minutes < 0 {
			c.add(path, "delay must not be negative")
		}
	case *CommentParams:
		if v.Message == "" {
			c.add(path+".message", "is required")
		}
	case *TransferParams:
		checkWell("source", v.Source)
		checkWell("destination", v.Destination)
		switch v.NewTip {
		case "", "once", "always", "never":
		default:
			c.add(path+".newTip", "must be once, always or never, got %q", v.NewTip)
		}
	}
}
