package gcode

import (
	"sort"
	"strings"
)

// Verb names understood by the codec.
const (
	Move     = "G0"
	Home     = "G28.2"
	Probe    = "G38.2"
	Dwell    = "G4"
	Wait     = "M400"
	Position = "M114.2"
)

// Spec describes how one verb is written and explained.
type Spec struct {
	Verb string
	// Keys is the canonical argument order. Keys outside this list are rejected.
	Keys []string
	// Rate is the key carrying the feed rate, if any. It is never treated as an axis.
	Rate string
	// Axis marks verbs whose non-rate arguments are axes; at least one is required.
	Axis bool
	// Bare marks verbs whose arguments are flags without values (e.g. "G28.2 X Y").
	Bare bool

	explain func(axes []string, values []string, rate string, args map[string]string) string
}

func (s *Spec) expects(key string) bool {
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}

var registry = map[string]*Spec{
	Move: {
		Verb: Move,
		Keys: []string{"X", "Y", "Z", "A", "B", "C", "F"},
		Rate: "F",
		Axis: true,
		explain: func(axes, values []string, rate string, _ map[string]string) string {
			return withRate("Moving to "+joinValues(values)+" on the "+joinAxes(axes)+" axis", rate)
		},
	},
	Home: {
		Verb: Home,
		Keys: []string{"X", "Y", "Z", "A", "B", "C"},
		Axis: true,
		Bare: true,
		explain: func(axes, _ []string, _ string, _ map[string]string) string {
			return "Homing the " + joinAxes(axes) + " axis"
		},
	},
	Probe: {
		Verb: Probe,
		Keys: []string{"X", "Y", "Z", "A", "B", "C", "F"},
		Rate: "F",
		Axis: true,
		explain: func(axes, values []string, rate string, _ map[string]string) string {
			return withRate("Probing "+joinValues(values)+" on the "+joinAxes(axes)+" axis", rate)
		},
	},
	Dwell: {
		Verb: Dwell,
		Keys: []string{"P", "S"},
		explain: func(_, _ []string, _ string, args map[string]string) string {
			var parts []string
			if s, ok := args["S"]; ok {
				parts = append(parts, s+" seconds")
			}
			if p, ok := args["P"]; ok {
				parts = append(parts, p+" milliseconds")
			}
			if len(parts) == 0 {
				return "Pausing movement"
			}
			return "Pausing movement for " + strings.Join(parts, " and ")
		},
	},
	Wait: {
		Verb: Wait,
		explain: func(_, _ []string, _ string, _ map[string]string) string {
			return "Waiting for motors to stop moving"
		},
	},
	Position: {
		Verb: Position,
		explain: func(_, _ []string, _ string, _ map[string]string) string {
			return "Getting current position for all axes"
		},
	},
}

// Lookup returns the registered spec for verb.
func Lookup(verb string) (*Spec, bool) {
	s, ok := registry[verb]
	return s, ok
}

// Verbs lists the registered verbs in lexical order.
func Verbs() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func withRate(msg, rate string) string {
	if rate == "" {
		return msg
	}
	return msg + ", at a speed of " + rate
}

func joinValues(values []string) string { return strings.Join(values, ",") }

func joinAxes(axes []string) string { return strings.Join(axes, ", ") }
