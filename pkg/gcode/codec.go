package gcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/pipette/pkg/domain"
)

// Instruction is one decoded G-code line.
type Instruction struct {
	Verb string
	Args map[string]string
}

// String renders the instruction in canonical form. Instructions that fail to
// encode render as their verb.
func (i Instruction) String() string {
	line, err := Encode(i.Verb, i.Args)
	if err != nil {
		return i.Verb
	}
	return line
}

// FormatNumber renders a numeric argument in its shortest exact form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func malformed(line, format string, a ...any) error {
	return &domain.InstructionError{Line: line, Reason: fmt.Sprintf(format, a...)}
}

// Encode renders verb and args as a single line, arguments in the verb's
// canonical order.
func Encode(verb string, args map[string]string) (string, error) {
	spec, err := checkArgs(verb, verb, args)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(spec.Verb)
	for _, key := range spec.Keys {
		value, ok := args[key]
		if !ok {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteString(value)
	}
	return b.String(), nil
}

// Decode parses one G-code line. Comments introduced by ';' or wrapped in
// parentheses are ignored.
func Decode(line string) (Instruction, error) {
	stripped := stripComments(line)
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return Instruction{}, malformed(line, "empty instruction")
	}

	verb := strings.ToUpper(fields[0])
	spec, ok := registry[verb]
	if !ok {
		return Instruction{}, malformed(line, "unknown verb %q", fields[0])
	}

	args := make(map[string]string, len(fields)-1)
	for _, tok := range fields[1:] {
		key := strings.ToUpper(tok[:1])
		value := tok[1:]
		if !isKey(key) {
			return Instruction{}, malformed(line, "cannot split token %q", tok)
		}
		if value == "" && !spec.Bare {
			return Instruction{}, malformed(line, "token %q has no value", tok)
		}
		if _, dup := args[key]; dup {
			return Instruction{}, malformed(line, "duplicate argument %q", key)
		}
		args[key] = value
	}

	if _, err := checkArgs(line, verb, args); err != nil {
		return Instruction{}, err
	}
	return Instruction{Verb: verb, Args: args}, nil
}

// Explain produces the human-readable description of an instruction.
func Explain(verb string, args map[string]string) (string, error) {
	spec, err := checkArgs(verb, verb, args)
	if err != nil {
		return "", err
	}

	var axes, values []string
	for _, key := range spec.Keys {
		value, ok := args[key]
		if !ok || key == spec.Rate {
			continue
		}
		axes = append(axes, key)
		values = append(values, value)
	}
	return spec.explain(axes, values, args[spec.Rate], args), nil
}

// ExplainLine decodes and explains a single line.
func ExplainLine(line string) (string, error) {
	inst, err := Decode(line)
	if err != nil {
		return "", err
	}
	return Explain(inst.Verb, inst.Args)
}

func checkArgs(line, verb string, args map[string]string) (*Spec, error) {
	spec, ok := registry[verb]
	if !ok {
		return nil, malformed(line, "unknown verb %q", verb)
	}

	axes := 0
	for key, value := range args {
		if !isKey(key) {
			return nil, malformed(line, "argument key %q is not a single uppercase letter", key)
		}
		if !spec.expects(key) {
			return nil, malformed(line, "argument %q is not valid for %s", key, spec.Verb)
		}
		if value == "" && !spec.Bare {
			return nil, malformed(line, "argument %q has no value", key)
		}
		if strings.ContainsAny(value, " \t\r\n;()") {
			return nil, malformed(line, "argument %q value %q is not a single token", key, value)
		}
		if key != spec.Rate {
			axes++
		}
	}
	if spec.Axis && axes == 0 {
		return nil, malformed(line, "%s requires at least one axis", spec.Verb)
	}
	return spec, nil
}

func isKey(key string) bool {
	return len(key) == 1 && key[0] >= 'A' && key[0] <= 'Z'
}

func stripComments(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	var b strings.Builder
	depth := 0
	for _, r := range line {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
