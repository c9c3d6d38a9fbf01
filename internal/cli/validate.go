package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/pipette"
	"github.com/aretw0/pipette/pkg/protocol"
)

// Validate checks a protocol file without running it and prints a one-line
// verdict. The error lists every problem found.
func Validate(path string, w io.Writer) error {
	p, err := protocol.Load(path)
	if err != nil {
		return err
	}
	if err := pipette.Validate(p); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %q is valid (API %s, %d actions)\n", path, p.Name("untitled"), p.APIVersion, len(p.Actions))
	return nil
}
