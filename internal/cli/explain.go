package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/pipette/pkg/gcode"
)

// Explain prints one explanation per G-code line read from r. Blank lines and
// comment-only lines are skipped. The first malformed line stops the scan.
func Explain(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || isParenComment(line) {
			continue
		}
		text, err := gcode.ExplainLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		fmt.Fprintln(w, text)
	}
	return sc.Err()
}

func isParenComment(line string) bool {
	return strings.HasPrefix(line, "(") && strings.Index(line, ")") == len(line)-1
}
