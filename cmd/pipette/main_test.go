package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pipette version "))
}

func TestExplainCommand_Stdin(t *testing.T) {
	out, err := execute(t, "G0 Z-5\n", "explain")
	require.NoError(t, err)
	assert.Equal(t, "Moving to -5 on the Z axis\n", out)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "", "validate", "../../examples/protocols/basic.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, "", "validate", "../../examples/protocols/deprecated.yaml")
	assert.ErrorContains(t, err, "1.0")
}

func TestSimulateCommand(t *testing.T) {
	out, err := execute(t, "", "simulate", "--json", "-L", "../../examples/labware", "../../examples/protocols/custom_labware.yaml")
	require.NoError(t, err)
	assert.Equal(t, 7, strings.Count(out, "\n"))
	assert.Contains(t, out, `"text":"dilution done"`)
}

func TestRunCommand_RequiresPort(t *testing.T) {
	_, err := execute(t, "", "run", "../../examples/protocols/basic.yaml")
	assert.ErrorContains(t, err, "port")
}
