package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_YAML(t *testing.T) {
	path := writeConfig(t, "runtime.yaml", "tick_interval_ns: 5000000\ninitial: {Setpoint: 80}\n")

	out, err := executeRoot(t, "validate", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "configuration valid\n"))
	assert.Contains(t, out, "tick_interval_ns: 5000000")
	assert.Contains(t, out, "max_pending_ticks: 64")
	assert.Contains(t, out, "Setpoint: 80")
}

func TestValidate_CUEJSON(t *testing.T) {
	path := writeConfig(t, "runtime.cue", `log: format: "json"`)

	out, err := executeRoot(t, "validate", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "conveyor", resp.Data["program"])
	assert.Equal(t, map[string]any{"level": "info", "format": "json"}, resp.Data["log"])
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		code int
		want string
	}{
		{"schema violation", "c.yaml", "tick_interval_ns: 0\n", ExitCommandError, "E001"},
		{"unknown program", "c.yaml", "program: mixer\n", ExitCommandError, "E002"},
		{"unknown initial", "c.yaml", "initial: {Speed: 1, Bogus: 2}\n", ExitFailure, "E003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeRoot(t, "validate", writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidate_UnknownInitialListed(t *testing.T) {
	out, err := executeRoot(t, "validate",
		writeConfig(t, "c.yaml", "initial: {Zeta: 1, Alpha: 2, Start: 1}\n"), "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[Alpha Zeta]")
	assert.Contains(t, out, `"details":["Alpha","Zeta"]`)
}
