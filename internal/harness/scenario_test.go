package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarioYAML = `
name: minimal
description: "Minimal deposit"
flow:
  - op: deposit
    args: { owner: owner_a, signature: sig1, amount: 10, vault_address: vault_a, token_mint: mint }
assertions:
  - type: consistent
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, validScenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "deposit", s.Flow[0].Op)
	assert.Equal(t, 10, s.Flow[0].Args["amount"])
	assert.Equal(t, "owner_a", s.Flow[0].Args["owner"])
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertConsistent, s.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			yaml:    "name: [unclosed",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nflow: []\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nflow:\n  - op: open\n    args: {}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nflow:\n  - op: open\n    args: {}\n",
			wantErr: "description is required",
		},
		{
			name:    "missing flow",
			yaml:    "name: x\ndescription: d\n",
			wantErr: "flow list is required",
		},
		{
			name:    "missing op",
			yaml:    "name: x\ndescription: d\nflow:\n  - args: {}\n",
			wantErr: "flow[0]: op is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: d\nflow:\n  - op: transfer\n    args: {}\n",
			wantErr: `flow[0]: unknown op "transfer"`,
		},
		{
			name:    "missing args",
			yaml:    "name: x\ndescription: d\nflow:\n  - op: open\n",
			wantErr: "flow[0]: args is required",
		},
		{
			name:    "setup expecting error",
			yaml:    "name: x\ndescription: d\nsetup:\n  - op: open\n    args: {}\n    expect: { error: VALIDATION }\nflow:\n  - op: open\n    args: {}\n",
			wantErr: "setup[0]: setup steps cannot expect an error",
		},
		{
			name:    "error and balance",
			yaml:    "name: x\ndescription: d\nflow:\n  - op: open\n    args: {}\n    expect: { error: VALIDATION, balance: { total: 1 } }\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nflow:\n  - op: open\n    args: {}\nassertions:\n  - type: trace_contains\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "event_order without events",
			yaml:    "name: x\ndescription: d\nflow:\n  - op: open\n    args: {}\nassertions:\n  - type: event_order\n    owner: owner_a\n",
			wantErr: "events list is required",
		},
		{
			name:    "final_state without expect",
			yaml:    "name: x\ndescription: d\nflow:\n  - op: open\n    args: {}\nassertions:\n  - type: final_state\n    table: vaults\n",
			wantErr: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
