package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vaultledger/internal/model"
)

// TraceSnapshot captures the observable outcome of a scenario: every step's
// outcome and balance plus each vault's aliased event history.
type TraceSnapshot struct {
	ScenarioName string                   `json:"scenario"`
	Trace        []TraceEvent             `json:"steps"`
	Events       map[string][]EventRecord `json:"events"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization, which only accepts payload-shaped values.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		step := map[string]any{
			"op":      event.Op,
			"outcome": event.Outcome,
		}
		if event.Owner != "" {
			step["owner"] = event.Owner
		}
		if event.Balance != nil {
			step["balance"] = map[string]any{
				"total":     event.Balance.Total,
				"locked":    event.Balance.Locked,
				"available": event.Balance.Available,
			}
		}
		steps[i] = step
	}

	events := make(map[string]any, len(s.Events))
	for owner, records := range s.Events {
		list := make([]any, len(records))
		for i, r := range records {
			list[i] = map[string]any{"type": r.Type, "payload": r.Payload}
		}
		events[owner] = list
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"steps":    steps,
		"events":   events,
	}
}

// Render produces the golden form of the snapshot: canonical JSON indented
// by two spaces with a trailing newline.
func (s *TraceSnapshot) Render() ([]byte, error) {
	canonical, err := model.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Events:       result.Events,
	}
	data, err := snapshot.Render()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
