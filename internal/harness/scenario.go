package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of ledger operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup contains operations run before the flow. Every setup step must
	// succeed; a failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the operations under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and final state after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one ledger operation.
//
// String arguments may name a fixture alias (owner_a, vault_a, mint,
// program, sig1..sig12) or an alias bound by an earlier step's As.
type Step struct {
	// Op is the operation name, e.g. "deposit" or "request_withdrawal".
	Op string `yaml:"op"`

	// Args are the operation arguments.
	Args map[string]any `yaml:"args"`

	// As binds the id of the ticket this step returns to an alias.
	As string `yaml:"as,omitempty"`

	// Expect checks the outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Error is the expected fault code, e.g. "INSUFFICIENT_FUNDS".
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Balance is the owner's committed balance after the step.
	Balance *BalanceExpect `yaml:"balance,omitempty"`
}

// BalanceExpect is a balance triple.
type BalanceExpect struct {
	Total     int64 `yaml:"total"`
	Locked    int64 `yaml:"locked"`
	Available int64 `yaml:"available"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_order": owner's event types are exactly Events, in order
	// - "event_count": owner has exactly Count events of type Event
	// - "final_state": query Table and verify expected values
	// - "consistent": owner's replayed history matches its balance row
	Type string `yaml:"type"`

	// Owner selects the vault (event_order, event_count, consistent).
	Owner string `yaml:"owner,omitempty"`

	// Events is the expected event type sequence (event_order).
	Events []string `yaml:"events,omitempty"`

	// Event is the event type to count (event_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Table is the table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state). All fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match: only the listed columns are checked.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
	AssertFinalState = "final_state"
	AssertConsistent = "consistent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep("setup", i, step); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Error != "" {
			return fmt.Errorf("setup[%d]: setup steps cannot expect an error", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep("flow", i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(section string, i int, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("%s[%d]: op is required", section, i)
	}
	if _, ok := operations[step.Op]; !ok {
		return fmt.Errorf("%s[%d]: unknown op %q", section, i, step.Op)
	}
	if step.Args == nil {
		return fmt.Errorf("%s[%d]: args is required (use empty map if no args)", section, i)
	}
	if step.Expect != nil && step.Expect.Error != "" && step.Expect.Balance != nil {
		return fmt.Errorf("%s[%d].expect: error and balance are mutually exclusive", section, i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventOrder:
		if a.Owner == "" {
			return fmt.Errorf("assertions[%d]: owner is required for event_order", index)
		}
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Owner == "" || a.Event == "" {
			return fmt.Errorf("assertions[%d]: owner and event are required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertConsistent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
