package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultledger/internal/model"
)

func depositStep(owner, sig string, amount int) Step {
	return Step{
		Op: "deposit",
		Args: map[string]any{
			"owner":         owner,
			"signature":     sig,
			"amount":        amount,
			"vault_address": "vault_a",
			"token_mint":    "mint",
		},
	}
}

func TestRun_TestdataScenariosMatchGolden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_TracesSetupAndFlow(t *testing.T) {
	scenario := &Scenario{
		Name:        "trace",
		Description: "setup and flow steps are traced",
		Setup:       []Step{depositStep("owner_a", "sig1", 1000)},
		Flow: []Step{
			{
				Op:   "request_withdrawal",
				Args: map[string]any{"owner": "owner_a", "amount": 300},
				As:   "t1",
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, 1, result.Trace[0].Step)
	assert.Equal(t, "deposit", result.Trace[0].Op)
	assert.Equal(t, "owner_a", result.Trace[0].Owner)
	assert.Equal(t, OutcomeOK, result.Trace[0].Outcome)
	assert.Equal(t, &model.Balance{Total: 1000, Locked: 300, Available: 700}, result.Trace[1].Balance)

	require.Len(t, result.Events["owner_a"], 2)
	lock := result.Events["owner_a"][1]
	assert.Equal(t, "lock", lock.Type)
	assert.Equal(t, "t1", lock.Payload["ticket_id"])
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/confirm_withdrawal.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_UnexpectedFailureFailsResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "overdraw",
		Description: "withdrawing more than available",
		Setup:       []Step{depositStep("owner_a", "sig1", 100)},
		Flow: []Step{
			{Op: "request_withdrawal", Args: map[string]any{"owner": "owner_a", "amount": 500}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected ok, got INSUFFICIENT_FUNDS")
	assert.Equal(t, "INSUFFICIENT_FUNDS", result.Trace[1].Outcome)
}

func TestRun_ExpectedErrorNotRaised(t *testing.T) {
	scenario := &Scenario{
		Name:        "no error",
		Description: "expecting a failure that does not happen",
		Setup:       []Step{depositStep("owner_a", "sig1", 1000)},
		Flow: []Step{
			{
				Op:     "request_withdrawal",
				Args:   map[string]any{"owner": "owner_a", "amount": 500},
				Expect: &Expect{Error: "INSUFFICIENT_FUNDS"},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected INSUFFICIENT_FUNDS, got ok")
}

func TestRun_BalanceMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "balance",
		Description: "wrong expected balance",
		Flow: []Step{
			func() Step {
				s := depositStep("owner_a", "sig1", 1000)
				s.Expect = &Expect{Balance: &BalanceExpect{Total: 999, Available: 999}}
				return s
			}(),
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected balance")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad setup",
		Description: "setup withdraws from a vault that does not exist",
		Setup: []Step{
			{Op: "request_withdrawal", Args: map[string]any{"owner": "owner_a", "amount": 1}},
		},
		Flow: []Step{depositStep("owner_a", "sig1", 1)},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (request_withdrawal)")
}

func TestRun_ArgumentTypeError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad args",
		Description: "amount given as a string",
		Flow: []Step{
			{
				Op: "deposit",
				Args: map[string]any{
					"owner":     "owner_a",
					"signature": "sig1",
					"amount":    "lots",
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `arg "amount": expected integer, got string`)
}

func TestRun_CollateralRequiresAuthorizedProgram(t *testing.T) {
	scenario := &Scenario{
		Name:        "collateral",
		Description: "collateral locks only through authorized programs",
		Setup:       []Step{depositStep("owner_a", "sig1", 1000)},
		Flow: []Step{
			{
				Op:     "lock_collateral",
				Args:   map[string]any{"owner": "owner_a", "program": "program", "amount": 100},
				Expect: &Expect{Error: "UNAUTHORIZED"},
			},
			{Op: "add_program", Args: map[string]any{"program": "program", "actor": "ops"}},
			{
				Op:     "lock_collateral",
				Args:   map[string]any{"owner": "owner_a", "program": "program", "amount": 100},
				Expect: &Expect{Balance: &BalanceExpect{Total: 1000, Locked: 100, Available: 900}},
			},
			{
				Op:     "unlock_collateral",
				Args:   map[string]any{"owner": "owner_a", "program": "program", "amount": 100},
				Expect: &Expect{Balance: &BalanceExpect{Total: 1000, Locked: 0, Available: 1000}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertEventOrder, Owner: "owner_a", Events: []string{"deposit", "lock", "unlock"}},
			{Type: AssertFinalState, Table: "authorized_programs", Where: map[string]any{"program": "program"}, Expect: map[string]any{"status": "active", "added_by": "ops"}},
			{Type: AssertConsistent, Owner: "owner_a"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	// add_program has no owner
	assert.Empty(t, result.Trace[2].Owner)
	assert.Nil(t, result.Trace[2].Balance)
	assert.Equal(t, "program", result.Events["owner_a"][1].Payload["program"])
}

func TestRun_CancelAndAdjust(t *testing.T) {
	scenario := &Scenario{
		Name:        "cancel",
		Description: "cancel releases a locked ticket and adjust corrects the balance",
		Setup:       []Step{depositStep("owner_a", "sig1", 1000)},
		Flow: []Step{
			{Op: "request_withdrawal", Args: map[string]any{"owner": "owner_a", "amount": 400}, As: "t1"},
			{
				Op:     "cancel_withdrawal",
				Args:   map[string]any{"owner": "owner_a", "ticket": "t1", "reason": "user abort", "actor": "ops"},
				Expect: &Expect{Balance: &BalanceExpect{Total: 1000, Locked: 0, Available: 1000}},
			},
			{
				Op:     "adjust",
				Args:   map[string]any{"owner": "owner_a", "delta": -50, "reason": "fee correction", "actor": "ops"},
				Expect: &Expect{Balance: &BalanceExpect{Total: 950, Locked: 0, Available: 950}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertEventOrder, Owner: "owner_a", Events: []string{"deposit", "lock", "unlock", "adjustment"}},
			{Type: AssertFinalState, Table: "withdrawal_tickets", Where: map[string]any{"id": "t1"}, Expect: map[string]any{"status": "cancelled"}},
			{Type: AssertConsistent},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	unlock := result.Events["owner_a"][2]
	assert.Equal(t, "t1", unlock.Payload["ticket_id"])
	assert.Equal(t, "user abort", unlock.Payload["reason"])
}
