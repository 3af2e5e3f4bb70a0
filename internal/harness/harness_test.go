package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", name))
	require.NoError(t, err)
	return s
}

func runPassing(t *testing.T, name string) *Result {
	t.Helper()
	result, err := Run(loadTestScenario(t, name))
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	return result
}

func TestRun_BasicLink(t *testing.T) {
	result := runPassing(t, "basic_link.yaml")

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "ok", result.Trace[0].Outcome)

	require.Len(t, result.Events, 5)
	kinds := make([]string, len(result.Events))
	for i, ev := range result.Events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []string{
		"ContractInitialized",
		"CollectionCreated",
		"AccessPointCreated",
		"MintedRecord",
		"AddedLinkedAccount",
	}, kinds)
}

func TestRun_BasicLink_Golden(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "basic_link.yaml"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
}

func TestRun_PendingGate(t *testing.T) {
	result := runPassing(t, "pending_gate.yaml")

	require.Len(t, result.Trace, 4)
	assert.Equal(t, "NOT_ADMITTED", result.Trace[1].Outcome)
	assert.Equal(t, "ok", result.Trace[3].Outcome)
}

func TestRun_RemoveLink(t *testing.T) {
	result := runPassing(t, "remove_link.yaml")
	assert.Equal(t, "NOT_FOUND", result.Trace[2].Outcome)
}

func TestRun_DuplicateLink(t *testing.T) {
	result := runPassing(t, "duplicate_link.yaml")
	assert.Equal(t, "ALREADY_LINKED", result.Trace[1].Outcome)
}

func TestRun_RepairCapability(t *testing.T) {
	runPassing(t, "repair_capability.yaml")
}

func TestRun_PolicyLink(t *testing.T) {
	runPassing(t, "policy_link.yaml")
}

func TestRun_UnrestrictFlow(t *testing.T) {
	s := &Scenario{
		Name: "unrestrict_flow",
		Children: []ChildSpec{{
			Address: "0x02",
			Install: []InstallSpec{{Type: "example/NFTCollection", Path: "collection"}},
		}},
		Steps: []Step{
			{Op: "link", Child: "0x02"},
			{Op: "unrestrict", Child: "0x02"},
		},
		Assertions: []Assertion{
			{Type: "link_active", Child: "0x02", Active: true},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := &Scenario{
		Name: "expect_mismatch",
		Children: []ChildSpec{{
			Address: "0x02",
			Install: []InstallSpec{{Type: "example/NFTCollection", Path: "collection"}},
		}},
		Steps: []Step{
			{Op: "link", Child: "0x02", Expect: &ExpectClause{Error: "NOT_ADMITTED"}},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error NOT_ADMITTED")
}

func TestRun_FailedAssertionFails(t *testing.T) {
	s := &Scenario{
		Name: "bad_assertion",
		Children: []ChildSpec{{
			Address: "0x02",
			Install: []InstallSpec{{Type: "example/NFTCollection", Path: "collection"}},
		}},
		Steps: []Step{
			{Op: "link", Child: "0x02"},
		},
		Assertions: []Assertion{
			{Type: "linked_count", Count: 7},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "want 7")
}

func TestRun_IsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "basic_link.yaml")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	require.Len(t, second.Events, len(first.Events))
	for i := range first.Events {
		assert.Equal(t, first.Events[i].Hash, second.Events[i].Hash, "event %d", i)
		assert.Equal(t, first.Events[i].Token, second.Events[i].Token, "event %d", i)
	}
}
