package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTest_PassingScenario(t *testing.T) {
	out, err := executeCommand("test", "testdata/scenarios", "--filter", "smoke")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ smoke")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTest_FailingScenario(t *testing.T) {
	out, err := executeCommand("test", "testdata/scenarios", "--filter", "failing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "want 3")
}

func TestTest_MixedScenarios(t *testing.T) {
	out, err := executeCommand("test", "testdata/scenarios")
	require.Error(t, err)
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTest_FilterMatchesNothing(t *testing.T) {
	out, err := executeCommand("test", "testdata/scenarios", "--filter", "nope-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := executeCommand("test", "testdata/no-such-dir")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_JSONOutput(t *testing.T) {
	out, err := executeCommand("--format", "json", "test", "testdata/scenarios", "--filter", "smoke")
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)

	data, err := json.Marshal(response.Data)
	require.NoError(t, err)
	var result TestResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 0, result.Failed)
}
