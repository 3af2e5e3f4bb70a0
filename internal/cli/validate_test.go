package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_GoodPolicy(t *testing.T) {
	out, err := executeCommand("validate", "testdata/policies/good.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 policy file(s) valid")
	assert.Contains(t, out, "marketplace_listing")
}

func TestValidate_BadPolicy(t *testing.T) {
	out, err := executeCommand("validate", "testdata/policies/bad.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "validator.kind")
}

func TestValidate_Directory(t *testing.T) {
	// The directory contains one good and one bad policy, so overall
	// validation fails with a single issue.
	out, err := executeCommand("validate", "testdata/policies")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "bad.cue")
	assert.NotContains(t, out, "good.cue")
}

func TestValidate_MissingPath(t *testing.T) {
	_, err := executeCommand("validate", "testdata/does-not-exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_JSONOutput(t *testing.T) {
	out, err := executeCommand("--format", "json", "validate", "testdata/policies/good.cue")
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestValidate_JSONOutputOnFailure(t *testing.T) {
	out, err := executeCommand("--format", "json", "validate", "testdata/policies/bad.cue")
	require.Error(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "E_POLICY", response.Error.Code)
}
