package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func TestScenarioRun_AllPass(t *testing.T) {
	cleanEnv(t)

	files, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	args := append([]string{"scenario", "run"}, files...)
	out, _, err := execute(t, testOptions(), "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS happy_path")
	assert.Contains(t, out, "PASS expired_intent")
	assert.Contains(t, out, "0 failed")
}

func TestScenarioRun_TraceJSON(t *testing.T) {
	cleanEnv(t)

	out, _, err := execute(t, testOptions(), "", "scenario", "run",
		filepath.Join(scenarioDir, "happy_path.yaml"), "--trace", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "happy_path", sr.Name)
	assert.NotEmpty(t, sr.Trace)
	assert.Empty(t, sr.Errors)
}

func TestScenarioRun_Failing(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "wrong.yaml")
	scenario := `name: wrong_expectation
merchant:
  account_id: merchant-001
  device_id: m-dev-1
  signing_key_id: merchant-key
payer:
  account_id: payer-001
  device_id: p-dev-1
  signing_key_id: payer-key
steps:
  - intent: { amount_cents: 560, currency: CNY }
    expect: policy_denied
`
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))

	out, _, err := execute(t, testOptions(), "", "scenario", "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "FAIL wrong_expectation")
	assert.Contains(t, out, "expected policy_denied, got ok")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestScenarioRun_InvalidFile(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nsteps: []\nunknown_key: 1\n"), 0o644))

	out, _, err := execute(t, testOptions(), "", "scenario", "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E011]")
}

func TestScenarioRun_RequiresFile(t *testing.T) {
	cleanEnv(t)

	_, _, err := execute(t, testOptions(), "", "scenario", "run")
	require.Error(t, err)
}
