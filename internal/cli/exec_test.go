package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCommand_Echo(t *testing.T) {
	out, err := execute(t, "exec", "--config", writeConfig(t), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecCommand_FailureExitCode(t *testing.T) {
	out, err := execute(t, "exec", "--config", writeConfig(t), "fail")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "About to fail.")
	assert.Contains(t, out, "Error: command failed on purpose")
}

func TestExecCommand_PersistsBetweenRuns(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "exec", "--config", cfg, "role:create ROLE_ADMIN --description 'Administrators'")
	require.NoError(t, err)

	out, err := execute(t, "exec", "--config", cfg, "role:list")
	require.NoError(t, err)
	assert.Contains(t, out, "ROLE_ADMIN: Administrators")

	out, err = execute(t, "exec", "--reset", "--config", cfg, "role:list")
	require.NoError(t, err)
	assert.Contains(t, out, "No roles found.")
}

func TestExecCommand_JSON(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "exec", "--format", "json", "--config", cfg, "echo OK")
	require.NoError(t, err)

	var ok struct {
		Status string     `json:"status"`
		Data   ExecResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ok))
	assert.Equal(t, "ok", ok.Status)
	assert.Equal(t, ExecResult{Line: "echo OK", Output: "OK\n", OK: true}, ok.Data)

	out, err = execute(t, "exec", "--format", "json", "--config", cfg, "fail")
	require.Error(t, err)

	var failed CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &failed))
	assert.Equal(t, "error", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "E_COMMAND_FAILED", failed.Error.Code)
}

func TestExecCommand_RequiresLine(t *testing.T) {
	_, err := execute(t, "exec", "--config", writeConfig(t))
	require.Error(t, err)
}
