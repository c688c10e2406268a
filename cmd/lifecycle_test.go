package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchctl/internal/compose"
	"researchctl/internal/compose/composetest"
	"researchctl/internal/config"
	"researchctl/internal/health"
	"researchctl/internal/tui/design"
)

func withFakeRuntime(t *testing.T) *composetest.Fake {
	t.Helper()
	design.Plain()
	fake := composetest.NewFake("deep-researcher")
	orig := newRuntime
	newRuntime = func(*config.Runtime) compose.Runtime { return fake }
	t.Cleanup(func() { newRuntime = orig })
	return fake
}

func projectRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range map[string]string{
		"docker-compose.yml":     "services: {}\n",
		"docker-compose.dev.yml": "services: {}\n",
		".env.example":           "OPENAI_API_KEY=your_key_here\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeWithLogs(t, args...)
	return out, err
}

// executeWithLogs also returns what was logged to stderr.
func executeWithLogs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestStartThenStop(t *testing.T) {
	fake := withFakeRuntime(t)
	root := projectRoot(t)

	out, err := execute(t, "start", "dev", "--skip-health", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Started in development mode")
	assert.Contains(t, out, "OPENAI_API_KEY")
	assert.Contains(t, out, "http://localhost:8501")
	assert.Contains(t, fake.Calls, "up docker-compose.yml,docker-compose.dev.yml build=false")

	fake.AddStray("feed", "deep-researcher-redis-1", "exited")
	out, err = execute(t, "stop", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped [base+dev]")
	assert.Contains(t, out, "Removed orphan deep-researcher-redis-1")
	assert.Zero(t, fake.Pruned)
}

// resetStartFlags clears the start flag values a previous Execute left behind.
func resetStartFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		startBuild, startSkipHealth = false, false
		startInterval, startMaxAttempts = 0, 0
	}
	reset()
	t.Cleanup(reset)
}

func TestStartHealthBudgetComesFromConfig(t *testing.T) {
	withFakeRuntime(t)
	resetStartFlags(t)
	root := projectRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".researchctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".researchctl", "config.yaml"), []byte(`health:
  interval: 10ms
  maxAttempts: 2
  targets:
    - name: api
      kind: tcp
      address: 127.0.0.1:1
`), 0o644))

	_, err := execute(t, "start", "--skip-health=false", "--root", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health failed")

	var te *health.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts, "config budget applies when no flag is given")
}

func TestStartHealthFlagsOverrideConfig(t *testing.T) {
	withFakeRuntime(t)
	resetStartFlags(t)
	root := projectRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".researchctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".researchctl", "config.yaml"), []byte(`health:
  interval: 10ms
  maxAttempts: 2
  targets:
    - name: api
      kind: tcp
      address: 127.0.0.1:1
`), 0o644))

	_, err := execute(t, "start", "--skip-health=false", "--max-attempts", "3", "--interval", "5ms", "--root", root)
	var te *health.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
}

func TestStartUnknownModeFails(t *testing.T) {
	fake := withFakeRuntime(t)

	_, err := execute(t, "start", "staging", "--skip-health", "--root", projectRoot(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan failed")
	for _, c := range fake.Calls {
		assert.NotContains(t, c, "up ")
	}
}

func TestStopNothingRunning(t *testing.T) {
	withFakeRuntime(t)

	out, err := execute(t, "stop", "--root", projectRoot(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing was running")
}

func TestStopRuntimeUnavailable(t *testing.T) {
	fake := withFakeRuntime(t)
	fake.CheckErr = compose.ErrRuntimeUnavailable

	_, err := execute(t, "stop", "--root", projectRoot(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, compose.ErrRuntimeUnavailable)
}

func TestStatusCommand(t *testing.T) {
	withFakeRuntime(t)

	out, err := execute(t, "status", "prod", "--root", projectRoot(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Services [base]")
	assert.Contains(t, out, "stopped")
}

func TestInvalidLogFormat(t *testing.T) {
	withFakeRuntime(t)

	_, err := execute(t, "status", "--log-format", "xml", "--root", projectRoot(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")

	// Reset the persistent flag for later tests.
	rootLogFormat = "text"
}

func TestLogLevelFlag(t *testing.T) {
	withFakeRuntime(t)
	resetStartFlags(t)
	t.Cleanup(func() { rootLogLevel, rootDebug = "info", false })

	_, logs, err := executeWithLogs(t, "start", "--skip-health", "--root", projectRoot(t))
	require.NoError(t, err)
	assert.Contains(t, logs, "Application settings")

	_, logs, err = executeWithLogs(t, "start", "--skip-health", "--log-level", "warn", "--root", projectRoot(t))
	require.NoError(t, err)
	assert.NotContains(t, logs, "Application settings")
	assert.Contains(t, logs, "Skipping health checks")

	_, logs, err = executeWithLogs(t, "stop", "--log-level", "error", "--debug", "--root", projectRoot(t))
	require.NoError(t, err)
	assert.Contains(t, logs, "level=DEBUG", "--debug wins over --log-level")
	assert.Contains(t, logs, "Nothing present under")
}
