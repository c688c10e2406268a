package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPlaceholders = []string{"your_key_here", "changeme"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestEnsureConfig_CreatesFromTemplate(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, ".env.example")
	target := filepath.Join(dir, ".env")
	writeFile(t, template, "OPENAI_API_KEY=your_key_here\nAPI_PORT=8000\n")

	state, err := EnsureConfig(template, target)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, state)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "OPENAI_API_KEY=your_key_here\nAPI_PORT=8000\n", string(got))
}

func TestEnsureConfig_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, ".env.example")
	target := filepath.Join(dir, ".env")
	writeFile(t, template, "OPENAI_API_KEY=your_key_here\n")

	_, err := EnsureConfig(template, target)
	require.NoError(t, err)

	// Operator edits the file, then the template changes too.
	writeFile(t, target, "OPENAI_API_KEY=sk-real\n")
	writeFile(t, template, "OPENAI_API_KEY=your_key_here\nNEW=1\n")

	state, err := EnsureConfig(template, target)
	require.NoError(t, err)
	assert.Equal(t, StateExisting, state)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "OPENAI_API_KEY=sk-real\n", string(got))
}

func TestEnsureConfig_ExistingTargetWithoutTemplate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, ".env")
	writeFile(t, target, "OPENAI_API_KEY=sk-real\n")

	state, err := EnsureConfig(filepath.Join(dir, "missing.example"), target)
	require.NoError(t, err)
	assert.Equal(t, StateExisting, state)
}

func TestEnsureConfig_TemplateMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := EnsureConfig(filepath.Join(dir, ".env.example"), filepath.Join(dir, ".env"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateMissing))

	_, statErr := os.Stat(filepath.Join(dir, ".env"))
	assert.True(t, os.IsNotExist(statErr), "no target file is created on failure")
}

func TestEnsureConfig_FailedCopyLeavesNoTarget(t *testing.T) {
	dir := t.TempDir()
	// A directory opens fine but cannot be read as a file.
	template := filepath.Join(dir, "template.d")
	require.NoError(t, os.Mkdir(template, 0o755))
	target := filepath.Join(dir, ".env")

	_, err := EnsureConfig(template, target)
	require.Error(t, err)
	assert.NoFileExists(t, target)

	require.NoError(t, os.Remove(template))
	require.NoError(t, os.WriteFile(template, []byte("OPENAI_API_KEY=x\n"), 0o644))
	state, err := EnsureConfig(template, target)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, state, "a retry is not mistaken for an existing config")
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "configured", content: "OPENAI_API_KEY=sk-abc123\n", want: true},
		{name: "placeholder", content: "OPENAI_API_KEY=your_key_here\n", want: false},
		{name: "generic placeholder shape", content: "OPENAI_API_KEY=your_openai_api_key_here\n", want: false},
		{name: "empty", content: "OPENAI_API_KEY=\n", want: false},
		{name: "missing", content: "OTHER=1\n", want: false},
		{name: "quoted value", content: "OPENAI_API_KEY=\"sk-quoted\"\n", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".env")
			writeFile(t, path, tt.content)

			ok, err := ValidateRequired(path, "OPENAI_API_KEY", testPlaceholders)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEnv_Validate(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "OPENAI_API_KEY=your_key_here\nSERPER_API_KEY=\n")

	env, err := LoadEnv(path, testPlaceholders)
	require.NoError(t, err)

	warnings := env.Validate([]string{"OPENAI_API_KEY", "EXTRA_KEY"}, []string{"SERPER_API_KEY"})
	require.Len(t, warnings, 2)
	assert.Equal(t, "OPENAI_API_KEY", warnings[0].Key)
	assert.Contains(t, warnings[0].Reason, "placeholder")
	assert.Equal(t, "EXTRA_KEY", warnings[1].Key)
	assert.Equal(t, "not set", warnings[1].Reason)
	assert.Contains(t, warnings[0].Remedy(), "set OPENAI_API_KEY")
}

func TestEnv_DefaultsAndExpand(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "API_PORT=9000\nFRONTEND_PORT=not-a-port\nDEBUG=true\nLOG_LEVEL=debug\n")

	env, err := LoadEnv(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, env.APIPort())
	assert.Equal(t, DefaultFrontendPort, env.FrontendPort(), "invalid port falls back to default")
	assert.Equal(t, DefaultAPIHost, env.APIHost())
	assert.Equal(t, DefaultCacheBackend, env.CacheBackend())
	assert.Equal(t, "DEBUG", env.LogLevel())
	assert.True(t, env.Debug())
	assert.Equal(t, "http://localhost:9000/health", env.Expand("http://localhost:${API_PORT}/health"))
	assert.Equal(t, "http://localhost:8501/", env.Expand("http://localhost:${FRONTEND_PORT}/"))

	def := DefaultEnv()
	assert.Equal(t, "http://localhost:8000", def.Expand("http://localhost:${API_PORT}"))
	assert.False(t, def.Debug())
}
