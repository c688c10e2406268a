package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".researchctl", "state.yaml")

	rec, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, rec, "missing file is not an error")

	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	want := NewRecord("development", []string{"docker-compose.yml", "docker-compose.dev.yml"}, now)
	_, err = uuid.Parse(want.RunID)
	require.NoError(t, err)

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Overlays, got.Overlays)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))

	require.NoError(t, Clear(path))
	require.NoError(t, Clear(path), "clearing twice is fine")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("overlays: {bad"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
