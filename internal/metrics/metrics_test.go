package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()
	r.ObserveProbe("api", 1, errors.New("refused"))
	r.ObserveProbe("api", 2, errors.New("refused"))
	r.ObserveProbe("api", 3, nil)
	r.ObserveRemoval("orphan", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HealthProbes.WithLabelValues("api", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HealthProbes.WithLabelValues("api", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.TeardownContainers.WithLabelValues("orphan")))

	probes, err := testutil.GatherAndCount(r.Gatherer(), "researchctl_health_probes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, probes, "one series per target and result")
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.ObservePhase("health", 1500*time.Millisecond)
	r.MarkSuccess("start", time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "researchctl.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `researchctl_phase_duration_seconds{phase="health"} 1.5`)
	assert.Contains(t, string(data), `researchctl_last_success_timestamp_seconds{command="start"}`)

	assert.NoError(t, r.WriteTextfile(""), "empty path is a no-op")
}
