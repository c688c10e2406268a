package teardown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchctl/internal/compose"
	"researchctl/internal/compose/composetest"
	"researchctl/internal/config"
	"researchctl/internal/plan"
)

var combos = plan.KnownCombinations(config.OverlayConfig{Base: "docker-compose.yml", Dev: "docker-compose.dev.yml"})

func newCoordinator(fake *composetest.Fake) *Coordinator {
	return NewCoordinator(compose.NewController(fake, "/unused"), "deep-researcher")
}

func TestStopAll_NothingRunning(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	report := newCoordinator(fake).StopAll(context.Background(), combos)

	assert.Equal(t, 0, report.StoppedCount())
	assert.Empty(t, report.Stopped)
	assert.Len(t, report.NotRunning, 2)
	assert.NoError(t, report.Errors())
	assert.NotContains(t, fake.Calls, "down docker-compose.yml orphans=true", "no stop issued for an idle combination")
}

func TestStopAll_ProductionGroupAndOrphan(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	fake.AddGroup([]string{"docker-compose.yml"})
	fake.AddStray("orphan1", "deep-researcher-manual", "running")
	fake.AddStray("other", "unrelated-app", "running")

	var removed = map[string]int{}
	c := newCoordinator(fake)
	c.OnRemove = func(kind string, n int) { removed[kind] += n }

	report := c.StopAll(context.Background(), combos)
	c.Reclaim(context.Background(), report)

	require.Len(t, report.Stopped, 1)
	assert.Equal(t, "base", report.Stopped[0].Overlays.Key())
	assert.Len(t, report.Stopped[0].Containers, 2)
	require.Len(t, report.Orphans, 1)
	assert.Equal(t, "orphan1", report.Orphans[0].ID)
	assert.True(t, report.Reclaimed)
	assert.Equal(t, 1, fake.Pruned)
	assert.Equal(t, 3, report.StoppedCount())
	assert.Equal(t, map[string]int{KindStructured: 2, KindOrphan: 1}, removed)
	assert.NoError(t, report.Errors())

	assert.Len(t, fake.Strays, 1, "containers outside the prefix are left alone")
}

func TestStopAll_BothGroupsPresent(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	fake.AddGroup([]string{"docker-compose.yml"})
	fake.AddGroup([]string{"docker-compose.yml", "docker-compose.dev.yml"})

	report := newCoordinator(fake).StopAll(context.Background(), combos)
	assert.Len(t, report.Stopped, 2)
	assert.Empty(t, report.Orphans)
	assert.Empty(t, fake.Groups)
}

func TestStopAll_ExitedGroupIsStillTakenDown(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	prod := []string{"docker-compose.yml"}
	fake.AddGroup(prod)
	fake.SetState(prod, "exited")

	report := newCoordinator(fake).StopAll(context.Background(), combos)

	require.Len(t, report.Stopped, 1)
	assert.Equal(t, "base", report.Stopped[0].Overlays.Key())
	assert.Len(t, report.Stopped[0].Containers, 2)
	assert.Contains(t, fake.Calls, "down docker-compose.yml orphans=true")
	assert.Empty(t, report.Orphans, "compose down removed the group, nothing left for the sweep")
	assert.Empty(t, fake.Groups)
}

func TestStopAll_GroupsAreIsolatedPerCombination(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	fake.AddGroup([]string{"docker-compose.yml", "docker-compose.dev.yml"})

	report := newCoordinator(fake).StopAll(context.Background(), combos)

	require.Len(t, report.Stopped, 1)
	assert.Equal(t, "base+dev", report.Stopped[0].Overlays.Key())
	require.Len(t, report.NotRunning, 1)
	assert.Equal(t, "base", report.NotRunning[0].Key())
	assert.NotContains(t, fake.Calls, "down docker-compose.yml orphans=true", "the production project owns none of the dev containers")
	assert.Contains(t, fake.Calls, "down docker-compose.yml,docker-compose.dev.yml orphans=true")
	assert.Equal(t, "deep-researcher-dev-api-1", report.Stopped[0].Containers[0].Name)
}

func TestStopAll_StopErrorFallsBackToSweep(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	fake.AddGroup([]string{"docker-compose.yml"})
	fake.DownErr["docker-compose.yml"] = errors.New("daemon busy")

	report := newCoordinator(fake).StopAll(context.Background(), combos)

	require.Len(t, report.StopErrors, 1)
	var stopErr *compose.StopError
	assert.True(t, errors.As(report.StopErrors[0], &stopErr))
	assert.Len(t, report.Orphans, 2, "the sweep removes what the structured pass could not")
	assert.Empty(t, fake.Groups)
	assert.Error(t, report.Errors())
}

func TestStopAll_SweepListFailure(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	fake.ListErr = errors.New("cannot list")

	report := newCoordinator(fake).StopAll(context.Background(), combos)
	assert.Error(t, report.SweepErr)
	assert.Empty(t, report.Orphans)
}

func TestReclaim_Failure(t *testing.T) {
	fake := composetest.NewFake("deep-researcher")
	fake.PruneErr = errors.New("prune failed")
	c := newCoordinator(fake)

	report := c.StopAll(context.Background(), combos)
	c.Reclaim(context.Background(), report)
	assert.False(t, report.Reclaimed)
	assert.Error(t, report.ReclaimErr)
}

func TestPrioritize(t *testing.T) {
	got := Prioritize(combos, []string{"docker-compose.yml", "docker-compose.dev.yml"})
	require.Len(t, got, 2)
	assert.Equal(t, "base+dev", got[0].Key())
	assert.Equal(t, "base", got[1].Key())

	assert.Equal(t, combos, Prioritize(combos, nil))

	unknown := Prioritize(combos, []string{"compose.legacy.yml"})
	require.Len(t, unknown, 3)
	assert.Equal(t, []string{"compose.legacy.yml"}, unknown[0].Files())
}
