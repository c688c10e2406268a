// Package teardown stops the application's containers whichever mode started
// them.
//
// The structured pass asks the runtime, for every known overlay combination,
// whether any of its containers exist, running or exited, and takes that
// group down. The sweep then
// force-removes every container still matching the naming prefix, which
// covers groups started by hand, by an older overlay set, or whose structured
// stop failed. Nothing running is success, not an error.
package teardown

import (
	"context"
	"errors"
	"fmt"

	"researchctl/internal/compose"
	"researchctl/internal/plan"
	"researchctl/pkg/logging"
)

const subsystem = "Teardown"

// Removal kinds passed to the OnRemove hook.
const (
	KindStructured = "structured"
	KindOrphan     = "orphan"
)

// StoppedGroup is a combination the structured pass took down.
type StoppedGroup struct {
	Overlays   plan.Overlays
	Containers []compose.Container
}

// Report summarizes a teardown.
type Report struct {
	Stopped    []StoppedGroup
	NotRunning []plan.Overlays
	Orphans    []compose.Container
	StopErrors []error
	SweepErr   error
	Reclaimed  bool
	ReclaimErr error
}

// StoppedCount is the number of containers stopped by either pass.
func (r *Report) StoppedCount() int {
	n := len(r.Orphans)
	for _, g := range r.Stopped {
		n += len(g.Containers)
	}
	return n
}

// Errors joins every non-fatal problem encountered, or nil.
func (r *Report) Errors() error {
	errs := append([]error{}, r.StopErrors...)
	errs = append(errs, r.SweepErr, r.ReclaimErr)
	return errors.Join(errs...)
}

// Coordinator runs teardowns.
type Coordinator struct {
	controller *compose.Controller
	prefix     string

	// OnRemove observes how many containers each pass removed.
	OnRemove func(kind string, n int)
}

// NewCoordinator creates a Coordinator sweeping containers named with prefix.
func NewCoordinator(controller *compose.Controller, prefix string) *Coordinator {
	return &Coordinator{controller: controller, prefix: prefix}
}

// StopAll runs the structured pass over combos, then the sweep. It never
// returns an error; problems are collected in the report.
func (c *Coordinator) StopAll(ctx context.Context, combos []plan.Overlays) *Report {
	report := &Report{}

	for _, combo := range combos {
		c.stopCombination(ctx, combo, report)
	}
	c.sweep(ctx, report)

	logging.Info(subsystem, "Teardown finished: %d group(s) stopped, %d orphan(s) removed", len(report.Stopped), len(report.Orphans))
	return report
}

func (c *Coordinator) stopCombination(ctx context.Context, combo plan.Overlays, report *Report) {
	// Exited containers still hold the group's network and names, so any
	// listed container counts, not only running ones.
	var present []compose.Container
	status, err := c.controller.Status(ctx, combo)
	if err != nil {
		// Down is idempotent, so an unknown state is handled by trying anyway.
		logging.Warn(subsystem, "Could not query [%s], stopping anyway: %v", combo.Key(), err)
	} else if len(status.Containers) == 0 {
		logging.Debug(subsystem, "Nothing present under [%s]", combo.Key())
		report.NotRunning = append(report.NotRunning, combo)
		return
	} else {
		present = status.Containers
		logging.Debug(subsystem, "[%s] has %d container(s), %d running", combo.Key(), len(present), status.RunningCount())
	}

	if err := c.controller.Stop(ctx, combo); err != nil {
		logging.Error(subsystem, err, "Stopping [%s] failed, the sweep will retry", combo.Key())
		report.StopErrors = append(report.StopErrors, err)
		return
	}

	report.Stopped = append(report.Stopped, StoppedGroup{Overlays: combo, Containers: present})
	if c.OnRemove != nil {
		c.OnRemove(KindStructured, len(present))
	}
	logging.Info(subsystem, "Stopped [%s] (%d container(s))", combo.Key(), len(present))
}

func (c *Coordinator) sweep(ctx context.Context, report *Report) {
	runtime := c.controller.Runtime()
	leftovers, err := runtime.ListByPrefix(ctx, c.prefix)
	if err != nil {
		report.SweepErr = fmt.Errorf("failed to list containers with prefix %q: %w", c.prefix, err)
		logging.Error(subsystem, err, "Sweep could not list containers")
		return
	}
	if len(leftovers) == 0 {
		return
	}

	ids := make([]string, 0, len(leftovers))
	for _, ct := range leftovers {
		logging.Warn(subsystem, "Force-removing orphaned container %s (%s, %s)", ct.Name, ct.ShortID(), ct.State)
		ids = append(ids, ct.ID)
	}
	if err := runtime.ForceRemove(ctx, ids); err != nil {
		report.SweepErr = fmt.Errorf("failed to remove orphaned containers: %w", err)
		logging.Error(subsystem, err, "Sweep could not remove orphaned containers")
		return
	}
	report.Orphans = leftovers
	if c.OnRemove != nil {
		c.OnRemove(KindOrphan, len(leftovers))
	}
}

// Reclaim prunes images and build cache. Only ever called on explicit request.
func (c *Coordinator) Reclaim(ctx context.Context, report *Report) {
	logging.Info(subsystem, "Reclaiming images and build cache")
	if err := c.controller.Runtime().Prune(ctx); err != nil {
		report.ReclaimErr = fmt.Errorf("resource reclamation failed: %w", err)
		logging.Error(subsystem, err, "Resource reclamation failed")
		return
	}
	report.Reclaimed = true
}

// Prioritize moves the combination whose files equal first to the front,
// keeping the relative order of the rest. Unknown file lists are prepended
// so a group started by a differently configured run is still stopped.
func Prioritize(combos []plan.Overlays, first []string) []plan.Overlays {
	if len(first) == 0 {
		return combos
	}
	out := make([]plan.Overlays, 0, len(combos)+1)
	var rest []plan.Overlays
	found := false
	for _, c := range combos {
		if equalFiles(c.Files(), first) {
			out = append(out, c)
			found = true
			continue
		}
		rest = append(rest, c)
	}
	if !found {
		recorded := make(plan.Overlays, len(first))
		for i, f := range first {
			recorded[i] = plan.Overlay{Name: fmt.Sprintf("recorded%d", i), File: f}
		}
		out = append(out, recorded)
	}
	return append(out, rest...)
}

func equalFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
