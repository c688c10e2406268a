package compose

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"researchctl/internal/plan"
	"researchctl/pkg/logging"
)

const subsystem = "Compose"

// StartError reports a process group the runtime failed to start.
type StartError struct {
	Overlays   plan.Overlays
	Diagnostic string
	Err        error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start group [%s]: %v", strings.Join(e.Overlays.Files(), ", "), e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// StopError reports a running group the runtime failed to stop.
type StopError struct {
	Overlays   plan.Overlays
	Diagnostic string
	Err        error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("failed to stop group [%s]: %v", strings.Join(e.Overlays.Files(), ", "), e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

// GroupHandle describes a started process group.
type GroupHandle struct {
	Overlays   plan.Overlays
	Containers []Container
	StartedAt  time.Time
}

// GroupStatus is a snapshot of the containers under one overlay combination.
type GroupStatus struct {
	Overlays   plan.Overlays
	Containers []Container
}

// RunningCount returns how many containers are up.
func (s GroupStatus) RunningCount() int {
	n := 0
	for _, c := range s.Containers {
		if c.Running() {
			n++
		}
	}
	return n
}

// Controller issues start/stop/status operations for overlay combinations.
// It adds no locking of its own: concurrent invocations against the same
// project are serialized, or not, by the runtime.
type Controller struct {
	runtime Runtime
	root    string
	now     func() time.Time
}

// NewController creates a Controller. root is used to verify overlay files
// exist before the runtime is asked to use them.
func NewController(runtime Runtime, root string) *Controller {
	return &Controller{runtime: runtime, root: root, now: time.Now}
}

// Runtime returns the underlying runtime.
func (c *Controller) Runtime() Runtime { return c.runtime }

// StartOptions tunes Start.
type StartOptions struct {
	Build bool
}

// Start brings the group up. Repeated calls defer to the runtime's own
// recreate-if-changed behaviour.
func (c *Controller) Start(ctx context.Context, overlays plan.Overlays, opts StartOptions) (*GroupHandle, error) {
	if err := c.checkOverlayFiles(overlays); err != nil {
		return nil, &StartError{Overlays: overlays, Diagnostic: err.Error(), Err: err}
	}

	logging.Info(subsystem, "Starting group [%s]", overlays.Key())
	if err := c.runtime.Up(ctx, overlays.Files(), UpOptions{Build: opts.Build}); err != nil {
		return nil, &StartError{Overlays: overlays, Diagnostic: diagnostic(err), Err: err}
	}

	handle := &GroupHandle{Overlays: overlays, StartedAt: c.now()}
	containers, err := c.runtime.Ps(ctx, overlays.Files())
	if err != nil {
		// The group is up; a failed listing only costs us the handle details.
		logging.Warn(subsystem, "Group started but listing containers failed: %v", err)
	} else {
		handle.Containers = containers
	}
	return handle, nil
}

// Stop takes the group down.
func (c *Controller) Stop(ctx context.Context, overlays plan.Overlays) error {
	logging.Info(subsystem, "Stopping group [%s]", overlays.Key())
	if err := c.runtime.Down(ctx, overlays.Files(), DownOptions{RemoveOrphans: true}); err != nil {
		return &StopError{Overlays: overlays, Diagnostic: diagnostic(err), Err: err}
	}
	return nil
}

// Restart stops and then starts the group.
func (c *Controller) Restart(ctx context.Context, overlays plan.Overlays, opts StartOptions) (*GroupHandle, error) {
	if err := c.Stop(ctx, overlays); err != nil {
		return nil, err
	}
	return c.Start(ctx, overlays, opts)
}

// Status lists the group's containers.
func (c *Controller) Status(ctx context.Context, overlays plan.Overlays) (*GroupStatus, error) {
	containers, err := c.runtime.Ps(ctx, overlays.Files())
	if err != nil {
		return nil, fmt.Errorf("failed to query status of [%s]: %w", overlays.Key(), err)
	}
	return &GroupStatus{Overlays: overlays, Containers: containers}, nil
}

func (c *Controller) checkOverlayFiles(overlays plan.Overlays) error {
	if len(overlays) == 0 {
		return errors.New("no overlays to start")
	}
	for _, ov := range overlays {
		path := ov.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.root, path)
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("overlay %s file %s not found", ov.Name, path)
			}
			return fmt.Errorf("overlay %s file %s: %w", ov.Name, path, err)
		}
	}
	return nil
}
