// Package lifecycle sequences the components into the start and stop paths.
//
// Start runs bootstrap, provision, plan, start, health and report strictly in
// order; each step depends on the previous one and the first fatal error ends
// the sequence as a *PhaseError. Stop only fails when the container runtime
// cannot be invoked at all. Everything else it encounters is collected in the
// teardown report.
//
// The driver holds no locks. Two terminals running start and stop at the same
// time are serialized, or not, by the container runtime.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"researchctl/internal/bootstrap"
	"researchctl/internal/compose"
	"researchctl/internal/config"
	"researchctl/internal/health"
	"researchctl/internal/metrics"
	"researchctl/internal/plan"
	"researchctl/internal/state"
	"researchctl/internal/status"
	"researchctl/internal/teardown"
	"researchctl/pkg/logging"
)

const subsystem = "Lifecycle"

// Driver runs lifecycle commands against one invocation root.
type Driver struct {
	rt         *config.Runtime
	controller *compose.Controller
	metrics    *metrics.Recorder

	// MetricsFile, when set, receives the metrics textfile after each command.
	MetricsFile string

	now func() time.Time
}

// NewDriver creates a Driver. rec may be nil to disable metrics.
func NewDriver(rt *config.Runtime, runtime compose.Runtime, rec *metrics.Recorder) *Driver {
	return &Driver{
		rt:         rt,
		controller: compose.NewController(runtime, rt.Root),
		metrics:    rec,
		now:        time.Now,
	}
}

// StartOptions tunes Start. Zero Interval or MaxAttempts fall back to the
// configured health settings.
type StartOptions struct {
	Mode        string
	Build       bool
	SkipHealth  bool
	Interval    time.Duration
	MaxAttempts int
}

// StartResult describes a successful start.
type StartResult struct {
	ConfigState bootstrap.ConfigState
	Warnings    []bootstrap.ValidationWarning
	Mode        plan.Mode
	Overlays    plan.Overlays
	Group       *compose.GroupHandle
	Health      *health.Result
	Snapshot    *status.Snapshot
	RunID       string
}

// StopOptions tunes Stop.
type StopOptions struct {
	Clean   bool
	Archive bool
}

// Start brings the application up in the requested mode.
func (d *Driver) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	defer d.flushMetrics()
	res := &StartResult{}

	env, err := d.bootstrap(res)
	if err != nil {
		return nil, d.fail(err)
	}

	if err := d.provision(); err != nil {
		return nil, d.fail(err)
	}

	if err := d.plan(opts.Mode, res); err != nil {
		return nil, d.fail(err)
	}
	if res.Mode == plan.ModeProduction && env.Debug() {
		logging.Warn(subsystem, "DEBUG is enabled in %s; production runs should set DEBUG=false", d.rt.Config.Env.Target)
	}

	if err := d.start(ctx, opts, res); err != nil {
		return nil, d.fail(err)
	}

	if opts.SkipHealth {
		logging.Warn(subsystem, "Skipping health checks")
	} else if err := d.awaitHealthy(ctx, env, opts, res); err != nil {
		return nil, d.fail(err)
	}

	d.timed(PhaseReport, func() {
		res.Snapshot = d.reporter(env).Report(ctx, res.Overlays)
	})

	if d.metrics != nil {
		d.metrics.MarkSuccess("start", d.now())
	}
	logging.Info(subsystem, "Started %s mode [%s]", res.Mode, res.Overlays.Key())
	return res, nil
}

func (d *Driver) bootstrap(res *StartResult) (*bootstrap.Env, error) {
	var env *bootstrap.Env
	var err error
	d.timed(PhaseBootstrap, func() {
		cfg := d.rt.Config.Env
		target := d.rt.EnvTargetPath()

		res.ConfigState, err = bootstrap.EnsureConfig(d.rt.EnvTemplatePath(), target)
		if err != nil {
			remedy := ""
			if errors.Is(err, bootstrap.ErrTemplateMissing) {
				remedy = fmt.Sprintf("restore %s or create %s by hand", cfg.Template, cfg.Target)
			}
			err = &PhaseError{Phase: PhaseBootstrap, Remedy: remedy, Err: err}
			return
		}
		if res.ConfigState == bootstrap.StateCreated {
			logging.Warn("Bootstrap", "Created %s from %s; edit it to set real credentials", cfg.Target, cfg.Template)
		}

		env, err = bootstrap.LoadEnv(target, cfg.Placeholders)
		if err != nil {
			err = &PhaseError{Phase: PhaseBootstrap, Remedy: fmt.Sprintf("fix the syntax of %s", cfg.Target), Err: err}
			return
		}

		res.Warnings = env.Validate(cfg.RequiredKeys, cfg.OptionalKeys)
		for _, w := range res.Warnings {
			logging.Warn("Bootstrap", "%s (%s)", w, w.Remedy())
		}
		logging.Info("Bootstrap", "Application settings: LOG_LEVEL=%s DEBUG=%t CACHE_BACKEND=%s",
			env.LogLevel(), env.Debug(), env.CacheBackend())
	})
	return env, err
}

func (d *Driver) provision() error {
	var err error
	d.timed(PhaseProvision, func() {
		if perr := bootstrap.EnsureDirectories(d.rt.DirectoryPaths()); perr != nil {
			remedy := "check permissions and free space under " + d.rt.Root
			var pe *bootstrap.ProvisionError
			if errors.As(perr, &pe) {
				remedy = "check permissions and free space for " + pe.Path
			}
			err = &PhaseError{Phase: PhaseProvision, Remedy: remedy, Err: perr}
		}
	})
	return err
}

func (d *Driver) plan(mode string, res *StartResult) error {
	var err error
	d.timed(PhasePlan, func() {
		res.Mode, err = plan.ParseMode(mode)
		if err == nil {
			res.Overlays, err = plan.Plan(res.Mode, d.rt.Config.Overlays)
		}
		if err != nil {
			err = &PhaseError{Phase: PhasePlan, Remedy: "use one of: dev, prod", Err: err}
		}
	})
	return err
}

func (d *Driver) start(ctx context.Context, opts StartOptions, res *StartResult) error {
	var err error
	d.timed(PhaseStart, func() {
		if cerr := d.controller.Runtime().Check(ctx); cerr != nil {
			err = &PhaseError{Phase: PhaseStart, Remedy: runtimeRemedy(d.rt.Config), Err: cerr}
			return
		}

		res.Group, err = d.controller.Start(ctx, res.Overlays, compose.StartOptions{Build: opts.Build})
		if err != nil {
			remedy := "check the compose output above"
			var se *compose.StartError
			if errors.As(err, &se) && se.Diagnostic != "" {
				remedy = "runtime said: " + firstLine(se.Diagnostic)
			}
			err = &PhaseError{Phase: PhaseStart, Remedy: remedy, Err: err}
			return
		}

		rec := state.NewRecord(string(res.Mode), res.Overlays.Files(), d.now())
		res.RunID = rec.RunID
		if serr := state.Save(d.rt.StateFilePath(), rec); serr != nil {
			logging.Warn(subsystem, "Could not record active mode, stop will probe every mode: %v", serr)
		}
	})
	return err
}

func (d *Driver) awaitHealthy(ctx context.Context, env *bootstrap.Env, opts StartOptions, res *StartResult) error {
	hc := d.rt.Config.Health
	interval, attempts := hc.Interval, hc.MaxAttempts
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	if opts.MaxAttempts > 0 {
		attempts = opts.MaxAttempts
	}

	monitor := health.NewMonitor(interval, attempts)
	if d.metrics != nil {
		monitor.OnProbe = d.metrics.ObserveProbe
	}
	targets := health.TargetsFromConfig(hc.Targets, hc.ProbeTimeout, env.Expand)

	var err error
	d.timed(PhaseHealth, func() {
		res.Health, err = monitor.AwaitHealthy(ctx, targets)
	})
	if err == nil {
		return nil
	}

	remedy := ""
	var te *health.TimeoutError
	if errors.As(err, &te) {
		remedy = fmt.Sprintf("inspect the %s logs with '%s -p %s logs %s'",
			te.Target, strings.Join(d.rt.Config.ComposeCommand, " "), compose.ProjectName(d.rt.Config.Project, res.Overlays.Files()), te.Target)
	}
	return &PhaseError{Phase: PhaseHealth, Remedy: remedy, Err: err}
}

// Stop tears down every group the application may have running. It fails
// only when the container runtime cannot be invoked; per-group problems are
// in the returned report.
func (d *Driver) Stop(ctx context.Context, opts StopOptions) (*teardown.Report, error) {
	defer d.flushMetrics()
	start := d.now()
	defer func() { d.observe(PhaseTeardown, d.now().Sub(start)) }()

	if err := d.controller.Runtime().Check(ctx); err != nil {
		return nil, d.fail(&PhaseError{Phase: PhaseTeardown, Remedy: runtimeRemedy(d.rt.Config), Err: err})
	}

	if opts.Archive {
		d.archive()
	}

	combos := plan.KnownCombinations(d.rt.Config.Overlays)
	rec, err := state.Load(d.rt.StateFilePath())
	if err != nil {
		logging.Warn(subsystem, "Ignoring unreadable state file: %v", err)
	} else if rec != nil {
		logging.Debug(subsystem, "Last start was %s mode (run %s)", rec.Mode, rec.RunID)
		combos = teardown.Prioritize(combos, rec.Overlays)
	}

	coordinator := teardown.NewCoordinator(d.controller, d.rt.Config.NamePrefix)
	if d.metrics != nil {
		coordinator.OnRemove = d.metrics.ObserveRemoval
	}
	report := coordinator.StopAll(ctx, combos)
	if opts.Clean {
		coordinator.Reclaim(ctx, report)
	}

	if err := state.Clear(d.rt.StateFilePath()); err != nil {
		logging.Warn(subsystem, "Could not clear state file: %v", err)
	}
	if d.metrics != nil {
		d.metrics.MarkSuccess("stop", d.now())
	}
	return report, nil
}

func (d *Driver) archive() {
	if d.rt.Config.ReportsDir == "" {
		return
	}
	src := d.rt.Path(d.rt.Config.ReportsDir)
	dest := d.rt.Path(d.rt.Config.ArchiveDir)
	if _, err := bootstrap.ArchiveDirectory(src, dest, d.now()); err != nil {
		logging.Error(subsystem, err, "Archiving %s failed, continuing with teardown", src)
	}
}

// Restart stops the requested mode's group and starts it again.
func (d *Driver) Restart(ctx context.Context, opts StartOptions) (*StartResult, error) {
	mode, err := plan.ParseMode(opts.Mode)
	if err != nil {
		return nil, d.fail(&PhaseError{Phase: PhasePlan, Remedy: "use one of: dev, prod", Err: err})
	}
	overlays, err := plan.Plan(mode, d.rt.Config.Overlays)
	if err != nil {
		return nil, d.fail(&PhaseError{Phase: PhasePlan, Err: err})
	}

	if err := d.controller.Runtime().Check(ctx); err != nil {
		return nil, d.fail(&PhaseError{Phase: PhaseTeardown, Remedy: runtimeRemedy(d.rt.Config), Err: err})
	}
	if err := d.controller.Stop(ctx, overlays); err != nil {
		// Start recreates whatever survived, so a failed stop is not fatal.
		logging.Warn(subsystem, "Stopping [%s] before restart failed: %v", overlays.Key(), err)
	}
	return d.Start(ctx, opts)
}

// Status reports the group of the given mode. When mode is empty the mode
// recorded by the last start is used, falling back to production.
func (d *Driver) Status(ctx context.Context, mode string) (*status.Snapshot, error) {
	if mode == "" {
		if rec, err := state.Load(d.rt.StateFilePath()); err == nil && rec != nil {
			mode = rec.Mode
		}
	}
	m, err := plan.ParseMode(mode)
	if err != nil {
		return nil, &PhaseError{Phase: PhasePlan, Remedy: "use one of: dev, prod", Err: err}
	}
	overlays, err := plan.Plan(m, d.rt.Config.Overlays)
	if err != nil {
		return nil, &PhaseError{Phase: PhasePlan, Err: err}
	}
	return d.reporter(d.loadEnv()).Report(ctx, overlays), nil
}

// loadEnv reads the runtime .env file for endpoint expansion, falling back
// to defaults when it does not exist yet.
func (d *Driver) loadEnv() *bootstrap.Env {
	env, err := bootstrap.LoadEnv(d.rt.EnvTargetPath(), d.rt.Config.Env.Placeholders)
	if err != nil {
		logging.Debug(subsystem, "Using default ports: %v", err)
		return bootstrap.DefaultEnv()
	}
	return env
}

func (d *Driver) reporter(env *bootstrap.Env) *status.Reporter {
	endpoints := status.ExpandEndpoints(d.rt.Config.Endpoints, env.Expand)
	return status.NewReporter(d.controller, d.rt.Config.Services, endpoints)
}

func (d *Driver) timed(phase Phase, fn func()) {
	start := d.now()
	fn()
	d.observe(phase, d.now().Sub(start))
}

func (d *Driver) observe(phase Phase, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.ObservePhase(string(phase), elapsed)
	}
}

func (d *Driver) fail(err error) error {
	var pe *PhaseError
	if errors.As(err, &pe) {
		logging.ErrorPhase(subsystem, string(pe.Phase), pe.Err, "Phase %s failed", pe.Phase)
		if pe.Remedy != "" {
			logging.Info(subsystem, "Remedy: %s", pe.Remedy)
		}
	}
	return err
}

func (d *Driver) flushMetrics() {
	if d.metrics == nil {
		return
	}
	if err := d.metrics.WriteTextfile(d.MetricsFile); err != nil {
		logging.Warn(subsystem, "Could not write metrics: %v", err)
	}
}

func runtimeRemedy(cfg config.Config) string {
	return fmt.Sprintf("install %s and make sure its daemon is running", strings.Join(cfg.ComposeCommand, " "))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
