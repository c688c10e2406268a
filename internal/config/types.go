package config

import (
	"path/filepath"
	"time"
)

// Config is the top-level configuration structure for researchctl.
type Config struct {
	// Project is the compose project name passed with -p.
	Project string `yaml:"project"`
	// NamePrefix identifies containers belonging to the application during the sweep.
	NamePrefix string `yaml:"namePrefix"`

	ComposeCommand []string `yaml:"composeCommand,omitempty"` // e.g. ["docker", "compose"]
	DockerCommand  string   `yaml:"dockerCommand,omitempty"`  // e.g. "docker" or "podman"

	Overlays    OverlayConfig `yaml:"overlays"`
	Env         EnvConfig     `yaml:"env"`
	Directories []string      `yaml:"directories,omitempty"`
	ReportsDir  string        `yaml:"reportsDir,omitempty"` // archived by stop --archive
	ArchiveDir  string        `yaml:"archiveDir,omitempty"`
	Health      HealthConfig  `yaml:"health"`
	Services    []string      `yaml:"services,omitempty"` // services expected in status output
	Endpoints   []Endpoint    `yaml:"endpoints,omitempty"`
}

// OverlayConfig names the compose files that make up each overlay.
type OverlayConfig struct {
	Base string `yaml:"base"`
	Dev  string `yaml:"dev"`
}

// EnvConfig describes the runtime .env file and the keys the application needs.
type EnvConfig struct {
	Template     string   `yaml:"template"`
	Target       string   `yaml:"target"`
	RequiredKeys []string `yaml:"requiredKeys,omitempty"`
	OptionalKeys []string `yaml:"optionalKeys,omitempty"`
	Placeholders []string `yaml:"placeholders,omitempty"`
}

// HealthConfig controls the post-start health wait.
type HealthConfig struct {
	Interval     time.Duration  `yaml:"interval"`
	MaxAttempts  int            `yaml:"maxAttempts"`
	ProbeTimeout time.Duration  `yaml:"probeTimeout"`
	Targets      []TargetConfig `yaml:"targets,omitempty"`
}

// TargetKind selects how a health target is probed.
type TargetKind string

const (
	TargetKindHTTP TargetKind = "http"
	TargetKindTCP  TargetKind = "tcp"
)

// TargetConfig defines one health check target. Address may reference
// ${API_PORT} style variables that are expanded from the runtime .env file.
type TargetConfig struct {
	Name    string     `yaml:"name"`
	Kind    TargetKind `yaml:"kind"`
	Address string     `yaml:"address"`
	// ExpectStatus lists accepted HTTP status codes. Empty means any 2xx or 3xx.
	ExpectStatus []int `yaml:"expectStatus,omitempty"`
}

// Endpoint is an access URL shown to the operator in status output.
type Endpoint struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Runtime is the resolved configuration threaded through every component:
// the loaded Config plus the invocation root all relative paths hang off.
type Runtime struct {
	Root   string
	Config Config
}

// NewRuntime binds a loaded Config to an invocation root.
func NewRuntime(root string, cfg Config) *Runtime {
	return &Runtime{Root: root, Config: cfg}
}

// Path resolves p against the invocation root unless it is already absolute.
func (r *Runtime) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Root, p)
}

// EnvTemplatePath is the absolute path of the .env template.
func (r *Runtime) EnvTemplatePath() string { return r.Path(r.Config.Env.Template) }

// EnvTargetPath is the absolute path of the runtime .env file.
func (r *Runtime) EnvTargetPath() string { return r.Path(r.Config.Env.Target) }

// DirectoryPaths returns the persistent directories as absolute paths.
func (r *Runtime) DirectoryPaths() []string {
	paths := make([]string, 0, len(r.Config.Directories))
	for _, d := range r.Config.Directories {
		paths = append(paths, r.Path(d))
	}
	return paths
}

// StateFilePath is where the active-mode record lives.
func (r *Runtime) StateFilePath() string {
	return filepath.Join(r.Root, projectConfigDir, stateFileName)
}
