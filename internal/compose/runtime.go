package compose

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrRuntimeUnavailable is returned when the container runtime binary cannot
// be invoked at all (missing binary, daemon down).
var ErrRuntimeUnavailable = errors.New("container runtime unavailable")

// Runtime is the capability set the orchestrator needs from the underlying
// process manager. DockerCompose is the production implementation.
type Runtime interface {
	// Check verifies the runtime can be invoked.
	Check(ctx context.Context) error
	// Up starts the services defined by files.
	Up(ctx context.Context, files []string, opts UpOptions) error
	// Down stops and removes the services defined by files.
	Down(ctx context.Context, files []string, opts DownOptions) error
	// Ps lists containers (running or not) belonging to files.
	Ps(ctx context.Context, files []string) ([]Container, error)
	// ListByPrefix lists every container whose name starts with prefix.
	ListByPrefix(ctx context.Context, prefix string) ([]Container, error)
	// ForceRemove kills and removes containers by ID.
	ForceRemove(ctx context.Context, ids []string) error
	// Prune reclaims dangling images and build cache.
	Prune(ctx context.Context) error
}

// UpOptions tunes Up.
type UpOptions struct {
	Build bool
}

// DownOptions tunes Down.
type DownOptions struct {
	RemoveOrphans bool
}

// Container is one managed process as reported by the runtime.
type Container struct {
	ID      string
	Name    string
	Service string
	State   string // "running", "exited", "created", ...
	Health  string // "healthy", "unhealthy", "starting" or ""
	Project string
}

// Running reports whether the container is up.
func (c Container) Running() bool {
	return strings.EqualFold(c.State, "running")
}

// ShortID returns the first 12 characters of the container ID.
func (c Container) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// CommandError carries the diagnostic output of a failed runtime invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("'%s' failed: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ". Stderr: " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// diagnostic extracts captured stderr from err when it is a CommandError.
func diagnostic(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return strings.TrimSpace(cmdErr.Stderr)
	}
	return ""
}

// ProjectName is the compose project a file combination runs under. The base
// file alone uses project; every overlay on top appends its suffix, so
// docker-compose.dev.yml over "deep-researcher" runs as "deep-researcher-dev".
// Different combinations never share containers.
func ProjectName(project string, files []string) string {
	name := project
	for i, f := range files {
		if i == 0 {
			continue
		}
		name += "-" + overlaySuffix(f)
	}
	return name
}

// overlaySuffix reduces an overlay file name to a project name fragment:
// "docker-compose.dev.yml" gives "dev".
func overlaySuffix(file string) string {
	base := strings.ToLower(filepath.Base(file))
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".yml"), ".yaml")
	if i := strings.LastIndexByte(base, '.'); i >= 0 && i < len(base)-1 {
		base = base[i+1:]
	}

	// Compose accepts lowercase letters, digits, dashes and underscores.
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if out := strings.Trim(b.String(), "-"); out != "" {
		return out
	}
	return "overlay"
}
