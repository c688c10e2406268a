package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"researchctl/pkg/logging"
)

const subsystem = "Bootstrap"

// ErrTemplateMissing is returned when neither the runtime .env file nor its
// template exist, so there is nothing to bootstrap from.
var ErrTemplateMissing = errors.New("configuration template missing")

// ConfigState reports what EnsureConfig did.
type ConfigState int

const (
	// StateExisting means the target file was already present and left untouched.
	StateExisting ConfigState = iota
	// StateCreated means the target file was materialized from the template.
	StateCreated
)

func (s ConfigState) String() string {
	if s == StateCreated {
		return "Created"
	}
	return "Existing"
}

// EnsureConfig copies templatePath to targetPath when targetPath does not
// exist. An existing target is never modified.
func EnsureConfig(templatePath, targetPath string) (ConfigState, error) {
	if _, err := os.Stat(targetPath); err == nil {
		logging.Debug(subsystem, "Configuration file %s already exists", targetPath)
		return StateExisting, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return StateExisting, fmt.Errorf("failed to inspect %s: %w", targetPath, err)
	}

	src, err := os.Open(templatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StateExisting, fmt.Errorf("%w: %s (needed to create %s)", ErrTemplateMissing, templatePath, targetPath)
		}
		return StateExisting, fmt.Errorf("failed to open template %s: %w", templatePath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return StateExisting, fmt.Errorf("failed to create directory for %s: %w", targetPath, err)
	}

	// O_EXCL keeps a concurrently created file intact.
	dst, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return StateExisting, nil
		}
		return StateExisting, fmt.Errorf("failed to create %s: %w", targetPath, err)
	}
	// A partial file would read as an existing config on the next run.
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(targetPath)
		return StateExisting, fmt.Errorf("failed to copy template into %s: %w", targetPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(targetPath)
		return StateExisting, fmt.Errorf("failed to write %s: %w", targetPath, err)
	}

	logging.Info(subsystem, "Created %s from template %s", targetPath, templatePath)
	return StateCreated, nil
}

// ValidationWarning describes a required key that is missing or still holds
// a placeholder. It is reported to the operator but never blocks startup.
type ValidationWarning struct {
	Key    string
	Reason string
	File   string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("%s in %s: %s", w.Key, w.File, w.Reason)
}

// Remedy is the operator-facing instruction for fixing the warning.
func (w ValidationWarning) Remedy() string {
	return fmt.Sprintf("edit %s and set %s", w.File, w.Key)
}

// Env is a parsed runtime .env file.
type Env struct {
	Path         string
	Values       map[string]string
	placeholders []string
}

// LoadEnv reads the .env file at path. placeholders lists template defaults
// that mean "not configured yet".
func LoadEnv(path string, placeholders []string) (*Env, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Env{Path: path, Values: values, placeholders: placeholders}, nil
}

// IsPlaceholder reports whether v is empty or a known template default.
// Values shaped like "your_..._here" are always treated as placeholders.
func (e *Env) IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	for _, p := range e.placeholders {
		if strings.EqualFold(v, p) {
			return true
		}
	}
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "your_") && strings.HasSuffix(lower, "_here")
}

// Configured reports whether key is present with a real value.
func (e *Env) Configured(key string) bool {
	v, ok := e.Values[key]
	return ok && !e.IsPlaceholder(v)
}

// ValidateRequired reports whether key in the file at targetPath holds a
// non-empty, non-placeholder value.
func ValidateRequired(targetPath, key string, placeholders []string) (bool, error) {
	env, err := LoadEnv(targetPath, placeholders)
	if err != nil {
		return false, err
	}
	return env.Configured(key), nil
}

// Validate checks required keys and returns one warning per problem. Missing
// optional keys are only logged at debug level.
func (e *Env) Validate(required, optional []string) []ValidationWarning {
	var warnings []ValidationWarning
	for _, key := range required {
		v, ok := e.Values[key]
		switch {
		case !ok:
			warnings = append(warnings, ValidationWarning{Key: key, Reason: "not set", File: e.Path})
		case e.IsPlaceholder(v):
			warnings = append(warnings, ValidationWarning{Key: key, Reason: "still holds a placeholder value", File: e.Path})
		}
	}
	for _, key := range optional {
		if !e.Configured(key) {
			logging.Debug(subsystem, "Optional key %s is not configured", key)
		}
	}
	return warnings
}

// Get returns the value of key, or def when it is unset or blank.
func (e *Env) Get(key, def string) string {
	if v, ok := e.Values[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Defaults applied when the .env file leaves a binding unset.
const (
	DefaultAPIHost      = "0.0.0.0"
	DefaultAPIPort      = 8000
	DefaultFrontendPort = 8501
	DefaultLogLevel     = "INFO"
	DefaultCacheBackend = "memory"
)

func (e *Env) APIHost() string      { return e.Get("API_HOST", DefaultAPIHost) }
func (e *Env) APIPort() int         { return e.port("API_PORT", DefaultAPIPort) }
func (e *Env) FrontendPort() int    { return e.port("FRONTEND_PORT", DefaultFrontendPort) }
func (e *Env) LogLevel() string     { return strings.ToUpper(e.Get("LOG_LEVEL", DefaultLogLevel)) }
func (e *Env) CacheBackend() string { return e.Get("CACHE_BACKEND", DefaultCacheBackend) }

// Debug reports the DEBUG flag; anything strconv.ParseBool rejects is false.
func (e *Env) Debug() bool {
	b, err := strconv.ParseBool(e.Get("DEBUG", "false"))
	return err == nil && b
}

func (e *Env) port(key string, def int) int {
	raw := e.Get(key, "")
	if raw == "" {
		return def
	}
	p, err := strconv.Atoi(raw)
	if err != nil || p <= 0 || p > 65535 {
		logging.Warn(subsystem, "Ignoring invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return p
}

// Expand substitutes ${VAR} and $VAR references in s. Port variables resolve
// through their typed accessors so defaults apply; other names come from the
// file and then the process environment.
func (e *Env) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		switch name {
		case "API_PORT":
			return strconv.Itoa(e.APIPort())
		case "FRONTEND_PORT":
			return strconv.Itoa(e.FrontendPort())
		case "API_HOST":
			return e.APIHost()
		}
		if v, ok := e.Values[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}

// DefaultEnv returns an Env with no values, so every accessor yields its default.
// Used when the .env file is unreadable but status must still render.
func DefaultEnv() *Env {
	return &Env{Values: map[string]string{}}
}
