package bootstrap

import (
	"fmt"
	"os"

	"researchctl/pkg/logging"
)

// ProvisionError reports a persistent directory that could not be created.
type ProvisionError struct {
	Path string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision directory %s: %v", e.Path, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// EnsureDirectories creates every path with its missing ancestors. Existing
// directories are left as they are. It stops at the first failure.
func EnsureDirectories(paths []string) error {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			if !info.IsDir() {
				return &ProvisionError{Path: p, Err: fmt.Errorf("path exists and is not a directory")}
			}
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return &ProvisionError{Path: p, Err: err}
		}
		logging.Debug("Provision", "Created directory %s", p)
	}
	return nil
}
