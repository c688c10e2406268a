package compose

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"researchctl/pkg/logging"
)

// For mocking in tests
var execCommand = exec.CommandContext

// DockerCompose drives `docker compose` (or a compatible CLI such as
// `podman compose`) rooted at Root. Each file combination runs as its own
// project, named by ProjectName from Project.
type DockerCompose struct {
	Root           string
	Project        string
	ComposeCommand []string
	DockerCommand  string
}

// NewDockerCompose creates a runtime for project rooted at root.
func NewDockerCompose(root, project string, composeCommand []string, dockerCommand string) *DockerCompose {
	if len(composeCommand) == 0 {
		composeCommand = []string{"docker", "compose"}
	}
	if dockerCommand == "" {
		dockerCommand = "docker"
	}
	return &DockerCompose{
		Root:           root,
		Project:        project,
		ComposeCommand: composeCommand,
		DockerCommand:  dockerCommand,
	}
}

// run executes name with args in Root, capturing stdout and stderr.
func (d *DockerCompose) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := execCommand(ctx, name, args...)
	cmd.Dir = d.Root

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	full := append([]string{name}, args...)
	logging.Debug("Compose", "Running %s", strings.Join(full, " "))

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
		}
		return stdoutBuf.String(), &CommandError{Args: full, Stderr: stderrBuf.String(), Err: err}
	}
	return stdoutBuf.String(), nil
}

func (d *DockerCompose) compose(ctx context.Context, files []string, args ...string) (string, error) {
	argv := append([]string{}, d.ComposeCommand[1:]...)
	argv = append(argv, "-p", ProjectName(d.Project, files), "--project-directory", d.Root)
	for _, f := range files {
		argv = append(argv, "-f", f)
	}
	argv = append(argv, args...)
	return d.run(ctx, d.ComposeCommand[0], argv...)
}

// Check runs `compose version`.
func (d *DockerCompose) Check(ctx context.Context) error {
	args := append(append([]string{}, d.ComposeCommand[1:]...), "version")
	if _, err := d.run(ctx, d.ComposeCommand[0], args...); err != nil {
		if errors.Is(err, ErrRuntimeUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return nil
}

// Up runs `compose up -d`.
func (d *DockerCompose) Up(ctx context.Context, files []string, opts UpOptions) error {
	args := []string{"up", "-d"}
	if opts.Build {
		args = append(args, "--build")
	}
	_, err := d.compose(ctx, files, args...)
	return err
}

// Down runs `compose down`.
func (d *DockerCompose) Down(ctx context.Context, files []string, opts DownOptions) error {
	args := []string{"down"}
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	_, err := d.compose(ctx, files, args...)
	return err
}

// Ps runs `compose ps --all --format json`.
func (d *DockerCompose) Ps(ctx context.Context, files []string) ([]Container, error) {
	out, err := d.compose(ctx, files, "ps", "--all", "--format", "json")
	if err != nil {
		return nil, err
	}
	return parsePsJSON(out)
}

// psEntry mirrors the fields of `compose ps --format json` we use.
type psEntry struct {
	ID      string `json:"ID"`
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health"`
	Project string `json:"Project"`
}

// parsePsJSON accepts both output shapes compose has shipped: a single JSON
// array, and one JSON object per line.
func parsePsJSON(out string) ([]Container, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	var entries []psEntry
	if strings.HasPrefix(out, "[") {
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			return nil, fmt.Errorf("failed to decode compose ps output: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(strings.NewReader(out))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var e psEntry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return nil, fmt.Errorf("failed to decode compose ps line %q: %w", line, err)
			}
			entries = append(entries, e)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	containers := make([]Container, 0, len(entries))
	for _, e := range entries {
		containers = append(containers, Container{
			ID:      e.ID,
			Name:    e.Name,
			Service: e.Service,
			State:   strings.ToLower(e.State),
			Health:  strings.ToLower(e.Health),
			Project: e.Project,
		})
	}
	return containers, nil
}

const listFormat = `{{.ID}}\t{{.Names}}\t{{.State}}\t{{.Label "com.docker.compose.project"}}\t{{.Label "com.docker.compose.service"}}`

// ListByPrefix runs `docker ps -a` filtered by name and keeps exact prefix matches.
func (d *DockerCompose) ListByPrefix(ctx context.Context, prefix string) ([]Container, error) {
	out, err := d.run(ctx, d.DockerCommand, "ps", "-a", "--filter", "name="+prefix, "--format", listFormat)
	if err != nil {
		return nil, err
	}
	return parsePsTable(out, prefix), nil
}

// parsePsTable parses listFormat lines. The name filter of `docker ps` is a
// substring match, so names are re-checked for the prefix here.
func parsePsTable(out, prefix string) []Container {
	var containers []Container
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		for len(fields) < 5 {
			fields = append(fields, "")
		}
		name := strings.TrimPrefix(fields[1], "/")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		containers = append(containers, Container{
			ID:      fields[0],
			Name:    name,
			State:   strings.ToLower(fields[2]),
			Project: fields[3],
			Service: fields[4],
		})
	}
	return containers
}

// ForceRemove runs `docker rm -f`.
func (d *DockerCompose) ForceRemove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.run(ctx, d.DockerCommand, append([]string{"rm", "-f"}, ids...)...)
	return err
}

// Prune removes dangling images and the build cache.
func (d *DockerCompose) Prune(ctx context.Context) error {
	_, imgErr := d.run(ctx, d.DockerCommand, "image", "prune", "-f")
	_, buildErr := d.run(ctx, d.DockerCommand, "builder", "prune", "-f")
	return errors.Join(imgErr, buildErr)
}
