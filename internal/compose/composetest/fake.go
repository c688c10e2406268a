// Package composetest provides an in-memory compose.Runtime for tests.
package composetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"researchctl/internal/compose"
)

// Fake is an in-memory compose.Runtime. Like compose itself it keeps groups
// per project, with the project derived from the file list by
// compose.ProjectName; Strays are containers no project owns.
type Fake struct {
	mu sync.Mutex

	Prefix  string
	Project string
	Groups  map[string][]compose.Container
	Strays  []compose.Container

	// Services started by Up for each project; defaults to api and frontend.
	Services []string

	CheckErr  error
	UpErr     error
	DownErr   map[string]error
	PsErr     error
	ListErr   error
	RemoveErr error
	PruneErr  error

	Calls   []string
	Removed []string
	Pruned  int
}

// NewFake returns an empty Fake whose base project, and so every container
// name, starts with prefix.
func NewFake(prefix string) *Fake {
	return &Fake{
		Prefix:   prefix,
		Project:  prefix,
		Groups:   map[string][]compose.Container{},
		DownErr:  map[string]error{},
		Services: []string{"api", "frontend"},
	}
}

// Key joins a file list; DownErr and Calls use it.
func Key(files []string) string { return strings.Join(files, ",") }

// ProjectFor is the project files run under, the key of Groups.
func (f *Fake) ProjectFor(files []string) string {
	return compose.ProjectName(f.Project, files)
}

// AddGroup marks a group as running under files.
func (f *Fake) AddGroup(files []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Groups[f.ProjectFor(files)] = f.containersFor(files)
}

// SetState changes the state of every container of the group under files.
func (f *Fake) SetState(files []string, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.Groups[f.ProjectFor(files)]
	for i := range cs {
		cs[i].State = state
	}
}

// AddStray adds a container that belongs to no known group.
func (f *Fake) AddStray(id, name, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Strays = append(f.Strays, compose.Container{ID: id, Name: name, State: state})
}

// containersFor names containers the way compose does: <project>-<service>-1.
func (f *Fake) containersFor(files []string) []compose.Container {
	project := f.ProjectFor(files)
	var cs []compose.Container
	for _, svc := range f.Services {
		cs = append(cs, compose.Container{
			ID:      fmt.Sprintf("%s-%s", project, svc),
			Name:    fmt.Sprintf("%s-%s-1", project, svc),
			Service: svc,
			State:   "running",
			Project: project,
		})
	}
	return cs
}

func (f *Fake) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *Fake) Check(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("check")
	return f.CheckErr
}

func (f *Fake) Up(ctx context.Context, files []string, opts compose.UpOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("up %s build=%t", Key(files), opts.Build)
	if f.UpErr != nil {
		return f.UpErr
	}
	if _, ok := f.Groups[f.ProjectFor(files)]; !ok {
		f.Groups[f.ProjectFor(files)] = f.containersFor(files)
	}
	return nil
}

func (f *Fake) Down(ctx context.Context, files []string, opts compose.DownOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("down %s orphans=%t", Key(files), opts.RemoveOrphans)
	if err := f.DownErr[Key(files)]; err != nil {
		return err
	}
	delete(f.Groups, f.ProjectFor(files))
	return nil
}

func (f *Fake) Ps(ctx context.Context, files []string) ([]compose.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ps %s", Key(files))
	if f.PsErr != nil {
		return nil, f.PsErr
	}
	return append([]compose.Container(nil), f.Groups[f.ProjectFor(files)]...), nil
}

func (f *Fake) ListByPrefix(ctx context.Context, prefix string) ([]compose.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list %s", prefix)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []compose.Container
	for _, cs := range f.Groups {
		for _, c := range cs {
			if strings.HasPrefix(c.Name, prefix) {
				out = append(out, c)
			}
		}
	}
	for _, c := range f.Strays {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Fake) ForceRemove(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("rm %s", strings.Join(ids, ","))
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []compose.Container
	for _, c := range f.Strays {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	f.Strays = kept
	for key, cs := range f.Groups {
		var keep []compose.Container
		for _, c := range cs {
			if !drop[c.ID] {
				keep = append(keep, c)
			}
		}
		if len(keep) == 0 {
			delete(f.Groups, key)
		} else {
			f.Groups[key] = keep
		}
	}
	f.Removed = append(f.Removed, ids...)
	return nil
}

func (f *Fake) Prune(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("prune")
	f.Pruned++
	return f.PruneErr
}

var _ compose.Runtime = (*Fake)(nil)
