// Package status renders the process group's state and access endpoints.
// Reporting only reads: it never starts, stops or repairs anything.
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"researchctl/internal/compose"
	"researchctl/internal/config"
	"researchctl/internal/plan"
	"researchctl/internal/tui/design"
)

// ServiceRow is one managed service in the report.
type ServiceRow struct {
	Service   string
	Container string
	State     string
	Health    string
}

// Running reports whether the service's container is up.
func (r ServiceRow) Running() bool { return r.State == "running" }

// Snapshot is the data behind a rendered status.
type Snapshot struct {
	Overlays  plan.Overlays
	Services  []ServiceRow
	Endpoints []config.Endpoint
	// QueryErr is set when the runtime could not be asked; rows then read stopped.
	QueryErr error
}

// RunningCount returns how many services are up.
func (s *Snapshot) RunningCount() int {
	n := 0
	for _, r := range s.Services {
		if r.Running() {
			n++
		}
	}
	return n
}

// Reporter builds snapshots for an overlay combination.
type Reporter struct {
	controller *compose.Controller
	services   []string
	endpoints  []config.Endpoint
}

// NewReporter creates a Reporter. services are always listed even when no
// container exists for them; endpoints are shown as-is and should already be
// expanded.
func NewReporter(controller *compose.Controller, services []string, endpoints []config.Endpoint) *Reporter {
	return &Reporter{controller: controller, services: services, endpoints: endpoints}
}

// Report queries the controller and never fails: with nothing running every
// service is reported stopped.
func (r *Reporter) Report(ctx context.Context, overlays plan.Overlays) *Snapshot {
	snap := &Snapshot{Overlays: overlays, Endpoints: r.endpoints}

	var containers []compose.Container
	st, err := r.controller.Status(ctx, overlays)
	if err != nil {
		snap.QueryErr = err
	} else {
		containers = st.Containers
	}

	byService := make(map[string]compose.Container, len(containers))
	for _, c := range containers {
		key := c.Service
		if key == "" {
			key = c.Name
		}
		byService[key] = c
	}

	seen := map[string]bool{}
	for _, svc := range r.services {
		seen[svc] = true
		row := ServiceRow{Service: svc, State: "stopped"}
		if c, ok := byService[svc]; ok {
			row.Container, row.State, row.Health = c.Name, c.State, c.Health
		}
		snap.Services = append(snap.Services, row)
	}

	var extra []string
	for svc := range byService {
		if !seen[svc] {
			extra = append(extra, svc)
		}
	}
	sort.Strings(extra)
	for _, svc := range extra {
		c := byService[svc]
		snap.Services = append(snap.Services, ServiceRow{Service: svc, Container: c.Name, State: c.State, Health: c.Health})
	}
	return snap
}

// Render formats a snapshot as a table followed by the access endpoints.
func Render(s *Snapshot) string {
	var b strings.Builder

	title := "Services"
	if len(s.Overlays) > 0 {
		title = fmt.Sprintf("Services [%s]", s.Overlays.Key())
	}
	b.WriteString(design.TitleStyle.Render(title))
	b.WriteString("\n")

	headers := []string{"SERVICE", "STATE", "HEALTH", "CONTAINER"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range s.Services {
		for i, cell := range []string{row.Service, row.State, row.Health, row.Container} {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	b.WriteString("  ")
	for i, h := range headers {
		b.WriteString(design.TextSecondaryStyle.Render(runewidth.FillRight(h, widths[i])))
		b.WriteString("  ")
	}
	b.WriteString("\n")

	for _, row := range s.Services {
		icon, style := design.IconStopped, design.TextErrorStyle
		switch {
		case row.Running() && row.Health == "unhealthy":
			icon, style = design.IconUnhealthy, design.TextWarningStyle
		case row.Running():
			icon, style = design.IconRunning, design.TextSuccessStyle
		}
		health := row.Health
		if health == "" {
			health = "-"
		}
		container := row.Container
		if container == "" {
			container = "-"
		}
		b.WriteString(style.Render(icon))
		b.WriteString(" ")
		b.WriteString(runewidth.FillRight(row.Service, widths[0]))
		b.WriteString("  ")
		b.WriteString(style.Render(runewidth.FillRight(row.State, widths[1])))
		b.WriteString("  ")
		b.WriteString(runewidth.FillRight(health, widths[2]))
		b.WriteString("  ")
		b.WriteString(container)
		b.WriteString("\n")
	}

	if s.QueryErr != nil {
		b.WriteString(design.TextWarningStyle.Render("! could not query containers: " + s.QueryErr.Error()))
		b.WriteString("\n")
	}

	if len(s.Endpoints) > 0 {
		b.WriteString("\n")
		b.WriteString(design.TitleStyle.Render("Endpoints"))
		b.WriteString("\n")
		nameWidth := 0
		for _, e := range s.Endpoints {
			if w := runewidth.StringWidth(e.Name); w > nameWidth {
				nameWidth = w
			}
		}
		for _, e := range s.Endpoints {
			fmt.Fprintf(&b, "  %s  %s\n", runewidth.FillRight(e.Name, nameWidth), e.URL)
		}
	}
	return b.String()
}

// ExpandEndpoints resolves ${VAR} references in endpoint URLs.
func ExpandEndpoints(endpoints []config.Endpoint, expand func(string) string) []config.Endpoint {
	out := make([]config.Endpoint, len(endpoints))
	for i, e := range endpoints {
		out[i] = config.Endpoint{Name: e.Name, URL: expand(e.URL)}
	}
	return out
}
