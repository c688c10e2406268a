package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"researchctl/internal/config"
)

// Checker probes a single endpoint once.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HTTPChecker issues a GET and accepts the configured status codes.
type HTTPChecker struct {
	URL          string
	ExpectStatus []int
	Client       *http.Client
}

// NewHTTPChecker creates an HTTP checker whose individual probes time out after timeout.
func NewHTTPChecker(url string, expect []int, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		URL:          url,
		ExpectStatus: expect,
		Client:       &http.Client{Timeout: timeout},
	}
}

// CheckHealth performs one GET against the endpoint.
func (h *HTTPChecker) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if !h.accepts(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", h.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	// Drain so the connection can be reused by the next probe.
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (h *HTTPChecker) accepts(code int) bool {
	if len(h.ExpectStatus) == 0 {
		return code >= 200 && code < 400
	}
	for _, c := range h.ExpectStatus {
		if c == code {
			return true
		}
	}
	return false
}

// TCPChecker checks that a port accepts connections.
type TCPChecker struct {
	Address string
	Timeout time.Duration
}

// CheckHealth dials the address once.
func (p *TCPChecker) CheckHealth(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.Address, err)
	}
	return conn.Close()
}

// Target is a named endpoint with its probe.
type Target struct {
	Name    string
	Address string
	Checker Checker
}

// TargetsFromConfig builds targets from configuration. expand resolves
// ${VAR} references in addresses (ports from the runtime .env file).
func TargetsFromConfig(cfgs []config.TargetConfig, timeout time.Duration, expand func(string) string) []Target {
	targets := make([]Target, 0, len(cfgs))
	for _, c := range cfgs {
		addr := c.Address
		if expand != nil {
			addr = expand(addr)
		}
		var checker Checker
		switch c.Kind {
		case config.TargetKindTCP:
			checker = &TCPChecker{Address: addr, Timeout: timeout}
		default:
			checker = NewHTTPChecker(addr, c.ExpectStatus, timeout)
		}
		targets = append(targets, Target{Name: c.Name, Address: addr, Checker: checker})
	}
	return targets
}
