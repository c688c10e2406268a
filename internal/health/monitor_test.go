package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchctl/internal/config"
)

// fakeSleeper records requested sleeps without waiting.
type fakeSleeper struct {
	slept []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	return ctx.Err()
}

func (f *fakeSleeper) total() time.Duration {
	var sum time.Duration
	for _, d := range f.slept {
		sum += d
	}
	return sum
}

func countingChecker(failFirst int, calls *int) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		*calls++
		if *calls <= failFirst {
			return errors.New("connection refused")
		}
		return nil
	})
}

func TestAwaitHealthy_AlwaysFailingTarget(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 5, 30} {
		calls := 0
		sleeper := &fakeSleeper{}
		m := NewMonitor(2*time.Second, maxAttempts)
		m.sleep = sleeper.sleep

		_, err := m.AwaitHealthy(context.Background(), []Target{
			{Name: "api", Address: "http://localhost:8000/health", Checker: countingChecker(1<<30, &calls)},
		})

		var timeoutErr *TimeoutError
		require.True(t, errors.As(err, &timeoutErr))
		assert.Equal(t, "api", timeoutErr.Target)
		assert.Equal(t, maxAttempts, timeoutErr.Attempts)
		assert.EqualError(t, timeoutErr.LastErr, "connection refused")
		assert.Equal(t, maxAttempts, calls, "exactly maxAttempts probes")
		assert.Equal(t, time.Duration(maxAttempts-1)*2*time.Second, sleeper.total())
	}
}

func TestAwaitHealthy_RealElapsedTime(t *testing.T) {
	calls := 0
	interval := 20 * time.Millisecond
	m := NewMonitor(interval, 4)

	start := time.Now()
	_, err := m.AwaitHealthy(context.Background(), []Target{
		{Name: "api", Checker: countingChecker(1<<30, &calls)},
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.GreaterOrEqual(t, elapsed, 3*interval)
}

func TestAwaitHealthy_SucceedsOnThirdProbe(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	sleeper := &fakeSleeper{}
	m := NewMonitor(2*time.Second, 30)
	m.sleep = sleeper.sleep

	var probes []int
	m.OnProbe = func(target string, attempt int, err error) { probes = append(probes, attempt) }

	res, err := m.AwaitHealthy(context.Background(), []Target{
		{Name: "api", Address: srv.URL, Checker: NewHTTPChecker(srv.URL+"/health", []int{200}, time.Second)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts["api"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []int{1, 2, 3}, probes)
	assert.Equal(t, 4*time.Second, sleeper.total(), "two suspensions of the 2s interval")
}

func TestAwaitHealthy_SequentialOrder(t *testing.T) {
	var order []string
	probe := func(name string, ok bool) Checker {
		return CheckerFunc(func(ctx context.Context) error {
			order = append(order, name)
			if !ok {
				return errors.New("down")
			}
			return nil
		})
	}

	m := NewMonitor(0, 2)
	m.sleep = (&fakeSleeper{}).sleep

	_, err := m.AwaitHealthy(context.Background(), []Target{
		{Name: "api", Checker: probe("api", false)},
		{Name: "frontend", Checker: probe("frontend", true)},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"api", "api"}, order, "frontend is never probed when the API times out")

	order = nil
	_, err = m.AwaitHealthy(context.Background(), []Target{
		{Name: "api", Checker: probe("api", true)},
		{Name: "frontend", Checker: probe("frontend", true)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "frontend"}, order)
}

func TestAwaitHealthy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	m := NewMonitor(time.Hour, 10)

	checker := CheckerFunc(func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})

	_, err := m.AwaitHealthy(ctx, []Target{{Name: "api", Checker: checker}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestHTTPChecker_StatusPredicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redirect":
			w.WriteHeader(http.StatusNotModified)
		case "/boom":
			http.Error(w, "internal", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	assert.NoError(t, NewHTTPChecker(srv.URL+"/", nil, time.Second).CheckHealth(ctx))
	assert.NoError(t, NewHTTPChecker(srv.URL+"/redirect", nil, time.Second).CheckHealth(ctx))
	assert.Error(t, NewHTTPChecker(srv.URL+"/redirect", []int{200}, time.Second).CheckHealth(ctx))

	err := NewHTTPChecker(srv.URL+"/boom", nil, time.Second).CheckHealth(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	c := &TCPChecker{Address: addr, Timeout: time.Second}
	assert.NoError(t, c.CheckHealth(context.Background()))

	ln.Close()
	assert.Error(t, c.CheckHealth(context.Background()))
}

func TestTargetsFromConfig(t *testing.T) {
	cfgs := []config.TargetConfig{
		{Name: "api", Kind: config.TargetKindHTTP, Address: "http://localhost:${API_PORT}/health", ExpectStatus: []int{200}},
		{Name: "cache", Kind: config.TargetKindTCP, Address: "localhost:6379"},
	}
	expand := func(s string) string {
		if s == "http://localhost:${API_PORT}/health" {
			return "http://localhost:9000/health"
		}
		return s
	}

	targets := TargetsFromConfig(cfgs, time.Second, expand)
	require.Len(t, targets, 2)
	assert.Equal(t, "http://localhost:9000/health", targets[0].Address)
	assert.IsType(t, &HTTPChecker{}, targets[0].Checker)
	assert.IsType(t, &TCPChecker{}, targets[1].Checker)
}
