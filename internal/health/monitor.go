// Package health runs the periodic, parallel downstream-service probe
// loop: an atomic running flag, a context.CancelFunc for Stop, and a
// WaitGroup so Stop blocks until the loop has actually exited.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tangerg/ragorchestrator/internal/model"
)

// Doer is the subset of the shared HTTP client pool a probe needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Target names one downstream service's health endpoint.
type Target struct {
	Name string
	URL  string
}

// Monitor periodically probes every configured Target in parallel and
// records the last-seen ServiceStatus. It does not gate the request
// path: adapters make their own success/failure decisions and only
// use what Monitor observes to shorten their deadlines for a service
// seen as unhealthy.
type Monitor struct {
	pool     Doer
	targets  []Target
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	statuses map[string]*model.ServiceStatus

	onProbe func()

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Monitor. onProbe, if non-nil, is called once per
// completed probe cycle (used to record metrics.last_health_check).
func New(pool Doer, targets []Target, interval, timeout time.Duration, onProbe func()) *Monitor {
	statuses := make(map[string]*model.ServiceStatus, len(targets))
	for _, t := range targets {
		statuses[t.Name] = &model.ServiceStatus{}
	}
	return &Monitor{
		pool:     pool,
		targets:  targets,
		interval: interval,
		timeout:  timeout,
		statuses: statuses,
		onProbe:  onProbe,
	}
}

// Start launches the probe loop. A second call while already running
// is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	if m.running.Load() {
		return nil
	}
	m.running.Store(true)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop cancels the probe loop and waits for the current cycle to
// finish, so the process can exit promptly after a shutdown signal.
func (m *Monitor) Stop() error {
	if !m.running.Load() {
		return nil
	}
	m.running.Store(false)
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(m.targets))

	var healthyCount atomic.Int64
	for _, target := range m.targets {
		target := target
		g.Go(func() error {
			healthy := m.probeOne(gctx, target)
			if healthy {
				healthyCount.Add(1)
			}
			m.record(target.Name, healthy)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("health probe cycle complete",
		slog.Int64("healthy", healthyCount.Load()),
		slog.Int("total", len(m.targets)),
	)

	if m.onProbe != nil {
		m.onProbe()
	}
}

func (m *Monitor) probeOne(ctx context.Context, target Target) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target.URL, nil)
	if err != nil {
		slog.Warn("health probe build failed", slog.String("service", target.Name), slog.String("error", err.Error()))
		return false
	}

	resp, err := m.pool.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (m *Monitor) record(name string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[name]
	if !ok {
		status = &model.ServiceStatus{}
		m.statuses[name] = status
	}
	status.Healthy = healthy
	status.LastProbe = time.Now()
	if healthy {
		status.ConsecutiveFailures = 0
	} else {
		status.ConsecutiveFailures++
	}

	state := "unhealthy"
	if healthy {
		state = "healthy"
	}
	slog.Info("health probe", slog.String("service", name), slog.String("status", state))
}

// Status returns the last-observed status for a named service. The
// second return value is false if the service was never configured.
func (m *Monitor) Status(name string) (model.ServiceStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[name]
	if !ok {
		return model.ServiceStatus{}, false
	}
	return *status, true
}

// Snapshot returns every service's last-observed status.
func (m *Monitor) Snapshot() map[string]model.ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.ServiceStatus, len(m.statuses))
	for name, status := range m.statuses {
		out[name] = *status
	}
	return out
}
