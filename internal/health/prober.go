// Package health tracks readiness of the service's backing dependencies.
package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/klari-app/klari-server/database"
	"github.com/klari-app/klari-server/internal/logger"
)

const checkTimeout = 3 * time.Second

// Check probes one dependency. Probe returns a short detail on success.
type Check struct {
	Name  string
	Probe func(ctx context.Context) (string, error)
}

// Pinger is implemented by the redis cache and the image store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the database and reports the applied schema version.
func DatabaseCheck(db *sql.DB) Check {
	return Check{
		Name: "database",
		Probe: func(ctx context.Context) (string, error) {
			if err := db.PingContext(ctx); err != nil {
				return "", fmt.Errorf("failed to ping database: %w", err)
			}
			version, err := database.SchemaVersion(ctx, db)
			if err != nil {
				return "", err
			}
			if version == 0 {
				return "", errors.New("no migrations applied")
			}
			return fmt.Sprintf("schema version %d", version), nil
		},
	}
}

// PingCheck wraps a Pinger.
func PingCheck(name string, p Pinger) Check {
	return Check{
		Name: name,
		Probe: func(ctx context.Context) (string, error) {
			if err := p.Ping(ctx); err != nil {
				return "", err
			}
			return "ok", nil
		},
	}
}

// StatusSetter receives the aggregated status; *health.Server implements it.
type StatusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// Result is the outcome of one check.
type Result struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report is the outcome of one probe round.
type Report struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]Result `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}

type Prober struct {
	checks   []Check
	setter   StatusSetter
	interval time.Duration
	logger   *logger.Logger

	mu     sync.RWMutex
	report Report
}

func NewProber(checks []Check, setter StatusSetter, interval time.Duration, logger *logger.Logger) *Prober {
	return &Prober{
		checks:   checks,
		setter:   setter,
		interval: interval,
		logger:   logger,
		report:   Report{Checks: map[string]Result{}},
	}
}

// Probe runs every check once, stores the report and publishes the status.
func (p *Prober) Probe(ctx context.Context) Report {
	report := Report{Ready: true, Checks: make(map[string]Result, len(p.checks)), CheckedAt: time.Now()}

	for _, c := range p.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		detail, err := c.Probe(checkCtx)
		cancel()

		if err != nil {
			report.Ready = false
			report.Checks[c.Name] = Result{Status: "down", Detail: err.Error()}
			p.logger.Warn("Health: check failed", "check", c.Name, "error", err.Error())
			continue
		}
		report.Checks[c.Name] = Result{Status: "up", Detail: detail}
	}

	p.mu.Lock()
	changed := p.report.Ready != report.Ready || p.report.CheckedAt.IsZero()
	p.report = report
	p.mu.Unlock()

	if p.setter != nil {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if report.Ready {
			status = healthpb.HealthCheckResponse_SERVING
		}
		p.setter.SetServingStatus("", status)
	}
	if changed {
		p.logger.Info("Health: readiness changed", "ready", report.Ready)
	}

	return report
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Report returns the latest probe result. Before the first probe it is not ready.
func (p *Prober) Report() Report {
	p.mu.RLock()
	defer p.mu.RUnlock()

	checks := make(map[string]Result, len(p.report.Checks))
	for k, v := range p.report.Checks {
		checks[k] = v
	}
	report := p.report
	report.Checks = checks
	return report
}
