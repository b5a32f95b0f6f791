package health

import (
	"context"
	"time"
)

// Liveness report statuses.
const (
	ReportStatusOK    = "ok"
	ReportStatusError = "error"
)

// Connectivity is the simplified per-dependency flag of the system view.
type Connectivity string

// Connectivity values.
const (
	Connected    Connectivity = "connected"
	Disconnected Connectivity = "disconnected"
)

// Ports are the configured port assignments reported by the system view.
type Ports struct {
	API   int `json:"api"`
	Web   int `json:"web"`
	Admin int `json:"admin"`
}

// Dependency is an indicator reported under Key in the system view.
type Dependency struct {
	Key       string
	Indicator Indicator

	// Timeout bounds the probe. Zero uses the aggregator default.
	Timeout time.Duration
}

// ReporterConfig holds the static facts and route policies of a Reporter.
type ReporterConfig struct {
	Environment string
	Version     string
	Ports       Ports

	// StartedAt is the process start time. Zero means the Reporter creation time.
	StartedAt time.Time

	// Liveness is the registration set evaluated by the liveness view.
	Liveness []Registration

	// Dependencies are the connectivity flags of the system view.
	Dependencies []Dependency
}

// LivenessReport is the minimal machine-checkable view.
type LivenessReport struct {
	Status   string        `json:"status"`
	Pass     bool          `json:"pass"`
	Checks   []CheckResult `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
}

// SystemStatus is the operator-facing snapshot. Producing it never fails.
type SystemStatus struct {
	Environment string                  `json:"environment"`
	Version     string                  `json:"version"`
	Uptime      float64                 `json:"uptime"`
	Services    map[string]Connectivity `json:"services"`
	Ports       Ports                   `json:"ports"`
}

// Reporter turns evaluation runs into the liveness and system views.
// Nothing is cached: every call evaluates its indicators again.
type Reporter struct {
	agg *Aggregator
	cfg ReporterConfig
	now func() time.Time
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithClock replaces time.Now for uptime computation.
func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		r.now = now
	}
}

// NewReporter creates a new Reporter. A nil aggregator gets a default one.
func NewReporter(agg *Aggregator, cfg ReporterConfig, opts ...ReporterOption) *Reporter {
	if agg == nil {
		agg = NewAggregator()
	}
	r := &Reporter{
		agg: agg,
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.StartedAt.IsZero() {
		r.cfg.StartedAt = r.now()
	}
	return r
}

// Liveness evaluates the liveness registrations.
// Details are kept only for indicators that are down.
func (r *Reporter) Liveness(ctx context.Context) LivenessReport {
	verdict := r.agg.Evaluate(ctx, r.cfg.Liveness)

	checks := make([]CheckResult, len(verdict.Checks))
	for i, c := range verdict.Checks {
		if c.Status == StatusUp {
			c.Detail = nil
		}
		checks[i] = c
	}

	report := LivenessReport{
		Status:   ReportStatusOK,
		Pass:     verdict.Pass,
		Checks:   checks,
		Warnings: verdict.Warnings(),
	}
	if !verdict.Pass {
		report.Status = ReportStatusError
	}
	return report
}

// System builds the detailed status view. Every dependency is probed as an
// optional registration; any failure maps to Disconnected.
func (r *Reporter) System(ctx context.Context) SystemStatus {
	regs := make([]Registration, len(r.cfg.Dependencies))
	for i, dep := range r.cfg.Dependencies {
		regs[i] = Optional(dep.Indicator).WithTimeout(dep.Timeout)
	}

	verdict := r.agg.Evaluate(ctx, regs)

	services := make(map[string]Connectivity, len(r.cfg.Dependencies))
	for i, dep := range r.cfg.Dependencies {
		services[dep.Key] = Disconnected
		if verdict.Checks[i].Status == StatusUp {
			services[dep.Key] = Connected
		}
	}

	return SystemStatus{
		Environment: r.cfg.Environment,
		Version:     r.cfg.Version,
		Uptime:      r.Uptime().Seconds(),
		Services:    services,
		Ports:       r.cfg.Ports,
	}
}

// Uptime returns the monotonic time elapsed since process start, never negative.
func (r *Reporter) Uptime() time.Duration {
	return max(r.now().Sub(r.cfg.StartedAt), 0)
}
