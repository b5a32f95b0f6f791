package health

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lllypuk/sentinel/internal/correlation"
	"github.com/lllypuk/sentinel/internal/domain/errs"
	"github.com/lllypuk/sentinel/internal/domain/result"
)

// DefaultCheckTimeout bounds a probe whose registration sets no timeout.
const DefaultCheckTimeout = 5 * time.Second

const tracerName = "github.com/lllypuk/sentinel/internal/health"

// unknownIndicatorName names checks whose indicator cannot name itself.
const unknownIndicatorName = "unknown"

// Registration pairs an indicator with its aggregation policy.
type Registration struct {
	Indicator Indicator

	// Required indicators must be up for the verdict to pass.
	Required bool

	// Timeout bounds this probe. Zero uses the aggregator default.
	Timeout time.Duration
}

// Require registers ind as required.
func Require(ind Indicator) Registration {
	return Registration{Indicator: ind, Required: true}
}

// Optional registers ind as optional: a down outcome becomes a warning.
func Optional(ind Indicator) Registration {
	return Registration{Indicator: ind}
}

// WithTimeout returns a copy of r with a probe timeout.
func (r Registration) WithTimeout(d time.Duration) Registration {
	r.Timeout = d
	return r
}

// CheckResult is one indicator's contribution to a Verdict.
type CheckResult struct {
	Outcome

	Required bool          `json:"required"`
	Duration time.Duration `json:"-"`
}

// Verdict is the aggregate of one evaluation run.
type Verdict struct {
	Pass   bool
	Checks []CheckResult
}

// Warnings returns the names of optional indicators that reported down.
func (v Verdict) Warnings() []string {
	var names []string
	for _, c := range v.Checks {
		if !c.Required && c.Status != StatusUp {
			names = append(names, c.Name)
		}
	}
	return names
}

// Check returns the result for the named indicator.
func (v Verdict) Check(name string) (CheckResult, bool) {
	for _, c := range v.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Observer receives evaluation events, typically to record metrics.
type Observer interface {
	ObserveCheck(ctx context.Context, check CheckResult)
	ObserveVerdict(ctx context.Context, verdict Verdict)
}

// Aggregator runs indicators and folds their outcomes into a Verdict.
// It is safe for concurrent use and holds no state between evaluations.
type Aggregator struct {
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithDefaultTimeout sets the timeout for registrations without one.
func WithDefaultTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTracer sets the tracer used for per-probe spans.
func WithTracer(tracer trace.Tracer) AggregatorOption {
	return func(a *Aggregator) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithObserver sets the evaluation observer.
func WithObserver(observer Observer) AggregatorOption {
	return func(a *Aggregator) {
		a.observer = observer
	}
}

// NewAggregator creates a new Aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		timeout: DefaultCheckTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Evaluate runs every registration concurrently and folds the outcomes.
// The verdict passes iff every required indicator is up. One indicator's failure,
// timeout or panic never affects the others, and Evaluate itself never fails.
func (a *Aggregator) Evaluate(ctx context.Context, regs []Registration) Verdict {
	checks := make([]CheckResult, len(regs))

	var g errgroup.Group
	for i, reg := range regs {
		g.Go(func() error {
			checks[i] = a.run(ctx, reg)
			return nil
		})
	}
	_ = g.Wait()

	verdict := Verdict{Pass: true, Checks: checks}
	for _, c := range checks {
		if c.Required && c.Status != StatusUp {
			verdict.Pass = false
		}
	}

	if a.observer != nil {
		a.observer.ObserveVerdict(ctx, verdict)
	}

	return verdict
}

func (a *Aggregator) run(ctx context.Context, reg Registration) CheckResult {
	name := indicatorName(reg.Indicator)

	timeout := reg.Timeout
	if timeout <= 0 {
		timeout = a.timeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	probeCtx, span := a.tracer.Start(probeCtx, "health.check."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("health.indicator", name),
			attribute.Bool("health.required", reg.Required),
		),
	)
	defer span.End()

	if id := correlation.FromContext(ctx); id != "" {
		span.SetAttributes(attribute.String(correlation.LogKey, id))
	}

	start := time.Now()

	// Buffered so a probe finishing after the timeout does not block.
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Down(name, errs.Unavailable(name, fmt.Errorf("probe panicked: %v", r)))
			}
		}()
		resultCh <- reg.Indicator.Check(probeCtx)
	}()

	var res Result
	select {
	case res = <-resultCh:
	case <-probeCtx.Done():
		res = Down(name, errs.Unavailable(name,
			fmt.Errorf("check timed out after %s: %w", timeout, probeCtx.Err())))
	}

	check := CheckResult{
		Outcome:  outcomeOf(name, res),
		Required: reg.Required,
		Duration: time.Since(start),
	}

	span.SetAttributes(attribute.String("health.status", string(check.Status)))
	if check.Status == StatusUp {
		span.SetStatus(codes.Ok, "")
	} else {
		msg, _ := check.Detail["error"].(string)
		span.SetStatus(codes.Error, msg)
		a.logger.WarnContext(ctx, "health check failed",
			slog.String("indicator", name),
			slog.Bool("required", reg.Required),
			slog.String("error", msg),
			slog.Duration("duration", check.Duration),
		)
	}

	if a.observer != nil {
		a.observer.ObserveCheck(ctx, check)
	}

	return check
}

// indicatorName returns the indicator's name, or "unknown" when it is nil or
// its Name panics.
func indicatorName(ind Indicator) (name string) {
	name = unknownIndicatorName
	if ind == nil {
		return name
	}
	defer func() {
		if r := recover(); r != nil {
			name = unknownIndicatorName
		}
	}()
	return ind.Name()
}

// outcomeOf converts a Result into an Outcome, naming it after the indicator and
// moving failure information into the detail map.
func outcomeOf(name string, res Result) Outcome {
	return result.Match(res,
		func(o Outcome) Outcome {
			if o.Name == "" {
				o.Name = name
			}
			if o.Status == "" {
				o.Status = StatusUp
			}
			return o
		},
		func(e *errs.AppError) Outcome {
			if e == nil {
				e = errs.Unavailable(name, nil)
			}
			detail := make(map[string]any, len(e.Details)+1)
			maps.Copy(detail, e.Details)
			delete(detail, "dependency")
			detail["error"] = e.Message
			return Outcome{Name: name, Status: StatusDown, Detail: detail}
		},
	)
}
