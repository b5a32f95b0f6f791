package health

import (
	"context"

	"github.com/lllypuk/sentinel/internal/domain/errs"
	"github.com/lllypuk/sentinel/internal/domain/result"
)

// Status is the state reported by a single indicator.
type Status string

// Indicator states.
const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Outcome is the named status record produced by one indicator invocation.
type Outcome struct {
	Name   string         `json:"name"`
	Status Status         `json:"status"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Result is what an indicator returns: an Outcome or a typed failure.
type Result = result.Result[Outcome, *errs.AppError]

// Up builds a successful Result.
func Up(name string, detail map[string]any) Result {
	return result.Ok[Outcome, *errs.AppError](Outcome{
		Name:   name,
		Status: StatusUp,
		Detail: detail,
	})
}

// Down builds a failed Result. A nil err is replaced by a generic
// dependency-unavailable error for name.
func Down(name string, err *errs.AppError) Result {
	if err == nil {
		err = errs.Unavailable(name, nil)
	}
	return result.Err[Outcome](err)
}

// Indicator probes one dependency.
//
// Check must convert every failure into a Down result; it must not panic for
// expected failures. It should honor ctx cancellation, but the Aggregator
// enforces the timeout either way.
type Indicator interface {
	Name() string
	Check(ctx context.Context) Result
}

// IndicatorFunc adapts a function to the Indicator interface.
type IndicatorFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewIndicatorFunc creates a new IndicatorFunc.
func NewIndicatorFunc(name string, fn func(ctx context.Context) Result) *IndicatorFunc {
	return &IndicatorFunc{name: name, fn: fn}
}

// Name implements Indicator.
func (f *IndicatorFunc) Name() string {
	return f.name
}

// Check implements Indicator.
func (f *IndicatorFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}
