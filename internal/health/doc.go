// Package health composes independent dependency probes into readiness verdicts.
//
// An Indicator probes exactly one dependency and returns a Result: an Outcome on
// success or an *errs.AppError on failure. The Aggregator runs a set of
// Registrations concurrently, each under its own timeout, and folds them into a
// Verdict: the verdict passes when every required indicator is up. Optional
// indicators are reported but never fail the verdict.
//
// The Reporter shapes verdicts into the two external views:
//
//	reporter := health.NewReporter(agg, health.ReporterConfig{
//		Liveness: []health.Registration{
//			health.Require(health.NewDatabaseIndicator(db)),
//			health.Require(cache),
//			health.Optional(health.NewMemoryIndicator(150 << 20)),
//		},
//		Dependencies: []health.Dependency{
//			{Key: "database", Indicator: health.NewDatabaseIndicator(db)},
//			{Key: "cache", Indicator: cache},
//		},
//	})
//
//	live := reporter.Liveness(ctx) // pass/fail plus per-indicator status
//	sys := reporter.System(ctx)    // never fails; dependencies degrade to "disconnected"
package health
