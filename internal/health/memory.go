package health

import (
	"context"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// MemoryIndicatorName is the outcome name of the heap probe.
const MemoryIndicatorName = "memory_heap"

// DefaultMemoryHeapThreshold is the heap size above which the probe reports down.
const DefaultMemoryHeapThreshold uint64 = 150 * 1024 * 1024

// MemoryIndicator compares current heap usage against a fixed threshold.
type MemoryIndicator struct {
	threshold uint64
	heapUsed  func() uint64
}

// MemoryOption configures a MemoryIndicator.
type MemoryOption func(*MemoryIndicator)

// WithHeapReader replaces the runtime heap reader.
func WithHeapReader(read func() uint64) MemoryOption {
	return func(m *MemoryIndicator) {
		m.heapUsed = read
	}
}

// NewMemoryIndicator creates a heap probe. A zero threshold uses the default.
func NewMemoryIndicator(threshold uint64, opts ...MemoryOption) *MemoryIndicator {
	if threshold == 0 {
		threshold = DefaultMemoryHeapThreshold
	}
	m := &MemoryIndicator{
		threshold: threshold,
		heapUsed:  readHeapAlloc,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func readHeapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Name implements Indicator.
func (m *MemoryIndicator) Name() string {
	return MemoryIndicatorName
}

// Threshold returns the configured limit in bytes.
func (m *MemoryIndicator) Threshold() uint64 {
	return m.threshold
}

// Check implements Indicator.
func (m *MemoryIndicator) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Down(MemoryIndicatorName, errs.Unavailable(MemoryIndicatorName, err))
	}

	used := m.heapUsed()

	if used > m.threshold {
		err := errs.Unavailable(MemoryIndicatorName, fmt.Errorf("heap usage %s exceeds threshold %s",
			humanize.IBytes(used), humanize.IBytes(m.threshold))).
			WithDetail("heap_used", used).
			WithDetail("heap_used_human", humanize.IBytes(used)).
			WithDetail("threshold", m.threshold)
		return Down(MemoryIndicatorName, err)
	}

	return Up(MemoryIndicatorName, map[string]any{
		"heap_used": used,
		"threshold": m.threshold,
	})
}
