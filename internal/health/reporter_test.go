package health_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/sentinel/internal/health"
)

type reporterFixture struct {
	database health.Indicator
	cache    health.Indicator
	memory   health.Indicator
}

func (f reporterFixture) reporter(opts ...health.ReporterOption) *health.Reporter {
	return health.NewReporter(health.NewAggregator(), health.ReporterConfig{
		Environment: "test",
		Version:     "1.2.3",
		Ports:       health.Ports{API: 3500, Web: 3501, Admin: 3502},
		Liveness: []health.Registration{
			health.Require(f.database),
			health.Require(f.cache),
			health.Optional(f.memory),
		},
		Dependencies: []health.Dependency{
			{Key: "database", Indicator: f.database},
			{Key: "cache", Indicator: f.cache},
		},
	}, opts...)
}

func healthyMemory() health.Indicator {
	return health.NewMemoryIndicator(150*mib, health.WithHeapReader(func() uint64 { return 20 * mib }))
}

func TestReporter_AllUp(t *testing.T) {
	r := reporterFixture{
		database: upIndicator("database"),
		cache:    upIndicator("redis"),
		memory:   healthyMemory(),
	}.reporter()

	live := r.Liveness(context.Background())
	assert.True(t, live.Pass)
	assert.Equal(t, health.ReportStatusOK, live.Status)
	require.Len(t, live.Checks, 3)
	for _, c := range live.Checks {
		assert.Equal(t, health.StatusUp, c.Status)
		assert.Nil(t, c.Detail, "up checks carry no detail in the liveness view")
	}

	sys := r.System(context.Background())
	assert.Equal(t, map[string]health.Connectivity{
		"database": health.Connected,
		"cache":    health.Connected,
	}, sys.Services)
	assert.Equal(t, "test", sys.Environment)
	assert.Equal(t, "1.2.3", sys.Version)
	assert.Equal(t, health.Ports{API: 3500, Web: 3501, Admin: 3502}, sys.Ports)
}

func TestReporter_DatabaseRefused(t *testing.T) {
	r := reporterFixture{
		database: downIndicator("database", "connect ECONNREFUSED 127.0.0.1:5432"),
		cache:    upIndicator("redis"),
		memory:   healthyMemory(),
	}.reporter()

	live := r.Liveness(context.Background())
	assert.False(t, live.Pass)
	assert.Equal(t, health.ReportStatusError, live.Status)

	db, ok := health.Verdict{Checks: live.Checks}.Check("database")
	require.True(t, ok)
	assert.Equal(t, health.StatusDown, db.Status)
	assert.Equal(t, "connect ECONNREFUSED 127.0.0.1:5432", db.Detail["error"])

	sys := r.System(context.Background())
	assert.Equal(t, health.Disconnected, sys.Services["database"])
	assert.Equal(t, health.Connected, sys.Services["cache"])
	assert.GreaterOrEqual(t, sys.Uptime, 0.0)
}

func TestReporter_MemoryOverThresholdIsOptional(t *testing.T) {
	memory := health.NewMemoryIndicator(150*mib, health.WithHeapReader(func() uint64 { return 300 * mib }))

	r := reporterFixture{
		database: upIndicator("database"),
		cache:    upIndicator("redis"),
		memory:   memory,
	}.reporter()

	live := r.Liveness(context.Background())
	assert.True(t, live.Pass)
	assert.Equal(t, []string{"memory_heap"}, live.Warnings)

	mem, ok := health.Verdict{Checks: live.Checks}.Check("memory_heap")
	require.True(t, ok)
	assert.Equal(t, health.StatusDown, mem.Status)
	assert.False(t, mem.Required)
	assert.Equal(t, uint64(300*mib), mem.Detail["heap_used"])
}

func TestReporter_SystemNeverFails(t *testing.T) {
	crashing := health.NewIndicatorFunc("redis", func(context.Context) health.Result {
		panic("connection pool corrupted")
	})

	r := reporterFixture{
		database: downIndicator("database", "no route to host"),
		cache:    crashing,
		memory:   healthyMemory(),
	}.reporter()

	sys := r.System(context.Background())
	assert.Equal(t, map[string]health.Connectivity{
		"database": health.Disconnected,
		"cache":    health.Disconnected,
	}, sys.Services)
	assert.GreaterOrEqual(t, sys.Uptime, 0.0)
}

func TestReporter_SystemHonorsTimeouts(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	hanging := health.NewIndicatorFunc("database", func(context.Context) health.Result {
		<-block
		return health.Up("database", nil)
	})

	r := health.NewReporter(
		health.NewAggregator(health.WithDefaultTimeout(50*time.Millisecond)),
		health.ReporterConfig{
			Dependencies: []health.Dependency{{Key: "database", Indicator: hanging}},
		},
	)

	start := time.Now()
	sys := r.System(context.Background())

	assert.Equal(t, health.Disconnected, sys.Services["database"])
	assert.Less(t, time.Since(start), time.Second)
}

func TestReporter_SystemUsesDependencyTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	hanging := health.NewIndicatorFunc("redis", func(context.Context) health.Result {
		<-block
		return health.Up("redis", nil)
	})

	r := health.NewReporter(
		health.NewAggregator(health.WithDefaultTimeout(10*time.Second)),
		health.ReporterConfig{
			Dependencies: []health.Dependency{
				{Key: "cache", Indicator: hanging, Timeout: 50 * time.Millisecond},
				{Key: "database", Indicator: upIndicator("database")},
			},
		},
	)

	start := time.Now()
	sys := r.System(context.Background())

	assert.Equal(t, health.Disconnected, sys.Services["cache"])
	assert.Equal(t, health.Connected, sys.Services["database"])
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReporter_Uptime(t *testing.T) {
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Second)

	r := health.NewReporter(nil, health.ReporterConfig{StartedAt: started},
		health.WithClock(func() time.Time { return now }))

	assert.InDelta(t, 90.0, r.System(context.Background()).Uptime, 0.001)

	now = started.Add(-time.Second)
	assert.Equal(t, time.Duration(0), r.Uptime())
}

func TestReporter_RecomputesEveryCall(t *testing.T) {
	healthy := true
	flapping := health.NewIndicatorFunc("redis", func(context.Context) health.Result {
		if healthy {
			return health.Up("redis", nil)
		}
		return health.Down("redis", nil)
	})

	r := reporterFixture{
		database: upIndicator("database"),
		cache:    flapping,
		memory:   healthyMemory(),
	}.reporter()

	assert.True(t, r.Liveness(context.Background()).Pass)
	assert.Equal(t, health.Connected, r.System(context.Background()).Services["cache"])

	healthy = false
	assert.False(t, r.Liveness(context.Background()).Pass)
	assert.Equal(t, health.Disconnected, r.System(context.Background()).Services["cache"])
}

func TestLivenessReport_JSON(t *testing.T) {
	r := reporterFixture{
		database: downIndicator("database", "refused"),
		cache:    upIndicator("redis"),
		memory:   healthyMemory(),
	}.reporter()

	data, err := json.Marshal(r.Liveness(context.Background()))
	require.NoError(t, err)

	var payload struct {
		Status string `json:"status"`
		Pass   bool   `json:"pass"`
		Checks []struct {
			Name     string         `json:"name"`
			Status   string         `json:"status"`
			Required bool           `json:"required"`
			Detail   map[string]any `json:"detail"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Equal(t, "error", payload.Status)
	assert.False(t, payload.Pass)
	require.Len(t, payload.Checks, 3)
	assert.Equal(t, "database", payload.Checks[0].Name)
	assert.Equal(t, "down", payload.Checks[0].Status)
	assert.True(t, payload.Checks[0].Required)
	assert.Equal(t, "refused", payload.Checks[0].Detail["error"])
}
