package middleware_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/sentinel/internal/correlation"
	"github.com/lllypuk/sentinel/internal/middleware"
)

// newRecoveringEcho returns an Echo whose error handler records the error it
// was asked to render.
func newRecoveringEcho(logBuffer *bytes.Buffer, rendered *error) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		*rendered = err
		if !c.Response().Committed {
			_ = c.NoContent(http.StatusInternalServerError)
		}
	}
	config := middleware.DefaultRecoveryConfig()
	config.Logger = newTestLogger(logBuffer)
	e.Use(middleware.RecoveryWithConfig(config))
	return e
}

func TestDefaultRecoveryConfig(t *testing.T) {
	config := middleware.DefaultRecoveryConfig()

	assert.NotNil(t, config.Logger)
	assert.Equal(t, middleware.DefaultStackSize, config.StackSize)
	assert.True(t, config.DisableStackAll)
	assert.False(t, config.DisablePrintStack)
}

func TestRecovery_HandsPanicToErrorHandler(t *testing.T) {
	var logBuffer bytes.Buffer
	var rendered error

	e := newRecoveringEcho(&logBuffer, &rendered)
	e.GET("/panic", func(_ echo.Context) error {
		panic("something went wrong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Error(t, rendered)
	assert.ErrorIs(t, rendered, middleware.ErrPanicRecovered)
	assert.Contains(t, rendered.Error(), "something went wrong")

	assert.Contains(t, logBuffer.String(), "panic recovered")
	assert.Contains(t, logBuffer.String(), "something went wrong")
}

func TestRecovery_PanicValues(t *testing.T) {
	errCustom := errors.New("custom error")

	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"error value", errCustom, "custom error"},
		{"integer value", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuffer bytes.Buffer
			var rendered error

			e := newRecoveringEcho(&logBuffer, &rendered)
			e.GET("/panic", func(_ echo.Context) error {
				panic(tt.value)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, logBuffer.String(), tt.expected)
			assert.ErrorIs(t, rendered, middleware.ErrPanicRecovered)
			if err, ok := tt.value.(error); ok {
				assert.ErrorIs(t, rendered, err)
			}
		})
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	var logBuffer bytes.Buffer
	var rendered error

	e := newRecoveringEcho(&logBuffer, &rendered)
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
	assert.NoError(t, rendered)
	assert.Empty(t, logBuffer.String())
}

func TestRecovery_AbortHandlerIsReraised(t *testing.T) {
	var rendered error

	e := newRecoveringEcho(&bytes.Buffer{}, &rendered)
	e.GET("/abort", func(_ echo.Context) error {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestRecovery_StackTrace(t *testing.T) {
	tests := []struct {
		name         string
		disableStack bool
	}{
		{"stack printed", false},
		{"stack disabled", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuffer bytes.Buffer
			e := echo.New()
			e.Use(middleware.RecoveryWithConfig(middleware.RecoveryConfig{
				Logger:            newTestLogger(&logBuffer),
				DisablePrintStack: tt.disableStack,
			}))
			e.GET("/panic", func(_ echo.Context) error {
				panic("boom")
			})

			e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panic", nil))

			entries := decodeLines(t, &logBuffer)
			require.Len(t, entries, 1)
			stack, hasStack := entries[0]["stack"]
			assert.Equal(t, !tt.disableStack, hasStack)
			if hasStack {
				assert.Contains(t, stack, "goroutine")
			}
		})
	}
}

func TestRecovery_NilLogger(t *testing.T) {
	e := echo.New()
	e.Use(middleware.RecoveryWithConfig(middleware.RecoveryConfig{Logger: nil}))
	e.GET("/panic", func(_ echo.Context) error {
		panic("test")
	})

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecovery_LogsRequestInfo(t *testing.T) {
	var logBuffer bytes.Buffer
	var rendered error

	e := newRecoveringEcho(&logBuffer, &rendered)
	e.Pre(middleware.CorrelationID())
	e.GET("/api/system", func(_ echo.Context) error {
		panic("reporter crashed")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/system", nil)
	req.Header.Set(correlation.Header, "panic-trace-1")
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.100")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "panic-trace-1", rec.Header().Get(correlation.Header))

	entries := decodeLines(t, &logBuffer)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/system", entry["path"])
	assert.Equal(t, "192.168.1.100", entry["remote_ip"])
	assert.Equal(t, "panic-trace-1", entry[correlation.LogKey])
}

func TestRecovery_CommittedResponseIsLeftAlone(t *testing.T) {
	var rendered error

	e := newRecoveringEcho(&bytes.Buffer{}, &rendered)
	e.GET("/partial", func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusOK)
		_, _ = c.Response().Write([]byte("partial"))
		panic("late failure")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/partial", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	assert.ErrorIs(t, rendered, middleware.ErrPanicRecovered)
}
