package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/sentinel/internal/correlation"
	"github.com/lllypuk/sentinel/internal/middleware"
)

func newCorrelationEcho(seen *string) *echo.Echo {
	e := echo.New()
	e.Use(middleware.CorrelationID())
	e.POST("/echo", func(c echo.Context) error {
		*seen = correlation.FromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/echo", func(c echo.Context) error {
		*seen = middleware.GetCorrelationID(c)
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestCorrelationID_ReusesInboundHeader(t *testing.T) {
	var seen string
	e := newCorrelationEcho(&seen)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(correlation.Header, "caller-supplied-id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", rec.Header().Get(correlation.Header))
	assert.Equal(t, "caller-supplied-id", seen)
}

func TestCorrelationID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	e := newCorrelationEcho(&seen)

	ids := make(map[string]bool)
	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		id := rec.Header().Get(correlation.Header)
		require.NotEmpty(t, id)
		assert.Equal(t, id, seen)
		assert.False(t, ids[id], "identifier %s generated twice", id)
		ids[id] = true
	}
}

func TestCorrelationID_StoresInRequestContext(t *testing.T) {
	var seen string
	e := newCorrelationEcho(&seen)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	req.Header.Set(correlation.Header, "ctx-id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ctx-id", seen)
}

func TestCorrelationID_EchoedOnErrorResponses(t *testing.T) {
	e := echo.New()
	e.Use(middleware.CorrelationID())

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(correlation.Header, "lost-request")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "lost-request", rec.Header().Get(correlation.Header))
}
