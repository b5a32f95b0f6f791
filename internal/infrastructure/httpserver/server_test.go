package httpserver_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/sentinel/internal/config"
	"github.com/lllypuk/sentinel/internal/infrastructure/httpserver"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := httpserver.DefaultServerConfig()

	assert.Equal(t, httpserver.DefaultHost, cfg.Host)
	assert.Equal(t, 3500, cfg.Port)
	assert.Equal(t, httpserver.DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, httpserver.DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, httpserver.DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestServerConfigFrom(t *testing.T) {
	cfg := httpserver.ServerConfigFrom(config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            4500,
		ReadTimeout:     time.Second,
		WriteTimeout:    2 * time.Second,
		ShutdownTimeout: 3 * time.Second,
	})

	assert.Equal(t, httpserver.ServerConfig{
		Host:            "127.0.0.1",
		Port:            4500,
		ReadTimeout:     time.Second,
		WriteTimeout:    2 * time.Second,
		ShutdownTimeout: 3 * time.Second,
	}, cfg)
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name   string
		config httpserver.ServerConfig
		logger *slog.Logger
	}{
		{"default config and nil logger", httpserver.DefaultServerConfig(), nil},
		{
			"custom config and logger",
			httpserver.ServerConfig{
				Host:            "127.0.0.1",
				Port:            3000,
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    20 * time.Second,
				ShutdownTimeout: 5 * time.Second,
			},
			slog.Default(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httpserver.NewServer(tt.config, tt.logger)

			require.NotNil(t, server)
			e := server.Echo()
			require.NotNil(t, e)
			assert.True(t, e.HideBanner)
			assert.True(t, e.HidePort)
			assert.Equal(t, tt.config.ReadTimeout, e.Server.ReadTimeout)
			assert.Equal(t, tt.config.WriteTimeout, e.Server.WriteTimeout)
			assert.Equal(t, httpserver.DefaultMaxHeaderBytes, e.Server.MaxHeaderBytes)
		})
	}
}

func TestServerAddress(t *testing.T) {
	server := httpserver.NewServer(httpserver.ServerConfig{Host: "localhost", Port: 3500}, nil)
	assert.Equal(t, "localhost:3500", server.Address())
}

func TestServerRegisterRoutes(t *testing.T) {
	server := httpserver.NewServer(httpserver.DefaultServerConfig(), nil)

	server.RegisterRoutes(func(e *echo.Echo) {
		e.GET("/custom", func(c echo.Context) error {
			return c.String(http.StatusOK, "custom route")
		})
	})

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/custom", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "custom route", rec.Body.String())
}

func TestServerMultipleMiddleware(t *testing.T) {
	server := httpserver.NewServer(httpserver.DefaultServerConfig(), nil)

	order := []string{}
	track := func(name string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				order = append(order, name+"-before")
				err := next(c)
				order = append(order, name+"-after")
				return err
			}
		}
	}

	server.Use(track("m1"), track("m2"))
	server.Echo().GET("/test", func(c echo.Context) error {
		order = append(order, "handler")
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}, order)
}

func TestServerShutdown_NotStarted(t *testing.T) {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            "127.0.0.1",
		ShutdownTimeout: 5 * time.Second,
	}, nil)

	require.NoError(t, server.Shutdown(context.Background()))
}

func TestServerStartAndShutdown(t *testing.T) {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 2 * time.Second,
	}, nil)

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	require.Eventually(t, func() bool {
		return server.Echo().ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Shutdown(context.Background()))

	select {
	case err := <-done:
		require.NoError(t, err, "a graceful shutdown is not a start failure")
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
