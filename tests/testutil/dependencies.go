package testutil

import (
	"time"

	"github.com/testcontainers/testcontainers-go/wait"
)

// Redis is a single-node cache.
var Redis = Dependency{
	Name:  "redis",
	Image: "redis:7-alpine",
	Port:  "6379/tcp",
	Wait: wait.ForAll(
		wait.ForLog("Ready to accept connections"),
		wait.ForListeningPort("6379/tcp"),
	).WithDeadline(containerStartupTimeout),
	URL: func(addr string) string { return "redis://" + addr + "/0" },
}

// Postgres is the relational control database.
var Postgres = Dependency{
	Name:  "postgres",
	Image: "postgres:17-alpine",
	Port:  "5432/tcp",
	Env: map[string]string{
		"POSTGRES_USER":     "sentinel",
		"POSTGRES_PASSWORD": "sentinel",
		"POSTGRES_DB":       "control",
	},
	// The server restarts once after init scripts run.
	Wait: wait.ForAll(
		wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		wait.ForListeningPort("5432/tcp"),
	).WithDeadline(containerStartupTimeout),
	URL: func(addr string) string {
		return "postgres://sentinel:sentinel@" + addr + "/control?sslmode=disable"
	},
}

// MongoDB is the optional document store.
var MongoDB = Dependency{
	Name:  "mongodb",
	Image: "mongo:8",
	Port:  "27017/tcp",
	Wait: wait.ForLog("Waiting for connections").
		WithStartupTimeout(containerStartupTimeout).
		WithPollInterval(500 * time.Millisecond),
	URL: func(addr string) string { return "mongodb://" + addr },
}

// NATS is the optional message broker.
var NATS = Dependency{
	Name:  "nats",
	Image: "nats:2-alpine",
	Port:  "4222/tcp",
	Wait:  wait.ForLog("Server is ready").WithStartupTimeout(containerStartupTimeout),
	URL:   func(addr string) string { return "nats://" + addr },
}
