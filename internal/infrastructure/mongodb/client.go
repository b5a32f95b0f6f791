// Package mongodb builds the optional MongoDB client probed by the health subsystem.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Client defaults.
const (
	DefaultTimeout     = 3 * time.Second
	DefaultMaxPoolSize = 5
	appName            = "sentinel-health"
)

// ErrNoURI is returned when the client is requested without a connection string.
var ErrNoURI = errors.New("mongodb uri is empty")

// Config configures the client.
type Config struct {
	URI         string
	MaxPoolSize uint64
	Timeout     time.Duration
}

// NewClient creates a client for cfg.URI. The driver connects in the
// background, so an unreachable server surfaces on the first ping rather
// than here.
func NewClient(cfg Config) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	poolSize := cfg.MaxPoolSize
	if poolSize == 0 {
		poolSize = DefaultMaxPoolSize
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetMaxPoolSize(poolSize).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Disconnect closes the client within timeout. A nil client is a no-op.
func Disconnect(client *mongo.Client, timeout time.Duration) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
