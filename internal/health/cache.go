package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// CacheIndicatorName is the outcome name of the cache probe.
const CacheIndicatorName = "redis"

// Cache probe connection defaults.
const (
	DefaultCacheConnectTimeout = 3 * time.Second
	DefaultCacheMaxRetries     = 1

	// CacheNoRetries disables retries of the PING.
	CacheNoRetries = -1
)

// ErrIndicatorClosed is returned by probes used after Close.
var ErrIndicatorClosed = errors.New("health: indicator closed")

// CacheConfig configures the cache probe connection.
type CacheConfig struct {
	// URL is a redis:// or rediss:// connection string.
	URL string

	// ConnectTimeout bounds dialing. Default: 3s.
	ConnectTimeout time.Duration

	// MaxRetries is the number of retries of the PING itself, capped at one.
	// Zero means the default of 1 and CacheNoRetries disables retries.
	MaxRetries int
}

// CacheIndicator pings the cache over a connection it owns for its lifetime.
// The client is created on the first Check and released by Close.
type CacheIndicator struct {
	opts *redis.Options

	mu     sync.Mutex
	client *redis.Client
	closed bool
}

// NewCacheIndicator parses the connection string and prepares the indicator.
// No connection is made until the first Check.
func NewCacheIndicator(cfg CacheConfig) (*CacheIndicator, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errs.Configuration("invalid redis url", err)
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultCacheConnectTimeout
	}
	switch {
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = CacheNoRetries
	case cfg.MaxRetries == 0, cfg.MaxRetries > DefaultCacheMaxRetries:
		cfg.MaxRetries = DefaultCacheMaxRetries
	}

	opts.DialTimeout = cfg.ConnectTimeout
	opts.MaxRetries = cfg.MaxRetries

	return &CacheIndicator{opts: opts}, nil
}

// MaxRetries returns the retry count handed to the client. CacheNoRetries
// means none.
func (c *CacheIndicator) MaxRetries() int {
	return c.opts.MaxRetries
}

// Name implements Indicator.
func (c *CacheIndicator) Name() string {
	return CacheIndicatorName
}

// Check implements Indicator.
func (c *CacheIndicator) Check(ctx context.Context) Result {
	client, err := c.acquire()
	if err != nil {
		return Down(CacheIndicatorName, errs.Unavailable(CacheIndicatorName, err))
	}

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		return Down(CacheIndicatorName, errs.Unavailable(CacheIndicatorName, pingErr))
	}

	return Up(CacheIndicatorName, nil)
}

func (c *CacheIndicator) acquire() (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrIndicatorClosed
	}
	if c.client == nil {
		c.client = redis.NewClient(c.opts)
	}
	return c.client, nil
}

// Close releases the connection. It is safe to call more than once.
func (c *CacheIndicator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil
	return err
}
