package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// BrokerIndicatorName is the outcome name of the NATS probe.
const BrokerIndicatorName = "nats"

// DefaultBrokerConnectTimeout bounds the NATS dial.
const DefaultBrokerConnectTimeout = 3 * time.Second

// BrokerConfig configures the message broker probe.
type BrokerConfig struct {
	URL            string
	ConnectTimeout time.Duration
}

// BrokerIndicator verifies a NATS server with a flush round trip over a connection
// it owns. The connection is dialed on the first Check and released by Close.
type BrokerIndicator struct {
	cfg BrokerConfig

	mu     sync.Mutex
	conn   *nats.Conn
	closed bool
}

// NewBrokerIndicator creates a new BrokerIndicator.
func NewBrokerIndicator(cfg BrokerConfig) *BrokerIndicator {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultBrokerConnectTimeout
	}
	return &BrokerIndicator{cfg: cfg}
}

// Name implements Indicator.
func (b *BrokerIndicator) Name() string {
	return BrokerIndicatorName
}

// Check implements Indicator.
func (b *BrokerIndicator) Check(ctx context.Context) Result {
	conn, err := b.acquire()
	if err != nil {
		return Down(BrokerIndicatorName, errs.Unavailable(BrokerIndicatorName, err))
	}

	if flushErr := conn.FlushWithContext(ctx); flushErr != nil {
		return Down(BrokerIndicatorName, errs.Unavailable(BrokerIndicatorName, flushErr))
	}

	return Up(BrokerIndicatorName, map[string]any{
		"server": conn.ConnectedServerName(),
	})
}

func (b *BrokerIndicator) acquire() (*nats.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrIndicatorClosed
	}
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}

	conn, err := nats.Connect(b.cfg.URL,
		nats.Name("sentinel-health"),
		nats.Timeout(b.cfg.ConnectTimeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	b.conn = conn
	return conn, nil
}

// Close releases the connection. It is safe to call more than once.
func (b *BrokerIndicator) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}
