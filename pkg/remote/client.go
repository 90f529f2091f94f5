// Package remote links the robot to an upstream decision source over a
// websocket. Whatever produces the decisions (a cloud planner, a script
// runner) is out of scope here: this client dials out, reads command
// envelopes, stamps them with the autonomous source, and hands them to
// the actuation core. The link self-heals with a bounded retry loop.
package remote

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/protocol"
)

// Sink receives the envelopes the client produces.
type Sink interface {
	Offer(env *protocol.CommandEnvelope)
}

// Heartbeater is fed on every well-formed inbound message so the
// watchdog knows the decision link is alive.
type Heartbeater interface {
	Heartbeat(now time.Time)
}

// Config controls dialing and retry behavior.
type Config struct {
	// URL of the decision source, e.g. "ws://cloud.local:9000/decisions".
	URL string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// ReconnectInterval is how long to wait between attempts.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts caps consecutive failures. Zero means retry
	// forever.
	MaxReconnectAttempts int
}

// DefaultConfig returns conservative dial and retry settings.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		HandshakeTimeout:  10 * time.Second,
		ReconnectInterval: 3 * time.Second,
	}
}

// Client maintains the connection to the decision source.
type Client struct {
	cfg Config
	out Sink
	hb  Heartbeater

	received       atomic.Int64
	malformed      atomic.Int64
	reconnectCount atomic.Int64
}

// NewClient builds a client. hb may be nil when no watchdog should be
// fed from this link.
func NewClient(cfg Config, out Sink, hb Heartbeater) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}
	return &Client{cfg: cfg, out: out, hb: hb}
}

// Run dials and reads until the context is cancelled. Each dropped
// connection is retried after ReconnectInterval; a cap on attempts, if
// configured, turns persistent failure into an error.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		c.reconnectCount.Add(1)

		if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("max reconnect attempts (%d) reached: %w", c.cfg.MaxReconnectAttempts, err)
		}

		log.Warn("decision link lost, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", c.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	log.Info("decision link connected", "url", c.cfg.URL)

	// Drop the read when the context ends so Run can return promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handle(raw, time.Now())
	}
}

// handle normalizes one inbound message. Split out for tests.
func (c *Client) handle(raw []byte, now time.Time) {
	env, err := protocol.Parse(raw, now)
	if err != nil {
		c.malformed.Add(1)
		log.Warn("malformed decision message", "error", err)
		return
	}

	// The upstream does not get to claim another identity: everything
	// arriving on this link is the autonomous source.
	env.Source = protocol.SourceAutonomous

	if c.hb != nil {
		c.hb.Heartbeat(now)
	}
	c.received.Add(1)

	if env.IsHeartbeat() {
		return
	}
	c.out.Offer(env)
}

// Stats reports message and reconnect counters.
func (c *Client) Stats() (received, malformed, reconnects int64) {
	return c.received.Load(), c.malformed.Load(), c.reconnectCount.Load()
}
