// Package events connects feedsearch to the feed reader's item events over NATS.
package events

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultMaxDeliver bounds redelivery of an item event that keeps failing.
const DefaultMaxDeliver = 3

// ClientOptions tunes the NATS connection. Zero values pick defaults.
type ClientOptions struct {
	Name          string
	ReconnectWait time.Duration
	MaxDeliver    int
}

// Client is a NATS connection that prefers durable JetStream consumers and
// falls back to plain subscriptions on servers without JetStream.
type Client struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	name       string
	maxDeliver int
	logger     *slog.Logger
}

func NewClient(url string, opts ClientOptions, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "feedsearch"
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxDeliver <= 0 {
		opts.MaxDeliver = DefaultMaxDeliver
	}

	logger = logger.With("component", "events", "nats_url", url)
	nc, err := nats.Connect(url,
		nats.Name(opts.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("lost event bus connection", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("event bus connection restored", "server", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	c := &Client{
		conn:       nc,
		name:       opts.Name,
		maxDeliver: opts.MaxDeliver,
		logger:     logger,
	}
	if js, err := nc.JetStream(); err != nil {
		logger.Warn("JetStream unavailable, item events are not durable", "error", err)
	} else {
		c.js = js
	}
	return c, nil
}

// Subscribe attaches handler to subject. With JetStream the consumer is
// durable, named after the client and subject, and acks explicitly; if the
// stream is missing it degrades to a core subscription.
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	if c.js != nil {
		sub, err := c.js.Subscribe(subject, handler,
			nats.Durable(durableName(c.name, subject)),
			nats.DeliverAll(),
			nats.AckExplicit(),
			nats.MaxDeliver(c.maxDeliver),
		)
		if err == nil {
			return sub, nil
		}
		c.logger.Warn("durable subscribe failed, using core NATS", "subject", subject, "error", err)
	}
	return c.conn.Subscribe(subject, handler)
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}

func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// durableName maps a subject to a JetStream consumer name, which may not
// contain '.', '*' or '>'.
func durableName(prefix, subject string) string {
	return prefix + "-" + strings.NewReplacer(".", "-", ">", "all", "*", "any").Replace(subject)
}
