// Package hermes connects the roster to the swarm message bus.
package hermes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Options configures the roster's bus connection.
type Options struct {
	URL   string
	Token string
	// Name identifies the connection in NATS monitoring.
	Name string
	// Queue is the queue group intake subscriptions join, so replicas share
	// inbound events instead of each recording them. Empty means a plain
	// subscription on every replica.
	Queue         string
	MaxReconnects int
	ReconnectWait time.Duration
	// DrainTimeout bounds how long Close waits for in-flight handlers.
	DrainTimeout time.Duration
}

// DefaultOptions returns the settings serve uses when only a URL and token
// are configured.
func DefaultOptions(url, token string) Options {
	return Options{
		URL:           url,
		Token:         token,
		Name:          "roster",
		Queue:         "roster",
		MaxReconnects: 60,
		ReconnectWait: 2 * time.Second,
		DrainTimeout:  5 * time.Second,
	}
}

func (o Options) natsOptions(logger *slog.Logger, closed chan<- struct{}) []nats.Option {
	opts := []nats.Option{
		nats.Name(o.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(o.MaxReconnects),
		nats.ReconnectWait(o.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "name", o.Name, "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "name", o.Name, "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
	}
	if o.Token != "" {
		opts = append(opts, nats.Token(o.Token))
	}
	return opts
}

// Client publishes JSON payloads and runs intake handlers.
type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	queue  string
	drain  time.Duration
	closed chan struct{}
	logger *slog.Logger
}

// Connect dials the bus. With RetryOnFailedConnect an unreachable server is
// not an error; the client keeps trying in the background.
func Connect(opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	closed := make(chan struct{})
	nc, err := nats.Connect(opts.URL, opts.natsOptions(logger, closed)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{
		conn:   nc,
		queue:  opts.Queue,
		drain:  opts.DrainTimeout,
		closed: closed,
		logger: logger,
	}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler on subject, joining the client's queue group
// when one is configured. A panicking handler is logged and the message
// dropped; the subscription stays alive.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	cb := safeHandler(handler, c.logger)
	var (
		sub *nats.Subscription
		err error
	)
	if c.queue != "" {
		sub, err = c.conn.QueueSubscribe(subject, c.queue, cb)
	} else {
		sub, err = c.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject, "queue", c.queue)
	return nil
}

func safeHandler(handler func(subject string, data []byte), logger *slog.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic", "subject", msg.Subject, "panic", r)
			}
		}()
		handler(msg.Subject, msg.Data)
	}
}

// Close drains subscriptions so in-flight events finish, then closes the
// connection. It gives up waiting after DrainTimeout.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.conn.Close()
		return
	}
	if c.drain <= 0 {
		<-c.closed
		return
	}
	select {
	case <-c.closed:
	case <-time.After(c.drain):
		c.logger.Warn("nats drain timed out", "timeout", c.drain)
		c.conn.Close()
	}
}
