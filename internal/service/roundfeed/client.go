package roundfeed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/internal/service/metrics"
	"TokenRank/pkg/logger"

	"github.com/gorilla/websocket"
)

// Handler receives decoded round events in feed order.
type Handler interface {
	HandleRound(ctx context.Context, ev models.RoundEvent) error
}

type Config struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Client keeps a websocket session to the game feed open and forwards round
// frames to the handler. A dropped session is redialed after ReconnectDelay.
type Client struct {
	cfg     Config
	handler Handler
	log     *logger.Logger
	dialer  *websocket.Dialer
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, handler Handler, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		log:     log,
		dialer:  websocket.DefaultDialer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *Client) Start() error {
	if c.cfg.URL == "" {
		return fmt.Errorf("round feed url is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("round feed already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for round feed to stop: %w", ctx.Err())
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		metrics.RoundFeedEvents.WithLabelValues("reconnect").Inc()
		c.log.Warn("round feed disconnected",
			logger.Error(err),
			logger.Duration("retry_in", c.cfg.ReconnectDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// session runs one connection until it fails or ctx is cancelled.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("round feed connect: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(typ int, b []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(typ, b)
	}

	if err := write(websocket.TextMessage, []byte(hello())); err != nil {
		return fmt.Errorf("round feed hello: %w", err)
	}
	c.log.Info("round feed connected", logger.String("url", c.cfg.URL))

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sessCtx.Done():
				// unblocks ReadMessage
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					c.log.Debug("round feed ping", logger.Error(err))
				}
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("round feed read: %w", err)
		}
		c.dispatch(sessCtx, b)
	}
}

func (c *Client) dispatch(ctx context.Context, payload []byte) {
	ev, ok, err := ParseFrame(payload, c.now())
	if err != nil {
		metrics.RoundFeedEvents.WithLabelValues("invalid").Inc()
		c.log.Debug("round feed frame", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	metrics.RoundFeedEvents.WithLabelValues(ev.Status).Inc()

	if err := c.handler.HandleRound(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("handle round",
			logger.String("round_id", ev.RoundID),
			logger.String("status", ev.Status),
			logger.Error(err))
	}
}

// hello is the client registration frame the feed expects after connecting.
func hello() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return helloPrefix + hex.EncodeToString(b)
}
