// Package stream keeps a live feed of sensor snapshots from an event-stream endpoint,
// reconnecting after a fixed delay whenever the connection drops.
package stream

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/sse"
)

// DefaultRetryDelay is the fixed pause between a lost connection and the next attempt.
const DefaultRetryDelay = 3 * time.Second

var (
	// ErrUnsupported means the endpoint URL has no event-stream transport.
	ErrUnsupported = errors.New("server-sent events not supported by endpoint")

	errStreamClosed = errors.New("stream closed by server")
)

var tracer = otel.Tracer("github.com/redmiedge/sensordash/internal/stream")

// State is the connection state of the client.
type State int

const (
	Disconnected State = iota
	Connecting
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handler receives everything the client observes. Calls are made from the client's
// goroutine, one at a time and in arrival order.
type Handler interface {
	HandleState(State)
	// HandleSnapshot is called for every decoded snapshot; first is true for the
	// first snapshot of each connection.
	HandleSnapshot(snap *sensor.Snapshot, first bool)
	// HandleNotice carries user-facing messages such as reconnect notices.
	HandleNotice(msg string)
}

// Config configures a Client.
type Config struct {
	URL        string
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client is a reconnecting event-stream consumer.
type Client struct {
	url     string
	delay   time.Duration
	http    *http.Client
	log     zerolog.Logger
	handler Handler
}

// New creates a client for cfg.URL reporting to h.
func New(cfg Config, h Handler) *Client {
	c := &Client{
		url:     cfg.URL,
		delay:   cfg.RetryDelay,
		http:    cfg.HTTPClient,
		handler: h,
		log:     zerolog.Nop(),
	}
	if c.delay <= 0 {
		c.delay = DefaultRetryDelay
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "stream").Logger()
	}
	return c
}

// Run connects and keeps reconnecting until ctx is done. Parse errors never cause a
// reconnect. It returns ErrUnsupported at once when the URL is not http or https.
func (c *Client) Run(ctx context.Context) error {
	c.handler.HandleState(Disconnected)

	if err := c.checkTransport(); err != nil {
		c.handler.HandleNotice("SSE not supported by this endpoint.")
		return err
	}

	attempt := func() error {
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errStreamClosed
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		c.log.Error().Err(err).Dur("next", next).Msg("stream connection lost")
		c.handler.HandleState(Disconnected)
		c.handler.HandleNotice(fmt.Sprintf("Connection lost. Reconnecting in %s...", formatDelay(next)))
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.delay), ctx)
	err := backoff.RetryNotify(attempt, b, notify)
	c.handler.HandleState(Disconnected)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// connect runs one connection until it fails or ends.
func (c *Client) connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stream.connect")
	defer span.End()
	span.SetAttributes(attribute.String("stream.url", c.url))

	c.handler.HandleState(Connecting)
	c.log.Debug().Str("url", c.url).Msg("connecting")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", sse.ContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != sse.ContentType {
		return fmt.Errorf("unexpected content type %q", mediaType)
	}

	c.handler.HandleState(Streaming)
	c.log.Info().Str("url", c.url).Msg("stream connected")

	first := true
	delivered := 0
	for ev, err := range sse.Read(resp.Body) {
		if err != nil {
			span.SetAttributes(attribute.Int("stream.snapshots", delivered))
			return fmt.Errorf("failed to read stream: %w", err)
		}

		switch ev.Type {
		case "", "message":
		case "error":
			return fmt.Errorf("server reported error: %s", ev.Data)
		default:
			continue
		}
		if ev.Data == "" {
			continue
		}

		snap, err := sensor.Decode([]byte(ev.Data))
		if err != nil {
			c.log.Error().Err(err).Msg("SSE parse error")
			continue
		}

		c.handler.HandleSnapshot(snap, first)
		first = false
		delivered++
	}
	span.SetAttributes(attribute.Int("stream.snapshots", delivered))
	return errStreamClosed
}

// checkTransport rejects URLs that cannot carry an event stream.
func (c *Client) checkTransport() error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
	}
}

func formatDelay(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
