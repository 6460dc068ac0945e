package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	goClone "github.com/MrEthical07/goClone"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "goclone.events"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Sink publishes factory notifications as JSON on
// <subject>.<event_type>, e.g. goclone.events.proxy_created. The event id is
// sent as the Nats-Msg-Id header so JetStream streams deduplicate redelivery.
//
// Sink implements goClone.AuditSink and runs on the factory's dispatcher
// goroutine; publish failures are logged and counted, never returned.
type Sink struct {
	pub     Publisher
	subject string
	logger  *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a [Sink].
type Option func(*Sink)

// WithSubject overrides [DefaultSubject].
func WithSubject(subject string) Option {
	return func(s *Sink) {
		if subject = strings.Trim(strings.TrimSpace(subject), "."); subject != "" {
			s.subject = subject
		}
	}
}

// WithLogger sets the logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSink wraps pub, usually a *nats.Conn.
func NewSink(pub Publisher, opts ...Option) (*Sink, error) {
	if pub == nil {
		return nil, errors.New("nil nats publisher")
	}
	s := &Sink{
		pub:     pub,
		subject: DefaultSubject,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Connect dials url with reconnects enabled and a client name identifying the
// factory process.
func Connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	base := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	return nats.Connect(url, append(base, opts...)...)
}

// Subject returns the subject an event of eventType is published on.
func (s *Sink) Subject(eventType string) string {
	if eventType == "" {
		return s.subject
	}
	return s.subject + "." + eventType
}

// Emit implements goClone.AuditSink.
func (s *Sink) Emit(ctx context.Context, event goClone.AuditEvent) {
	if err := ctx.Err(); err != nil {
		s.fail(event, err)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.fail(event, err)
		return
	}

	msg := nats.NewMsg(s.Subject(event.EventType))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if event.ID != "" {
		msg.Header.Set(nats.MsgIdHdr, event.ID)
	}
	if event.Factory != "" {
		msg.Header.Set("Goclone-Factory", event.Factory)
	}

	if err := s.pub.PublishMsg(msg); err != nil {
		s.fail(event, err)
		return
	}
	s.published.Add(1)
}

// Published counts events handed to the publisher.
func (s *Sink) Published() uint64 { return s.published.Load() }

// Failed counts events that could not be published.
func (s *Sink) Failed() uint64 { return s.failed.Load() }

func (s *Sink) fail(event goClone.AuditEvent, err error) {
	s.failed.Add(1)
	s.logger.Warn("nats publish failed",
		"subject", s.Subject(event.EventType),
		"event_id", event.ID,
		"error", err,
	)
}

var _ goClone.AuditSink = (*Sink)(nil)
