package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/edgemgmt/internal/observability"
	"github.com/danmuck/edgemgmt/internal/protocol"
)

// Session runs tagged exchanges against one edge over one datagram socket.
// It is not safe for concurrent use, with the exception of Close.
type Session struct {
	cfg        Config
	conn       net.Conn
	tags       protocol.TagAllocator
	state      State
	subscribed bool
	closed     atomic.Bool
	buf        []byte
	log        zerolog.Logger
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger replaces the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

// Dial opens a UDP socket to cfg.Addr and returns a Session owning it.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", cfg.Addr, err)
	}
	return New(conn, cfg, opts...), nil
}

// New wraps an already connected datagram socket. The session takes
// ownership of conn.
func New(conn net.Conn, cfg Config, opts ...Option) *Session {
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = DefaultConfig().MaxDatagramSize
	}
	s := &Session{
		cfg:  cfg,
		conn: conn,
		buf:  make([]byte, cfg.MaxDatagramSize),
		log:  observability.Logger("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports where the session is in the current or last exchange.
func (s *Session) State() State {
	return s.state
}

// Subscribed reports whether a subscribe was acknowledged, which is what
// ReceiveEvent requires.
func (s *Session) Subscribed() bool {
	return s.subscribed
}

// RemoteAddr is the resolved edge address the socket is connected to.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Read runs one read request and returns the collected rows.
func (s *Session) Read(ctx context.Context, command string) ([]protocol.Record, error) {
	res, err := s.exchange(ctx, protocol.KindRead, command)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Write runs one write request. Client-side handling is identical to Read.
func (s *Session) Write(ctx context.Context, command string) ([]protocol.Record, error) {
	res, err := s.exchange(ctx, protocol.KindWrite, command)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Subscribe asks the edge to push events to this session. Failures are
// returned as errors; the boolean is the truth of the reply, which callers
// treat as "could not subscribe" when false.
func (s *Session) Subscribe(ctx context.Context, command string) (bool, error) {
	res, err := s.exchange(ctx, protocol.KindSubscribe, command)
	if err != nil {
		return false, err
	}
	ok := res.Truthy()
	if ok {
		s.subscribed = true
	}
	return ok, nil
}

// ReceiveEvent blocks for the next pushed event, bounded by EventTimeout.
// Any datagram other than an event is a protocol violation.
func (s *Session) ReceiveEvent(ctx context.Context) (protocol.Record, error) {
	if s.closed.Load() {
		return protocol.Record{}, ErrClosed
	}
	if !s.subscribed {
		return protocol.Record{}, ErrNotSubscribed
	}
	s.state = StateAwaitingEvent

	stop := context.AfterFunc(ctx, s.interrupt)
	defer stop()

	msg, err := s.receive(ctx, s.cfg.EventTimeout)
	if err != nil {
		return protocol.Record{}, err
	}
	event, err := eventStep(msg)
	if err != nil {
		s.log.Debug().Str("type", string(msg.Type)).Str("tag", string(msg.Tag)).Msg("protocol violation while awaiting event")
		return protocol.Record{}, err
	}
	observability.RecordEvent()
	s.log.Trace().Int("fields", event.Len()).Msg("event received")
	return event, nil
}

// Close releases the socket. It is safe to call more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) exchange(ctx context.Context, kind protocol.Kind, command string) (Result, error) {
	if s.closed.Load() {
		return Result{}, ErrClosed
	}
	tag := s.tags.Next()
	line, err := protocol.EncodeRequest(protocol.Request{
		Kind:    kind,
		Tag:     tag,
		Secret:  s.cfg.Secret,
		Command: command,
	})
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := s.run(ctx, newExchange(tag, kind), line)
	observability.RecordExchange(kind.String(), outcomeLabel(err), time.Since(start))
	s.state = StateIdle
	if err != nil {
		s.log.Debug().Err(err).Str("kind", kind.String()).Str("tag", string(tag)).Msg("exchange failed")
		return Result{}, err
	}
	s.log.Debug().
		Str("kind", kind.String()).
		Str("tag", string(tag)).
		Int("rows", len(res.Rows)).
		Bool("ack", res.Acknowledged).
		Dur("duration", time.Since(start)).
		Msg("exchange done")
	return res, nil
}

func (s *Session) run(ctx context.Context, x *exchange, line []byte) (Result, error) {
	stop := context.AfterFunc(ctx, s.interrupt)
	defer stop()

	if err := s.send(ctx, line); err != nil {
		return Result{}, err
	}
	s.state = x.state
	s.log.Debug().Str("kind", x.kind.String()).Str("tag", string(x.tag)).Msg("request sent")

	for {
		msg, err := s.receive(ctx, s.cfg.RequestTimeout)
		if err != nil {
			return Result{}, err
		}
		out, err := x.step(msg)
		s.state = x.state
		if err != nil {
			return Result{}, err
		}
		switch out {
		case outcomeDiscard:
			observability.RecordDiscarded(x.reason)
			s.log.Debug().
				Str("reason", x.reason).
				Str("tag", string(msg.Tag)).
				Str("want", string(x.tag)).
				Str("type", string(msg.Type)).
				Msg("datagram discarded")
		case outcomeDone:
			return x.result, nil
		default:
			s.log.Trace().Str("type", string(msg.Type)).Str("tag", string(msg.Tag)).Msg("datagram accepted")
		}
	}
}

func (s *Session) send(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("session: send: %w", err)
	}
	if _, err := s.conn.Write(line); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("session: send: %w", err)
	}
	return nil
}

func (s *Session) receive(ctx context.Context, timeout time.Duration) (protocol.Message, error) {
	deadline := time.Now().Add(timeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, ctxBound = d, true
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		if s.closed.Load() || errors.Is(err, net.ErrClosed) {
			return protocol.Message{}, ErrClosed
		}
		return protocol.Message{}, fmt.Errorf("session: receive: %w", err)
	}
	// interrupt may have fired before the deadline above was installed.
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, err
	}

	n, err := s.conn.Read(s.buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Message{}, ctxErr
		}
		if isTimeout(err) {
			if ctxBound {
				return protocol.Message{}, context.DeadlineExceeded
			}
			return protocol.Message{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		if s.closed.Load() || errors.Is(err, net.ErrClosed) {
			return protocol.Message{}, ErrClosed
		}
		return protocol.Message{}, fmt.Errorf("session: receive: %w", err)
	}
	return protocol.DecodeMessage(s.buf[:n])
}

// interrupt unblocks a pending read when the caller's context ends.
func (s *Session) interrupt() {
	_ = s.conn.SetReadDeadline(time.Now())
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeLabel(err error) string {
	var serverErr *ServerError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &serverErr):
		return "server_error"
	case errors.Is(err, ErrUnexpectedMessage):
		return "unexpected"
	case errors.Is(err, protocol.ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
