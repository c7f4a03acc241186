// Package edgetest runs a scripted edge on a loopback UDP socket.
package edgetest

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/edgemgmt/internal/auth"
	"github.com/danmuck/edgemgmt/internal/protocol"
)

// Reply is one datagram sent back for a request. Raw, when set, is sent
// verbatim instead of Message.
type Reply struct {
	Message protocol.Message
	Raw     []byte
	Delay   time.Duration
}

// Handler scripts the replies for one request.
type Handler func(req protocol.Request) []Reply

// Option customizes an Edge.
type Option func(*Edge)

// WithValidator makes the edge answer requests whose secret fails v with an
// error message instead of calling the handler.
func WithValidator(v auth.Validator) Option {
	return func(e *Edge) {
		e.validator = v
	}
}

type Edge struct {
	t         testing.TB
	conn      *net.UDPConn
	handler   Handler
	validator auth.Validator
	done      chan struct{}

	mu       sync.Mutex
	requests []protocol.Request
	peer     *net.UDPAddr
}

// Start listens on 127.0.0.1 and serves until the test ends.
func Start(t testing.TB, handler Handler, opts ...Option) *Edge {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("edgetest: listen: %v", err)
	}
	e := &Edge{
		t:       t,
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.serve()
	t.Cleanup(e.Close)
	return e
}

func (e *Edge) Addr() string {
	return e.conn.LocalAddr().String()
}

// Requests returns every request received so far, in order.
func (e *Edge) Requests() []protocol.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]protocol.Request, len(e.requests))
	copy(out, e.requests)
	return out
}

// Push sends replies to the most recent client.
func (e *Edge) Push(replies ...Reply) {
	e.mu.Lock()
	peer := e.peer
	e.mu.Unlock()
	if peer == nil {
		e.t.Errorf("edgetest: push before any request")
		return
	}
	e.send(peer, replies)
}

// Close stops the edge and waits for its serve loop to exit.
func (e *Edge) Close() {
	_ = e.conn.Close()
	<-e.done
}

func (e *Edge) serve() {
	defer close(e.done)
	buf := make([]byte, 65535)
	for {
		n, peer, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				e.t.Errorf("edgetest: read: %v", err)
			}
			return
		}
		req, err := protocol.ParseRequest(buf[:n])
		if err != nil {
			e.t.Errorf("edgetest: bad request line %q: %v", buf[:n], err)
			continue
		}
		e.mu.Lock()
		e.requests = append(e.requests, req)
		e.peer = peer
		e.mu.Unlock()

		if e.validator != nil {
			if err := e.validator.Validate(req.Secret); err != nil {
				e.send(peer, []Reply{Error(req.Tag, err.Error())})
				continue
			}
		}
		if e.handler == nil {
			continue
		}
		e.send(peer, e.handler(req))
	}
}

func (e *Edge) send(peer *net.UDPAddr, replies []Reply) {
	for _, r := range replies {
		if r.Delay > 0 {
			time.Sleep(r.Delay)
		}
		payload := r.Raw
		if payload == nil {
			var err error
			payload, err = protocol.EncodeMessage(r.Message)
			if err != nil {
				e.t.Errorf("edgetest: encode reply: %v", err)
				continue
			}
		}
		if _, err := e.conn.WriteToUDP(payload, peer); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				e.t.Errorf("edgetest: write: %v", err)
			}
			return
		}
	}
}

// Rec builds a record from alternating names and values. Values may be
// string, int, int64, float64, bool or nil.
func Rec(kv ...any) protocol.Record {
	var r protocol.Record
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		r.Set(name, toValue(kv[i+1]))
	}
	return r
}

func toValue(v any) protocol.Value {
	switch x := v.(type) {
	case string:
		return protocol.StringValue(x)
	case int:
		return protocol.IntValue(int64(x))
	case int64:
		return protocol.IntValue(x)
	case float64:
		return protocol.FloatValue(x)
	case bool:
		return protocol.BoolValue(x)
	default:
		return protocol.NullValue()
	}
}

// Msg builds a reply of the given type.
func Msg(tag protocol.Tag, typ protocol.MessageType, payload protocol.Record) Reply {
	return Reply{Message: protocol.Message{Tag: tag, Type: typ, Payload: payload}}
}

// Error builds an error reply.
func Error(tag protocol.Tag, text string) Reply {
	return Msg(tag, protocol.MsgError, Rec(protocol.FieldError, text))
}

// Event builds an untagged event reply.
func Event(payload protocol.Record) Reply {
	return Msg("", protocol.MsgEvent, payload)
}

// Rows builds a complete begin, row..., end reply stream.
func Rows(tag protocol.Tag, rows ...protocol.Record) []Reply {
	out := make([]Reply, 0, len(rows)+2)
	out = append(out, Msg(tag, protocol.MsgBegin, protocol.Record{}))
	for _, row := range rows {
		out = append(out, Msg(tag, protocol.MsgRow, row))
	}
	return append(out, Msg(tag, protocol.MsgEnd, protocol.Record{}))
}
