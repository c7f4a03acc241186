package session

import "github.com/danmuck/edgemgmt/internal/protocol"

// State is the position of a session in the request/reply exchange.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingBeginOrAck
	StateCollectingRows
	StateDone
	StateAwaitingEvent
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBeginOrAck:
		return "awaiting begin or ack"
	case StateCollectingRows:
		return "collecting rows"
	case StateDone:
		return "done"
	case StateAwaitingEvent:
		return "awaiting event"
	default:
		return "unknown"
	}
}

// Result is the terminal value of one exchange: either the collected rows
// or a subscribe acknowledgment.
type Result struct {
	Rows         []protocol.Record
	Acknowledged bool
}

// Truthy reports whether the result counts as success for a subscribe.
// A row reply is truthy only when it carried at least one row.
func (r Result) Truthy() bool {
	return r.Acknowledged || len(r.Rows) > 0
}

type outcome uint8

const (
	outcomeContinue outcome = iota
	outcomeDiscard
	outcomeDone
)

// discard reasons, used as metric labels.
const (
	discardForeignTag = "foreign_tag"
	discardEvent      = "event"
)

// exchange is the state machine for one tagged request. step is fed every
// decoded datagram until it reports outcomeDone or an error.
type exchange struct {
	tag      protocol.Tag
	kind     protocol.Kind
	state    State
	rows     []protocol.Record
	deferred error
	result   Result
	reason   string
}

func newExchange(tag protocol.Tag, kind protocol.Kind) *exchange {
	return &exchange{tag: tag, kind: kind, state: StateAwaitingBeginOrAck}
}

func (x *exchange) step(msg protocol.Message) (outcome, error) {
	if msg.Type == protocol.MsgEvent {
		x.reason = discardEvent
		return outcomeDiscard, nil
	}
	if msg.Tag != x.tag {
		x.reason = discardForeignTag
		return outcomeDiscard, nil
	}
	switch x.state {
	case StateAwaitingBeginOrAck:
		return x.awaitBeginOrAck(msg)
	case StateCollectingRows:
		return x.collectRows(msg)
	default:
		return outcomeDone, x.unexpected(msg)
	}
}

func (x *exchange) awaitBeginOrAck(msg protocol.Message) (outcome, error) {
	switch msg.Type {
	case protocol.MsgError:
		x.state = StateDone
		return outcomeDone, &ServerError{Tag: x.tag, Message: msg.ErrorText()}
	case protocol.MsgReplacing:
		return outcomeContinue, nil
	case protocol.MsgSubscribe:
		// an ack only terminates a subscribe; answering a read or write it is a violation
		if x.kind != protocol.KindSubscribe {
			return outcomeDone, x.unexpected(msg)
		}
		x.state = StateDone
		x.result = Result{Acknowledged: true}
		return outcomeDone, nil
	case protocol.MsgBegin:
		x.state = StateCollectingRows
		x.rows = []protocol.Record{}
		return outcomeContinue, nil
	default:
		return outcomeDone, x.unexpected(msg)
	}
}

func (x *exchange) collectRows(msg protocol.Message) (outcome, error) {
	switch msg.Type {
	case protocol.MsgRow:
		x.rows = append(x.rows, msg.Payload)
		return outcomeContinue, nil
	case protocol.MsgError:
		if x.deferred == nil {
			x.deferred = &ServerError{Tag: x.tag, Message: msg.ErrorText()}
		}
		return outcomeContinue, nil
	case protocol.MsgEnd:
		x.state = StateDone
		if x.deferred != nil {
			x.rows = nil
			return outcomeDone, x.deferred
		}
		x.result = Result{Rows: x.rows}
		return outcomeDone, nil
	default:
		return outcomeDone, x.unexpected(msg)
	}
}

func (x *exchange) unexpected(msg protocol.Message) error {
	err := &UnexpectedMessageError{State: x.state, Type: msg.Type}
	x.state = StateDone
	return err
}

// eventStep accepts exactly one event message.
func eventStep(msg protocol.Message) (protocol.Record, error) {
	if msg.Type != protocol.MsgEvent {
		return protocol.Record{}, &UnexpectedMessageError{State: StateAwaitingEvent, Type: msg.Type}
	}
	return msg.Payload, nil
}
