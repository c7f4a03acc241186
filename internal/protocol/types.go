package protocol

// Kind is the request kind written as the first token of a request line.
type Kind byte

const (
	KindRead      Kind = 'r'
	KindWrite     Kind = 'w'
	KindSubscribe Kind = 's'
)

// Valid reports whether k is one of the request kinds the edge accepts.
func (k Kind) Valid() bool {
	switch k {
	case KindRead, KindWrite, KindSubscribe:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindSubscribe:
		return "subscribe"
	default:
		return "unknown"
	}
}

// MessageType is the _type of a reply datagram.
type MessageType string

const (
	MsgBegin     MessageType = "begin"
	MsgRow       MessageType = "row"
	MsgEnd       MessageType = "end"
	MsgError     MessageType = "error"
	MsgSubscribe MessageType = "subscribe"
	MsgReplacing MessageType = "replacing"
	MsgEvent     MessageType = "event"
)

// Known reports whether t is part of the reply vocabulary.
func (t MessageType) Known() bool {
	switch t {
	case MsgBegin, MsgRow, MsgEnd, MsgError, MsgSubscribe, MsgReplacing, MsgEvent:
		return true
	default:
		return false
	}
}

// Tag correlates a request with its reply datagrams.
type Tag string

// Framing field names carried by every reply datagram.
const (
	FieldTag   = "_tag"
	FieldType  = "_type"
	FieldError = "error"
)

// Request is one outgoing request line.
type Request struct {
	Kind    Kind
	Tag     Tag
	Secret  string
	Command string
}

// HasSecret reports whether the request carries the auth flag.
func (r Request) HasSecret() bool {
	return r.Secret != ""
}

// Message is one decoded reply datagram with framing fields stripped from
// its payload.
type Message struct {
	Tag     Tag
	Type    MessageType
	Payload Record
}

// ErrorText returns the server supplied reason of an error message.
func (m Message) ErrorText() string {
	v, ok := m.Payload.Get(FieldError)
	if !ok {
		return ""
	}
	return v.Text()
}
