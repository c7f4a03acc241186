package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// flagHasSecret marks a tag segment that is followed by the auth secret.
const flagHasSecret = "1"

// EncodeRequest renders req as a request line:
//
//	<kind> <tag>[:1:<secret>] <command>
func EncodeRequest(req Request) ([]byte, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, byte(req.Kind))
	}
	if req.Tag == "" || strings.ContainsAny(string(req.Tag), ": \t\r\n") {
		return nil, fmt.Errorf("%w: bad tag %q", ErrInvalidLine, req.Tag)
	}
	if strings.ContainsAny(req.Secret, " \t\r\n") {
		return nil, ErrInvalidSecret
	}
	if strings.ContainsAny(req.Command, "\r\n") {
		return nil, ErrInvalidCommand
	}

	var buf bytes.Buffer
	buf.Grow(len(req.Tag) + len(req.Secret) + len(req.Command) + 8)
	buf.WriteByte(byte(req.Kind))
	buf.WriteByte(' ')
	buf.WriteString(string(req.Tag))
	if req.HasSecret() {
		buf.WriteByte(':')
		buf.WriteString(flagHasSecret)
		buf.WriteByte(':')
		buf.WriteString(req.Secret)
	}
	buf.WriteByte(' ')
	buf.WriteString(req.Command)
	return buf.Bytes(), nil
}

// ParseRequest is the inverse of EncodeRequest.
func ParseRequest(line []byte) (Request, error) {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return Request{}, fmt.Errorf("%w: expected kind, tag and command", ErrInvalidLine)
	}
	if len(parts[0]) != 1 {
		return Request{}, fmt.Errorf("%w: %q", ErrInvalidKind, parts[0])
	}
	req := Request{Kind: Kind(parts[0][0]), Command: parts[2]}
	if !req.Kind.Valid() {
		return Request{}, fmt.Errorf("%w: %q", ErrInvalidKind, parts[0])
	}
	if strings.ContainsAny(req.Command, "\r\n") {
		return Request{}, ErrInvalidCommand
	}

	segment := strings.SplitN(parts[1], ":", 3)
	switch len(segment) {
	case 1:
	case 3:
		if segment[1] != flagHasSecret || segment[2] == "" {
			return Request{}, fmt.Errorf("%w: bad flags %q", ErrInvalidLine, parts[1])
		}
		req.Secret = segment[2]
	default:
		return Request{}, fmt.Errorf("%w: bad tag segment %q", ErrInvalidLine, parts[1])
	}
	if segment[0] == "" {
		return Request{}, fmt.Errorf("%w: empty tag", ErrInvalidLine)
	}
	req.Tag = Tag(segment[0])
	return req, nil
}

// EncodeMessage renders msg as a reply datagram with the framing fields
// first, followed by the payload in order. Framing names inside the payload
// are ignored.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, MissingFieldError{Field: FieldType}
	}
	var out Record
	if msg.Tag != "" {
		out.Set(FieldTag, StringValue(string(msg.Tag)))
	} else if msg.Type != MsgEvent {
		return nil, MissingFieldError{Field: FieldTag}
	}
	out.Set(FieldType, StringValue(string(msg.Type)))
	for _, f := range msg.Payload.fields {
		if f.Name == FieldTag || f.Name == FieldType {
			continue
		}
		out.Set(f.Name, f.Value)
	}
	return json.Marshal(out)
}
