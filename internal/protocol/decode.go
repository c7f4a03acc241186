package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodeMessage parses one reply datagram. Field order of the payload is
// preserved and the _tag/_type framing fields are removed from it. Event
// messages may omit _tag.
func DecodeMessage(data []byte) (Message, error) {
	payload, err := decodeObject(data)
	if err != nil {
		return Message{}, err
	}

	rawType, ok := payload.Get(FieldType)
	if !ok {
		return Message{}, MissingFieldError{Field: FieldType}
	}
	if rawType.Type != ValueString || rawType.String == "" {
		return Message{}, fmt.Errorf("%w: %s must be a non-empty string", ErrMalformedMessage, FieldType)
	}
	msg := Message{Type: MessageType(rawType.String)}

	rawTag, ok := payload.Get(FieldTag)
	switch {
	case ok:
		tag, err := tagFromValue(rawTag)
		if err != nil {
			return Message{}, err
		}
		msg.Tag = tag
	case msg.Type != MsgEvent:
		return Message{}, MissingFieldError{Field: FieldTag}
	}

	payload.Delete(FieldTag)
	payload.Delete(FieldType)
	msg.Payload = payload
	return msg, nil
}

func tagFromValue(v Value) (Tag, error) {
	switch v.Type {
	case ValueString:
		if strings.TrimSpace(v.String) == "" {
			return "", fmt.Errorf("%w: empty %s", ErrMalformedMessage, FieldTag)
		}
		return Tag(v.String), nil
	case ValueInt:
		if v.Int < 0 {
			return "", fmt.Errorf("%w: negative %s", ErrMalformedMessage, FieldTag)
		}
		return Tag(strconv.FormatInt(v.Int, 10)), nil
	default:
		return "", fmt.Errorf("%w: %s has type %s", ErrMalformedMessage, FieldTag, v.Type)
	}
}

func decodeObject(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Record{}, fmt.Errorf("%w: payload is not an object", ErrMalformedMessage)
	}

	var rec Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, fmt.Errorf("%w: unexpected token %v", ErrMalformedMessage, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Record{}, fmt.Errorf("%w: field %q: %v", ErrMalformedMessage, key, err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return Record{}, fmt.Errorf("%w: field %q: %v", ErrMalformedMessage, key, err)
		}
		rec.set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Record{}, fmt.Errorf("%w: trailing data after object", ErrMalformedMessage)
	}
	return rec, nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Value{}, errors.New("empty value")
	}
	switch trimmed[0] {
	case 'n':
		return NullValue(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return Value{}, err
		}
		return StringValue(buf.String()), nil
	default:
		num := json.Number(trimmed)
		if i, err := num.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := num.Float64()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	}
}
