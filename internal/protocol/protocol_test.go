package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestRequestRoundTripWithSecret(t *testing.T) {
	req := Request{
		Kind:    KindWrite,
		Tag:     "42",
		Secret:  "s3cr:et",
		Command: "route add 10.0.0.0/8 via eth1",
	}
	line, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if want := "w 42:1:s3cr:et route add 10.0.0.0/8 via eth1"; string(line) != want {
		t.Fatalf("unexpected line: got=%q want=%q", line, want)
	}

	got, err := ParseRequest(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != req {
		t.Fatalf("round-trip mismatch: got=%+v want=%+v", got, req)
	}
	if !got.HasSecret() {
		t.Fatalf("expected secret flag")
	}
}

func TestRequestWithoutSecretOmitsFlags(t *testing.T) {
	line, err := EncodeRequest(Request{Kind: KindRead, Tag: "0", Command: "peers"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(line) != "r 0 peers" {
		t.Fatalf("unexpected line: %q", line)
	}
	got, err := ParseRequest(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.HasSecret() || got.Tag != "0" || got.Command != "peers" || got.Kind != KindRead {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestEncodeRequestRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"kind", Request{Kind: 'x', Tag: "1", Command: "c"}, ErrInvalidKind},
		{"tag", Request{Kind: KindRead, Tag: "", Command: "c"}, ErrInvalidLine},
		{"tag colon", Request{Kind: KindRead, Tag: "1:2", Command: "c"}, ErrInvalidLine},
		{"secret", Request{Kind: KindRead, Tag: "1", Secret: "a b", Command: "c"}, ErrInvalidSecret},
		{"command", Request{Kind: KindRead, Tag: "1", Command: "a\nb"}, ErrInvalidCommand},
	}
	for _, tc := range cases {
		if _, err := EncodeRequest(tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseRequestRejectsBadFlags(t *testing.T) {
	for _, line := range []string{"r 1:0:x cmd", "r 1:1: cmd", "r 1:1 cmd", "r :1:x cmd", "r 1", "q 1 cmd"} {
		if _, err := ParseRequest([]byte(line)); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestDecodeMessageStripsFramingAndKeepsOrder(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"_tag":"7","zeta":"z","_type":"row","alpha":1,"mid":2.5,"ok":true,"none":null,"nested":{"a": [1, 2]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Tag != "7" || msg.Type != MsgRow {
		t.Fatalf("unexpected framing: tag=%q type=%q", msg.Tag, msg.Type)
	}
	keys := msg.Payload.Keys()
	want := []string{"zeta", "alpha", "mid", "ok", "none", "nested"}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys: %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("unexpected key order: %v", keys)
		}
	}
	if v, _ := msg.Payload.Get("alpha"); v.Type != ValueInt || v.Int != 1 {
		t.Fatalf("unexpected alpha: %+v", v)
	}
	if v, _ := msg.Payload.Get("mid"); v.Type != ValueFloat || v.Float != 2.5 {
		t.Fatalf("unexpected mid: %+v", v)
	}
	if v, _ := msg.Payload.Get("ok"); v.Type != ValueBool || !v.Bool {
		t.Fatalf("unexpected ok: %+v", v)
	}
	if v, _ := msg.Payload.Get("none"); v.Type != ValueNull {
		t.Fatalf("unexpected none: %+v", v)
	}
	if v, _ := msg.Payload.Get("nested"); v.Type != ValueString || v.String != `{"a":[1,2]}` {
		t.Fatalf("unexpected nested: %+v", v)
	}
	if _, ok := msg.Payload.Get(FieldTag); ok {
		t.Fatalf("framing field %s leaked into payload", FieldTag)
	}
	if _, ok := msg.Payload.Get(FieldType); ok {
		t.Fatalf("framing field %s leaked into payload", FieldType)
	}
}

func TestDecodeMessageNumericTag(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"_tag":12,"_type":"end"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Tag != "12" || msg.Type != MsgEnd || msg.Payload.Len() != 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestDecodeMessageEventWithoutTag(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"_type":"event","peer":"a"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Tag != "" || msg.Type != MsgEvent {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestDecodeMessageKeepsUnknownType(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"_tag":"1","_type":"bogus"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type.Known() {
		t.Fatalf("type %q should not be known", msg.Type)
	}
}

func TestDecodeMessageMalformed(t *testing.T) {
	cases := []string{
		``,
		`not json`,
		`[1,2]`,
		`"row"`,
		`{"_tag":"1"}`,
		`{"_type":"row"}`,
		`{"_tag":"1","_type":5}`,
		`{"_tag":true,"_type":"row"}`,
		`{"_tag":-1,"_type":"row"}`,
		`{"_tag":"","_type":"row"}`,
		`{"_tag":"1","_type":"row"} {}`,
		`{"_tag":"1","_type":"row"`,
	}
	for _, raw := range cases {
		if _, err := DecodeMessage([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("expected ErrMalformedMessage for %q, got %v", raw, err)
		}
	}
}

func TestMissingFieldErrorMatchesMalformed(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"_type":"row"}`))
	var missing MissingFieldError
	if !errors.As(err, &missing) || missing.Field != FieldTag {
		t.Fatalf("expected MissingFieldError for %s, got %v", FieldTag, err)
	}
}

func TestEncodeMessageRoundTrip(t *testing.T) {
	payload := NewRecord(
		Field{Name: "name", Value: StringValue("eth0")},
		Field{Name: "rx", Value: IntValue(1024)},
		Field{Name: "_type", Value: StringValue("ignored")},
	)
	raw, err := EncodeMessage(Message{Tag: "3", Type: MsgRow, Payload: payload})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte(`{"_tag":"3","_type":"row",`)) {
		t.Fatalf("framing fields must lead: %s", raw)
	}
	msg, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Payload.Len() != 2 {
		t.Fatalf("unexpected payload: %s", raw)
	}
	if v, _ := msg.Payload.Get("rx"); v.Int != 1024 {
		t.Fatalf("unexpected rx: %+v", v)
	}
}

func TestMessageErrorText(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"_tag":"9","_type":"error","error":"no such table"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ErrorText() != "no such table" {
		t.Fatalf("unexpected error text: %q", msg.ErrorText())
	}
}

func TestTagAllocatorWraps(t *testing.T) {
	var a TagAllocator
	if got := a.Next(); got != "0" {
		t.Fatalf("first tag got=%q", got)
	}
	if got := a.Next(); got != "1" {
		t.Fatalf("second tag got=%q", got)
	}
	for i := 2; i < TagModulus; i++ {
		a.Next()
	}
	if got := a.Next(); got != "0" {
		t.Fatalf("expected wrap to 0, got=%q", got)
	}
}

func TestTagAllocatorsAreIndependent(t *testing.T) {
	var a, b TagAllocator
	a.Next()
	a.Next()
	if got := b.Next(); got != "0" {
		t.Fatalf("allocators share state: got=%q", got)
	}
}

func TestRecordSetDeleteAndJSON(t *testing.T) {
	var r Record
	r.Set("b", IntValue(1))
	r.Set("a", StringValue("x"))
	r.Set("b", IntValue(2))
	r.Delete("missing")
	raw, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"b":2,"a":"x"}` {
		t.Fatalf("unexpected json: %s", raw)
	}
	r.Delete("b")
	if v, ok := r.Get("a"); !ok || v.String != "x" || r.Len() != 1 {
		t.Fatalf("unexpected record after delete: %v", r.Keys())
	}
}

func TestRecordCopiesAreIndependent(t *testing.T) {
	row := NewRecord(
		Field{Name: "a", Value: StringValue("1")},
		Field{Name: "b", Value: StringValue("2")},
	)

	added := row
	added.Set("rx", IntValue(10))
	added.Set("a", StringValue("changed"))
	if _, ok := row.Get("rx"); ok || row.Len() != 2 {
		t.Fatalf("append leaked into original: %v", row.Keys())
	}
	if v, _ := row.Get("a"); v.String != "1" {
		t.Fatalf("in-place update leaked into original: %q", v.String)
	}
	if v, ok := added.Get("rx"); !ok || v.Int != 10 {
		t.Fatalf("copy lost its own field: %v", added.Keys())
	}

	removed := row
	removed.Delete("a")
	if keys := row.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("delete leaked into original: %v", keys)
	}
	if v, ok := row.Get("a"); !ok || v.String != "1" {
		t.Fatalf("original lost field a: %v ok=%v", v, ok)
	}
	if keys := removed.Keys(); len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("unexpected copy after delete: %v", keys)
	}
	if v, ok := removed.Get("b"); !ok || v.String != "2" {
		t.Fatalf("copy index stale after delete: %v ok=%v", v, ok)
	}
}

func TestValueTextAndTruthy(t *testing.T) {
	cases := []struct {
		v      Value
		text   string
		truthy bool
	}{
		{StringValue(""), "", false},
		{StringValue("up"), "up", true},
		{IntValue(0), "0", false},
		{IntValue(-3), "-3", true},
		{FloatValue(0.5), "0.5", true},
		{BoolValue(false), "false", false},
		{NullValue(), "", false},
	}
	for _, tc := range cases {
		if tc.v.Text() != tc.text || tc.v.Truthy() != tc.truthy {
			t.Fatalf("value %+v: text=%q truthy=%v", tc.v, tc.v.Text(), tc.v.Truthy())
		}
	}
}
