package graphql

import (
	"errors"
	"testing"
)

func TestDecodeResponsePartialResult(t *testing.T) {
	raw := []byte(`{"data":{"array":{"state":"STARTED"}},"errors":[{"message":"disk 3 unreadable","path":["array","disks",3]}]}`)
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data == nil {
		t.Fatal("expected data alongside errors")
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(resp.Errors))
	}
	if got := resp.Errors[0].Error(); got != "array.disks.3: disk 3 unreadable" {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestDecodeResponseNullData(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"data":null,"errors":[{"message":"boom"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data != nil {
		t.Fatal("expected absent data")
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	cases := []string{
		`[]`,
		`"nope"`,
		`{}`,
		`{"data":42}`,
		`{"errors":{"message":"not a list"}}`,
	}
	for _, c := range cases {
		_, err := DecodeResponse([]byte(c))
		var me *MalformedError
		if !errors.As(err, &me) {
			t.Errorf("%s: expected MalformedError, got %v", c, err)
		}
	}
}

func TestMalformedErrorPreviewBounded(t *testing.T) {
	raw := make([]byte, 1000)
	for i := range raw {
		raw[i] = 'x'
	}
	me := &MalformedError{Reason: "test", Raw: raw}
	if len(me.Preview()) > 210 {
		t.Fatalf("preview too long: %d", len(me.Preview()))
	}
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"id":"sub1","type":"next","payload":{"data":{"logFile":{"content":"a"}}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.ID != "sub1" || f.Type != MsgNext {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if _, err := DecodeFrame([]byte(`{"id":"x"}`)); err == nil {
		t.Fatal("expected error for frame without type")
	}
	if _, err := DecodeFrame([]byte(`nope`)); err == nil {
		t.Fatal("expected error for non-JSON frame")
	}
}

func TestSubscribeFramePerProtocol(t *testing.T) {
	req := Request{Query: "subscription { logFile { content } }"}
	if f := SubscribeFrame("a", ProtocolGraphQLWS, req); f.Type != MsgSubscribe {
		t.Fatalf("expected subscribe, got %s", f.Type)
	}
	if f := SubscribeFrame("a", ProtocolLegacy, req); f.Type != MsgStart {
		t.Fatalf("expected start, got %s", f.Type)
	}
	if NextType(ProtocolLegacy) != MsgData || NextType(ProtocolGraphQLWS) != MsgNext {
		t.Fatal("wrong data frame type mapping")
	}
}

func TestDecodeErrorPayloadShapes(t *testing.T) {
	errs := DecodeErrorPayload([]byte(`[{"message":"a"},{"message":"b"}]`))
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	errs = DecodeErrorPayload([]byte(`{"message":"single"}`))
	if len(errs) != 1 || errs[0].Message != "single" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}
