package domain

import (
	"errors"
	"reflect"
	"testing"
)

func validEnvelopeFor(typ EnvelopeType) Envelope {
	switch typ {
	case EnvChatRequest:
		return Envelope{Type: typ, Timestamp: 1, RequestID: "r1", FromPubKey: "f", ToPubKey: "t", Nonce: "n", Ciphertext: "c"}
	case EnvChatAccept, EnvChatDeclined, EnvChatBlocked:
		return Envelope{Type: typ, Timestamp: 1, RequestID: "r1", FromPubKey: "f", ToPubKey: "t", ConversationID: "cid"}
	case EnvGroupInvite:
		return Envelope{Type: typ, Timestamp: 1, FromPubKey: "f", ToPubKey: "t", Nonce: "n", Ciphertext: "c"}
	case EnvGroupAccepted, EnvGroupDeclined, EnvGroupBlocked:
		return Envelope{Type: typ, Timestamp: 1, RequestID: "r1", GroupID: "g1", FromPubKey: "f", ToPubKey: "t"}
	case EnvDMMessage:
		return Envelope{Type: typ, Timestamp: 1, ConversationID: "cid", MessageID: "m1", FromPubKey: "f", Nonce: "n", Ciphertext: "c"}
	case EnvDMAck:
		return Envelope{Type: typ, Timestamp: 1, ConversationID: "cid", MessageID: "m1", FromPubKey: "f", ToPubKey: "t"}
	case EnvGroupMessage:
		return Envelope{Type: typ, Timestamp: 1, GroupID: "g1", MessageID: "m1", FromPubKey: "f",
			Sealed: []SealedEntry{{ToPubKey: "t1", N: 0, Nonce: "n", Ciphertext: "c"}}}
	}
	panic("unhandled envelope type in test fixture")
}

var allEnvelopeTypes = []EnvelopeType{
	EnvChatRequest, EnvChatAccept, EnvChatDeclined, EnvChatBlocked,
	EnvGroupInvite, EnvGroupAccepted, EnvGroupDeclined, EnvGroupBlocked,
	EnvDMMessage, EnvDMAck, EnvGroupMessage,
}

func TestEnvelopeRoundTrip(t *testing.T) {
	for _, typ := range allEnvelopeTypes {
		e := validEnvelopeFor(typ)
		e.V = EnvelopeVersion // EncodeEnvelope always stamps the wire version
		raw, err := EncodeEnvelope(e)
		if err != nil {
			t.Fatalf("%s: encode: %v", typ, err)
		}
		got, err := DecodeEnvelope(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", typ, err)
		}
		if !reflect.DeepEqual(got, e) {
			t.Fatalf("%s: round trip mismatch: got %+v, want %+v", typ, got, e)
		}
	}
}

func TestDecodeEnvelopeRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected ErrBadInput, got %v", err)
	}
}

func TestDecodeEnvelopeRejectsBadVersion(t *testing.T) {
	raw := []byte(`{"v":99,"type":"dm_ack"}`)
	_, err := DecodeEnvelope(raw)
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected ErrBadInput for bad version, got %v", err)
	}
}

func TestDecodeEnvelopeRejectsMissingFields(t *testing.T) {
	raw, err := EncodeEnvelope(Envelope{Type: EnvDMMessage, Timestamp: 1, ConversationID: "cid"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecodeEnvelope(raw)
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected ErrBadInput for missing required fields, got %v", err)
	}
}

func TestDecodeEnvelopeRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"v":1,"type":"bogus"}`)
	_, err := DecodeEnvelope(raw)
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected ErrBadInput for unknown type, got %v", err)
	}
}

func TestInnerRoundTrip(t *testing.T) {
	in := Inner{Kind: InnerText, Body: "hello", MessageID: "m1"}
	raw, err := EncodeInner(in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeInner(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Fatalf("inner round trip mismatch: got %+v, want %+v", got, in)
	}
}

func TestDecodeInnerRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeInner([]byte("{"))
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected ErrBadInput, got %v", err)
	}
}
