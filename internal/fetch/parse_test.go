package fetch

import (
	"testing"
	"time"

	"github.com/matta/gmfetch/internal/mailbox"

	"github.com/google/go-cmp/cmp"
	gmail_api "google.golang.org/api/gmail/v1"
)

func TestParseMessageSinglePart(t *testing.T) {
	s := newSession(itemTypeThread, 0)
	raw := &gmail_api.Message{
		Id:           "msg1",
		ThreadId:     "thread1",
		InternalDate: 1234567890123, // epoch milliseconds
		Snippet:      "a preview",
		Payload: &gmail_api.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail_api.MessagePartHeader{
				{Name: "Subject", Value: "hi"},
				{Name: "From", Value: "a@example.com"},
			},
			Body: &gmail_api.MessagePartBody{Data: inlineData("hello, world"), Size: 12},
		},
	}

	msg, err := s.parseMessage(raw)
	if err != nil {
		t.Fatalf("parseMessage() = %v, want nil", err)
	}

	want := &mailbox.Message{
		ID:       "msg1",
		ThreadID: "thread1",
		Date:     time.UnixMilli(1234567890123),
		Snippet:  "a preview",
		Payload: &mailbox.MessagePart{
			MimeType: "text/plain",
			Headers: []mailbox.Header{
				{Name: "Subject", Value: "hi"},
				{Name: "From", Value: "a@example.com"},
			},
			Body: &mailbox.MessagePartBody{Data: []byte("hello, world"), Size: 12},
		},
	}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("parsed message mismatch (-want +got):\n%s", diff)
	}
	if got := len(msg.Payload.Parts); got != 0 {
		t.Errorf("len(Parts) = %d, want 0", got)
	}
	if got := len(msg.Payload.Body.Data); got != 12 {
		t.Errorf("decoded body length = %d, want 12", got)
	}
	if n := len(s.decodeErrors) + len(s.emptyBodies); n != 0 {
		t.Errorf("anomalies recorded = %d, want 0", n)
	}
}

func TestParseMessagePreservesTreeShape(t *testing.T) {
	leaf := func(id, data string) *gmail_api.MessagePart {
		return &gmail_api.MessagePart{
			PartId:   id,
			MimeType: "text/plain",
			Body:     &gmail_api.MessagePartBody{Data: inlineData(data), Size: int64(len(data))},
		}
	}
	raw := &gmail_api.Message{
		Id: "msg1",
		Payload: &gmail_api.MessagePart{
			MimeType: "multipart/mixed",
			Body:     &gmail_api.MessagePartBody{},
			Parts: []*gmail_api.MessagePart{
				{
					PartId:   "0",
					MimeType: "multipart/alternative",
					Body:     &gmail_api.MessagePartBody{},
					Parts: []*gmail_api.MessagePart{
						leaf("0.0", "plain"),
						leaf("0.1", "html"),
					},
				},
				leaf("1", "attachment text"),
			},
		},
	}

	s := newSession(itemTypeThread, 0)
	msg, err := s.parseMessage(raw)
	if err != nil {
		t.Fatalf("parseMessage() = %v, want nil", err)
	}

	root := msg.Payload
	if got := len(root.Parts); got != 2 {
		t.Fatalf("root branching = %d, want 2", got)
	}
	if got := len(root.Parts[0].Parts); got != 2 {
		t.Fatalf("nested branching = %d, want 2", got)
	}
	gotIDs := []string{
		root.Parts[0].PartID,
		root.Parts[0].Parts[0].PartID,
		root.Parts[0].Parts[1].PartID,
		root.Parts[1].PartID,
	}
	if diff := cmp.Diff([]string{"0", "0.0", "0.1", "1"}, gotIDs); diff != "" {
		t.Errorf("part IDs mismatch (-want +got):\n%s", diff)
	}
	// Only the two container bodies are empty.
	if got := len(s.emptyBodies); got != 2 {
		t.Errorf("empty bodies recorded = %d, want 2", got)
	}
}

func TestParseMessageMissingFields(t *testing.T) {
	cases := []struct {
		name string
		raw  *gmail_api.Message
		want FieldError
	}{
		{
			name: "missing id",
			raw:  &gmail_api.Message{Payload: &gmail_api.MessagePart{}},
			want: FieldError{Resource: "message", Field: "id"},
		},
		{
			name: "missing payload",
			raw:  &gmail_api.Message{Id: "msg1"},
			want: FieldError{Resource: "message", Field: "payload"},
		},
	}
	for _, tc := range cases {
		s := newSession(itemTypeThread, 0)
		_, err := s.parseMessage(tc.raw)
		fe, ok := err.(*FieldError)
		if !ok {
			t.Errorf("%s: parseMessage() error = %v, want *FieldError", tc.name, err)
			continue
		}
		if *fe != tc.want {
			t.Errorf("%s: FieldError = %+v, want %+v", tc.name, *fe, tc.want)
		}
	}
}

func TestParseBodyRecordsDecodeError(t *testing.T) {
	s := newSession(itemTypeThread, 0)
	raw := &gmail_api.Message{
		Id: "msg1",
		Payload: &gmail_api.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail_api.MessagePartBody{Data: "%%% not base64 %%%", Size: 18},
		},
	}

	msg, err := s.parseMessage(raw)
	if err != nil {
		t.Fatalf("parseMessage() = %v, want nil; decode errors must not fail the parse", err)
	}
	if got := len(s.decodeErrors); got != 1 {
		t.Fatalf("decode errors recorded = %d, want 1", got)
	}
	d := s.decodeErrors[0]
	if d.Message != msg || d.Part != msg.Payload || d.Body != msg.Payload.Body {
		t.Errorf("descriptor does not point at the failing message/part/body: %+v", d)
	}
	if len(msg.Payload.Body.Data) != 0 {
		t.Errorf("undecodable body kept data %q, want none", msg.Payload.Body.Data)
	}
}

func TestParseBodyRecordsEmptyBodyOnce(t *testing.T) {
	s := newSession(itemTypeThread, 0)
	raw := &gmail_api.Message{
		Id: "msg1",
		Payload: &gmail_api.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail_api.MessagePartBody{},
		},
	}

	if _, err := s.parseMessage(raw); err != nil {
		t.Fatalf("parseMessage() = %v, want nil; empty bodies must not fail the parse", err)
	}
	if got := len(s.emptyBodies); got != 1 {
		t.Errorf("empty bodies recorded = %d, want 1", got)
	}
}

func TestParsePartDepthCap(t *testing.T) {
	// A chain nested well past the cap.
	deepest := &gmail_api.MessagePart{
		PartId:   "leaf",
		MimeType: "text/plain",
		Body:     &gmail_api.MessagePartBody{Data: inlineData("deep")},
	}
	part := deepest
	for i := 0; i < maxPartDepth+50; i++ {
		part = &gmail_api.MessagePart{
			MimeType: "multipart/mixed",
			Body:     &gmail_api.MessagePartBody{},
			Parts:    []*gmail_api.MessagePart{part},
		}
	}

	s := newSession(itemTypeThread, 0)
	msg, err := s.parseMessage(&gmail_api.Message{Id: "msg1", Payload: part})
	if err != nil {
		t.Fatalf("parseMessage() = %v, want nil", err)
	}
	if got := len(s.decodeErrors); got != 1 {
		t.Errorf("structural anomalies recorded = %d, want 1", got)
	}

	depth := 0
	for p := msg.Payload; len(p.Parts) > 0; p = p.Parts[0] {
		depth++
	}
	if depth != maxPartDepth {
		t.Errorf("parsed tree depth = %d, want %d", depth, maxPartDepth)
	}
}
