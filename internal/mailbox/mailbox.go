package mailbox

// This file provides the common data objects used by the rest of the
// program.

import (
	"fmt"
	"strings"
	"time"
)

// Header is a single name/value header attached to a message part.
type Header struct {
	Name  string
	Value string
}

// MessagePartBody holds the payload of one message part.
type MessagePartBody struct {
	// Decoded payload bytes.  Empty when the content lives in an
	// external attachment, and legitimately empty for container
	// parts that only carry children.
	Data []byte

	// Size of the payload as reported by the server, in bytes.
	Size int64

	// AttachmentID names an externally stored attachment.  When
	// set, Data must be retrieved with a separate attachment get
	// call; when empty, Data is authoritative.
	AttachmentID string
}

// MessagePart is one node in a message's MIME tree.  The tree is
// strict: a part is owned by exactly one parent message or part.
type MessagePart struct {
	PartID   string
	MimeType string
	Headers  []Header
	Body     *MessagePartBody
	Parts    []*MessagePart
}

// Header returns the value of the first header with the given name,
// compared case-insensitively, or "" when the part carries no such
// header.
func (p *MessagePart) Header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Message is a single mail message within a thread.  Messages are not
// modified once the fetch session that created them completes.
type Message struct {
	// The permanent and unique ID of the message.
	ID string

	// The permanent and unique ID of the thread the message
	// belongs to.
	ThreadID string

	// Delivery time of the message.
	Date time.Time

	// A short server-generated preview of the message text.
	Snippet string

	// Payload is the root of the message's MIME part tree.
	Payload *MessagePart
}

// Subject returns the message's Subject header, or "" when the
// message has none.
func (m *Message) Subject() string {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Header("Subject")
}

// Thread is an ordered conversation of messages.  Its subject is taken
// from the first message.
type Thread struct {
	ID       string
	Subject  string
	Messages []*Message
}

// normalizeSubject strips reply and forward prefixes so that "Re: x",
// "Fwd: x" and "x" compare equal.
func normalizeSubject(s string) string {
	s = strings.TrimSpace(s)
	for {
		lower := strings.ToLower(s)
		var trimmed string
		switch {
		case strings.HasPrefix(lower, "re:"):
			trimmed = s[len("re:"):]
		case strings.HasPrefix(lower, "fwd:"):
			trimmed = s[len("fwd:"):]
		case strings.HasPrefix(lower, "fw:"):
			trimmed = s[len("fw:"):]
		default:
			return s
		}
		s = strings.TrimSpace(trimmed)
	}
}

// CheckSubjectConsistency verifies that every message in the thread
// shares the subject of the first message, ignoring reply and forward
// prefixes.  It returns a descriptive error for the first message that
// does not.
func (t *Thread) CheckSubjectConsistency() error {
	if len(t.Messages) == 0 {
		return nil
	}
	want := normalizeSubject(t.Messages[0].Subject())
	for _, m := range t.Messages[1:] {
		if got := normalizeSubject(m.Subject()); got != want {
			return fmt.Errorf("thread %v: message %v has subject %q, the thread subject is %q",
				t.ID, m.ID, got, want)
		}
	}
	return nil
}

// Threads is the collection of threads assembled by one fetch session,
// in the order they were processed.
type Threads struct {
	threads []*Thread
}

// Add appends a thread to the collection.
func (ts *Threads) Add(t *Thread) {
	ts.threads = append(ts.threads, t)
}

// Len returns the number of threads in the collection.
func (ts *Threads) Len() int {
	return len(ts.threads)
}

// All returns the threads in processing order.  The returned slice is
// owned by the collection.
func (ts *Threads) All() []*Thread {
	return ts.threads
}

// MessageCount returns the total number of messages across all threads
// in the collection.
func (ts *Threads) MessageCount() int {
	n := 0
	for _, t := range ts.threads {
		n += len(t.Messages)
	}
	return n
}
