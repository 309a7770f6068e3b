// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fetch

import (
	"github.com/matta/gmfetch/internal/mailbox"
)

// Descriptor pinpoints where a parsing anomaly occurred: the message
// and part being parsed when it was noticed, and the body it concerns.
type Descriptor struct {
	Message *mailbox.Message
	Part    *mailbox.MessagePart
	Body    *mailbox.MessagePartBody
}

// Session carries the conversion state of exactly one QueryThreads
// call: the progress counters and the anomalies accumulated while
// parsing.  A Session is created per call and passed explicitly; it
// must never be shared between concurrently running fetch sessions.
type Session struct {
	Progress *Progress

	// Current parse position, valid only while a parse call is
	// executing.  Parsing is sequential bookkeeping.
	currentMessage *mailbox.Message
	currentPart    *mailbox.MessagePart

	decodeErrors []Descriptor
	emptyBodies  []Descriptor
}

func newSession(itemType string, limit int) *Session {
	return &Session{Progress: newProgress(itemType, limit)}
}

func (s *Session) setCurrentMessage(m *mailbox.Message) {
	s.currentMessage = m
}

func (s *Session) setCurrentPart(p *mailbox.MessagePart) {
	s.currentPart = p
}

func (s *Session) describe(body *mailbox.MessagePartBody) Descriptor {
	return Descriptor{Message: s.currentMessage, Part: s.currentPart, Body: body}
}

// reportDecodeError buffers a body whose inline data could not be
// decoded.  Parsing continues; the buffered descriptors are surfaced
// to the caller when the session finishes.
func (s *Session) reportDecodeError(body *mailbox.MessagePartBody) {
	s.decodeErrors = append(s.decodeErrors, s.describe(body))
}

// reportEmptyBody buffers a body that carries no inline data.  Bodies
// with an attachment ID are resolved later by a deferred attachment
// fetch.
func (s *Session) reportEmptyBody(body *mailbox.MessagePartBody) {
	s.emptyBodies = append(s.emptyBodies, s.describe(body))
}

// drainEmptyBodies invokes handler once per buffered empty-body
// descriptor, in record order, then clears the buffer.  The buffer is
// cleared even when the handler fails part way, so a retried session
// never sees a descriptor twice.
func (s *Session) drainEmptyBodies(handler func(Descriptor) error) error {
	drained := s.emptyBodies
	s.emptyBodies = nil
	for _, d := range drained {
		if err := handler(d); err != nil {
			return err
		}
	}
	return nil
}

// drainDecodeErrors returns the buffered decode-error descriptors and
// clears the buffer.
func (s *Session) drainDecodeErrors() []Descriptor {
	drained := s.decodeErrors
	s.decodeErrors = nil
	return drained
}
