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
	"encoding/base64"
	"fmt"
	"time"

	"github.com/matta/gmfetch/internal/mailbox"

	gmail_api "google.golang.org/api/gmail/v1"
)

// maxPartDepth bounds the MIME part recursion.  Real messages nest a
// handful of levels deep; anything deeper is treated as a structural
// anomaly rather than risking the stack.
const maxPartDepth = 100

// FieldError reports a required field missing from an API record.
type FieldError struct {
	// Resource names the record shape, e.g. "message" or "thread".
	Resource string

	// Field names the missing field within the record.
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("gmail %s record is missing required field %q", e.Resource, e.Field)
}

// parseMessage converts one raw API message record into a
// mailbox.Message, recursively converting its body part tree.
// Structural anomalies (undecodable or empty part bodies) are buffered
// on the session and do not fail the conversion; a message without an
// ID or payload is malformed and does.
func (s *Session) parseMessage(raw *gmail_api.Message) (*mailbox.Message, error) {
	if raw.Id == "" {
		return nil, &FieldError{Resource: "message", Field: "id"}
	}
	if raw.Payload == nil {
		return nil, &FieldError{Resource: "message", Field: "payload"}
	}
	msg := &mailbox.Message{
		ID:       raw.Id,
		ThreadID: raw.ThreadId,
		// InternalDate is epoch milliseconds.
		Date:    time.UnixMilli(raw.InternalDate),
		Snippet: raw.Snippet,
	}
	s.setCurrentMessage(msg)
	msg.Payload = s.parsePart(raw.Payload, 0)
	return msg, nil
}

// parsePart converts one raw part record and its children.
func (s *Session) parsePart(raw *gmail_api.MessagePart, depth int) *mailbox.MessagePart {
	part := &mailbox.MessagePart{
		PartID:   raw.PartId,
		MimeType: raw.MimeType,
		Headers:  parseHeaders(raw.Headers),
	}
	s.setCurrentPart(part)
	part.Body = s.parseBody(raw.Body)
	if len(raw.Parts) > 0 && depth >= maxPartDepth {
		// Drop the subtree and surface the truncation as a
		// structural anomaly on the part's body.
		s.reportDecodeError(part.Body)
		return part
	}
	for _, child := range raw.Parts {
		part.Parts = append(part.Parts, s.parsePart(child, depth+1))
	}
	return part
}

func parseHeaders(raw []*gmail_api.MessagePartHeader) []mailbox.Header {
	var headers []mailbox.Header
	for _, h := range raw {
		headers = append(headers, mailbox.Header{Name: h.Name, Value: h.Value})
	}
	return headers
}

// parseBody converts one raw body record.  Inline data arrives base64
// URL-encoded; a decode failure is buffered as a decode error and a
// body with no inline data at all is buffered as an empty body, both
// without interrupting the parse.
func (s *Session) parseBody(raw *gmail_api.MessagePartBody) *mailbox.MessagePartBody {
	body := &mailbox.MessagePartBody{}
	if raw == nil {
		s.reportEmptyBody(body)
		return body
	}
	body.Size = raw.Size
	body.AttachmentID = raw.AttachmentId
	if raw.Data == "" {
		s.reportEmptyBody(body)
		return body
	}
	data, err := base64.URLEncoding.DecodeString(raw.Data)
	if err != nil {
		s.reportDecodeError(body)
		return body
	}
	body.Data = data
	return body
}
