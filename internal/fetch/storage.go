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

// This file declares the collaborator contracts consumed by the fetch
// pipeline.

import (
	"context"

	"github.com/matta/gmfetch/internal/mailbox"

	gmail_api "google.golang.org/api/gmail/v1"
)

// ThreadLister lists thread summaries from a message storage system,
// one page per handler call, in response order.
type ThreadLister interface {
	// ListThreads issues a paginated thread list, optionally
	// narrowed by a query string and capped at pageSize items per
	// page when pageSize > 0.  The handler receives the thread IDs
	// of each page; a handler error stops the listing and is
	// returned.
	ListThreads(ctx context.Context, query string, pageSize int64, handler func(ids []string) error) error
}

// ThreadGetter retrieves the full detail of a single thread.
type ThreadGetter interface {
	GetThread(ctx context.Context, id string) (*gmail_api.Thread, error)
}

// AttachmentGetter retrieves the decoded content of an externally
// stored attachment.
type AttachmentGetter interface {
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// ThreadStorage provides all actions the fetch pipeline needs from a
// thread storage system.
type ThreadStorage interface {
	ThreadLister
	ThreadGetter
	AttachmentGetter
}

// FetchContext is the deduplication oracle that decides which threads
// genuinely need a detail fetch and records threads once processed, so
// later sessions can skip them.
type FetchContext interface {
	// IDsToFetch returns the subset of candidates that need a
	// detail fetch given prior cache state.  When
	// oneMessagePerThread is set the oracle may assume a known
	// thread never grows and skip it.
	IDsToFetch(ctx context.Context, candidates []string, oneMessagePerThread bool) ([]string, error)

	// RecordProcessed stores a processed thread, both the raw
	// response and the parsed object.
	RecordProcessed(ctx context.Context, raw *gmail_api.Thread, thread *mailbox.Thread) error
}
