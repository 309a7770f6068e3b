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

// Package fetch drives the incremental retrieval of mail threads: it
// pages through thread listings, asks a deduplication oracle which
// threads still need a detail fetch, parses each fetched message into
// the mailbox domain model, and resolves externally stored attachment
// bodies.
package fetch

import (
	"context"
	"log"

	"github.com/matta/gmfetch/internal/mailbox"

	"github.com/pkg/errors"
)

const (
	itemTypeThread = "thread"

	// defaultPageSize is the page size requested from the list
	// service when no smaller limit applies.
	defaultPageSize = 100
)

// errLimitReached stops the page loop when the processing limit is
// hit.  It never escapes QueryThreads.
var errLimitReached = errors.New("processing limit reached")

// Fetcher retrieves threads from a storage service, skipping threads
// the fetch context already knows.
type Fetcher struct {
	store ThreadStorage
	fctx  FetchContext
}

// New returns a Fetcher reading from store and deduplicating through
// fctx.
func New(store ThreadStorage, fctx FetchContext) *Fetcher {
	return &Fetcher{store: store, fctx: fctx}
}

// Options configures one QueryThreads session.
type Options struct {
	// Query narrows the listing, using the storage system's query
	// syntax.  Empty lists everything.
	Query string

	// Limit caps the number of threads processed.  Zero means no
	// limit.  Reaching the limit is a successful early return with
	// partial results.
	Limit int

	// OneMessagePerThread tells the deduplication oracle that
	// threads never grow, letting it skip every known thread.
	OneMessagePerThread bool

	// SanityCheck verifies that all messages of a thread share its
	// subject; violations are logged, not fatal.
	SanityCheck bool
}

// Result is the outcome of one QueryThreads session.
type Result struct {
	Threads *mailbox.Threads

	// DecodeErrors are the structural anomalies accumulated while
	// parsing: part bodies whose inline data could not be decoded,
	// and part subtrees dropped for exceeding the nesting cap.
	// The caller decides whether a nonzero count is a failure.
	DecodeErrors []Descriptor

	// Progress is a snapshot of the session counters.
	Progress Progress
}

// QueryThreads lists threads page by page, fetches and parses the
// detail of every thread the fetch context reports as unknown, and
// returns the assembled collection.  Processing stops early, returning
// partial results, once opts.Limit threads have been processed.
func (f *Fetcher) QueryThreads(ctx context.Context, opts Options) (*Result, error) {
	session := newSession(itemTypeThread, opts.Limit)
	threads := &mailbox.Threads{}

	pageSize := int64(defaultPageSize)
	if opts.Limit > 0 && opts.Limit < defaultPageSize {
		pageSize = int64(opts.Limit)
	}

	err := f.store.ListThreads(ctx, opts.Query, pageSize, func(ids []string) error {
		return f.handlePage(ctx, session, opts, ids, threads)
	})
	if err != nil && errors.Cause(err) != errLimitReached {
		return nil, errors.Wrap(err, "unable to query threads")
	}

	result := &Result{
		Threads:      threads,
		DecodeErrors: session.drainDecodeErrors(),
		Progress:     *session.Progress,
	}
	if n := len(result.DecodeErrors); n > 0 {
		log.Printf("finished with %d message part bodies that could not be decoded", n)
	}
	return result, nil
}

// handlePage processes one page of listed thread IDs.
func (f *Fetcher) handlePage(ctx context.Context, session *Session, opts Options, ids []string, threads *mailbox.Threads) error {
	session.Progress.IncrRequests()
	session.Progress.RegisterNewItems(len(ids), true)

	toFetch, err := f.fctx.IDsToFetch(ctx, ids, opts.OneMessagePerThread)
	if err != nil {
		return errors.Wrap(err, "fetch context failed to filter thread IDs")
	}
	if len(toFetch) == 0 {
		log.Printf("fetch context returned no thread IDs to query in this round")
	} else {
		log.Printf("fetch context returned %d thread IDs to query", len(toFetch))
	}

	for _, id := range toFetch {
		session.Progress.IncrProcessed()
		if session.Progress.LimitReached() {
			// This item was never fetched; keep the
			// processed counter honest before bailing out.
			session.Progress.Processed--
			log.Printf("reached processing limit of %d, stop processing more items", opts.Limit)
			return errLimitReached
		}
		session.Progress.ReportStatus()

		if err := f.fetchThread(ctx, session, opts, id, threads); err != nil {
			return err
		}
	}
	return nil
}

// fetchThread fetches one thread's detail, parses its messages,
// resolves deferred attachment bodies, and registers the thread with
// the output collection and the fetch context.
func (f *Fetcher) fetchThread(ctx context.Context, session *Session, opts Options, id string, threads *mailbox.Threads) error {
	raw, err := f.store.GetThread(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "fetching detail of thread %v", id)
	}
	if len(raw.Messages) == 0 {
		return errors.Wrapf(&FieldError{Resource: "thread", Field: "messages"}, "thread %v", id)
	}

	msgs := make([]*mailbox.Message, 0, len(raw.Messages))
	for _, rawMsg := range raw.Messages {
		msg, err := session.parseMessage(rawMsg)
		if err != nil {
			return errors.Wrapf(err, "parsing message of thread %v", id)
		}
		msgs = append(msgs, msg)
	}

	err = session.drainEmptyBodies(func(d Descriptor) error {
		return f.fetchAttachment(ctx, d)
	})
	if err != nil {
		return errors.Wrapf(err, "resolving attachment bodies of thread %v", id)
	}

	thread := &mailbox.Thread{ID: id, Subject: msgs[0].Subject(), Messages: msgs}
	threads.Add(thread)
	if opts.SanityCheck {
		if err := thread.CheckSubjectConsistency(); err != nil {
			log.Printf("warning: %v", err)
		}
	}
	if err := f.fctx.RecordProcessed(ctx, raw, thread); err != nil {
		return errors.Wrapf(err, "recording processed thread %v", id)
	}
	return nil
}

// fetchAttachment resolves one deferred attachment body by fetching
// its content and merging the bytes back into the owning body.  A
// descriptor lacking either the message ID or the attachment ID cannot
// be resolved; it is logged and skipped.  Container parts without an
// attachment reference are legitimately empty and skipped silently.
func (f *Fetcher) fetchAttachment(ctx context.Context, d Descriptor) error {
	if d.Body.AttachmentID == "" {
		if d.Part != nil && len(d.Part.Parts) > 0 {
			return nil
		}
		log.Printf("cannot fetch attachment without an attachment ID; message %v part %v",
			describeMessage(d.Message), describePart(d.Part))
		return nil
	}
	if d.Message == nil || d.Message.ID == "" {
		log.Printf("cannot fetch attachment %v without a message ID", d.Body.AttachmentID)
		return nil
	}
	data, err := f.store.GetAttachment(ctx, d.Message.ID, d.Body.AttachmentID)
	if err != nil {
		return errors.Wrapf(err, "fetching attachment %v of message %v", d.Body.AttachmentID, d.Message.ID)
	}
	d.Body.Data = data
	if d.Body.Size == 0 {
		d.Body.Size = int64(len(data))
	}
	return nil
}

func describeMessage(m *mailbox.Message) string {
	if m == nil {
		return "<nil>"
	}
	return m.ID
}

func describePart(p *mailbox.MessagePart) string {
	if p == nil {
		return "<nil>"
	}
	return p.PartID
}
