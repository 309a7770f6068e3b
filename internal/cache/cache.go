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

// Package cache implements the fetch deduplication strategies: given
// the thread IDs of a list page, decide which threads genuinely need a
// detail fetch, and remember processed threads between runs.
package cache

import (
	"context"
	"log"

	"github.com/matta/gmfetch/internal/mailbox"

	"golang.org/x/sync/errgroup"
	gmail_api "google.golang.org/api/gmail/v1"
)

// Index records what is known about previously processed threads.
// Satisfied by persist.DB.
type Index interface {
	MessageCounts(ctx context.Context, ids []string) (map[string]int, error)
	UpsertThread(ctx context.Context, id string, messageCount int, subject string) error
}

// Archive stores the raw response of processed threads.  Satisfied by
// rawstore.Store.
type Archive interface {
	Write(id string, raw *gmail_api.Thread) error
}

// NoCache is the strategy that refetches every candidate and remembers
// nothing.
type NoCache struct{}

func (NoCache) IDsToFetch(ctx context.Context, candidates []string, oneMessagePerThread bool) ([]string, error) {
	return candidates, nil
}

func (NoCache) RecordProcessed(ctx context.Context, raw *gmail_api.Thread, thread *mailbox.Thread) error {
	return nil
}

// Filesystem is the strategy that keeps an index of processed threads
// plus a raw JSON archive of every thread response.
type Filesystem struct {
	index   Index
	archive Archive
}

// NewFilesystem returns a Filesystem strategy recording into index and
// archive.
func NewFilesystem(index Index, archive Archive) *Filesystem {
	return &Filesystem{index: index, archive: archive}
}

// IDsToFetch returns the candidates that need a detail fetch.  A
// candidate unknown to the index is always fetched.  A known candidate
// is skipped only under the one-message-per-thread assumption with a
// stored count of one; otherwise its message count may have grown
// since the last run and it is fetched again.
func (c *Filesystem) IDsToFetch(ctx context.Context, candidates []string, oneMessagePerThread bool) ([]string, error) {
	counts, err := c.index.MessageCounts(ctx, candidates)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(candidates))
	skipped := 0
	for _, id := range candidates {
		count, known := counts[id]
		if known && oneMessagePerThread && count == 1 {
			skipped++
			continue
		}
		ids = append(ids, id)
	}
	if skipped > 0 {
		log.Printf("skipping %d already cached threads", skipped)
	}
	return ids, nil
}

// RecordProcessed stores the processed thread in the index and the raw
// response in the archive.
func (c *Filesystem) RecordProcessed(ctx context.Context, raw *gmail_api.Thread, thread *mailbox.Thread) error {
	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return c.index.UpsertThread(ctx, thread.ID, len(thread.Messages), thread.Subject)
	})
	grp.Go(func() error {
		return c.archive.Write(thread.ID, raw)
	})
	return grp.Wait()
}
