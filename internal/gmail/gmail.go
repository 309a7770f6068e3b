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

// Package gmail accesses threads stored in Google's GMail system.
package gmail

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	gmail_api "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	ReadonlyScope = gmail_api.GmailReadonlyScope

	// Requests are issued on behalf of the authenticated user.
	userID = "me"

	// See https://developers.google.com/gmail/api/v1/reference/quota
	quotaUnitsPerThreadsList    = 10
	quotaUnitsPerThreadsGet     = 10
	quotaUnitsPerAttachmentsGet = 5

	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond
)

var (
	ErrThreadNotFound = errors.New("gmail thread not found")
)

// Service provides access to threads stored in GMail.
type Service struct {
	service *gmail_api.Service
	limiter *rate.Limiter
}

func New(client *http.Client) (*Service, error) {
	s, err := gmail_api.New(client)
	if err != nil {
		return nil, err
	}
	l := rate.NewLimiter(rateLimitPerSecond, rateLimitBurst)
	return &Service{service: s, limiter: l}, nil
}

// ListThreads lists the user's threads page by page, passing each
// page's thread IDs to handler.  A handler error stops the listing.
func (s *Service) ListThreads(ctx context.Context, query string, pageSize int64, handler func(ids []string) error) error {
	if err := s.limiter.WaitN(ctx, quotaUnitsPerThreadsList); err != nil {
		return err
	}
	req := gmail_api.NewUsersThreadsService(s.service).List(userID)
	if query != "" {
		req = req.Q(query)
	}
	if pageSize > 0 {
		req = req.MaxResults(pageSize)
	}
	total := 0
	err := req.Pages(ctx, func(page *gmail_api.ListThreadsResponse) (err error) {
		total += len(page.Threads)
		log.Printf("listed page of Gmail threads; count %d; total so far %d", len(page.Threads), total)
		ids := make([]string, 0, len(page.Threads))
		for _, t := range page.Threads {
			ids = append(ids, t.Id)
		}
		if err := handler(ids); err != nil {
			return err
		}
		if page.NextPageToken != "" {
			err = s.limiter.WaitN(ctx, quotaUnitsPerThreadsList)
		}
		return
	})
	log.Printf("done listing Gmail threads; total %d", total)
	return err
}

// GetThread retrieves the full detail of one thread, retrying when the
// server asks for a slower pace.
func (s *Service) GetThread(ctx context.Context, id string) (*gmail_api.Thread, error) {
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsPerThreadsGet); err != nil {
			return nil, err
		}
		t, err := gmail_api.NewUsersThreadsService(s.service).Get(userID, id).
			Context(ctx).Format("full").Do()
		if err == nil {
			return t, nil
		}

		switch cause := errors.Cause(err).(type) {
		case *googleapi.Error:
			if cause.Code == http.StatusTooManyRequests {
				continue // retry
			}
			if cause.Code == http.StatusNotFound {
				for _, item := range cause.Errors {
					if item.Reason == "notFound" {
						log.Printf("Warning: thread %v not found", id)
						err = ErrThreadNotFound
					}
				}
			}
		}
		return nil, errors.Wrapf(err, "getting thread %v from gmail", id)
	}
}

// GetAttachment retrieves and decodes the content of an externally
// stored message part body.
func (s *Service) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsPerAttachmentsGet); err != nil {
			return nil, err
		}
		body, err := gmail_api.NewUsersMessagesAttachmentsService(s.service).
			Get(userID, messageID, attachmentID).Context(ctx).Do()
		if err != nil {
			switch cause := errors.Cause(err).(type) {
			case *googleapi.Error:
				if cause.Code == http.StatusTooManyRequests {
					continue // retry
				}
			}
			return nil, errors.Wrapf(err, "getting attachment %v of message %v from gmail",
				attachmentID, messageID)
		}
		data, err := base64.URLEncoding.DecodeString(body.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding attachment %v of message %v",
				attachmentID, messageID)
		}
		return data, nil
	}
}
