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

// Package persist keeps a sqlite index of every thread processed by a
// previous fetch session, so later sessions can decide which threads
// still need a detail fetch.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	createTableSql = []string{
		// The gmail_threads table holds one row per thread that
		// has been fetched and processed.
		//
		// Field: thread_id
		//
		//   GMail API: Users.threads resource "id" field,
		//   returned by Users.threads.list and
		//   Users.threads.get.
		//
		// Field: message_count
		//
		//   The number of messages the thread contained when it
		//   was last fetched.  A listed thread whose stored
		//   count may no longer match must be fetched again.
		//
		// Field: subject
		//
		//   The subject of the thread's first message at the
		//   time it was fetched.  Informational.
		//
		// Field: fetched_unix
		//
		//   Unix time (seconds) of the last successful fetch of
		//   this thread.
		`
CREATE TABLE IF NOT EXISTS gmail_threads (
thread_id TEXT NOT NULL PRIMARY KEY,
message_count INTEGER NOT NULL,
subject TEXT NOT NULL,
fetched_unix INTEGER NOT NULL
);`,
	}
)

type DB struct {
	db *sql.DB
}

type Tx struct {
	tx *sql.Tx
}

func dsnFromPath(path string, addValues url.Values) (string, error) {
	var u *url.URL
	if !strings.HasPrefix(path, "file:") {
		u = &url.URL{Scheme: "file", Path: path}
	} else {
		var err error
		u, err = url.Parse(path)
		if err != nil {
			return "", err
		}
	}
	values := u.Query()
	for k, v := range addValues {
		for _, item := range v {
			values.Add(k, item)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func Open(ctx context.Context, path string) (*DB, error) {
	// The _busy_timeout is a SQLite extension that controls how
	// long SQLite will poll before giving up.  The default of 5
	// seconds is too short in practice, especially in slower
	// debug builds; go with 5 minutes.
	var busyTimeout = int(5*time.Minute) / int(time.Millisecond)

	dsn, err := dsnFromPath(path, url.Values{
		"_busy_timeout": {fmt.Sprintf("%d", busyTimeout)}})
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not form a DB DSN from "+
				"the given path",
			path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not open database at %q",
			path, dsn)
	}

	if err = initSchema(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not initialize the "+
				"database schema", path)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction failed")
	}
	return &Tx{tx}, nil
}

func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	for _, sql := range createTableSql {
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return errors.Wrapf(err, "while executing %q", sql)
		}
	}

	return nil
}

// placeholders returns n comma separated SQL positional placeholders,
// e.g. "?,?,?" for n = 3.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// MessageCounts returns the stored message count for every given
// thread ID that is present in the index.  Absent IDs are simply
// missing from the returned map.
func (tx *Tx) MessageCounts(ctx context.Context, ids []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(ids) == 0 {
		return counts, nil
	}
	q := fmt.Sprintf(
		`SELECT thread_id, message_count FROM gmail_threads WHERE thread_id IN (%s)`,
		placeholders(len(ids)))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "db query failed in MessageCounts")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, errors.Wrap(err, "db scan failed in MessageCounts")
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// UpsertThread records that a thread has been fetched and processed,
// replacing any previous record for the same thread ID.
func (tx *Tx) UpsertThread(ctx context.Context, id string, messageCount int, subject string) error {
	sql := `INSERT INTO gmail_threads
		(thread_id, message_count, subject, fetched_unix)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (thread_id)
		DO UPDATE SET (message_count, subject, fetched_unix) = ($2, $3, $4)`
	if _, err := tx.tx.ExecContext(ctx, sql, id, messageCount, subject, time.Now().Unix()); err != nil {
		return errors.Wrap(err, "db upsert failed in UpsertThread")
	}
	return nil
}

// MessageCounts is the autocommit form of Tx.MessageCounts.
func (db *DB) MessageCounts(ctx context.Context, ids []string) (map[string]int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	counts, err := tx.MessageCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return counts, tx.Commit()
}

// UpsertThread is the autocommit form of Tx.UpsertThread.
func (db *DB) UpsertThread(ctx context.Context, id string, messageCount int, subject string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.UpsertThread(ctx, id, messageCount, subject); err != nil {
		return err
	}
	return tx.Commit()
}
