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

// Package rawstore archives raw thread responses on the filesystem,
// one JSON file per thread, fanned out over a fixed directory farm to
// keep directories small.
package rawstore

import (
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	gmail_api "google.golang.org/api/gmail/v1"
)

const (
	dirFileMode    = 0700
	threadFileMode = 0600

	pathFarm16 = "abcdefghijklmnop"
)

// Store is a directory tree holding one raw thread JSON file per
// archived thread.
type Store struct {
	// Root directory of the archive.
	path string
}

type path struct {
	root string
	dirs []string
	base string
}

func (p path) Join() string {
	parts := make([]string, 1, len(p.dirs)+2)
	parts[0] = p.root
	parts = append(parts, p.dirs...)
	parts = append(parts, p.base)
	return filepath.Join(parts...)
}

// New opens (creating if necessary) an archive rooted at root.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("rawstore root must not be empty")
	}
	if err := mkdirfarm(root, 2); err != nil {
		return nil, errors.Wrapf(err, "creating raw thread archive at %q", root)
	}
	return &Store{path: root}, nil
}

// HaveThread reports whether a thread has been archived.
func (s *Store) HaveThread(id string) bool {
	_, err := os.Stat(s.makePath(id).Join())
	return err == nil
}

// Write archives the raw response of one thread, replacing any
// previous archive of the same thread.
func (s *Store) Write(id string, raw *gmail_api.Thread) error {
	if id == "" {
		return errors.New("thread has no ID")
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding thread %v", id)
	}
	return os.WriteFile(s.makePath(id).Join(), data, threadFileMode)
}

// Read returns the archived raw response of one thread.
func (s *Store) Read(id string) (*gmail_api.Thread, error) {
	data, err := os.ReadFile(s.makePath(id).Join())
	if err != nil {
		return nil, err
	}
	var raw gmail_api.Thread
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding archived thread %v", id)
	}
	return &raw, nil
}

// basename holds the fields encoded into the file name of archived
// threads.
type basename struct {
	// A unique string identifying the thread: the GMail API's
	// Users.threads resource "id" field.
	threadID string
}

// Return the specified string with characters that should not appear
// in a portable file name escaped.
func escape(s string) string {
	hexCount := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			hexCount++
		}
	}

	if hexCount == 0 {
		return s
	}

	t := make([]byte, len(s)+2*hexCount)
	j := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case shouldEscape(c):
			t[j] = '='
			t[j+1] = "0123456789ABCDEF"[c>>4]
			t[j+2] = "0123456789ABCDEF"[c&15]
			j += 3
		default:
			t[j] = s[i]
			j++
		}
	}
	return string(t)
}

// Return true if the specified character should be escaped when
// appearing in an archive file name.  Only alphanumeric characters
// pass through; everything else is hex encoded behind '='.  Based on
// the IEEE Std 1003.1-2017 portable filename character set, with all
// punctuation removed.
func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}

	// Everything else must be escaped.
	return true
}

// encode returns the basename in a filename safe form: a distinguisher
// and encoding version prefix, the escaped thread ID, and a .json
// suffix.
func (b basename) encode() string {
	var sb strings.Builder
	const prefix = "thread-1-"
	const suffix = ".json"
	sb.Grow(len(prefix) + len(b.threadID) + len(suffix))
	sb.WriteString(prefix)
	sb.WriteString(escape(b.threadID))
	sb.WriteString(suffix)
	return sb.String()
}

func mkdir(dir string) error {
	if err := os.Mkdir(dir, dirFileMode); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

func mkdirfarm(path string, depth int) error {
	if err := mkdir(path); err != nil {
		return err
	}
	if depth == 0 {
		return nil
	}

	for i := 0; i < len(pathFarm16); i++ {
		path := filepath.Join(path, pathFarm16[i:i+1])
		if err := mkdirfarm(path, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func fingerprint(b []byte) uint32 {
	hash := fnv.New32a()
	hash.Write(b)
	return hash.Sum32()
}

func pathParts(id string) []string {
	fp := fingerprint([]byte(id))
	nibble1 := fp & 0xf
	nibble2 := (fp >> 4) & 0xf
	return []string{pathFarm16[nibble1 : nibble1+1], pathFarm16[nibble2 : nibble2+1]}
}

func (s *Store) makePath(id string) path {
	return path{
		root: s.path,
		dirs: pathParts(id),
		base: basename{threadID: id}.encode(),
	}
}
