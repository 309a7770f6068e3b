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

package rawstore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	gmail_api "google.golang.org/api/gmail/v1"
)

func isDir(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("path is not a directory: %#v", stat)
	}
	return nil
}

func TestBasenameEncode(t *testing.T) {
	cases := []struct {
		name basename
		want string
	}{
		{
			name: basename{"threadId"},
			want: "thread-1-threadId.json",
		},
		{
			name: basename{"竹"},
			want: "thread-1-=E7=AB=B9.json",
		},
		{
			name: basename{"\n\t\a"},
			want: "thread-1-=0A=09=07.json",
		},
	}
	for _, tc := range cases {
		if got := tc.name.encode(); got != tc.want {
			t.Errorf("%#v.encode() = %#v, want %#v", tc.name, got, tc.want)
		}
	}
}

func TestMkDirFarm(t *testing.T) {
	farm := filepath.Join(t.TempDir(), "farm")
	if err := mkdirfarm(farm, 2); err != nil {
		t.Errorf("mkdirfarm(%#v) = %#v, want nil", farm, err)
	}

	if err := isDir(farm); err != nil {
		t.Errorf("isDir(%#v) = %v, want nil", farm, err)
	}

	// Test a smattering of the directories that should be there.
	for _, sub := range []string{"a/a", "p/p", "m/c"} {
		path := filepath.Join(farm, sub)
		if err := isDir(path); err != nil {
			t.Errorf("isDir(%#v) = %v, want nil", path, err)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}

	if s.HaveThread("t1") {
		t.Error("HaveThread(t1) = true before Write, want false")
	}

	raw := &gmail_api.Thread{
		Id: "t1",
		Messages: []*gmail_api.Message{
			{Id: "m1", ThreadId: "t1", Snippet: "hello"},
		},
	}
	if err := s.Write("t1", raw); err != nil {
		t.Fatalf("Write(t1) = %v, want nil", err)
	}
	if !s.HaveThread("t1") {
		t.Error("HaveThread(t1) = false after Write, want true")
	}

	got, err := s.Read("t1")
	if err != nil {
		t.Fatalf("Read(t1) = %v, want nil", err)
	}
	if got.Id != "t1" || len(got.Messages) != 1 || got.Messages[0].Snippet != "hello" {
		t.Errorf("Read(t1) = %+v, want the thread written", got)
	}
}

func TestWriteRequiresID(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}
	if err := s.Write("", &gmail_api.Thread{}); err == nil {
		t.Error("Write(\"\") = nil, want error")
	}
}
