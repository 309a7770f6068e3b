package persist

import (
	"net/url"
	"testing"
)

func TestDsnFromPath(t *testing.T) {
	cases := []struct {
		path string
		add  url.Values
		want string
	}{
		{
			path: "/home/u/.gmfetch.db",
			add:  url.Values{"_busy_timeout": {"300000"}},
			want: "file:///home/u/.gmfetch.db?_busy_timeout=300000",
		},
		{
			path: "file:test.db?cache=shared",
			add:  url.Values{"_busy_timeout": {"1"}},
			want: "file:test.db?_busy_timeout=1&cache=shared",
		},
	}
	for _, tc := range cases {
		got, err := dsnFromPath(tc.path, tc.add)
		if err != nil {
			t.Errorf("dsnFromPath(%q) error = %v, want nil", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("dsnFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?,?,?"},
	}
	for _, tc := range cases {
		if got := placeholders(tc.n); got != tc.want {
			t.Errorf("placeholders(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
