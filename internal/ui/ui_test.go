package ui

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// captureStderr redirects os.Stderr to a pipe and returns what fn wrote.
// Tests using it must not run in parallel.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stderr
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = orig

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	r.Close()
	return string(buf[:n])
}

func TestPrinterVerdicts(t *testing.T) {
	p := New()

	t.Run("workspace configured", func(t *testing.T) {
		out := captureStderr(t, func() { p.WorkspaceConfigured("acme") })
		for _, want := range []string{"✓", `workspace "acme"`, "configured"} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("workspace broken", func(t *testing.T) {
		out := captureStderr(t, func() { p.WorkspaceBroken(errors.New("bad toml")) })
		for _, want := range []string{"✗", "workspace config", "bad toml"} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("graph valid", func(t *testing.T) {
		out := captureStderr(t, func() { p.GraphValid(12, 30) })
		for _, want := range []string{"✓", "12 project(s)", "30 dependency edge(s)", "no cycles"} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("graph invalid", func(t *testing.T) {
		out := captureStderr(t, func() { p.GraphInvalid(errors.New("dependency cycle: a -> b -> a")) })
		for _, want := range []string{"✗", "dependency cycle: a -> b -> a"} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("error line", func(t *testing.T) {
		out := captureStderr(t, func() { p.Error("boom") })
		if !strings.Contains(out, "error:") || !strings.Contains(out, "boom") {
			t.Errorf("output %q missing error line", out)
		}
	})
}

func TestPrinterCache(t *testing.T) {
	p := New()

	t.Run("status with entries", func(t *testing.T) {
		newest := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
		out := captureStderr(t, func() { p.CacheStatus(3, 2048, newest) })
		for _, want := range []string{"entries: 3", "2.0 KiB", "2025-11-03T09:30:00Z"} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("empty cache omits newest", func(t *testing.T) {
		out := captureStderr(t, func() { p.CacheStatus(0, 0, time.Time{}) })
		if strings.Contains(out, "newest") {
			t.Errorf("output %q should omit newest for an empty cache", out)
		}
	})

	t.Run("cleared", func(t *testing.T) {
		out := captureStderr(t, func() { p.CacheCleared() })
		if !strings.Contains(out, "cache cleared") {
			t.Errorf("output %q missing confirmation", out)
		}
	})
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5<<20 + 1<<19, "5.5 MiB"},
	}
	for _, c := range cases {
		if got := FormatBytes(c.n); got != c.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}
