package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Parallel()

	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(s, Default()) {
		t.Fatalf("settings=%+v, want defaults", s)
	}
	p := s.RetryPolicy()
	if p.MaxAttempts != 2 || p.MinTextChars != 50 || p.Backoff != 2500*time.Millisecond {
		t.Fatalf("RetryPolicy=%+v", p)
	}
}

func TestLoad_OverridesOnlyPresentFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcribe.yaml")
	body := strings.Join([]string{
		"model: gpt-test",
		"target_language: ' German '",
		"retry:",
		"  max_attempts: 4",
		"  backoff: 1s",
		"formats: [TXT, srt]",
		"server:",
		"  addr: ':9000'",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Model != "gpt-test" || s.TargetLanguage != "German" {
		t.Fatalf("model=%q lang=%q", s.Model, s.TargetLanguage)
	}
	if s.MediaModel != Default().MediaModel {
		t.Fatalf("MediaModel=%q, want default", s.MediaModel)
	}
	if s.Retry.MaxAttempts != 4 || s.Retry.MinTextChars != 50 || s.Retry.Backoff != time.Second {
		t.Fatalf("Retry=%+v", s.Retry)
	}
	if !reflect.DeepEqual(s.Formats, []string{"txt", "srt"}) {
		t.Fatalf("Formats=%v", s.Formats)
	}
	if s.Server.Addr != ":9000" || s.Server.SessionTTL != 2*time.Hour {
		t.Fatalf("Server=%+v", s.Server)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad_yaml":     "model: [unterminated",
		"zero_retries": "retry:\n  max_attempts: 0\n",
		"bad_format":   "formats: [pdf]\n",
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "s.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestWriteThenLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg", "transcribe.yaml")
	want := Default()
	want.Model = "m2"
	want.Retry.Backoff = 3 * time.Second
	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%+v, want %+v", got, want)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TRANSCRIBE_TEST_KEY=from-file\nTRANSCRIBE_TEST_KEEP=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("TRANSCRIBE_TEST_KEEP", "from-env")
	t.Setenv("TRANSCRIBE_TEST_KEY", "")
	os.Unsetenv("TRANSCRIBE_TEST_KEY")

	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("TRANSCRIBE_TEST_KEY"); got != "from-file" {
		t.Fatalf("KEY=%q, want from-file", got)
	}
	if got := os.Getenv("TRANSCRIBE_TEST_KEEP"); got != "from-env" {
		t.Fatalf("KEEP=%q, want from-env", got)
	}

	if err := LoadEnv(filepath.Join(dir, "none.env")); err != nil {
		t.Fatalf("LoadEnv with no files: %v", err)
	}
}
