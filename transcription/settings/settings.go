package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/fileutils"
)

// DefaultPath is the settings file looked up when none is given.
const DefaultPath = "transcribe.yaml"

// Settings are the file-level defaults shared by the CLI and the server. Flags override them.
type Settings struct {
	Model          string `yaml:"model"`
	MediaModel     string `yaml:"media_model"`
	TargetLanguage string `yaml:"target_language"`

	Retry struct {
		MaxAttempts  int           `yaml:"max_attempts"`
		MinTextChars int           `yaml:"min_text_chars"`
		Backoff      time.Duration `yaml:"backoff"`
	} `yaml:"retry"`

	OutDir      string   `yaml:"out_dir"`
	Formats     []string `yaml:"formats"`
	ArchivePath string   `yaml:"archive_path"`

	Server struct {
		Addr       string        `yaml:"addr"`
		SessionTTL time.Duration `yaml:"session_ttl"`
	} `yaml:"server"`
}

func Default() Settings {
	var s Settings
	s.Model = "gpt-5-mini"
	s.MediaModel = "whisper-1"
	s.TargetLanguage = transcription.DefaultTargetLanguage

	p := transcription.DefaultRetryPolicy()
	s.Retry.MaxAttempts = p.MaxAttempts
	s.Retry.MinTextChars = p.MinTextChars
	s.Retry.Backoff = p.Backoff

	s.OutDir = "."
	s.Formats = []string{"txt"}

	s.Server.Addr = ":8080"
	s.Server.SessionTTL = 2 * time.Hour
	return s
}

// Load reads path over Default(). A missing file is not an error; fields absent from the file keep
// their defaults.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) normalize() {
	s.Model = strings.TrimSpace(s.Model)
	s.MediaModel = strings.TrimSpace(s.MediaModel)
	s.TargetLanguage = strings.TrimSpace(s.TargetLanguage)
	if s.TargetLanguage == "" {
		s.TargetLanguage = transcription.DefaultTargetLanguage
	}
	if s.OutDir != "" {
		s.OutDir = filepath.Clean(s.OutDir)
	}
	for i, f := range s.Formats {
		s.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
}

func (s Settings) Validate() error {
	if s.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if s.Retry.MinTextChars < 0 {
		return errors.New("retry.min_text_chars must be >= 0")
	}
	if s.Retry.Backoff < 0 {
		return errors.New("retry.backoff must be >= 0")
	}
	for _, f := range s.Formats {
		if _, err := transcription.ParseExportFormat(f); err != nil {
			return err
		}
	}
	if s.Server.SessionTTL < 0 {
		return errors.New("server.session_ttl must be >= 0")
	}
	return nil
}

func (s Settings) RetryPolicy() transcription.RetryPolicy {
	return transcription.RetryPolicy{
		MaxAttempts:  s.Retry.MaxAttempts,
		MinTextChars: s.Retry.MinTextChars,
		Backoff:      s.Retry.Backoff,
	}
}

// Write stores s as YAML at path.
func Write(path string, s Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := fileutils.WriteFileAtomicSameDir(path, b, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads .env style files into the process environment without overriding variables that
// are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var present []string
	for _, p := range paths {
		if fileutils.FileExists(p) {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}
