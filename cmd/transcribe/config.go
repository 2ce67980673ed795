package main

import (
	"errors"
	"strings"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/settings"
)

type Config struct {
	FilePath    string
	URL         string
	Views       string
	Questions   []string
	Formats     string
	OutDir      string
	CopyFormat  string
	ArchivePath string
	ConfigPath  string
	InitConfig  bool
	EnvFile     string
	Model       string
	MediaModel  string
	Language    string
	APIKey      string
	Overwrite   bool

	// explicit holds the names of flags given on the command line.
	explicit map[string]bool
}

func (c Config) Validate() error {
	if c.InitConfig {
		return nil
	}
	if c.FilePath == "" && c.URL == "" {
		return errors.New("missing -file or -url")
	}
	if c.FilePath != "" && c.URL != "" {
		return errors.New("use only one of -file or -url")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if _, err := c.ViewKinds(); err != nil {
		return err
	}
	if _, err := c.ExportFormats(); err != nil {
		return err
	}
	if c.CopyFormat != "" {
		if _, err := transcription.ParseExportFormat(c.CopyFormat); err != nil {
			return err
		}
	}
	for _, q := range c.Questions {
		if strings.TrimSpace(q) == "" {
			return errors.New("-ask must not be empty")
		}
	}
	return nil
}

func defaultConfig() Config {
	s := settings.Default()
	return Config{
		Formats:    strings.Join(s.Formats, ","),
		OutDir:     s.OutDir,
		ConfigPath: settings.DefaultPath,
		EnvFile:    ".env",
		Model:      s.Model,
		MediaModel: s.MediaModel,
		Language:   s.TargetLanguage,
	}
}

// withSettings fills every field whose flag was not given explicitly from the settings file.
func (c Config) withSettings(s settings.Settings) Config {
	if !c.explicit["model"] && s.Model != "" {
		c.Model = s.Model
	}
	if !c.explicit["media-model"] && s.MediaModel != "" {
		c.MediaModel = s.MediaModel
	}
	if !c.explicit["language"] && s.TargetLanguage != "" {
		c.Language = s.TargetLanguage
	}
	if !c.explicit["out"] && s.OutDir != "" {
		c.OutDir = s.OutDir
	}
	if !c.explicit["formats"] && len(s.Formats) > 0 {
		c.Formats = strings.Join(s.Formats, ",")
	}
	if !c.explicit["archive"] && s.ArchivePath != "" {
		c.ArchivePath = s.ArchivePath
	}
	return c
}

func (c Config) ViewKinds() ([]transcription.ViewKind, error) {
	var out []transcription.ViewKind
	for _, v := range splitList(c.Views) {
		k, err := transcription.ParseViewKind(v)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (c Config) ExportFormats() ([]transcription.ExportFormat, error) {
	var out []transcription.ExportFormat
	for _, v := range splitList(c.Formats) {
		f, err := transcription.ParseExportFormat(v)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
