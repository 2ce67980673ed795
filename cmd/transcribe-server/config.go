package main

import (
	"errors"
	"time"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/settings"
)

type Config struct {
	Addr        string
	ArchivePath string
	ConfigPath  string
	EnvFile     string
	Model       string
	MediaModel  string
	Language    string
	APIKey      string
	SessionTTL  time.Duration
	AccessLog   bool

	explicit map[string]bool
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("missing -addr")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.MediaModel == "" {
		return errors.New("missing -media-model")
	}
	if c.SessionTTL < 0 {
		return errors.New("-session-ttl must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	s := settings.Default()
	return Config{
		Addr:       s.Server.Addr,
		ConfigPath: settings.DefaultPath,
		EnvFile:    ".env",
		Model:      s.Model,
		MediaModel: s.MediaModel,
		Language:   s.TargetLanguage,
		SessionTTL: s.Server.SessionTTL,
		AccessLog:  true,
	}
}

func (c Config) withSettings(s settings.Settings) Config {
	if !c.explicit["addr"] && s.Server.Addr != "" {
		c.Addr = s.Server.Addr
	}
	if !c.explicit["session-ttl"] {
		c.SessionTTL = s.Server.SessionTTL
	}
	if !c.explicit["model"] && s.Model != "" {
		c.Model = s.Model
	}
	if !c.explicit["media-model"] && s.MediaModel != "" {
		c.MediaModel = s.MediaModel
	}
	if !c.explicit["language"] && s.TargetLanguage != "" {
		c.Language = s.TargetLanguage
	}
	if !c.explicit["archive"] && s.ArchivePath != "" {
		c.ArchivePath = s.ArchivePath
	}
	return c
}
