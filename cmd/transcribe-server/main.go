package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/archive"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/provider"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/settings"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := settings.LoadEnv(cfg.EnvFile); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	s, err := settings.Load(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg = cfg.withSettings(s)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *archive.Store
	if cfg.ArchivePath != "" {
		store, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		defer store.Close()
	}

	client := provider.NewClient(apiKey, cfg.Model, cfg.MediaModel)
	svc := transcription.NewService(client, transcription.WithRetryPolicy(s.RetryPolicy()))
	gen := transcription.NewGenerator(client, cfg.Language)

	srv := &server{
		reg: newRegistry(func(id string) *transcription.Session {
			return transcription.NewSession(id, svc, gen)
		}, cfg.SessionTTL),
		store:   store,
		baseCtx: ctx,
	}
	opts := serverOptions{}
	if cfg.AccessLog {
		opts.accessLog = os.Stderr
	}
	app := newApp(srv, opts)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening addr=%s model=%s media_model=%s archive=%q", cfg.Addr, cfg.Model, cfg.MediaModel, cfg.ArchivePath)
	if err := app.Listen(cfg.Addr); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	fs.StringVar(&cfg.ArchivePath, "archive", "", "SQLite archive for finished sessions (empty disables the archive routes)")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "YAML settings file (missing file uses defaults)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file to load")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.MediaModel, "media-model", cfg.MediaModel, "OpenAI audio transcription model (e.g. whisper-1)")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "Target language for the translation view")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Drop sessions unused for this long (0 keeps them)")
	fs.BoolVar(&cfg.AccessLog, "access-log", cfg.AccessLog, "Write an access log line per request to stderr")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cfg.explicit[f.Name] = true })
	return cfg, nil
}
