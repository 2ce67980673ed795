package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/archive"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/fileutils"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/provider"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/settings"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.InitConfig {
		if err := settings.Write(cfg.ConfigPath, settings.Default()); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "config=%s\n", cfg.ConfigPath)
		return
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

	in, err := loadInput(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := provider.NewClient(apiKey, cfg.Model, cfg.MediaModel)
	d := deps{
		acquirer:    transcription.NewService(client, transcription.WithRetryPolicy(s.RetryPolicy())),
		deriver:     transcription.NewGenerator(client, cfg.Language),
		copy:        clipboard.WriteAll,
		tick:        transcription.TickInterval,
		reportEvery: 5 * time.Second,
	}
	if err := run(ctx, cfg, in, d, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	var questions stringList
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.FilePath, "file", "", "Audio file to transcribe (.mp3, .wav, .m4a)")
	fs.StringVar(&cfg.URL, "url", "", "Video link to transcribe (youtube.com/watch, youtu.be, embed, v, shorts)")
	fs.StringVar(&cfg.Views, "views", "", "Comma-separated derived views to compute: summary,translation,refinement")
	fs.Var(&questions, "ask", "Question to ask about the transcript (repeatable)")
	fs.StringVar(&cfg.Formats, "formats", cfg.Formats, "Comma-separated export formats: txt,json,srt,md (empty disables)")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for exports")
	fs.StringVar(&cfg.CopyFormat, "copy", "", "Copy the export in this format to the clipboard")
	fs.StringVar(&cfg.ArchivePath, "archive", "", "SQLite archive to store the finished session in")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "YAML settings file (missing file uses defaults)")
	fs.BoolVar(&cfg.InitConfig, "init-config", false, "Write a default settings file to -config and exit")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file to load")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.MediaModel, "media-model", cfg.MediaModel, "OpenAI audio transcription model (e.g. whisper-1)")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "Target language for the translation view")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite existing export files")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Questions = questions
	cfg.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cfg.explicit[f.Name] = true })

	if cfg.FilePath != "" {
		cfg.FilePath = filepath.Clean(cfg.FilePath)
	}
	if cfg.OutDir != "" {
		cfg.OutDir = filepath.Clean(cfg.OutDir)
	}
	return cfg, nil
}

func loadInput(cfg Config) (transcription.Input, error) {
	if cfg.FilePath != "" {
		p, err := transcription.LoadMediaFile(cfg.FilePath)
		if err != nil {
			return transcription.Input{}, err
		}
		return transcription.Input{Media: &p}, nil
	}
	ref, err := transcription.ParseVideoURL(cfg.URL)
	if err != nil {
		return transcription.Input{}, err
	}
	return transcription.Input{URL: ref.URL}, nil
}

type deps struct {
	acquirer    transcription.Acquirer
	deriver     transcription.Deriver
	copy        func(string) error
	tick        time.Duration
	reportEvery time.Duration
}

func run(ctx context.Context, cfg Config, in transcription.Input, d deps, stdout, stderr io.Writer) error {
	start := time.Now()
	sess := transcription.NewSession(uuid.NewString(), d.acquirer, d.deriver, transcription.WithTickInterval(d.tick))

	done := make(chan struct{})
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		reportProgress(sess, d.reportEvery, done, stderr)
	}()
	err := sess.Acquire(ctx, in)
	close(done)
	<-reported
	if err != nil {
		return fmt.Errorf("%s (%w)", transcription.UserMessage(err, transcription.GenericFailureMessage), err)
	}

	snap := sess.Snapshot()
	fmt.Fprintf(stderr, "progress transcribe: transcript ready title=%q segments=%d elapsed=%s\n",
		snap.Transcript.Metadata.Title, len(snap.Transcript.Segments), time.Since(start).Truncate(time.Millisecond))

	kinds, err := cfg.ViewKinds()
	if err != nil {
		return err
	}
	for _, k := range kinds {
		if _, err := sess.View(ctx, k); err != nil {
			return fmt.Errorf("view %s: %w", k, err)
		}
		state := sess.Snapshot().Views[k].State
		fmt.Fprintf(stderr, "progress transcribe: view=%s state=%s\n", k, state)
	}

	for _, q := range cfg.Questions {
		answer, err := sess.Ask(ctx, q)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		fmt.Fprintf(stdout, "question=%q answer=%q\n", q, answer)
	}

	snap = sess.Snapshot()
	formats, err := cfg.ExportFormats()
	if err != nil {
		return err
	}
	written, err := writeExports(snap, formats, cfg.OutDir, cfg.Overwrite, stderr)
	if err != nil {
		return err
	}

	copied := false
	if cfg.CopyFormat != "" && d.copy != nil {
		f, err := transcription.ParseExportFormat(cfg.CopyFormat)
		if err != nil {
			return err
		}
		b, err := transcription.Export(snap, f)
		if err != nil {
			return fmt.Errorf("export %s: %w", f, err)
		}
		if err := d.copy(string(b)); err != nil {
			fmt.Fprintf(stderr, "clipboard: %v\n", err)
		} else {
			copied = true
		}
	}

	archived := false
	if cfg.ArchivePath != "" {
		if err := archiveSnapshot(ctx, cfg.ArchivePath, snap); err != nil {
			return err
		}
		archived = true
	}

	fmt.Fprintf(stdout, "session=%s title=%q category=%q segments=%d files_written=%d copied=%v archived=%v\n",
		snap.ID, snap.Transcript.Metadata.Title, snap.Transcript.Category, len(snap.Transcript.Segments), len(written), copied, archived)
	return nil
}

func reportProgress(sess *transcription.Session, every time.Duration, done <-chan struct{}, w io.Writer) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if sess.Status() != transcription.StatusProcessing {
				continue
			}
			p := sess.Progress()
			fmt.Fprintf(w, "progress transcribe: %.0f%% remaining=%ds of %ds\n", p.Percent, p.RemainingSeconds, p.EstimatedTotalSeconds)
		}
	}
}

func writeExports(snap transcription.Snapshot, formats []transcription.ExportFormat, outDir string, overwrite bool, stderr io.Writer) ([]string, error) {
	stem := fileutils.SanitizeFilename(snap.Transcript.Metadata.Title)
	var written []string
	for _, f := range formats {
		path := filepath.Join(outDir, stem+f.Extension())
		if !overwrite && fileutils.FileExists(path) {
			fmt.Fprintf(stderr, "skip %s: exists (use -overwrite)\n", path)
			continue
		}
		b, err := transcription.Export(snap, f)
		if err != nil {
			return written, fmt.Errorf("export %s: %w", f, err)
		}
		if err := fileutils.WriteFileAtomicSameDir(path, b, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func archiveSnapshot(ctx context.Context, path string, snap transcription.Snapshot) error {
	store, err := archive.Open(path)
	if err != nil {
		return err
	}
	_, saveErr := store.SaveSnapshot(ctx, snap)
	closeErr := store.Close()
	return errors.Join(saveErr, closeErr)
}
