package transcription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/fileutils"
)

const (
	// MetadataInputChars caps how much of the full text the title step sees.
	MetadataInputChars = 2000

	MediaConfidence = 0.98
	URLConfidence   = 0.90

	URLCategory     = "External Video Source"
	DefaultCategory = "General"

	FallbackTitle       = "Untitled transcript"
	FallbackDescription = "No description available."

	contentMissingSentinel = "content_missing"
)

const (
	msgMediaFailed = "Transcription failed. The audio could not be processed, please try again."
	msgNoSpeech    = "No speech could be transcribed from this file."
	msgNoCaptions  = "Could not extract a verbatim transcript from this video. It may not have public captions; try uploading the audio file instead."
)

// RetryPolicy bounds the URL extraction loop. An attempt fails when the model reports
// content_missing, returns no segments, or returns fewer than MinTextChars characters of text.
type RetryPolicy struct {
	MaxAttempts  int
	MinTextChars int
	Backoff      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  2,
		MinTextChars: 50,
		Backoff:      2500 * time.Millisecond,
	}
}

type mediaResponse struct {
	Category string    `json:"category"`
	Segments []Segment `json:"segments"`
}

// mediaDecoded tells an absent segments key apart from an empty list.
type mediaDecoded struct {
	Category string     `json:"category"`
	Segments *[]Segment `json:"segments"`
}

type metadataResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type videoResponse struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Error       string    `json:"error"`
	Segments    []Segment `json:"segments"`
}

var (
	mediaFormat = &Format{
		Name:        "MediaTranscript",
		Description: "Verbatim time-coded transcript JSON",
		Sample:      mediaResponse{},
	}
	metadataFormat = &Format{
		Name:        "TranscriptMetadata",
		Description: "Transcript title and description JSON",
		Sample:      metadataResponse{},
	}
	videoFormat = &Format{
		Name:        "VideoTranscript",
		Description: "Structured video transcript JSON",
		Sample:      videoResponse{},
	}
)

// Service turns media payloads and video links into transcripts.
type Service struct {
	model  Model
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

type ServiceOption func(*Service)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) ServiceOption {
	return func(s *Service) { s.policy = p }
}

// WithSleep replaces the backoff wait between URL attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) { s.sleep = fn }
}

func NewService(model Model, opts ...ServiceOption) *Service {
	s := &Service{
		model:  model,
		policy: DefaultRetryPolicy(),
		sleep:  sleepContext,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AcquireFromMedia transcribes an audio payload with a single model request, then titles it.
func (s *Service) AcquireFromMedia(ctx context.Context, p Payload) (Transcript, error) {
	if s.model == nil {
		return Transcript{}, errors.New("transcription.Service: model is nil")
	}

	raw, err := s.model.Generate(ctx, Request{
		Instructions: mediaTranscriptionPrompt,
		Prompt:       "Transcribe the attached recording verbatim.",
		Media:        &p,
		Format:       mediaFormat,
	})
	if err != nil {
		return Transcript{}, &AcquisitionError{Message: msgMediaFailed, Err: err}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Transcript{}, &AcquisitionError{Message: msgNoSpeech, Err: ErrEmptyResponse}
	}

	var segments []Segment
	var category string
	var out mediaDecoded
	if err := fileutils.DecodeModelJSON(raw, &out); err != nil || out.Segments == nil {
		// Keep what the model said rather than failing the whole upload.
		segments = []Segment{{Start: 0, End: 0, Text: raw}}
	} else {
		segments = normalizeSegments(*out.Segments)
		category = strings.TrimSpace(out.Category)
	}
	if len(segments) == 0 {
		return Transcript{}, &AcquisitionError{Message: msgNoSpeech, Err: ErrEmptyResponse}
	}
	if category == "" {
		category = DefaultCategory
	}

	tr := Transcript{
		FullText:   joinSegmentText(segments),
		Segments:   segments,
		Category:   category,
		Confidence: MediaConfidence,
	}
	tr.Metadata = s.describe(ctx, tr.FullText)
	return tr, nil
}

// describe never fails; a broken title step falls back to fixed text.
func (s *Service) describe(ctx context.Context, text string) Metadata {
	md := Metadata{Title: FallbackTitle, Description: FallbackDescription}

	raw, err := s.model.Generate(ctx, Request{
		Instructions:    metadataPrompt,
		Prompt:          fileutils.Truncate(text, MetadataInputChars),
		Format:          metadataFormat,
		MaxOutputTokens: 300,
	})
	if err != nil {
		return md
	}
	var out metadataResponse
	if err := fileutils.DecodeModelJSON(raw, &out); err != nil {
		return md
	}
	if t := strings.TrimSpace(out.Title); t != "" {
		md.Title = t
	}
	if d := strings.TrimSpace(out.Description); d != "" {
		md.Description = d
	}
	return md
}

// AcquireFromURL runs the search-then-structure pipeline, retrying per the RetryPolicy.
func (s *Service) AcquireFromURL(ctx context.Context, url string) (Transcript, error) {
	if s.model == nil {
		return Transcript{}, errors.New("transcription.Service: model is nil")
	}

	query := searchQuery(url)
	attempts := s.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.policy.Backoff); err != nil {
				lastErr = err
				break
			}
		}
		tr, err := s.extractOnce(ctx, query)
		if err == nil {
			return tr, nil
		}
		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, attempts, err)
		if ctx.Err() != nil {
			break
		}
	}
	return Transcript{}, &AcquisitionError{Message: msgNoCaptions, Err: lastErr}
}

func (s *Service) extractOnce(ctx context.Context, query string) (Transcript, error) {
	found, err := s.model.Generate(ctx, Request{
		Instructions: videoSearchPrompt,
		Prompt:       query,
		Search:       true,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("search: %w", err)
	}
	found = strings.TrimSpace(found)
	if found == "" {
		return Transcript{}, fmt.Errorf("search: %w", ErrEmptyResponse)
	}

	structured, err := s.model.Generate(ctx, Request{
		Instructions: videoStructurePrompt,
		Prompt:       found,
		Format:       videoFormat,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("structure: %w", err)
	}

	var out videoResponse
	if err := fileutils.DecodeModelJSON(structured, &out); err != nil {
		return Transcript{}, fmt.Errorf("structure: %w: %v", ErrMalformedResponse, err)
	}
	if strings.EqualFold(strings.TrimSpace(out.Error), contentMissingSentinel) {
		return Transcript{}, errContentMissing
	}
	segments := normalizeSegments(out.Segments)
	if len(segments) == 0 {
		return Transcript{}, fmt.Errorf("structure: %w: no segments", ErrEmptyResponse)
	}
	full := joinSegmentText(segments)
	if n := utf8.RuneCountInString(full); n < s.policy.MinTextChars {
		return Transcript{}, fmt.Errorf("%w: %d < %d chars", errTranscriptTooShort, n, s.policy.MinTextChars)
	}

	md := Metadata{
		Title:       strings.TrimSpace(out.Title),
		Description: strings.TrimSpace(out.Description),
	}
	if md.Title == "" {
		md.Title = titleLine(found)
	}
	if md.Title == "" {
		md.Title = FallbackTitle
	}
	if md.Description == "" {
		md.Description = FallbackDescription
	}

	return Transcript{
		FullText:   full,
		Segments:   segments,
		Category:   URLCategory,
		Metadata:   md,
		Confidence: URLConfidence,
	}, nil
}

func searchQuery(url string) string {
	url = strings.TrimSpace(url)
	if id, ok := ExtractVideoID(url); ok {
		return fmt.Sprintf("YouTube video %s (%s): find its full transcript or captions.", id, url)
	}
	return fmt.Sprintf("Video at %s: find its full transcript or captions.", url)
}

// titleLine returns the value of a leading "Title:" line, if any.
func titleLine(s string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	first = strings.TrimSpace(strings.Trim(first, "*#"))
	if len(first) < len("title:") || !strings.EqualFold(first[:len("title:")], "title:") {
		return ""
	}
	return strings.Trim(first[len("title:"):], " \t\"*")
}

// normalizeSegments trims text, drops empty segments, repairs inverted or negative offsets,
// and orders segments by start.
func normalizeSegments(in []Segment) []Segment {
	out := make([]Segment, 0, len(in))
	for _, seg := range in {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		if !(seg.Start >= 0) {
			seg.Start = 0
		}
		if !(seg.End >= seg.Start) {
			seg.End = seg.Start
		}
		out = append(out, seg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
