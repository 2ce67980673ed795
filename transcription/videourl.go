package transcription

import (
	"regexp"
	"strings"
)

// VideoURLKind names one of the accepted link shapes.
type VideoURLKind string

const (
	VideoURLWatch  VideoURLKind = "watch"
	VideoURLShort  VideoURLKind = "short"
	VideoURLEmbed  VideoURLKind = "embed"
	VideoURLLegacy VideoURLKind = "legacy"
	VideoURLShorts VideoURLKind = "shorts"
)

// VideoRef is a parsed video link.
type VideoRef struct {
	ID   string
	Kind VideoURLKind
	URL  string
}

var videoURLPatterns = []struct {
	kind VideoURLKind
	re   *regexp.Regexp
}{
	{VideoURLWatch, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]{11})(?:[&#]|$)`)},
	{VideoURLShort, regexp.MustCompile(`(?i)^(?:https?://)?youtu\.be/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`)},
	{VideoURLEmbed, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`)},
	{VideoURLLegacy, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/v/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`)},
	{VideoURLShorts, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?youtube\.com/shorts/([A-Za-z0-9_-]{11})(?:[?&#/]|$)`)},
}

// ParseVideoURL validates s against the accepted link shapes.
func ParseVideoURL(s string) (VideoRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VideoRef{}, &InputError{Reason: "video link is empty"}
	}
	for _, p := range videoURLPatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			return VideoRef{ID: m[1], Kind: p.kind, URL: s}, nil
		}
	}
	return VideoRef{}, &InputError{Reason: "not a recognised video link"}
}

// ExtractVideoID returns the video identifier when s matches an accepted shape.
func ExtractVideoID(s string) (string, bool) {
	ref, err := ParseVideoURL(s)
	if err != nil {
		return "", false
	}
	return ref.ID, true
}
