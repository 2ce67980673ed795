package transcription

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ExportFormat names an export encoding.
type ExportFormat string

const (
	ExportFormatTXT      ExportFormat = "txt"
	ExportFormatJSON     ExportFormat = "json"
	ExportFormatSRT      ExportFormat = "srt"
	ExportFormatMarkdown ExportFormat = "md"
)

var ExportFormats = []ExportFormat{ExportFormatTXT, ExportFormatJSON, ExportFormatSRT, ExportFormatMarkdown}

func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt", "text":
		return ExportFormatTXT, nil
	case "json":
		return ExportFormatJSON, nil
	case "srt":
		return ExportFormatSRT, nil
	case "md", "markdown":
		return ExportFormatMarkdown, nil
	}
	return "", &InputError{Reason: "unknown export format " + s}
}

func (f ExportFormat) Extension() string {
	return "." + string(f)
}

func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatJSON:
		return "application/json"
	case ExportFormatSRT:
		return "application/x-subrip"
	case ExportFormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Export encodes a session snapshot. It fails with ErrNotCompleted when the snapshot has no transcript.
func Export(snap Snapshot, f ExportFormat) ([]byte, error) {
	if snap.Transcript == nil {
		return nil, ErrNotCompleted
	}
	switch f {
	case ExportFormatTXT:
		return []byte(ExportText(*snap.Transcript)), nil
	case ExportFormatJSON:
		return ExportJSON(*snap.Transcript, snap.Notes)
	case ExportFormatSRT:
		return []byte(ExportSRT(snap.Transcript.Segments)), nil
	case ExportFormatMarkdown:
		return []byte(ExportMarkdown(snap)), nil
	}
	return nil, &InputError{Reason: "unknown export format " + string(f)}
}

// ExportText is the canonical text, including any user edits.
func ExportText(t Transcript) string {
	return t.FullText
}

type exportDocument struct {
	Metadata   Metadata  `json:"metadata"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	FullText   string    `json:"full_text"`
	Segments   []Segment `json:"segments"`
	Notes      []Note    `json:"notes"`
}

func ExportJSON(t Transcript, notes []Note) ([]byte, error) {
	doc := exportDocument{
		Metadata:   t.Metadata,
		Category:   t.Category,
		Confidence: t.Confidence,
		FullText:   t.FullText,
		Segments:   t.Segments,
		Notes:      notes,
	}
	if doc.Segments == nil {
		doc.Segments = []Segment{}
	}
	if doc.Notes == nil {
		doc.Notes = []Note{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return b, nil
}

// ExportSRT renders one numbered cue per segment.
func ExportSRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, FormatSRTTimestamp(seg.Start), FormatSRTTimestamp(seg.End), seg.Text)
	}
	return b.String()
}

// FormatSRTTimestamp renders seconds as HH:MM:SS,mmm, rounded to the millisecond.
func FormatSRTTimestamp(sec float64) string {
	ms := int64(math.Round(sec * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ExportMarkdown renders a readable document: header, computed views, timed segments, notes.
func ExportMarkdown(snap Snapshot) string {
	var b strings.Builder
	if snap.Transcript == nil {
		return ""
	}
	t := snap.Transcript

	title := strings.TrimSpace(t.Metadata.Title)
	if title == "" {
		title = FallbackTitle
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if d := strings.TrimSpace(t.Metadata.Description); d != "" {
		fmt.Fprintf(&b, "> %s\n\n", d)
	}
	if t.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", t.Category)
	}
	fmt.Fprintf(&b, "- Confidence: %.2f\n", t.Confidence)
	b.WriteString("\n---\n\n")

	for _, k := range ViewKinds {
		v, ok := snap.Views[k]
		if !ok || v.State != ViewReady || v.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", viewHeading(k), strings.TrimSpace(v.Text))
	}

	b.WriteString("## Transcript\n\n")
	for _, seg := range t.Segments {
		fmt.Fprintf(&b, "[%s-%s] %s\n\n", clockTimestamp(seg.Start), clockTimestamp(seg.End), seg.Text)
	}

	if len(snap.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, n := range snap.Notes {
			fmt.Fprintf(&b, "- [%s] %s\n", clockTimestamp(n.TimestampSeconds), strings.TrimSpace(n.Text))
		}
	}
	return b.String()
}

func viewHeading(k ViewKind) string {
	switch k {
	case ViewSummary:
		return "Summary"
	case ViewTranslation:
		return "Translation"
	case ViewRefinement:
		return "Refined text"
	}
	return string(k)
}

// clockTimestamp renders MM:SS, or HH:MM:SS past the hour.
func clockTimestamp(sec float64) string {
	total := int64(sec)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
