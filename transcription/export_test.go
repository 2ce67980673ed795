package transcription

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestFormatSRTTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "00:00:00,000"},
		{in: 65.25, want: "00:01:05,250"},
		{in: 70, want: "00:01:10,000"},
		{in: 3661.007, want: "01:01:01,007"},
		{in: 0.0005, want: "00:00:00,001"},
		{in: 59.9999, want: "00:01:00,000"},
		{in: -3, want: "00:00:00,000"},
		{in: 36000, want: "10:00:00,000"},
	}
	for _, tc := range cases {
		if got := FormatSRTTimestamp(tc.in); got != tc.want {
			t.Fatalf("FormatSRTTimestamp(%v)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExportSRT(t *testing.T) {
	t.Parallel()

	got := ExportSRT([]Segment{
		{Start: 65.25, End: 70.0, Text: "hello"},
		{Start: 70.0, End: 72.5, Text: "world"},
	})
	want := "1\n00:01:05,250 --> 00:01:10,000\nhello\n\n2\n00:01:10,000 --> 00:01:12,500\nworld\n"
	if got != want {
		t.Fatalf("got=%q, want %q", got, want)
	}
	if ExportSRT(nil) != "" {
		t.Fatalf("empty segments should export empty")
	}
}

func TestExportJSON(t *testing.T) {
	t.Parallel()

	tr := sampleTranscript()
	tr.FullText = "edited"
	b, err := ExportJSON(tr, []Note{{ID: "n1", TimestampSeconds: 1.5, Text: "look"}})
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var doc struct {
		Metadata   Metadata  `json:"metadata"`
		Category   string    `json:"category"`
		Confidence float64   `json:"confidence"`
		FullText   string    `json:"full_text"`
		Segments   []Segment `json:"segments"`
		Notes      []Note    `json:"notes"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Metadata.Title != "T" || doc.Category != DefaultCategory || doc.Confidence != MediaConfidence {
		t.Fatalf("doc=%+v", doc)
	}
	if doc.FullText != "edited" || len(doc.Segments) != 2 || len(doc.Notes) != 1 || doc.Notes[0].Text != "look" {
		t.Fatalf("doc=%+v", doc)
	}

	b, err = ExportJSON(Transcript{}, nil)
	if err != nil {
		t.Fatalf("ExportJSON empty: %v", err)
	}
	if !strings.Contains(string(b), `"notes": []`) || !strings.Contains(string(b), `"segments": []`) {
		t.Fatalf("empty lists should encode as []: %s", b)
	}
}

func TestExport_Dispatch(t *testing.T) {
	t.Parallel()

	if _, err := Export(Snapshot{}, ExportFormatTXT); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("err=%v, want ErrNotCompleted", err)
	}

	tr := sampleTranscript()
	snap := Snapshot{Transcript: &tr}
	out, err := Export(snap, ExportFormatTXT)
	if err != nil || string(out) != "hello world" {
		t.Fatalf("txt=%q err=%v", out, err)
	}
	out, err = Export(snap, ExportFormatSRT)
	if err != nil || !strings.HasPrefix(string(out), "1\n00:00:00,000 --> 00:00:01,000\nhello\n") {
		t.Fatalf("srt=%q err=%v", out, err)
	}
	if _, err := Export(snap, "pdf"); !errors.Is(err, ErrInputRejected) {
		t.Fatalf("err=%v, want ErrInputRejected", err)
	}
}

func TestExportMarkdown(t *testing.T) {
	t.Parallel()

	tr := sampleTranscript()
	tr.Segments = append(tr.Segments, Segment{Start: 3725, End: 3730, Text: "late"})
	snap := Snapshot{
		Transcript: &tr,
		Views: map[ViewKind]ViewSnapshot{
			ViewSummary:     {State: ViewReady, Text: "- point"},
			ViewTranslation: {State: ViewFailed, Text: FallbackText(ViewTranslation)},
		},
		Notes: []Note{{ID: "n", TimestampSeconds: 65, Text: "check this"}},
	}
	md := ExportMarkdown(snap)

	for _, want := range []string{
		"# T\n",
		"> D\n",
		"## Summary\n\n- point\n",
		"[00:00-00:01] hello\n",
		"[01:02:05-01:02:10] late\n",
		"## Notes\n\n- [01:05] check this\n",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Translation") {
		t.Fatalf("failed views should not be exported:\n%s", md)
	}
}

func TestParseExportFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]ExportFormat{
		"txt":      ExportFormatTXT,
		"TEXT":     ExportFormatTXT,
		"json":     ExportFormatJSON,
		" srt ":    ExportFormatSRT,
		"markdown": ExportFormatMarkdown,
		"md":       ExportFormatMarkdown,
	}
	for in, want := range cases {
		got, err := ParseExportFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseExportFormat(%q)=%q,%v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseExportFormat("vtt"); !errors.Is(err, ErrInputRejected) {
		t.Fatalf("err=%v, want ErrInputRejected", err)
	}
}
