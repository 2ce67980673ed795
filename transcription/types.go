package transcription

// Segment is a time-bounded span of transcript text. Offsets are seconds from the start of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Metadata is the short human-facing description of a transcript.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Transcript is the canonical result of an acquisition.
type Transcript struct {
	// FullText starts as the segment texts joined by single spaces. It may be edited afterwards;
	// edits never touch Segments.
	FullText string `json:"full_text"`

	// Segments are the original time-coded anchors, ordered by Start.
	Segments []Segment `json:"segments"`

	Category   string   `json:"category"`
	Metadata   Metadata `json:"metadata"`
	Confidence float64  `json:"confidence"`
}

// Clone returns a copy that shares no slices with t.
func (t Transcript) Clone() Transcript {
	out := t
	out.Segments = append([]Segment(nil), t.Segments...)
	return out
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one turn of a chat over a transcript.
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Note is a user-authored annotation anchored to a playback offset.
type Note struct {
	ID               string  `json:"id"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Text             string  `json:"text"`
}

// ViewKind names a lazily computed artifact derived from the canonical text.
type ViewKind string

const (
	ViewSummary     ViewKind = "summary"
	ViewTranslation ViewKind = "translation"
	ViewRefinement  ViewKind = "refinement"
)

// ViewKinds lists every derived view in display order.
var ViewKinds = []ViewKind{ViewSummary, ViewTranslation, ViewRefinement}

// ParseViewKind maps user input onto a ViewKind.
func ParseViewKind(s string) (ViewKind, error) {
	switch ViewKind(s) {
	case ViewSummary, ViewTranslation, ViewRefinement:
		return ViewKind(s), nil
	case "translate":
		return ViewTranslation, nil
	case "refine":
		return ViewRefinement, nil
	}
	return "", &InputError{Reason: "unknown view " + s}
}

func joinSegmentText(segments []Segment) string {
	n := 0
	for _, s := range segments {
		n += len(s.Text) + 1
	}
	b := make([]byte, 0, n)
	for i, s := range segments {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, s.Text...)
	}
	return string(b)
}
