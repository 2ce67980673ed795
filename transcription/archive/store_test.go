package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "archive.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(id, title string) transcription.Snapshot {
	tr := transcription.Transcript{
		FullText:   "hello world",
		Segments:   []transcription.Segment{{Start: 0, End: 1, Text: "hello"}, {Start: 1, End: 2, Text: "world"}},
		Category:   "Meeting",
		Metadata:   transcription.Metadata{Title: title, Description: "d"},
		Confidence: 0.98,
	}
	return transcription.Snapshot{
		ID:         id,
		Status:     transcription.StatusCompleted,
		Transcript: &tr,
		Views: map[transcription.ViewKind]transcription.ViewSnapshot{
			transcription.ViewSummary:     {State: transcription.ViewReady, Text: "- hi"},
			transcription.ViewTranslation: {State: transcription.ViewFailed, Text: "sorry"},
			transcription.ViewRefinement:  {State: transcription.ViewUnrequested},
		},
		Chat:  []transcription.ChatMessage{{Role: transcription.RoleUser, Text: "q"}, {Role: transcription.RoleModel, Text: "a"}},
		Notes: []transcription.Note{{ID: "n1", TimestampSeconds: 1, Text: "note"}},
	}
}

func TestRecordFromSnapshot(t *testing.T) {
	t.Parallel()

	rec, err := RecordFromSnapshot(testSnapshot("s1", "Title"))
	if err != nil {
		t.Fatalf("RecordFromSnapshot: %v", err)
	}
	if len(rec.Views) != 1 || rec.Views[transcription.ViewSummary] != "- hi" {
		t.Fatalf("Views=%v, want only the ready summary", rec.Views)
	}

	if _, err := RecordFromSnapshot(transcription.Snapshot{ID: "x"}); !errors.Is(err, transcription.ErrNotCompleted) {
		t.Fatalf("err=%v, want ErrNotCompleted", err)
	}
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	saved, err := s.SaveSnapshot(ctx, testSnapshot("s1", "Title"))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if !saved.ArchivedAt.Equal(fixed) {
		t.Fatalf("ArchivedAt=%v, want %v", saved.ArchivedAt, fixed)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Transcript.FullText != "hello world" || len(got.Transcript.Segments) != 2 {
		t.Fatalf("Transcript=%+v", got.Transcript)
	}
	if len(got.Chat) != 2 || len(got.Notes) != 1 || got.Views[transcription.ViewSummary] != "- hi" {
		t.Fatalf("record=%+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestStore_SaveReplacesAndListsNewestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.SaveSnapshot(ctx, testSnapshot(id, "T-"+id)); err != nil {
			t.Fatalf("SaveSnapshot(%s): %v", id, err)
		}
	}
	if _, err := s.SaveSnapshot(ctx, testSnapshot("a", "renamed")); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list)=%d, want 3", len(list))
	}
	if list[0].ID != "a" || list[0].Title != "renamed" || list[1].ID != "c" || list[2].ID != "b" {
		t.Fatalf("list=%+v", list)
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("len(limited)=%d, want 2", len(limited))
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.SaveSnapshot(ctx, testSnapshot("s1", "T")); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestStore_SaveRequiresID(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if _, err := s.Save(context.Background(), Record{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
