package transcription

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// GenericFailureMessage is shown when a failed acquisition carries no message of its own.
const GenericFailureMessage = "Something went wrong while transcribing. Please try again."

// Input is what the user handed in: a media payload or a video link.
type Input struct {
	Media *Payload
	URL   string
}

// Acquirer produces transcripts. *Service implements it.
type Acquirer interface {
	AcquireFromMedia(ctx context.Context, p Payload) (Transcript, error)
	AcquireFromURL(ctx context.Context, url string) (Transcript, error)
}

// Deriver computes derived views and chat replies. *Generator implements it.
type Deriver interface {
	Derive(ctx context.Context, kind ViewKind, text string) (string, error)
	Reply(ctx context.Context, history []ChatMessage, transcript, question string) (string, error)
}

// ViewState is the lifecycle of one derived-view cell.
type ViewState string

const (
	ViewUnrequested ViewState = "unrequested"
	ViewPending     ViewState = "pending"
	ViewReady       ViewState = "ready"
	ViewFailed      ViewState = "failed"
)

type viewCell struct {
	state ViewState
	value string
	done  chan struct{}
}

// Session owns one transcription: its lifecycle, canonical transcript, derived views, chat and notes.
//
// Every asynchronous result is applied only if the session generation it was issued under is still
// current; Reset bumps the generation so late results are dropped.
type Session struct {
	ID string

	acquirer     Acquirer
	deriver      Deriver
	tickInterval time.Duration
	newNoteID    func() string

	mu         sync.Mutex
	generation uint64
	status     Status
	transcript *Transcript
	errMsg     string
	views      map[ViewKind]*viewCell
	chat       []ChatMessage
	notes      []Note
	progress   Progress
}

type SessionOption func(*Session)

// WithTickInterval sets how often the progress countdown advances while processing.
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.tickInterval = d }
}

// WithNoteIDs replaces the note ID generator.
func WithNoteIDs(fn func() string) SessionOption {
	return func(s *Session) { s.newNoteID = fn }
}

func NewSession(id string, acquirer Acquirer, deriver Deriver, opts ...SessionOption) *Session {
	s := &Session{
		ID:           id,
		acquirer:     acquirer,
		deriver:      deriver,
		tickInterval: TickInterval,
		newNoteID:    uuid.NewString,
		status:       StatusIdle,
		views:        make(map[ViewKind]*viewCell),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Acquire moves an idle session through processing to completed or error. It blocks until the
// acquisition returns; the progress countdown ticks on its own goroutine meanwhile.
func (s *Session) Acquire(ctx context.Context, in Input) error {
	gen, err := s.begin(in)
	if err != nil {
		return err
	}
	return s.acquire(ctx, in, gen)
}

// Start is Acquire without the wait. The idle to processing transition happens before Start
// returns; the acquisition result is delivered on the returned channel.
func (s *Session) Start(ctx context.Context, in Input) (<-chan error, error) {
	gen, err := s.begin(in)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- s.acquire(ctx, in, gen)
	}()
	return done, nil
}

func (s *Session) begin(in Input) (uint64, error) {
	if in.Media == nil && strings.TrimSpace(in.URL) == "" {
		return 0, ErrNoInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusIdle {
		return 0, ErrSessionBusy
	}
	s.status = StatusProcessing
	s.errMsg = ""
	s.progress = newProgress(EstimateSeconds(in))
	return s.generation, nil
}

func (s *Session) acquire(ctx context.Context, in Input, gen uint64) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runTicker(gen, stop)
	}()

	var tr Transcript
	var err error
	if in.Media != nil {
		tr, err = s.acquirer.AcquireFromMedia(ctx, *in.Media)
	} else {
		tr, err = s.acquirer.AcquireFromURL(ctx, strings.TrimSpace(in.URL))
	}
	if err == nil && len(tr.Segments) == 0 {
		err = &AcquisitionError{Message: msgNoSpeech, Err: ErrEmptyResponse}
	}

	close(stop)
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return ErrStaleResult
	}
	if err != nil {
		s.status = StatusError
		s.errMsg = UserMessage(err, GenericFailureMessage)
		return err
	}
	t := tr.Clone()
	s.transcript = &t
	s.status = StatusCompleted
	s.progress = s.progress.complete()
	return nil
}

func (s *Session) runTicker(gen uint64, stop <-chan struct{}) {
	if s.tickInterval <= 0 {
		return
	}
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.mu.Lock()
			ok := s.generation == gen && s.tickLocked()
			s.mu.Unlock()
			if !ok {
				return
			}
		}
	}
}

// Tick advances the progress countdown once. It reports false when the session is not processing.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked()
}

func (s *Session) tickLocked() bool {
	if s.status != StatusProcessing {
		return false
	}
	s.progress = s.progress.advance()
	return true
}

// View returns the derived view of the given kind, computing it on first request.
// Concurrent requests for the same kind share one computation. A failed derivation caches
// FallbackText(kind) as the view's value.
func (s *Session) View(ctx context.Context, kind ViewKind) (string, error) {
	if _, err := ParseViewKind(string(kind)); err != nil {
		return "", err
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return "", ErrStaleResult
		}
		if s.status != StatusCompleted || s.transcript == nil {
			s.mu.Unlock()
			return "", ErrNotCompleted
		}

		if cell, ok := s.views[kind]; ok {
			if cell.state != ViewPending {
				v := cell.value
				s.mu.Unlock()
				return v, nil
			}
			done := cell.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		cell := &viewCell{state: ViewPending, done: make(chan struct{})}
		s.views[kind] = cell
		text := s.transcript.FullText
		s.mu.Unlock()

		value, err := s.deriver.Derive(ctx, kind, text)

		s.mu.Lock()
		if err != nil && ctx.Err() != nil {
			// The caller gave up; leave the slot unrequested so the next request computes it.
			if s.views[kind] == cell {
				delete(s.views, kind)
			}
			close(cell.done)
			s.mu.Unlock()
			return "", ctx.Err()
		}
		cell.state, cell.value = ViewReady, value
		if err != nil {
			cell.state, cell.value = ViewFailed, FallbackText(kind)
		}
		close(cell.done)
		stale := s.generation != gen
		v := cell.value
		s.mu.Unlock()

		if stale {
			return "", ErrStaleResult
		}
		return v, nil
	}
}

// Ask appends a question and the model's answer to the chat. The answer is grounded in the
// canonical text as it stands when Ask is called.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", &InputError{Reason: "question is empty"}
	}

	s.mu.Lock()
	if s.status != StatusCompleted || s.transcript == nil {
		s.mu.Unlock()
		return "", ErrNotCompleted
	}
	gen := s.generation
	history := append([]ChatMessage(nil), s.chat...)
	text := s.transcript.FullText
	s.chat = append(s.chat, ChatMessage{Role: RoleUser, Text: question})
	s.mu.Unlock()

	answer, err := s.deriver.Reply(ctx, history, text, question)
	if err != nil {
		answer = ChatFallbackText
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return "", ErrStaleResult
	}
	s.chat = append(s.chat, ChatMessage{Role: RoleModel, Text: answer})
	return answer, nil
}

// EditText replaces the canonical full text. Segments and already computed views are kept.
func (s *Session) EditText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCompleted || s.transcript == nil {
		return ErrNotCompleted
	}
	s.transcript.FullText = text
	return nil
}

// AddNote appends a note anchored at timestamp seconds.
func (s *Session) AddNote(timestamp float64, text string) (Note, error) {
	if !(timestamp >= 0) {
		return Note{}, &InputError{Reason: "note timestamp must be >= 0"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCompleted || s.transcript == nil {
		return Note{}, ErrNotCompleted
	}
	n := Note{ID: s.newNoteID(), TimestampSeconds: timestamp, Text: text}
	s.notes = append(s.notes, n)
	return n, nil
}

func (s *Session) UpdateNote(id, text string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes[i].Text = text
			return s.notes[i], nil
		}
	}
	return Note{}, ErrNoteNotFound
}

func (s *Session) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			return nil
		}
	}
	return ErrNoteNotFound
}

// Reset discards everything and returns the session to idle. Results of requests issued before
// the reset are dropped when they arrive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.status = StatusIdle
	s.transcript = nil
	s.errMsg = ""
	s.views = make(map[ViewKind]*viewCell)
	s.chat = nil
	s.notes = nil
	s.progress = Progress{}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// ViewSnapshot is the exported state of one derived view.
type ViewSnapshot struct {
	State ViewState `json:"state"`
	Text  string    `json:"text,omitempty"`
}

// Snapshot is a point-in-time copy of a Session that shares no memory with it.
type Snapshot struct {
	ID         string                    `json:"id"`
	Status     Status                    `json:"status"`
	Generation uint64                    `json:"generation"`
	Transcript *Transcript               `json:"transcript,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Views      map[ViewKind]ViewSnapshot `json:"views"`
	Chat       []ChatMessage             `json:"chat"`
	Notes      []Note                    `json:"notes"`
	Progress
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.ID,
		Status:     s.status,
		Generation: s.generation,
		Error:      s.errMsg,
		Views:      make(map[ViewKind]ViewSnapshot, len(ViewKinds)),
		Chat:       append([]ChatMessage{}, s.chat...),
		Notes:      append([]Note{}, s.notes...),
		Progress:   s.progress,
	}
	if s.transcript != nil {
		t := s.transcript.Clone()
		snap.Transcript = &t
	}
	for _, k := range ViewKinds {
		vs := ViewSnapshot{State: ViewUnrequested}
		if c, ok := s.views[k]; ok {
			vs.State = c.state
			if c.state != ViewPending {
				vs.Text = c.value
			}
		}
		snap.Views[k] = vs
	}
	return snap
}
