package transcription

import (
	"errors"
	"fmt"
)

var (
	// ErrInputRejected is matched by every *InputError.
	ErrInputRejected = errors.New("input rejected")

	// ErrMalformedResponse marks model output that did not match the requested schema.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrEmptyResponse marks model output that was blank.
	ErrEmptyResponse = errors.New("empty model response")

	ErrSessionBusy        = errors.New("session is not idle")
	ErrNotCompleted       = errors.New("session has no completed transcript")
	ErrStaleResult        = errors.New("session was reset while the request was in flight")
	ErrNoteNotFound       = errors.New("note not found")
	ErrNoInput            = errors.New("no media payload or url given")
	errContentMissing     = errors.New("model reported content_missing")
	errTranscriptTooShort = errors.New("transcript below minimum length")
)

// InputError is returned for files or URLs that are rejected before acquisition starts.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "input rejected: " + e.Reason
}

func (e *InputError) Is(target error) bool {
	return target == ErrInputRejected
}

// AcquisitionError carries the user-facing message for a failed acquisition and the underlying cause.
type AcquisitionError struct {
	Message string
	Err     error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to show for a failed acquisition, or fallback when err carries none.
func UserMessage(err error, fallback string) string {
	var acq *AcquisitionError
	if errors.As(err, &acq) && acq.Message != "" {
		return acq.Message
	}
	var in *InputError
	if errors.As(err, &in) && in.Reason != "" {
		return in.Reason
	}
	return fallback
}
