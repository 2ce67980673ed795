package transcription

import (
	"math"
	"time"
)

// Progress estimation is cosmetic: it never drives state, and only completion reaches 100.
const (
	MinMediaEstimateSeconds = 15
	MediaSecondsPerMB       = 3
	URLEstimateSeconds      = 20

	ProgressCeiling = 95.0
	TickInterval    = time.Second
)

// Progress is the advisory countdown shown while a session is processing.
type Progress struct {
	EstimatedTotalSeconds int     `json:"estimated_total_seconds"`
	RemainingSeconds      int     `json:"remaining_seconds"`
	Percent               float64 `json:"progress"`
}

// EstimateSeconds guesses how long an acquisition will take:
// media grows linearly with size above a floor, links get a fixed estimate.
func EstimateSeconds(in Input) int {
	if in.Media == nil {
		return URLEstimateSeconds
	}
	n := int(math.Ceil(in.Media.SizeMB() * MediaSecondsPerMB))
	if n < MinMediaEstimateSeconds {
		n = MinMediaEstimateSeconds
	}
	return n
}

func newProgress(estimate int) Progress {
	return Progress{EstimatedTotalSeconds: estimate, RemainingSeconds: estimate}
}

// advance applies one tick: one second off the countdown and 1/estimate of the bar, never past the ceiling.
func (p Progress) advance() Progress {
	if p.RemainingSeconds > 0 {
		p.RemainingSeconds--
	}
	if p.EstimatedTotalSeconds > 0 {
		p.Percent += 100 / float64(p.EstimatedTotalSeconds)
	}
	if p.Percent > ProgressCeiling {
		p.Percent = ProgressCeiling
	}
	return p
}

func (p Progress) complete() Progress {
	p.RemainingSeconds = 0
	p.Percent = 100
	return p
}
