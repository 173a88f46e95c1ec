// Package reconcile merges the three transcription tiers' candidate
// streams into a single coherent, monotonically-improving span timeline.
package reconcile

import (
	"fmt"
	"time"

	"clinical-scribe-service/internal/models"
)

// State is the lifecycle state of a reconciled span.
type State int

const (
	// StateTentative - span seeded by the fast tier, eligible for display.
	StateTentative State = iota
	// StateRefined - an accurate-tier candidate has covered the span.
	StateRefined
	// StateLocked - a corrected-tier candidate arrived; the span is final
	// for the session. Stability over late-arriving accuracy gains.
	StateLocked
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateTentative:
		return "tentative"
	case StateRefined:
		return "refined"
	case StateLocked:
		return "locked"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// span is the mutable per-time-range state inside the reconciler. The
// time range is immutable once locked; text may be replaced in place by
// higher-tier candidates until then.
type span struct {
	key   time.Time // originating window start, before overlap clipping
	start time.Time
	end   time.Time
	text  string
	state State
	tier  models.Tier // highest tier applied so far
	conf  float64

	// Divergent replacement staged behind the debounce.
	pendingText  string
	pendingConf  float64
	pendingSince time.Time
	hasPending   bool

	delivered bool // already sent on the locked stream
}

// tag maps span state to the coarse display confidence class.
func (s *span) tag() models.ConfidenceTag {
	switch s.state {
	case StateLocked:
		return models.ConfidenceHigh
	case StateRefined:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// snapshot returns the exported value form of the span.
func (s *span) snapshot() models.ReconciledSpan {
	return models.ReconciledSpan{
		Start:      s.start,
		End:        s.end,
		Text:       s.text,
		Tag:        s.tag(),
		Locked:     s.state == StateLocked,
		SourceTier: s.tier,
	}
}
