// Package models defines the data structures flowing through the
// transcription and comprehension pipeline.
package models

import (
	"math"
	"time"
)

// Tier identifies one of the three concurrent transcription producers.
type Tier string

const (
	TierFast      Tier = "fast"
	TierAccurate  Tier = "accurate"
	TierCorrected Tier = "corrected"
)

// Rank orders tiers by accuracy: fast < accurate < corrected.
func (t Tier) Rank() int {
	switch t {
	case TierFast:
		return 0
	case TierAccurate:
		return 1
	case TierCorrected:
		return 2
	default:
		return -1
	}
}

// ConfidenceUnknown marks a candidate whose provider reported no confidence.
// Consumers must not treat it as 0.
const ConfidenceUnknown = -1.0

// AudioWindow is an immutable slice of the audio stream handed to the
// transcription producers. Samples are 16-bit linear PCM.
type AudioWindow struct {
	Index      int       `json:"index"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	SampleRate int       `json:"sampleRate"`
	Samples    []int16   `json:"-"`
}

// Duration returns the window length.
func (w AudioWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// RMS returns the root-mean-square amplitude of the window, normalized
// to [0,1]. Used as an audio-quality signal when a provider reports no
// confidence.
func (w AudioWindow) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w.Samples {
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(w.Samples)))
}

// Alternative is a lower-ranked hypothesis attached to a candidate.
type Alternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscriptCandidate is one producer's hypothesis for a window of audio.
// Candidates from a single producer are monotonically increasing in
// WindowStart.
type TranscriptCandidate struct {
	Tier         Tier          `json:"tier"`
	Text         string        `json:"text"`
	Confidence   float64       `json:"confidence"`
	WindowStart  time.Time     `json:"windowStart"`
	WindowEnd    time.Time     `json:"windowEnd"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// HasConfidence reports whether the candidate carries a usable
// provider-native or heuristic confidence.
func (c TranscriptCandidate) HasConfidence() bool {
	return c.Confidence >= 0
}

// ConfidenceTag is the coarse confidence class attached to a reconciled
// span for display.
type ConfidenceTag string

const (
	ConfidenceHigh   ConfidenceTag = "high"
	ConfidenceMedium ConfidenceTag = "medium"
	ConfidenceLow    ConfidenceTag = "low"
)

// ReconciledSpan is the authoritative time-range-to-text mapping produced
// by the reconciliation buffer. The set of spans for a session partitions
// the elapsed timeline without gaps or overlaps.
type ReconciledSpan struct {
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Text       string        `json:"text"`
	Tag        ConfidenceTag `json:"tag"`
	Locked     bool          `json:"locked"`
	SourceTier Tier          `json:"sourceTier"`
}
