// Package stt defines the transcription provider contract and the tier
// runners that feed audio windows through providers concurrently.
package stt

import (
	"context"
	"errors"
	"strings"

	"clinical-scribe-service/internal/models"
)

// Provider errors. Both are recovered locally by the runner: the tier is
// marked unavailable for the current window and retried on the next one.
var (
	ErrProviderTimeout = errors.New("transcription provider timeout")
	ErrProviderFailure = errors.New("transcription provider failure")
)

// Provider is an opaque transcription backend configured for one tier's
// latency/accuracy trade-off.
type Provider interface {
	// Name identifies the provider for logging and metrics.
	Name() string

	// Transcribe converts one audio window into a candidate. It must
	// honor ctx cancellation; the runner enforces the tier timeout.
	Transcribe(ctx context.Context, w models.AudioWindow) (models.TranscriptCandidate, error)
}

// EstimateConfidence derives an advisory confidence from signal
// heuristics when the provider reports none: word count and
// amplitude-derived audio quality, on the fixed 0-1 scale.
func EstimateConfidence(text string, w models.AudioWindow) float64 {
	if strings.TrimSpace(text) == "" {
		return models.ConfidenceUnknown
	}
	words := len(strings.Fields(text))
	if words > 8 {
		words = 8
	}
	quality := w.RMS() * 10
	if quality > 1 {
		quality = 1
	}
	conf := 0.3 + 0.05*float64(words) + 0.2*quality
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}
