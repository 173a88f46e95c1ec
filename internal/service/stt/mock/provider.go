// Package mock provides scripted transcription providers for testing and
// credential-free runs. Each tier's provider replays a per-window script
// with a configurable delay, simulating the fast/accurate/corrected
// accuracy ladder.
package mock

import (
	"context"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/stt"
)

// Utterance is one window's rendition across the three tiers.
type Utterance struct {
	Fast      string
	Accurate  string
	Corrected string
}

// DefaultEncounter scripts a short clinical conversation. The fast tier
// hears a truncated low-accuracy rendition, the accurate tier the full
// text, and the corrected tier the domain-normalized text.
var DefaultEncounter = []Utterance{
	{
		Fast:      "chest pain",
		Accurate:  "I have chest pain that started two hours ago",
		Corrected: "I have chest pain that started two hours ago",
	},
	{
		Fast:      "it goes to my arm",
		Accurate:  "it radiates to my left arm",
		Corrected: "it radiates to my left arm",
	},
	{
		Fast:      "sweating a lot",
		Accurate:  "and I have been sweating a lot",
		Corrected: "and I have been sweating a lot",
	},
	{
		Fast:      "take asprin",
		Accurate:  "I take asprin every day",
		Corrected: "I take aspirin every day",
	},
	{
		Fast:      "no fever",
		Accurate:  "no fever no chills",
		Corrected: "no fever no chills",
	},
	{
		Fast:      "history blood pressure",
		Accurate:  "history of high blood pressure",
		Corrected: "history of hypertension",
	},
}

// Provider is a scripted transcription provider for one tier.
type Provider struct {
	name       string
	delay      time.Duration
	confidence float64
	lines      []string

	// FailAt, when set, makes Transcribe fail for these window indices.
	FailAt map[int]error
}

// Scripted builds a provider replaying lines by window index.
func Scripted(name string, delay time.Duration, confidence float64, lines []string) *Provider {
	return &Provider{
		name:       name,
		delay:      delay,
		confidence: confidence,
		lines:      lines,
	}
}

// Tier builds the scripted provider for one tier of an encounter.
func Tier(tier models.Tier, encounter []Utterance) *Provider {
	lines := make([]string, len(encounter))
	var delay time.Duration
	var conf float64
	for i, u := range encounter {
		switch tier {
		case models.TierFast:
			lines[i] = u.Fast
		case models.TierAccurate:
			lines[i] = u.Accurate
		case models.TierCorrected:
			lines[i] = u.Corrected
		}
	}
	switch tier {
	case models.TierFast:
		delay, conf = 30*time.Millisecond, 0.62
	case models.TierAccurate:
		delay, conf = 250*time.Millisecond, 0.88
	case models.TierCorrected:
		delay, conf = 600*time.Millisecond, 0.95
	}
	return Scripted("mock-"+string(tier), delay, conf, lines)
}

// Name identifies the provider.
func (p *Provider) Name() string { return p.name }

// Transcribe returns the scripted line for the window's index. Windows
// beyond the script produce empty candidates.
func (p *Provider) Transcribe(ctx context.Context, w models.AudioWindow) (models.TranscriptCandidate, error) {
	if err, ok := p.FailAt[w.Index]; ok {
		return models.TranscriptCandidate{}, err
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.TranscriptCandidate{}, stt.ErrProviderTimeout
		}
	}

	var text string
	if w.Index < len(p.lines) {
		text = p.lines[w.Index]
	}
	return models.TranscriptCandidate{
		Text:        text,
		Confidence:  p.confidence,
		WindowStart: w.Start,
		WindowEnd:   w.End,
	}, nil
}
