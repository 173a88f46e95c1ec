// Package google provides a Google Cloud Speech-to-Text transcription
// provider. Each audio window is submitted as a synchronous recognition
// request with tier-specific vocabulary hints.
package google

import (
	"context"
	"encoding/binary"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/stt"
)

// Config holds provider settings for one tier.
type Config struct {
	LanguageCode    string
	VocabularyHints []string // speech-context phrases, e.g. medical terms
	MaxAlternatives int
}

// DefaultConfig returns provider defaults.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "en-US",
		MaxAlternatives: 3,
	}
}

// Provider implements stt.Provider using Google Cloud Speech-to-Text.
type Provider struct {
	client *speech.Client
	cfg    Config
}

// New creates a Google provider. Requires GOOGLE_APPLICATION_CREDENTIALS
// to be set.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stt.ErrProviderFailure, err)
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	return &Provider{client: c, cfg: cfg}, nil
}

// Name identifies the provider.
func (p *Provider) Name() string { return "google" }

// Transcribe submits the window for synchronous recognition.
func (p *Provider) Transcribe(ctx context.Context, w models.AudioWindow) (models.TranscriptCandidate, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(w.SampleRate),
			LanguageCode:    p.cfg.LanguageCode,
			MaxAlternatives: int32(p.cfg.MaxAlternatives),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcmBytes(w.Samples)},
		},
	}
	if len(p.cfg.VocabularyHints) > 0 {
		req.Config.SpeechContexts = []*speechpb.SpeechContext{
			{Phrases: p.cfg.VocabularyHints},
		}
	}

	resp, err := p.client.Recognize(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return models.TranscriptCandidate{}, stt.ErrProviderTimeout
		}
		return models.TranscriptCandidate{}, fmt.Errorf("%w: %v", stt.ErrProviderFailure, err)
	}

	cand := models.TranscriptCandidate{
		Confidence:  models.ConfidenceUnknown,
		WindowStart: w.Start,
		WindowEnd:   w.End,
	}
	for _, result := range resp.Results {
		for i, alt := range result.Alternatives {
			if i == 0 && cand.Text == "" {
				cand.Text = alt.Transcript
				if alt.Confidence > 0 {
					cand.Confidence = float64(alt.Confidence)
				}
				continue
			}
			cand.Alternatives = append(cand.Alternatives, models.Alternative{
				Text:       alt.Transcript,
				Confidence: float64(alt.Confidence),
			})
		}
	}
	return cand, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

func pcmBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
