package stt_test

import (
	"context"
	"testing"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/stt"
	"clinical-scribe-service/internal/service/stt/mock"
)

func window(i int, start time.Time) models.AudioWindow {
	return models.AudioWindow{
		Index:      i,
		Start:      start,
		End:        start.Add(2 * time.Second),
		SampleRate: 8000,
		Samples:    make([]int16, 16000),
	}
}

func TestRunner_EmitsCandidatesInOrder(t *testing.T) {
	provider := mock.Scripted("test", 0, 0.8, []string{"one", "two", "three"})
	r := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierFast, Timeout: time.Second, QueueSize: 8, MaxBehind: 8,
	}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	base := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		r.Offer(window(i, base.Add(time.Duration(i)*2*time.Second)))
	}
	r.CloseInput()

	var got []string
	for cand := range r.Candidates() {
		got = append(got, cand.Text)
		if cand.Tier != models.TierFast {
			t.Errorf("expected tier fast, got %s", cand.Tier)
		}
	}
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Errorf("unexpected candidates: %v", got)
	}
}

func TestRunner_ProviderFailureDegradesWindowOnly(t *testing.T) {
	provider := mock.Scripted("test", 0, 0.8, []string{"one", "two", "three"})
	provider.FailAt = map[int]error{1: stt.ErrProviderFailure}

	r := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierAccurate, Timeout: time.Second, QueueSize: 8, MaxBehind: 8,
	}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	base := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		r.Offer(window(i, base.Add(time.Duration(i)*2*time.Second)))
	}
	r.CloseInput()

	var got []string
	for cand := range r.Candidates() {
		got = append(got, cand.Text)
	}
	// window 1 degraded, tier retried on window 2
	if len(got) != 2 || got[0] != "one" || got[1] != "three" {
		t.Errorf("unexpected candidates after degradation: %v", got)
	}
}

func TestRunner_SkipsForwardWhenBehind(t *testing.T) {
	// Provider slower than the offer rate with a tiny queue.
	provider := mock.Scripted("slow", 50*time.Millisecond, 0.8,
		[]string{"a", "b", "c", "d", "e", "f", "g", "h"})
	r := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierCorrected, Timeout: time.Second, QueueSize: 2, MaxBehind: 2,
	}, provider)

	base := time.Unix(0, 0)
	for i := 0; i < 8; i++ {
		r.Offer(window(i, base.Add(time.Duration(i)*2*time.Second)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	r.CloseInput()

	count := 0
	for range r.Candidates() {
		count++
	}
	if count > 3 {
		t.Errorf("expected oldest windows dropped, processed %d", count)
	}
}

func TestRunner_FillsHeuristicConfidence(t *testing.T) {
	provider := mock.Scripted("noconf", 0, models.ConfidenceUnknown, []string{"some words here"})
	r := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierFast, Timeout: time.Second, QueueSize: 4, MaxBehind: 4,
	}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	r.Offer(window(0, time.Unix(0, 0)))
	r.CloseInput()

	cand := <-r.Candidates()
	if !cand.HasConfidence() {
		t.Error("expected heuristic confidence to be filled")
	}
	if cand.Confidence <= 0 || cand.Confidence > 0.9 {
		t.Errorf("heuristic confidence out of range: %v", cand.Confidence)
	}
}

func TestEstimateConfidence_EmptyText(t *testing.T) {
	w := models.AudioWindow{Samples: make([]int16, 100)}
	if got := stt.EstimateConfidence("", w); got != models.ConfidenceUnknown {
		t.Errorf("expected unknown for empty text, got %v", got)
	}
}
