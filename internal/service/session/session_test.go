package session

import (
	"context"
	"testing"
	"time"

	"clinical-scribe-service/internal/events"
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/comprehend"
	"clinical-scribe-service/internal/service/quality"
	"clinical-scribe-service/internal/service/reconcile"
	"clinical-scribe-service/internal/service/safety"
	"clinical-scribe-service/internal/service/segment"
	"clinical-scribe-service/internal/service/stt"
	"clinical-scribe-service/internal/service/stt/correct"
	"clinical-scribe-service/internal/service/stt/mock"
)

func newTestSession(audioSeconds time.Duration) *Session {
	src := mock.NewAudioSource(8000, audioSeconds)
	seg := segment.New(src, segment.DefaultConfig(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	fast := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierFast, Timeout: time.Second, QueueSize: 8, MaxBehind: 8,
	}, mock.Tier(models.TierFast, mock.DefaultEncounter))
	accurate := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierAccurate, Timeout: 2 * time.Second, QueueSize: 16, MaxBehind: 16,
	}, mock.Tier(models.TierAccurate, mock.DefaultEncounter))
	corrected := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierCorrected, Timeout: 5 * time.Second, QueueSize: 32, MaxBehind: 32,
	}, correct.New(mock.Tier(models.TierCorrected, mock.DefaultEncounter)))

	rec := reconcile.New(reconcile.DefaultConfig())
	engine := comprehend.New(comprehend.DefaultConfig())
	annotator := safety.New(safety.DefaultRules())
	scorer := quality.New(0.5)
	publisher := events.New(&events.Config{Enabled: false})

	return New(seg, fast, accurate, corrected, rec, engine, annotator, scorer, publisher, nil)
}

func findEntity(ents []*models.ClinicalEntity, typ models.EntityType, canonical string) *models.ClinicalEntity {
	for _, e := range ents {
		if e.Type == typ && e.Canonical == canonical {
			return e
		}
	}
	return nil
}

func TestSession_EndToEnd(t *testing.T) {
	s := newTestSession(12 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	transcript, ents := s.Finalize(ctx)
	if len(transcript) == 0 {
		t.Fatal("empty transcript")
	}
	for _, sp := range transcript {
		if !sp.Locked {
			t.Errorf("unlocked span in finalized transcript: %+v", sp)
		}
	}
	for i := 1; i < len(transcript); i++ {
		if transcript[i].Start.Before(transcript[i-1].End) {
			t.Errorf("transcript out of order at %d", i)
		}
	}

	pain := findEntity(ents, models.EntitySymptom, "chest pain")
	if pain == nil {
		t.Fatal("chest pain entity missing")
	}
	if rad, ok := pain.Attr(models.AttrRadiation); !ok || rad.Text != "left arm" {
		t.Errorf("radiation attribute missing or wrong: %+v", rad)
	}
	if len(pain.TemporalAnchors) == 0 {
		t.Error("onset anchor missing")
	} else if pain.TemporalAnchors[0].Kind != models.AnchorOnset {
		t.Errorf("expected onset anchor, got %s", pain.TemporalAnchors[0].Kind)
	}

	if findEntity(ents, models.EntitySymptom, "diaphoresis") == nil {
		t.Error("diaphoresis entity missing")
	}
	// Vocabulary correction: the corrected tier normalizes "asprin".
	if findEntity(ents, models.EntityMedication, "aspirin") == nil {
		t.Error("aspirin entity missing after vocabulary correction")
	}
	if findEntity(ents, models.EntityHistoryItem, "hypertension") == nil {
		t.Error("hypertension history item missing")
	}

	fever := findEntity(ents, models.EntitySymptom, "fever")
	if fever == nil {
		t.Fatal("pertinent negative fever missing")
	}
	if fever.Present() {
		t.Error("denied fever marked present")
	}

	alerts := s.Alerts()
	if len(alerts) == 0 {
		t.Fatal("expected safety alerts")
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Errorf("expected leading critical alert, got %s", alerts[0].Severity)
	}

	q := s.Quality()
	if q.Completeness <= 0 {
		t.Error("expected nonzero completeness")
	}
	if len(q.MissingFields) == 0 {
		t.Error("expected some missing checklist fields")
	}
}

func TestSession_EmptyAudioFinalizesEmpty(t *testing.T) {
	s := newTestSession(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	transcript, ents := s.Finalize(ctx)
	if len(transcript) != 0 {
		t.Errorf("expected empty transcript, got %d spans", len(transcript))
	}
	if len(ents) != 0 {
		t.Errorf("expected empty entity set, got %d", len(ents))
	}
}

func TestSession_FinalizeIdempotent(t *testing.T) {
	s := newTestSession(4 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	t1, e1 := s.Finalize(ctx)
	t2, e2 := s.Finalize(ctx)
	if len(t1) != len(t2) || len(e1) != len(e2) {
		t.Errorf("finalize not idempotent: %d/%d spans, %d/%d entities",
			len(t1), len(t2), len(e1), len(e2))
	}
}

func TestSession_MidRunCancelKeepsCommittedData(t *testing.T) {
	s := newTestSession(time.Hour) // source far longer than the test

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	fctx, fcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer fcancel()
	transcript, _ := s.Finalize(fctx)
	for _, sp := range transcript {
		if !sp.Locked {
			t.Errorf("finalized transcript contains unlocked span: %+v", sp)
		}
	}
}
