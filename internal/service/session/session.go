// Package session wires the pipeline end to end: segmenter feeding the
// three tier runners, the reconciler merging their candidate streams,
// and the comprehension engine with its annotator and scorer consuming
// locked spans. The session owns top-down cancellation and the
// finalize contract.
package session

import (
	"context"
	"sync"

	"clinical-scribe-service/internal/events"
	"clinical-scribe-service/internal/feed"
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/service/comprehend"
	"clinical-scribe-service/internal/service/quality"
	"clinical-scribe-service/internal/service/reconcile"
	"clinical-scribe-service/internal/service/safety"
	"clinical-scribe-service/internal/service/segment"
	"clinical-scribe-service/internal/service/stt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Transcript is the ordered locked-span record of a session.
type Transcript []models.ReconciledSpan

// Session runs one encounter through the pipeline.
type Session struct {
	id string

	segmenter *segment.Segmenter
	fast      *stt.Runner
	accurate  *stt.Runner
	corrected *stt.Runner
	rec       *reconcile.Reconciler
	engine    *comprehend.Engine
	annotator *safety.Annotator
	scorer    *quality.Scorer
	publisher *events.Publisher
	hub       *feed.Hub

	mu      sync.RWMutex
	alerts  []models.SafetyAlert
	quality models.QualitySnapshot

	cancel context.CancelFunc
	done   chan struct{}
	logger zerolog.Logger
}

// New assembles a Session from its collaborators. The hub may be nil
// when no live feed is wanted.
func New(
	segmenter *segment.Segmenter,
	fast, accurate, corrected *stt.Runner,
	rec *reconcile.Reconciler,
	engine *comprehend.Engine,
	annotator *safety.Annotator,
	scorer *quality.Scorer,
	publisher *events.Publisher,
	hub *feed.Hub,
) *Session {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		segmenter: segmenter,
		fast:      fast,
		accurate:  accurate,
		corrected: corrected,
		rec:       rec,
		engine:    engine,
		annotator: annotator,
		scorer:    scorer,
		publisher: publisher,
		hub:       hub,
		done:      make(chan struct{}),
		logger:    logging.WithSession(id),
	}

	// The corrected tier's latency is unbounded by contract; feeding it
	// into the adaptive controller would pin windows at the floor.
	fast.SetLatencyObserver(segmenter.ObserveLatency)
	accurate.SetLatencyObserver(segmenter.ObserveLatency)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run drives the session until the audio source ends or ctx is
// cancelled. Cancellation propagates top-down: the segmenter stops
// producing, the runners drain, the reconciler flushes remaining spans
// as final, and the engine ingests everything still locked. Committed
// data is never lost mid-session.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer close(s.done)

	go s.fast.Run(ctx)
	go s.accurate.Run(ctx)
	go s.corrected.Run(ctx)
	go s.rec.Run(ctx, s.fast.Candidates(), s.accurate.Candidates(), s.corrected.Candidates())

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		s.engine.Run(s.rec.Locked(), func(sp models.ReconciledSpan, snap comprehend.EntitySnapshot) {
			s.publish(ctx, sp, snap)
		})
	}()

	var runErr error
	for {
		w, err := s.segmenter.NextWindow(ctx)
		if err != nil {
			if eos, ok := segment.IsEndOfStream(err); ok {
				if eos.Failed {
					s.logger.Error().Err(eos.Cause).Msg("audio source interrupted, finalizing with committed data")
					runErr = eos
				} else {
					s.logger.Info().Msg("audio stream ended")
				}
				break
			}
			s.logger.Error().Err(err).Msg("segmenter error")
			runErr = err
			break
		}
		s.fast.Offer(w)
		s.accurate.Offer(w)
		s.corrected.Offer(w)
	}

	s.fast.CloseInput()
	s.accurate.CloseInput()
	s.corrected.CloseInput()

	<-consumed
	s.logger.Info().Msg("session pipeline drained")
	return runErr
}

// publish recomputes the derived views after the engine ingested a span
// and fans the results out to the event bus and the live feed.
func (s *Session) publish(ctx context.Context, sp models.ReconciledSpan, snap comprehend.EntitySnapshot) {
	alerts := s.annotator.Evaluate(snap)
	q := s.scorer.Score(snap)

	s.mu.Lock()
	s.alerts = alerts
	s.quality = q
	s.mu.Unlock()

	if err := s.publisher.PublishSpan(ctx, s.id, sp); err != nil {
		s.logger.Warn().Err(err).Msg("span publish failed")
	}
	if err := s.publisher.PublishAlerts(ctx, s.id, snap.Version, alerts); err != nil {
		s.logger.Warn().Err(err).Msg("alerts publish failed")
	}
	if err := s.publisher.PublishQuality(ctx, s.id, snap.Version, q); err != nil {
		s.logger.Warn().Err(err).Msg("quality publish failed")
	}

	if s.hub != nil {
		s.hub.Publish(feed.Event{Kind: "span", SessionID: s.id, Payload: sp})
		s.hub.Publish(feed.Event{Kind: "alerts", SessionID: s.id, Payload: alerts})
		s.hub.Publish(feed.Event{Kind: "quality", SessionID: s.id, Payload: q})
	}
}

// Finalize stops the pipeline if still running, waits for it to drain,
// and returns the locked transcript with the final entity set. It is
// idempotent: repeated calls return the same committed data.
func (s *Session) Finalize(ctx context.Context) (Transcript, []*models.ClinicalEntity) {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		// Return whatever is committed; snapshots are safe mid-flight.
		s.logger.Warn().Msg("finalize timed out waiting for drain")
	}
	snap := s.engine.Snapshot()
	return Transcript(s.engine.Transcript()), snap.Entities
}

// Display returns the live span timeline including the trailing
// unlocked window.
func (s *Session) Display() []models.ReconciledSpan {
	return s.rec.Display()
}

// Entities returns the current entity snapshot.
func (s *Session) Entities() comprehend.EntitySnapshot {
	return s.engine.Snapshot()
}

// Alerts returns the latest ranked alert list.
func (s *Session) Alerts() []models.SafetyAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SafetyAlert(nil), s.alerts...)
}

// Quality returns the latest quality snapshot.
func (s *Session) Quality() models.QualitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}
