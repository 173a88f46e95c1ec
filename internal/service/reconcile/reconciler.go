package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"

	"github.com/rs/zerolog"
)

// Config holds reconciliation buffer settings.
type Config struct {
	Debounce      time.Duration // delay before a divergent text replacement
	FlushInterval time.Duration // merge loop tick
}

// DefaultConfig returns reconciler defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:      150 * time.Millisecond,
		FlushInterval: 50 * time.Millisecond,
	}
}

// Reconciler is the single-writer merge point for the three tier
// candidate streams. All span-state transitions happen on the merge
// goroutine; external readers get value snapshots.
type Reconciler struct {
	cfg Config

	mu    sync.Mutex
	spans []*span

	out     chan models.ReconciledSpan
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Reconciler{
		cfg:     cfg,
		out:     make(chan models.ReconciledSpan, 64),
		now:     time.Now,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("reconciler"),
	}
}

// Locked returns the append-only stream of locked spans, in timeline
// order except for a window that arrives after later spans were already
// delivered, which is delivered when it locks rather than dropped. The
// channel closes after the final flush; remaining unlocked spans are
// flushed as final before close, so no committed text is ever lost.
func (r *Reconciler) Locked() <-chan models.ReconciledSpan {
	return r.out
}

// Display returns a snapshot of the full span timeline, including the
// trailing unlocked window, for live rendering.
func (r *Reconciler) Display() []models.ReconciledSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ReconciledSpan, len(r.spans))
	for i, s := range r.spans {
		out[i] = s.snapshot()
	}
	return out
}

// Run drains the three tier streams until all are closed or ctx is
// cancelled, then flushes remaining spans as final and closes the locked
// stream. It proceeds as soon as any stream has data and ticks
// periodically to promote debounced replacements.
func (r *Reconciler) Run(ctx context.Context, fast, accurate, corrected <-chan models.TranscriptCandidate) {
	defer close(r.out)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for fast != nil || accurate != nil || corrected != nil {
		select {
		case <-ctx.Done():
			r.emit(r.finalize())
			return
		case c, ok := <-fast:
			if !ok {
				fast = nil
				continue
			}
			r.ingest(c)
		case c, ok := <-accurate:
			if !ok {
				accurate = nil
				continue
			}
			r.ingest(c)
		case c, ok := <-corrected:
			if !ok {
				corrected = nil
				continue
			}
			r.ingest(c)
		case now := <-ticker.C:
			r.mu.Lock()
			r.promotePending(now)
			locked := r.collectLocked()
			r.mu.Unlock()
			r.emit(locked)
		}
	}
	r.emit(r.finalize())
}

func (r *Reconciler) ingest(c models.TranscriptCandidate) {
	r.mu.Lock()
	r.apply(c)
	locked := r.collectLocked()
	r.mu.Unlock()
	r.emit(locked)
}

// apply folds one candidate into the span timeline. Caller holds mu.
func (r *Reconciler) apply(c models.TranscriptCandidate) {
	if strings.TrimSpace(c.Text) == "" {
		return
	}

	// Same window seen before (all tiers consume identical windows):
	// update that span in place.
	if s := r.findByStart(c.WindowStart); s != nil {
		r.update(s, c)
		return
	}

	// New time range. Clip against the neighbors around the candidate's
	// own start, not the timeline tail: under tier-skip degradation a
	// window can arrive after a later window's span already exists, and
	// its text still has to land in its slot. Walk the start past any
	// spans already covering it, stretch back over silence gaps to the
	// nearest committed end, and stretch or clip the end to meet the
	// next span's start so the timeline stays partitioned.
	start := c.WindowStart
	end := c.WindowEnd
	for s := r.spanCovering(start); s != nil; s = r.spanCovering(start) {
		start = s.end
	}
	if prevEnd, ok := r.lastEndBefore(start); ok {
		start = prevEnd
	}
	if next := r.firstAfter(start); next != nil {
		end = next.start
	}
	if !end.After(start) {
		// Range fully claimed by existing spans: fold into the last
		// overlapping one instead.
		if s := r.spanCovering(c.WindowStart); s != nil {
			r.update(s, c)
		}
		return
	}

	s := &span{
		key:   c.WindowStart,
		start: start,
		end:   end,
		text:  c.Text,
		tier:  c.Tier,
		conf:  c.Confidence,
	}
	switch c.Tier {
	case models.TierCorrected:
		s.state = StateLocked
	case models.TierAccurate:
		s.state = StateRefined
	default:
		s.state = StateTentative
	}
	r.insert(s)
	r.metrics.SpansCreated.Inc()
	r.metrics.RecordTransition(s.state.String())
}

// update applies transition rules to an existing span. Caller holds mu.
func (r *Reconciler) update(s *span, c models.TranscriptCandidate) {
	if s.state == StateLocked {
		// Locked spans are final inputs downstream; a disagreeing late
		// candidate never reopens them.
		r.metrics.StaleCandidates.Inc()
		r.logger.Debug().Time("spanStart", s.start).Str("tier", string(c.Tier)).
			Msg("candidate ignored for locked span")
		return
	}

	cr, sr := c.Tier.Rank(), s.tier.Rank()
	if cr < sr {
		// A lower tier never overrides refined text.
		return
	}

	// Later-starting candidate wins the non-overlapping suffix: extend
	// the span's range while it is still unlocked.
	if c.WindowEnd.After(s.end) {
		if next := r.firstAfter(s.start); next == nil || c.WindowEnd.Before(next.start) || c.WindowEnd.Equal(next.start) {
			s.end = c.WindowEnd
		}
	}

	if c.HasConfidence() {
		s.conf = c.Confidence
	}

	if c.Tier == models.TierCorrected {
		// Lock applies the final text immediately; the debounce exists to
		// protect readers from mid-read replacement churn, not to delay
		// finality.
		s.text = c.Text
		s.hasPending = false
		s.tier = c.Tier
		s.state = StateLocked
		r.metrics.RecordReplacement("locked")
		r.metrics.RecordTransition(StateLocked.String())
		return
	}

	// Accurate over tentative (or re-emission at the same rank): merge
	// preserving the longest common prefix to avoid flicker.
	if strings.HasPrefix(c.Text, s.text) {
		if c.Text != s.text {
			s.text = c.Text
			r.metrics.RecordReplacement("extension")
		}
		s.hasPending = false
	} else {
		s.pendingText = c.Text
		s.pendingConf = c.Confidence
		s.pendingSince = r.now()
		s.hasPending = true
		r.metrics.RecordReplacement("staged")
	}

	if cr > sr {
		s.tier = c.Tier
		if s.state == StateTentative {
			s.state = StateRefined
			r.metrics.RecordTransition(StateRefined.String())
		}
	}
}

// promotePending applies staged divergent replacements whose debounce
// has elapsed. Caller holds mu.
func (r *Reconciler) promotePending(now time.Time) {
	for _, s := range r.spans {
		if s.hasPending && now.Sub(s.pendingSince) >= r.cfg.Debounce {
			s.text = s.pendingText
			if s.pendingConf >= 0 {
				s.conf = s.pendingConf
			}
			s.hasPending = false
			r.metrics.RecordReplacement("debounced")
		}
	}
}

// collectLocked walks the locked prefix of the timeline and returns the
// spans not yet delivered, in time order. Caller holds mu. A locked span
// behind an unlocked one waits; a span inserted behind already-delivered
// neighbors is delivered late rather than dropped.
func (r *Reconciler) collectLocked() []models.ReconciledSpan {
	var out []models.ReconciledSpan
	for _, s := range r.spans {
		if s.state != StateLocked {
			break
		}
		if s.delivered {
			continue
		}
		out = append(out, s.snapshot())
		s.delivered = true
	}
	return out
}

// finalize promotes all staged replacements, flushes remaining unlocked
// spans as final, and returns everything not yet delivered.
func (r *Reconciler) finalize() []models.ReconciledSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spans {
		if s.hasPending {
			s.text = s.pendingText
			if s.pendingConf >= 0 {
				s.conf = s.pendingConf
			}
			s.hasPending = false
			r.metrics.RecordReplacement("debounced")
		}
		if s.state != StateLocked {
			s.state = StateLocked
			r.metrics.RecordTransition("final-flush")
		}
	}
	return r.collectLocked()
}

func (r *Reconciler) emit(spans []models.ReconciledSpan) {
	for _, sp := range spans {
		r.out <- sp
	}
}

func (r *Reconciler) findByStart(t time.Time) *span {
	for _, s := range r.spans {
		if sameInstant(s.key, t) {
			return s
		}
	}
	return nil
}

func (r *Reconciler) spanCovering(t time.Time) *span {
	for _, s := range r.spans {
		if !t.Before(s.start) && t.Before(s.end) {
			return s
		}
	}
	return nil
}

// lastEndBefore returns the latest span end at or before t. Spans never
// overlap, so this is the end of the nearest preceding span.
func (r *Reconciler) lastEndBefore(t time.Time) (time.Time, bool) {
	var end time.Time
	found := false
	for _, s := range r.spans {
		if !s.end.After(t) {
			end = s.end
			found = true
		}
	}
	return end, found
}

func (r *Reconciler) firstAfter(t time.Time) *span {
	for _, s := range r.spans {
		if s.start.After(t) {
			return s
		}
	}
	return nil
}

func (r *Reconciler) insert(s *span) {
	for i, existing := range r.spans {
		if s.start.Before(existing.start) {
			r.spans = append(r.spans, nil)
			copy(r.spans[i+1:], r.spans[i:])
			r.spans[i] = s
			return
		}
	}
	r.spans = append(r.spans, s)
}

// sameInstant tolerates sub-millisecond jitter between tiers' copies of
// the same window timestamps.
func sameInstant(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < time.Millisecond
}
