package stt

import (
	"context"
	"errors"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"

	"github.com/rs/zerolog"
)

// RunnerConfig holds per-tier runner settings.
type RunnerConfig struct {
	Tier      models.Tier
	Timeout   time.Duration
	QueueSize int
	MaxBehind int // windows of backlog before the tier is skipped forward
}

// Runner drives one transcription tier: it consumes audio windows from a
// bounded queue, calls the provider with a timeout, and emits candidates.
// A runner that falls more than MaxBehind windows behind drops its oldest
// unconsumed windows rather than growing unbounded backlog.
type Runner struct {
	cfg       RunnerConfig
	provider  Provider
	in        chan models.AudioWindow
	out       chan models.TranscriptCandidate
	onLatency func(time.Duration)
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewRunner creates a runner for one tier.
func NewRunner(cfg RunnerConfig, provider Provider) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.MaxBehind <= 0 || cfg.MaxBehind > cfg.QueueSize {
		cfg.MaxBehind = cfg.QueueSize
	}
	return &Runner{
		cfg:      cfg,
		provider: provider,
		in:       make(chan models.AudioWindow, cfg.QueueSize),
		out:      make(chan models.TranscriptCandidate, cfg.QueueSize),
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithTier(string(cfg.Tier), provider.Name()),
	}
}

// SetLatencyObserver registers a callback receiving per-window provider
// latency, used by the segmenter's adaptive window controller.
func (r *Runner) SetLatencyObserver(fn func(time.Duration)) {
	r.onLatency = fn
}

// Candidates returns the runner's output stream. The channel closes after
// CloseInput once all queued windows are processed.
func (r *Runner) Candidates() <-chan models.TranscriptCandidate {
	return r.out
}

// Offer enqueues a window without blocking. When the backlog reaches
// MaxBehind, the oldest unconsumed windows are dropped first so the tier
// skips forward instead of drifting further behind real time.
func (r *Runner) Offer(w models.AudioWindow) {
	dropped := 0
	for len(r.in) >= r.cfg.MaxBehind {
		select {
		case <-r.in:
			dropped++
		default:
		}
		if dropped > r.cfg.QueueSize {
			break
		}
	}
	if dropped > 0 {
		r.metrics.RecordSkippedAhead(string(r.cfg.Tier), dropped)
		r.logger.Warn().Int("dropped", dropped).Int("windowIndex", w.Index).
			Msg("tier behind, skipping forward")
	}
	select {
	case r.in <- w:
	default:
		// Queue still full after drop attempt; shed this window instead.
		r.metrics.RecordSkippedAhead(string(r.cfg.Tier), 1)
	}
}

// CloseInput signals that no more windows will be offered.
func (r *Runner) CloseInput() {
	close(r.in)
}

// Run processes windows until the input closes or ctx is cancelled, then
// closes the candidate stream. Provider errors degrade the tier for the
// current window only.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.out)
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-r.in:
			if !ok {
				return
			}
			r.process(ctx, w)
		}
	}
}

func (r *Runner) process(ctx context.Context, w models.AudioWindow) {
	tctx := ctx
	var cancel context.CancelFunc
	if r.cfg.Timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	cand, err := r.provider.Transcribe(tctx, w)
	latency := time.Since(start)

	if r.onLatency != nil {
		r.onLatency(latency)
	}

	if err != nil {
		timeout := errors.Is(err, ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded)
		r.metrics.RecordTierError(string(r.cfg.Tier), timeout)
		r.logger.Warn().Err(err).Int("windowIndex", w.Index).Bool("timeout", timeout).
			Msg("tier unavailable for window")
		return
	}

	cand.Tier = r.cfg.Tier
	if cand.WindowStart.IsZero() {
		cand.WindowStart = w.Start
		cand.WindowEnd = w.End
	}
	if !cand.HasConfidence() && cand.Confidence != models.ConfidenceUnknown {
		cand.Confidence = models.ConfidenceUnknown
	}
	if cand.Confidence == models.ConfidenceUnknown {
		cand.Confidence = EstimateConfidence(cand.Text, w)
	}

	r.metrics.RecordCandidate(string(r.cfg.Tier), latency.Seconds())

	select {
	case r.out <- cand:
	case <-ctx.Done():
	}
}
