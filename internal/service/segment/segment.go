// Package segment slices a continuous audio stream into overlapping
// windows for dispatch to the transcription tiers. Window duration adapts
// to sustained producer latency within configured bounds.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"

	"github.com/rs/zerolog"
)

// Source supplies raw sample buffers with a declared sample rate.
// Read returns io.EOF on clean end of input; any other error is treated
// as an interrupted audio source.
type Source interface {
	SampleRate() int
	Read(ctx context.Context) ([]int16, error)
}

// EndOfStream signals that no further windows will be produced. Failed
// distinguishes an interrupted source from a clean end of input.
type EndOfStream struct {
	Failed bool
	Cause  error
}

func (e *EndOfStream) Error() string {
	if e.Failed {
		return fmt.Sprintf("audio source interrupted: %v", e.Cause)
	}
	return "end of audio stream"
}

// IsEndOfStream extracts an EndOfStream from err, if present.
func IsEndOfStream(err error) (*EndOfStream, bool) {
	var eos *EndOfStream
	if errors.As(err, &eos) {
		return eos, true
	}
	return nil, false
}

// Config holds segmenter settings.
type Config struct {
	WindowDuration time.Duration
	MinDuration    time.Duration
	MaxDuration    time.Duration
	Overlap        float64
	LatencyHigh    time.Duration
	LatencyLow     time.Duration
	AdaptCooldown  time.Duration
	AdaptStep      time.Duration
}

// DefaultConfig returns segmenter defaults: 2s windows, 20% overlap.
func DefaultConfig() Config {
	return Config{
		WindowDuration: 2 * time.Second,
		MinDuration:    1500 * time.Millisecond,
		MaxDuration:    3 * time.Second,
		Overlap:        0.20,
		LatencyHigh:    1500 * time.Millisecond,
		LatencyLow:     500 * time.Millisecond,
		AdaptCooldown:  10 * time.Second,
		AdaptStep:      250 * time.Millisecond,
	}
}

// Segmenter produces fixed-duration overlapping windows from a Source.
// NextWindow is not safe for concurrent use; ObserveLatency may be called
// from any goroutine.
type Segmenter struct {
	src     Source
	cfg     Config
	base    time.Time // session start; window times are offsets from it
	buf     []int16
	offset  int // samples consumed from the stream up to buf[0]
	index   int
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu        sync.Mutex
	current   time.Duration
	ewma      time.Duration
	lastAdapt time.Time
}

// New creates a Segmenter over src with window times based at sessionStart.
func New(src Source, cfg Config, sessionStart time.Time) *Segmenter {
	if cfg.WindowDuration <= 0 {
		cfg = DefaultConfig()
	}
	return &Segmenter{
		src:     src,
		cfg:     cfg,
		base:    sessionStart,
		current: cfg.WindowDuration,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("segmenter"),
	}
}

// NextWindow returns the next audio window, or an EndOfStream error when
// the source is exhausted or interrupted. A trailing partial window is
// emitted before the clean end-of-stream signal.
func (s *Segmenter) NextWindow(ctx context.Context) (models.AudioWindow, error) {
	rate := s.src.SampleRate()
	need := s.samplesFor(s.duration(), rate)

	for len(s.buf) < need {
		chunk, err := s.src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if len(s.buf) > 0 {
					return s.drain(rate), nil
				}
				return models.AudioWindow{}, &EndOfStream{}
			}
			s.logger.Error().Err(err).Msg("audio source interrupted")
			return models.AudioWindow{}, &EndOfStream{Failed: true, Cause: err}
		}
		s.buf = append(s.buf, chunk...)
	}

	return s.emit(need, rate), nil
}

// ObserveLatency feeds a producer latency sample into the adaptive
// window controller.
func (s *Segmenter) ObserveLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ewma == 0 {
		s.ewma = d
	} else {
		// EWMA with alpha 0.3
		s.ewma = time.Duration(0.7*float64(s.ewma) + 0.3*float64(d))
	}
	s.adaptLocked()
}

// WindowDuration returns the current adaptive window duration.
func (s *Segmenter) WindowDuration() time.Duration {
	return s.duration()
}

func (s *Segmenter) duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Segmenter) adaptLocked() {
	if time.Since(s.lastAdapt) < s.cfg.AdaptCooldown {
		return
	}
	switch {
	case s.ewma > s.cfg.LatencyHigh && s.current > s.cfg.MinDuration:
		s.current -= s.cfg.AdaptStep
		if s.current < s.cfg.MinDuration {
			s.current = s.cfg.MinDuration
		}
		s.lastAdapt = time.Now()
		s.metrics.RecordAdaption("shrink")
		s.logger.Info().Dur("window", s.current).Dur("ewmaLatency", s.ewma).Msg("shrinking window duration")
	case s.ewma < s.cfg.LatencyLow && s.current < s.cfg.MaxDuration:
		s.current += s.cfg.AdaptStep
		if s.current > s.cfg.MaxDuration {
			s.current = s.cfg.MaxDuration
		}
		s.lastAdapt = time.Now()
		s.metrics.RecordAdaption("grow")
		s.logger.Info().Dur("window", s.current).Dur("ewmaLatency", s.ewma).Msg("growing window duration")
	}
}

func (s *Segmenter) samplesFor(d time.Duration, rate int) int {
	return int(d.Seconds() * float64(rate))
}

// emit builds a window from the first n buffered samples and advances the
// buffer by n minus the overlap so consecutive windows share a margin.
func (s *Segmenter) emit(n, rate int) models.AudioWindow {
	samples := make([]int16, n)
	copy(samples, s.buf[:n])

	start := s.base.Add(time.Duration(s.offset) * time.Second / time.Duration(rate))
	end := s.base.Add(time.Duration(s.offset+n) * time.Second / time.Duration(rate))

	w := models.AudioWindow{
		Index:      s.index,
		Start:      start,
		End:        end,
		SampleRate: rate,
		Samples:    samples,
	}
	s.index++

	advance := n - int(float64(n)*s.cfg.Overlap)
	if advance < 1 {
		advance = 1
	}
	if advance > len(s.buf) {
		advance = len(s.buf)
	}
	s.buf = s.buf[advance:]
	s.offset += advance

	s.metrics.RecordWindow(w.Duration().Seconds())
	return w
}

// drain emits whatever remains in the buffer as the final trailing window
// with no overlap carry, so the next call reports end of stream.
func (s *Segmenter) drain(rate int) models.AudioWindow {
	n := len(s.buf)
	samples := make([]int16, n)
	copy(samples, s.buf)

	w := models.AudioWindow{
		Index:      s.index,
		Start:      s.base.Add(time.Duration(s.offset) * time.Second / time.Duration(rate)),
		End:        s.base.Add(time.Duration(s.offset+n) * time.Second / time.Duration(rate)),
		SampleRate: rate,
		Samples:    samples,
	}
	s.index++
	s.offset += n
	s.buf = nil

	s.metrics.RecordWindow(w.Duration().Seconds())
	return w
}
