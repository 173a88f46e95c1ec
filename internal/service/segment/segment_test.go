package segment

import (
	"context"
	"io"
	"testing"
	"time"
)

// sliceSource feeds fixed-size chunks from a sample slice.
type sliceSource struct {
	rate    int
	samples []int16
	chunk   int
	pos     int
	failAt  int // fail with a non-EOF error at this position; -1 disables
}

func (s *sliceSource) SampleRate() int { return s.rate }

func (s *sliceSource) Read(ctx context.Context) ([]int16, error) {
	if s.failAt >= 0 && s.pos >= s.failAt {
		return nil, io.ErrUnexpectedEOF
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := s.pos + s.chunk
	if end > len(s.samples) {
		end = len(s.samples)
	}
	out := s.samples[s.pos:end]
	s.pos = end
	return out, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowDuration = 1 * time.Second
	cfg.MinDuration = 500 * time.Millisecond
	cfg.MaxDuration = 2 * time.Second
	cfg.Overlap = 0.20
	cfg.AdaptCooldown = 0
	return cfg
}

func TestNextWindow_FixedDurationAndOverlap(t *testing.T) {
	rate := 1000
	src := &sliceSource{rate: rate, samples: make([]int16, 5000), chunk: 250, failAt: -1}
	base := time.Unix(1000, 0)
	seg := New(src, testConfig(), base)

	w0, err := seg.NextWindow(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w0.Samples) != 1000 {
		t.Errorf("expected 1000 samples, got %d", len(w0.Samples))
	}
	if !w0.Start.Equal(base) {
		t.Errorf("expected window start at base, got %v", w0.Start)
	}

	w1, err := seg.NextWindow(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 20% overlap: second window starts 800 samples in
	wantStart := base.Add(800 * time.Millisecond)
	if !w1.Start.Equal(wantStart) {
		t.Errorf("expected second window start %v, got %v", wantStart, w1.Start)
	}
	if w1.Index != 1 {
		t.Errorf("expected index 1, got %d", w1.Index)
	}
}

func TestNextWindow_CleanEndOfStream(t *testing.T) {
	rate := 1000
	src := &sliceSource{rate: rate, samples: make([]int16, 1200), chunk: 300, failAt: -1}
	seg := New(src, testConfig(), time.Unix(0, 0))

	if _, err := seg.NextWindow(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 400 samples remain after overlap carry: trailing partial window
	w, err := seg.NextWindow(context.Background())
	if err != nil {
		t.Fatalf("expected trailing partial window, got %v", err)
	}
	if len(w.Samples) == 0 {
		t.Error("expected non-empty trailing window")
	}

	_, err = seg.NextWindow(context.Background())
	eos, ok := IsEndOfStream(err)
	if !ok {
		t.Fatalf("expected EndOfStream, got %v", err)
	}
	if eos.Failed {
		t.Error("expected clean end of stream")
	}
}

func TestNextWindow_InterruptedSource(t *testing.T) {
	src := &sliceSource{rate: 1000, samples: make([]int16, 5000), chunk: 100, failAt: 0}
	seg := New(src, testConfig(), time.Unix(0, 0))

	_, err := seg.NextWindow(context.Background())
	eos, ok := IsEndOfStream(err)
	if !ok {
		t.Fatalf("expected EndOfStream, got %v", err)
	}
	if !eos.Failed {
		t.Error("expected failure flag on interrupted source")
	}
}

func TestObserveLatency_ShrinksUnderSustainedLatency(t *testing.T) {
	src := &sliceSource{rate: 1000, samples: make([]int16, 100000), chunk: 1000, failAt: -1}
	seg := New(src, testConfig(), time.Unix(0, 0))

	before := seg.WindowDuration()
	for i := 0; i < 10; i++ {
		seg.ObserveLatency(3 * time.Second)
	}
	after := seg.WindowDuration()
	if after >= before {
		t.Errorf("expected shrink, before=%v after=%v", before, after)
	}
	if after < 500*time.Millisecond {
		t.Errorf("shrunk below floor: %v", after)
	}
}

func TestObserveLatency_GrowsWhenFast(t *testing.T) {
	src := &sliceSource{rate: 1000, samples: make([]int16, 100000), chunk: 1000, failAt: -1}
	seg := New(src, testConfig(), time.Unix(0, 0))

	for i := 0; i < 20; i++ {
		seg.ObserveLatency(50 * time.Millisecond)
	}
	if seg.WindowDuration() <= 1*time.Second {
		t.Errorf("expected growth, got %v", seg.WindowDuration())
	}
	if seg.WindowDuration() > 2*time.Second {
		t.Errorf("grew beyond ceiling: %v", seg.WindowDuration())
	}
}

func TestObserveLatency_CooldownPreventsOscillation(t *testing.T) {
	cfg := testConfig()
	cfg.AdaptCooldown = time.Hour
	src := &sliceSource{rate: 1000, samples: make([]int16, 100000), chunk: 1000, failAt: -1}
	seg := New(src, cfg, time.Unix(0, 0))

	seg.ObserveLatency(3 * time.Second)
	first := seg.WindowDuration()
	seg.ObserveLatency(10 * time.Millisecond)
	seg.ObserveLatency(10 * time.Millisecond)
	if seg.WindowDuration() != first {
		t.Errorf("expected no change during cooldown, got %v -> %v", first, seg.WindowDuration())
	}
}
