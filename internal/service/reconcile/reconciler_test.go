package reconcile

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"clinical-scribe-service/internal/models"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func cand(tier models.Tier, text string, startSec, endSec float64, conf float64) models.TranscriptCandidate {
	return models.TranscriptCandidate{
		Tier:        tier,
		Text:        text,
		Confidence:  conf,
		WindowStart: base.Add(time.Duration(startSec * float64(time.Second))),
		WindowEnd:   base.Add(time.Duration(endSec * float64(time.Second))),
	}
}

func newTest() *Reconciler {
	r := New(Config{Debounce: 150 * time.Millisecond, FlushInterval: 50 * time.Millisecond})
	return r
}

func applyAll(r *Reconciler, cands ...models.TranscriptCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cands {
		r.apply(c)
	}
}

func TestApply_FastCreatesTentativeSpan(t *testing.T) {
	r := newTest()
	applyAll(r, cand(models.TierFast, "chest pain", 0, 2, 0.6))

	spans := r.Display()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Text != "chest pain" || spans[0].Tag != models.ConfidenceLow || spans[0].Locked {
		t.Errorf("unexpected span: %+v", spans[0])
	}
}

func TestApply_AccurateExtensionAppliesImmediately(t *testing.T) {
	r := newTest()
	applyAll(r,
		cand(models.TierFast, "chest pain", 0, 2, 0.6),
		cand(models.TierAccurate, "chest pain started two hours ago", 0, 2, 0.9),
	)

	spans := r.Display()
	if spans[0].Text != "chest pain started two hours ago" {
		t.Errorf("expected extension applied without debounce, got %q", spans[0].Text)
	}
	if spans[0].Tag != models.ConfidenceMedium {
		t.Errorf("expected refined tag, got %s", spans[0].Tag)
	}
}

func TestApply_DivergentReplacementDebounced(t *testing.T) {
	r := newTest()
	now := base
	r.now = func() time.Time { return now }

	applyAll(r,
		cand(models.TierFast, "just paying", 0, 2, 0.5),
		cand(models.TierAccurate, "chest pain", 0, 2, 0.9),
	)

	// Divergent text must not replace before the debounce elapses.
	if got := r.Display()[0].Text; got != "just paying" {
		t.Errorf("text replaced before debounce: %q", got)
	}

	r.mu.Lock()
	r.promotePending(now.Add(100 * time.Millisecond))
	r.mu.Unlock()
	if got := r.Display()[0].Text; got != "just paying" {
		t.Errorf("text replaced at 100ms with 150ms debounce: %q", got)
	}

	r.mu.Lock()
	r.promotePending(now.Add(200 * time.Millisecond))
	r.mu.Unlock()
	if got := r.Display()[0].Text; got != "chest pain" {
		t.Errorf("debounced replacement not applied: %q", got)
	}
}

func TestApply_CorrectedLocksSpan(t *testing.T) {
	r := newTest()
	applyAll(r,
		cand(models.TierFast, "chest pain", 0, 2, 0.6),
		cand(models.TierAccurate, "chest pain started", 0, 2, 0.9),
		cand(models.TierCorrected, "chest pain started two hours ago", 0, 2, 0.95),
	)

	spans := r.Display()
	if !spans[0].Locked || spans[0].Tag != models.ConfidenceHigh {
		t.Errorf("expected locked high-confidence span, got %+v", spans[0])
	}
	if spans[0].Text != "chest pain started two hours ago" {
		t.Errorf("unexpected locked text: %q", spans[0].Text)
	}
}

func TestApply_LockedSpanNeverModified(t *testing.T) {
	r := newTest()
	applyAll(r,
		cand(models.TierCorrected, "chest pain started two hours ago", 0, 2, 0.95),
	)
	// Contradicting corrected-tier candidate for the same range.
	applyAll(r,
		cand(models.TierCorrected, "completely different text", 0, 2, 0.99),
		cand(models.TierAccurate, "another rendition", 0, 2, 0.9),
	)

	spans := r.Display()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Text != "chest pain started two hours ago" {
		t.Errorf("locked span modified: %q", spans[0].Text)
	}
}

func TestApply_LowerTierNeverOverridesRefined(t *testing.T) {
	r := newTest()
	applyAll(r,
		cand(models.TierAccurate, "chest pain radiating", 0, 2, 0.9),
		cand(models.TierFast, "chest paint", 0, 2, 0.5),
	)
	if got := r.Display()[0].Text; got != "chest pain radiating" {
		t.Errorf("fast tier overrode accurate text: %q", got)
	}
}

func TestApply_OverlapSuffixGoesToLaterCandidate(t *testing.T) {
	r := newTest()
	applyAll(r,
		cand(models.TierFast, "I have chest pain", 0, 2, 0.6),
		// next window overlaps the previous by 0.4s
		cand(models.TierFast, "and it radiates", 1.6, 3.6, 0.6),
	)

	spans := r.Display()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	// Overlapping prefix stays with the earlier span; the later-starting
	// candidate owns only the non-overlapping suffix.
	if !spans[1].Start.Equal(spans[0].End) {
		t.Errorf("suffix span start %v != previous end %v", spans[1].Start, spans[0].End)
	}
	if spans[1].Text != "and it radiates" {
		t.Errorf("unexpected suffix text: %q", spans[1].Text)
	}
}

func TestApply_LateArrivingEarlierWindowKeepsText(t *testing.T) {
	r := newTest()
	// Fast tier dropped the first window; accurate delivers it after the
	// second window's span already exists.
	applyAll(r,
		cand(models.TierFast, "later words", 1.6, 3.6, 0.6),
		cand(models.TierAccurate, "earlier words", 0, 2, 0.9),
	)

	spans := r.Display()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Text != "earlier words" || spans[1].Text != "later words" {
		t.Errorf("late earlier window lost: %q, %q", spans[0].Text, spans[1].Text)
	}
	if !spans[0].Start.Equal(base) {
		t.Errorf("first span start %v, want %v", spans[0].Start, base)
	}
	if !spans[1].Start.Equal(spans[0].End) {
		t.Errorf("timeline gap: %v != %v", spans[0].End, spans[1].Start)
	}
}

func TestFinalize_LateEarlierWindowDeliveredAfterLaterSpan(t *testing.T) {
	r := newTest()
	applyAll(r, cand(models.TierCorrected, "later words", 1.6, 3.6, 0.95))

	r.mu.Lock()
	first := r.collectLocked()
	r.mu.Unlock()
	if len(first) != 1 || first[0].Text != "later words" {
		t.Fatalf("expected the locked later span first, got %+v", first)
	}

	// The earlier window arrives after its successor was already
	// delivered: it must still reach the locked stream, not vanish.
	applyAll(r, cand(models.TierAccurate, "earlier words", 0, 2, 0.9))
	rest := r.finalize()
	if len(rest) != 1 || rest[0].Text != "earlier words" {
		t.Fatalf("late earlier window not delivered: %+v", rest)
	}
	if !rest[0].Locked {
		t.Error("final flush span not locked")
	}
}

func TestPartitionInvariant_RandomInterleavings(t *testing.T) {
	tiers := []models.Tier{models.TierFast, models.TierAccurate, models.TierCorrected}
	texts := []string{"alpha", "beta gamma", "delta", "epsilon zeta", "eta"}

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))

		// Build per-tier monotonic candidate streams over shared windows.
		var all []models.TranscriptCandidate
		for _, tier := range tiers {
			step := 1.6 // 2s windows, 20% overlap
			for i := 0; i < 5; i++ {
				if rng.Float64() < 0.25 {
					continue // tier skipped this window
				}
				start := float64(i) * step
				all = append(all, cand(tier, texts[i], start, start+2, 0.8))
			}
		}
		// Arbitrary interleaving: the partition invariant must hold no
		// matter the arrival order across or within tiers.
		rng.Shuffle(len(all), func(i, j int) {
			all[i], all[j] = all[j], all[i]
		})

		r := newTest()
		applyAll(r, all...)

		spans := r.Display()
		for i := 1; i < len(spans); i++ {
			if !spans[i].Start.Equal(spans[i-1].End) {
				t.Fatalf("seed %d: gap/overlap between span %d and %d: %v != %v",
					seed, i-1, i, spans[i-1].End, spans[i].Start)
			}
		}
		for _, sp := range spans {
			if !sp.End.After(sp.Start) {
				t.Fatalf("seed %d: empty or inverted span %+v", seed, sp)
			}
		}
	}
}

func TestRun_LockedStreamOrderedAndFinalFlush(t *testing.T) {
	r := newTest()
	fast := make(chan models.TranscriptCandidate, 8)
	accurate := make(chan models.TranscriptCandidate, 8)
	corrected := make(chan models.TranscriptCandidate, 8)

	fast <- cand(models.TierFast, "one", 0, 2, 0.6)
	fast <- cand(models.TierFast, "two", 1.6, 3.6, 0.6)
	corrected <- cand(models.TierCorrected, "one final", 0, 2, 0.95)
	// second window never gets a corrected candidate: flushed at end
	close(fast)
	close(accurate)
	close(corrected)

	done := make(chan struct{})
	var got []models.ReconciledSpan
	go func() {
		defer close(done)
		for sp := range r.Locked() {
			got = append(got, sp)
		}
	}()

	r.Run(context.Background(), fast, accurate, corrected)
	<-done

	if len(got) != 2 {
		t.Fatalf("expected 2 locked spans, got %d", len(got))
	}
	if got[0].Text != "one final" || got[1].Text != "two" {
		t.Errorf("unexpected locked texts: %q, %q", got[0].Text, got[1].Text)
	}
	if got[1].Start.Before(got[0].End) {
		t.Error("locked stream out of time order")
	}
	for _, sp := range got {
		if !sp.Locked {
			t.Errorf("final flush span not marked locked: %+v", sp)
		}
	}
}

func TestRun_EmptySessionProducesNothing(t *testing.T) {
	r := newTest()
	fast := make(chan models.TranscriptCandidate)
	accurate := make(chan models.TranscriptCandidate)
	corrected := make(chan models.TranscriptCandidate)
	close(fast)
	close(accurate)
	close(corrected)

	go r.Run(context.Background(), fast, accurate, corrected)

	count := 0
	for range r.Locked() {
		count++
	}
	if count != 0 {
		t.Errorf("expected empty locked stream, got %d spans", count)
	}
	if len(r.Display()) != 0 {
		t.Errorf("expected empty display, got %d", len(r.Display()))
	}
}

func TestIdempotence_IdenticalStreamsSameTimeline(t *testing.T) {
	stream := []models.TranscriptCandidate{
		cand(models.TierFast, "chest pain", 0, 2, 0.6),
		cand(models.TierAccurate, "chest pain started", 0, 2, 0.9),
		cand(models.TierFast, "two hours ago", 1.6, 3.6, 0.6),
		cand(models.TierCorrected, "chest pain started", 0, 2, 0.95),
		cand(models.TierCorrected, "two hours ago", 1.6, 3.6, 0.95),
	}

	run := func() []models.ReconciledSpan {
		r := newTest()
		applyAll(r, stream...)
		_ = r.finalize()
		return r.Display()
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("span counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("span %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
