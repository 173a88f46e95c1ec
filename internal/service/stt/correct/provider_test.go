package correct

import (
	"context"
	"testing"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/stt/mock"
)

func TestApply_MisheardAndBrand(t *testing.T) {
	text := "I take asprin and Lipitor every morning"
	corrected, corrections := Apply(text)

	want := "I take aspirin and atorvastatin every morning"
	if corrected != want {
		t.Errorf("got %q, want %q", corrected, want)
	}
	if len(corrections) != 2 {
		t.Fatalf("expected 2 corrections, got %d", len(corrections))
	}
	if corrections[0].Method != "misheard" || corrections[1].Method != "brand" {
		t.Errorf("unexpected methods: %+v", corrections)
	}
}

func TestApply_AbbreviationOnlyWhenUppercase(t *testing.T) {
	corrected, corrections := Apply("patient reports SOB on exertion")
	if corrected != "patient reports shortness of breath on exertion" {
		t.Errorf("got %q", corrected)
	}
	if len(corrections) != 1 {
		t.Errorf("expected 1 correction, got %d", len(corrections))
	}

	// lowercase "po" inside ordinary text must not expand
	corrected, corrections = Apply("the po river region")
	if corrected != "the po river region" {
		t.Errorf("lowercase collision expanded: %q", corrected)
	}
	if len(corrections) != 0 {
		t.Errorf("expected no corrections, got %d", len(corrections))
	}
}

func TestApply_MultiWordMisheardPhrases(t *testing.T) {
	text := "I take a torvastatin and I've had die aphoresis since yesterday"
	corrected, corrections := Apply(text)

	want := "I take atorvastatin and I've had diaphoresis since yesterday"
	if corrected != want {
		t.Errorf("got %q, want %q", corrected, want)
	}
	if len(corrections) != 2 {
		t.Fatalf("expected 2 corrections, got %d", len(corrections))
	}
	if corrections[0].Original != "a torvastatin" || corrections[0].Corrected != "atorvastatin" {
		t.Errorf("unexpected first correction: %+v", corrections[0])
	}
	if corrections[1].Method != "misheard" {
		t.Errorf("unexpected method: %+v", corrections[1])
	}
}

func TestApply_PhraseKeepsSurroundingPunctuation(t *testing.T) {
	corrected, _ := Apply("sounds like new monia, honestly")
	if corrected != "sounds like pneumonia, honestly" {
		t.Errorf("got %q", corrected)
	}
}

func TestApply_PreservesPunctuation(t *testing.T) {
	corrected, _ := Apply("she takes Tylenol, sometimes")
	if corrected != "she takes acetaminophen, sometimes" {
		t.Errorf("got %q", corrected)
	}
}

func TestApply_NoCorrections(t *testing.T) {
	text := "the pain comes and goes"
	corrected, corrections := Apply(text)
	if corrected != text || corrections != nil {
		t.Errorf("expected untouched text, got %q (%d corrections)", corrected, len(corrections))
	}
}

func TestProvider_WrapsBase(t *testing.T) {
	base := mock.Scripted("base", 0, 0.9, []string{"I take asprin daily"})
	p := New(base)

	w := models.AudioWindow{Index: 0, Start: time.Unix(0, 0), End: time.Unix(2, 0), SampleRate: 8000}
	cand, err := p.Transcribe(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand.Text != "I take aspirin daily" {
		t.Errorf("got %q", cand.Text)
	}
	if cand.Confidence <= 0.9 {
		t.Errorf("expected confidence boost, got %v", cand.Confidence)
	}
	if p.Name() != "base+vocab" {
		t.Errorf("unexpected name %q", p.Name())
	}
}
