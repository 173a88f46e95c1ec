// Package correct implements the corrected transcription tier: it wraps
// a base provider and applies domain-vocabulary correction to its output.
// Raw speech-to-text is rarely right about medical terminology; this pass
// fixes misheard terms, maps brand names to generics, and expands spoken
// abbreviations, recording every substitution it makes.
package correct

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/service/stt"
	"clinical-scribe-service/internal/service/vocab"

	"github.com/rs/zerolog"
)

// Correction records a single word-level substitution.
type Correction struct {
	Original  string
	Corrected string
	Method    string // "misheard", "brand", "abbreviation"
}

// Provider wraps a base provider with vocabulary correction.
type Provider struct {
	base   stt.Provider
	logger zerolog.Logger
}

// New wraps base with the correction pass.
func New(base stt.Provider) *Provider {
	return &Provider{
		base:   base,
		logger: logging.WithComponent("vocab-correct"),
	}
}

// Name identifies the provider.
func (p *Provider) Name() string { return p.base.Name() + "+vocab" }

// Transcribe delegates to the base provider and corrects the result.
// Correction never lowers the candidate's confidence; a candidate whose
// text was touched by a dictionary hit gets a small boost because the
// domain pass confirmed the term.
func (p *Provider) Transcribe(ctx context.Context, w models.AudioWindow) (models.TranscriptCandidate, error) {
	cand, err := p.base.Transcribe(ctx, w)
	if err != nil {
		return cand, err
	}

	corrected, corrections := Apply(cand.Text)
	if len(corrections) > 0 {
		p.logger.Debug().
			Str("original", cand.Text).
			Str("corrected", corrected).
			Int("substitutions", len(corrections)).
			Msg("applied vocabulary corrections")
		cand.Text = corrected
		if cand.HasConfidence() && cand.Confidence < 0.97 {
			cand.Confidence += 0.02
		}
	}
	return cand, nil
}

// misheardPhrases lists the multi-word misheard keys in deterministic
// order. The per-word loop in Apply only ever sees single tokens, so
// split renderings like "die aphoresis" go through a phrase pass first.
var misheardPhrases = func() []string {
	var out []string
	for k := range vocab.Misheard {
		if strings.Contains(k, " ") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}()

// Apply corrects text and returns the corrected text with the list of
// substitutions made: multi-word misheard phrases first, then each
// remaining word against the misheard, brand, and abbreviation tables.
func Apply(text string) (string, []Correction) {
	if text == "" {
		return text, nil
	}
	words, corrections := applyPhrases(strings.Fields(text))
	out := make([]string, len(words))

	for i, word := range words {
		core, prefix, suffix := trimPunct(word)
		lower := strings.ToLower(core)

		switch {
		case vocab.Misheard[lower] != "":
			fixed := vocab.Misheard[lower]
			corrections = append(corrections, Correction{Original: core, Corrected: fixed, Method: "misheard"})
			out[i] = prefix + fixed + suffix
		case vocab.BrandGeneric[lower] != "":
			fixed := vocab.BrandGeneric[lower]
			corrections = append(corrections, Correction{Original: core, Corrected: fixed, Method: "brand"})
			out[i] = prefix + fixed + suffix
		case vocab.Abbreviations[lower] != "" && isShoutedAbbrev(core):
			fixed := vocab.Abbreviations[lower]
			corrections = append(corrections, Correction{Original: core, Corrected: fixed, Method: "abbreviation"})
			out[i] = prefix + fixed + suffix
		default:
			out[i] = word
		}
	}
	return strings.Join(out, " "), corrections
}

// applyPhrases rewrites multi-word misheard sequences into their single
// intended term, keeping the surrounding punctuation of the first and
// last word.
func applyPhrases(words []string) ([]string, []Correction) {
	var corrections []Correction
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		fixed, n := matchPhrase(words[i:])
		if n == 0 {
			out = append(out, words[i])
			i++
			continue
		}
		_, prefix, _ := trimPunct(words[i])
		_, _, suffix := trimPunct(words[i+n-1])
		cores := make([]string, n)
		for j := 0; j < n; j++ {
			cores[j], _, _ = trimPunct(words[i+j])
		}
		corrections = append(corrections, Correction{Original: strings.Join(cores, " "), Corrected: fixed, Method: "misheard"})
		out = append(out, prefix+fixed+suffix)
		i += n
	}
	return out, corrections
}

// matchPhrase reports the correction for a misheard phrase starting at
// words[0] and how many words it spans, or ("", 0) when none matches.
func matchPhrase(words []string) (string, int) {
	for _, phrase := range misheardPhrases {
		parts := strings.Fields(phrase)
		if len(parts) > len(words) {
			continue
		}
		ok := true
		for j, p := range parts {
			core, _, _ := trimPunct(words[j])
			if strings.ToLower(core) != p {
				ok = false
				break
			}
		}
		if ok {
			return vocab.Misheard[phrase], len(parts)
		}
	}
	return "", 0
}

// isShoutedAbbrev guards abbreviation expansion: only expand tokens the
// STT emitted fully uppercased ("BP", "SOB"), so ordinary words that
// collide with abbreviation keys pass through untouched.
func isShoutedAbbrev(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func trimPunct(s string) (core, prefix, suffix string) {
	start := 0
	for start < len(s) && isPunct(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isPunct(s[end-1]) {
		end--
	}
	return s[start:end], s[:start], s[end:]
}

func isPunct(b byte) bool {
	switch b {
	case '.', ',', ';', ':', '!', '?', '"', '\'', '(', ')':
		return true
	}
	return false
}
