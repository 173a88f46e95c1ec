package comprehend

import (
	"strings"
	"time"

	"clinical-scribe-service/internal/models"
)

// resolve finds the entity a pronoun or definite description refers to,
// searching backward through recently-mentioned entities within the
// configured lookback. A tie between equally recent candidates resolves
// to the most recent with a confidence haircut; a miss returns nil and
// the caller decides whether the reference warrants a fresh entity.
func (e *Engine) resolve(ref reference, spanStart time.Time) *models.ClinicalEntity {
	cutoff := spanStart.Add(-e.cfg.LookbackAge)
	if t, ok := e.lookbackFloor(); ok && t.After(cutoff) {
		cutoff = t
	}

	var candidates []*models.ClinicalEntity
	for _, ent := range e.store.recentFirst(cutoff) {
		if !compatible(ent, ref) {
			continue
		}
		if ent.Confidence < e.cfg.ResolutionThreshold {
			continue
		}
		candidates = append(candidates, ent)
	}
	if len(candidates) == 0 {
		return nil
	}

	chosen := candidates[0]
	if len(candidates) > 1 && sameRecency(e.store, candidates[0], candidates[1]) {
		// Ambiguous reference: recency bias, reduced confidence. Soft
		// condition, logged rather than raised.
		chosen.Confidence *= 0.8
		e.metrics.AmbiguousReferences.Inc()
		e.logger.Debug().
			Str("reference", ref.text).
			Str("chosen", chosen.ID).
			Str("runnerUp", candidates[1].ID).
			Msg("ambiguous reference resolved by recency")
	}
	return chosen
}

// lookbackFloor returns the start time of the oldest span still inside
// the span-count lookback window.
func (e *Engine) lookbackFloor() (time.Time, bool) {
	n := len(e.recentSpans)
	if n == 0 {
		return time.Time{}, false
	}
	if n > e.cfg.LookbackSpans {
		n = e.cfg.LookbackSpans
	}
	return e.recentSpans[len(e.recentSpans)-n], true
}

func compatible(ent *models.ClinicalEntity, ref reference) bool {
	if ref.wantType != "" && ent.Type != ref.wantType {
		return false
	}
	if ref.wantSubstring != "" && !strings.Contains(ent.Canonical, ref.wantSubstring) {
		return false
	}
	if ref.wantType == "" && ref.wantSubstring == "" {
		// Bare pronouns only bind to symptoms; "it" almost never refers
		// to a medication or a history item in dictated encounters.
		return ent.Type == models.EntitySymptom
	}
	return true
}

// sameRecency treats two candidates as equally likely when their last
// mentions fall within one span length of each other.
func sameRecency(s *store, a, b *models.ClinicalEntity) bool {
	la, lb := s.lastMention[a.ID], s.lastMention[b.ID]
	d := la.Sub(lb)
	if d < 0 {
		d = -d
	}
	return d < 3*time.Second
}
