package comprehend

import (
	"fmt"
	"time"

	"clinical-scribe-service/internal/models"
)

// store owns the session's entity set. It is only ever touched from the
// engine's ingest path, so it carries no locking; readers go through
// Snapshot which deep-copies.
type store struct {
	seq      int
	entities []*models.ClinicalEntity
	byID     map[string]*models.ClinicalEntity

	// lastMention orders entities for backward reference search.
	lastMention map[string]time.Time
}

func newStore() *store {
	return &store{
		byID:        make(map[string]*models.ClinicalEntity),
		lastMention: make(map[string]time.Time),
	}
}

// create allocates a new entity with a session-stable id. Ids are
// sequential so that replaying an identical span stream yields an
// identical entity set.
func (s *store) create(t models.EntityType, canonical string, conf float64) *models.ClinicalEntity {
	s.seq++
	e := &models.ClinicalEntity{
		ID:         fmt.Sprintf("ent-%04d", s.seq),
		Type:       t,
		Canonical:  canonical,
		Attributes: make(map[models.AttrKey]models.AttrValue),
		Confidence: conf,
	}
	s.entities = append(s.entities, e)
	s.byID[e.ID] = e
	return e
}

// find returns the live (non-superseded) entity with the given type and
// canonical term, if any.
func (s *store) find(t models.EntityType, canonical string) *models.ClinicalEntity {
	for i := len(s.entities) - 1; i >= 0; i-- {
		e := s.entities[i]
		if e.Type == t && e.Canonical == canonical && !e.Superseded {
			return e
		}
	}
	return nil
}

// setAttr records an attribute write: history is append-only, the
// current-value map is last-write-wins.
func (s *store) setAttr(e *models.ClinicalEntity, key models.AttrKey, v models.AttrValue, spanStart time.Time) {
	e.Attributes[key] = v
	e.History = append(e.History, models.AttrRecord{
		Key:       key,
		Value:     v,
		SpanStart: spanStart,
	})
}

// addMention appends a mention and refreshes the entity's recency for
// reference resolution.
func (s *store) addMention(e *models.ClinicalEntity, m models.Mention) {
	e.Mentions = append(e.Mentions, m)
	s.lastMention[e.ID] = m.SpanStart
}

// recentFirst returns live entities ordered most-recently-mentioned
// first, bounded to mentions at or after the cutoff.
func (s *store) recentFirst(cutoff time.Time) []*models.ClinicalEntity {
	out := make([]*models.ClinicalEntity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.Superseded {
			continue
		}
		if last, ok := s.lastMention[e.ID]; !ok || last.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	// Insertion sort by last mention descending: entity counts are small.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && s.lastMention[out[j].ID].After(s.lastMention[out[j-1].ID]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// snapshot deep-copies the entity set for external readers.
func (s *store) snapshot() []*models.ClinicalEntity {
	out := make([]*models.ClinicalEntity, len(s.entities))
	for i, e := range s.entities {
		out[i] = e.Clone()
	}
	return out
}
