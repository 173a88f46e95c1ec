// Package quality computes completeness and confidence scores over the
// entity snapshot for external display.
package quality

import (
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/metrics"
	"clinical-scribe-service/internal/service/comprehend"
)

// requiredFields is the fixed history-of-present-illness checklist. A
// field counts as covered when any positive symptom entity carries it
// with sufficient confidence.
var requiredFields = []models.AttrKey{
	models.AttrOnset,
	models.AttrLocation,
	models.AttrDuration,
	models.AttrCharacter,
	models.AttrAggravating,
	models.AttrAlleviating,
	models.AttrRadiation,
	models.AttrTiming,
	models.AttrSeverity,
}

// Scorer computes quality snapshots.
type Scorer struct {
	minFieldConfidence float64
	metrics            *metrics.Metrics
}

// New creates a Scorer. Fields below minFieldConfidence count as
// missing even when a value exists.
func New(minFieldConfidence float64) *Scorer {
	return &Scorer{
		minFieldConfidence: minFieldConfidence,
		metrics:            metrics.DefaultMetrics,
	}
}

// Score computes the quality snapshot for the entity set. Completeness
// is the covered fraction of the required checklist; confidence is the
// confidence-weighted mean over live entities.
func (s *Scorer) Score(snap comprehend.EntitySnapshot) models.QualitySnapshot {
	covered := make(map[models.AttrKey]bool)
	var confSum, weightSum float64

	for _, e := range snap.Entities {
		if e.Superseded {
			continue
		}
		confSum += e.Confidence * e.Confidence
		weightSum += e.Confidence

		if e.Type != models.EntitySymptom || !e.Present() {
			continue
		}
		for _, key := range requiredFields {
			if covered[key] {
				continue
			}
			if v, ok := e.Attr(key); ok && v.Confidence >= s.minFieldConfidence {
				covered[key] = true
			}
		}
	}

	var missing []string
	for _, key := range requiredFields {
		if !covered[key] {
			missing = append(missing, string(key))
		}
	}

	out := models.QualitySnapshot{
		Completeness:  float64(len(covered)) / float64(len(requiredFields)),
		MissingFields: missing,
	}
	if weightSum > 0 {
		out.Confidence = confSum / weightSum
	}
	s.metrics.RecordQuality(out.Completeness, out.Confidence)
	return out
}
