package comprehend

import (
	"clinical-scribe-service/internal/models"
)

// relationCues maps cue tokens to the relationship kind they assert
// between the entity mentioned before the cue and the one after it:
// "walking aggravates the pain" reads subject-cue-object.
var relationCues = map[string]models.RelationKind{
	"aggravates": models.RelAggravates,
	"worsens":    models.RelAggravates,
	"alleviates": models.RelAlleviates,
	"relieves":   models.RelAlleviates,
	"helps":      models.RelAlleviates,
	"eases":      models.RelAlleviates,
	"causes":     models.RelCauses,
	"caused":     models.RelCauses,
	"triggers":   models.RelCauses,
	"triggered":  models.RelCauses,
}

// spanEntity pairs an entity with its mention position inside one span.
type spanEntity struct {
	pos int
	ent *models.ClinicalEntity
}

// extractRelations looks for a cue token flanked by two entity mentions
// in the same span and records the directed edge on the subject.
func extractRelations(toks []token, mentioned []spanEntity) []relationEdge {
	var out []relationEdge
	for i, t := range toks {
		kind, ok := relationCues[t.norm]
		if !ok {
			continue
		}
		subj := nearestBefore(mentioned, i)
		obj := nearestAfter(mentioned, i)
		if subj == nil || obj == nil || subj.ent.ID == obj.ent.ID {
			continue
		}
		out = append(out, relationEdge{from: subj.ent, kind: kind, to: obj.ent})
	}
	return out
}

type relationEdge struct {
	from *models.ClinicalEntity
	kind models.RelationKind
	to   *models.ClinicalEntity
}

func nearestBefore(mentioned []spanEntity, pos int) *spanEntity {
	var best *spanEntity
	for i := range mentioned {
		if mentioned[i].pos < pos && (best == nil || mentioned[i].pos > best.pos) {
			best = &mentioned[i]
		}
	}
	return best
}

func nearestAfter(mentioned []spanEntity, pos int) *spanEntity {
	var best *spanEntity
	for i := range mentioned {
		if mentioned[i].pos > pos && (best == nil || mentioned[i].pos < best.pos) {
			best = &mentioned[i]
		}
	}
	return best
}

// hasRelation reports whether the edge already exists, keeping repeated
// statements from duplicating edges.
func hasRelation(e *models.ClinicalEntity, kind models.RelationKind, targetID string) bool {
	for _, r := range e.Relationships {
		if r.Kind == kind && r.TargetID == targetID {
			return true
		}
	}
	return false
}
