package models

import "time"

// EntityType classifies a clinical entity.
type EntityType string

const (
	EntitySymptom     EntityType = "symptom"
	EntityMedication  EntityType = "medication"
	EntityAllergy     EntityType = "allergy"
	EntityVitalSign   EntityType = "vital_sign"
	EntityHistoryItem EntityType = "history_item"
	EntityTreatment   EntityType = "treatment"
)

// AttrKey names an entity attribute. Keys are typed per entity kind so
// extraction and rule logic stay exhaustive; speculative values still fit
// because the attribute map is open.
type AttrKey string

const (
	AttrPresent     AttrKey = "present"
	AttrLocation    AttrKey = "location"
	AttrCharacter   AttrKey = "character"
	AttrSeverity    AttrKey = "severity"
	AttrRadiation   AttrKey = "radiation"
	AttrDuration    AttrKey = "duration"
	AttrOnset       AttrKey = "onset"
	AttrTiming      AttrKey = "timing"
	AttrAggravating AttrKey = "aggravating"
	AttrAlleviating AttrKey = "alleviating"
	AttrDosage      AttrKey = "dosage"
	AttrRoute       AttrKey = "route"
	AttrFrequency   AttrKey = "frequency"
	AttrReaction    AttrKey = "reaction"
	AttrReading     AttrKey = "value"
	AttrUnit        AttrKey = "unit"
)

// AttrValue is a tagged attribute value: text, numeric, or boolean.
type AttrValue struct {
	Text       string  `json:"text,omitempty"`
	Number     float64 `json:"number,omitempty"`
	Bool       bool    `json:"bool,omitempty"`
	IsNumber   bool    `json:"isNumber,omitempty"`
	IsBool     bool    `json:"isBool,omitempty"`
	Confidence float64 `json:"confidence"`
}

// TextValue builds a text attribute value.
func TextValue(s string, conf float64) AttrValue {
	return AttrValue{Text: s, Confidence: conf}
}

// NumberValue builds a numeric attribute value.
func NumberValue(n float64, conf float64) AttrValue {
	return AttrValue{Number: n, IsNumber: true, Confidence: conf}
}

// BoolValue builds a boolean attribute value.
func BoolValue(b bool, conf float64) AttrValue {
	return AttrValue{Bool: b, IsBool: true, Confidence: conf}
}

// AttrRecord is one write in an entity's attribute history. History is
// append-only; the Attributes map holds the last write per key. Records
// carry the originating span's wall-clock, never processing time, so
// replaying a span stream reproduces the history exactly.
type AttrRecord struct {
	Key       AttrKey   `json:"key"`
	Value     AttrValue `json:"value"`
	SpanStart time.Time `json:"spanStart"`
}

// ReferenceKind describes how a mention referred to its entity.
type ReferenceKind string

const (
	RefDirect     ReferenceKind = "direct"
	RefPronoun    ReferenceKind = "pronoun"
	RefDefinite   ReferenceKind = "definite_description"
	RefCorrection ReferenceKind = "correction"
)

// Mention records one textual reference to an entity.
type Mention struct {
	SpanStart time.Time     `json:"spanStart"`
	SpanEnd   time.Time     `json:"spanEnd"`
	Text      string        `json:"text"`
	Kind      ReferenceKind `json:"kind"`
	Negated   bool          `json:"negated"`
}

// RelationKind classifies a relationship edge between two entities.
type RelationKind string

const (
	RelAggravates RelationKind = "aggravates"
	RelAlleviates RelationKind = "alleviates"
	RelCauses     RelationKind = "causes"
)

// Relationship is a directed edge from the owning entity to another.
type Relationship struct {
	TargetID string       `json:"targetId"`
	Kind     RelationKind `json:"kind"`
}

// AnchorKind classifies a temporal anchor on an entity.
type AnchorKind string

const (
	AnchorOnset      AnchorKind = "onset"
	AnchorChange     AnchorKind = "change"
	AnchorResolution AnchorKind = "resolution"
)

// TemporalAnchor is an absolute point in time attached to an entity,
// resolved from a relative expression in the transcript.
type TemporalAnchor struct {
	Time   time.Time  `json:"time"`
	Kind   AnchorKind `json:"kind"`
	Source string     `json:"source"`
}

// ClinicalEntity is a structured clinical fact accumulated across
// mentions. Entities are created on first unambiguous mention, mutated as
// later spans refer back, and never deleted within a session; an explicit
// contradiction marks the entity superseded instead.
type ClinicalEntity struct {
	ID              string                `json:"id"`
	Type            EntityType            `json:"type"`
	Canonical       string                `json:"canonical"`
	Attributes      map[AttrKey]AttrValue `json:"attributes"`
	History         []AttrRecord          `json:"history,omitempty"`
	Mentions        []Mention             `json:"mentions"`
	Relationships   []Relationship        `json:"relationships,omitempty"`
	TemporalAnchors []TemporalAnchor      `json:"temporalAnchors,omitempty"`
	Confidence      float64               `json:"confidence"`
	Superseded      bool                  `json:"superseded,omitempty"`
}

// Present reports whether the entity is a positive finding. Entities with
// no explicit present attribute default to present.
func (e *ClinicalEntity) Present() bool {
	if v, ok := e.Attributes[AttrPresent]; ok && v.IsBool {
		return v.Bool
	}
	return true
}

// Attr returns the current value for key.
func (e *ClinicalEntity) Attr(key AttrKey) (AttrValue, bool) {
	v, ok := e.Attributes[key]
	return v, ok
}

// Clone returns a deep copy of the entity for read-only snapshots.
func (e *ClinicalEntity) Clone() *ClinicalEntity {
	c := *e
	c.Attributes = make(map[AttrKey]AttrValue, len(e.Attributes))
	for k, v := range e.Attributes {
		c.Attributes[k] = v
	}
	c.History = append([]AttrRecord(nil), e.History...)
	c.Mentions = append([]Mention(nil), e.Mentions...)
	c.Relationships = append([]Relationship(nil), e.Relationships...)
	c.TemporalAnchors = append([]TemporalAnchor(nil), e.TemporalAnchors...)
	return &c
}

// Severity ranks a safety alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
)

// Rank orders severities descending: critical > high > moderate.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityHigh:
		return 1
	case SeverityModerate:
		return 0
	default:
		return -1
	}
}

// SafetyAlert is a value object emitted by the safety annotator. Alerts
// are recomputed from snapshots, never mutated in place.
type SafetyAlert struct {
	RuleID              string   `json:"ruleId"`
	Severity            Severity `json:"severity"`
	SupportingEntityIDs []string `json:"supportingEntityIds"`
	Recommendation      string   `json:"recommendation"`
	Specificity         int      `json:"specificity"`
}

// QualitySnapshot summarizes completeness and confidence of the current
// entity set for external display.
type QualitySnapshot struct {
	Completeness  float64  `json:"completeness"`
	Confidence    float64  `json:"confidence"`
	MissingFields []string `json:"missingFields"`
}
