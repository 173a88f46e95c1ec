// Package safety evaluates the current entity snapshot against a rule
// table and emits ranked alerts. Evaluation is a pure function of the
// snapshot; rules carry no state between calls.
package safety

import (
	"fmt"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/comprehend"
)

// Condition is one declarative requirement inside a rule. A condition is
// satisfied when at least one entity in the snapshot matches every
// populated field.
type Condition struct {
	Type       models.EntityType `yaml:"type"`
	Canonical  string            `yaml:"canonical,omitempty"`  // exact canonical term; empty matches any
	Attr       string            `yaml:"attr,omitempty"`       // attribute key that must be set
	AttrEquals string            `yaml:"attrEquals,omitempty"` // required attribute text value
	ValueAbove float64           `yaml:"valueAbove,omitempty"` // numeric attribute threshold, exclusive
	ValueBelow float64           `yaml:"valueBelow,omitempty"`
	Negated    bool              `yaml:"negated,omitempty"` // match pertinent negatives instead of positives
}

// Rule pairs a set of conditions (all must hold) with the alert to
// emit. Built-in rules may instead supply a predicate for matches that
// conditions cannot express, such as cross-entity equality.
type Rule struct {
	ID             string          `yaml:"id"`
	Severity       models.Severity `yaml:"severity"`
	Specificity    int             `yaml:"specificity"`
	Recommendation string          `yaml:"recommendation"`
	All            []Condition     `yaml:"all"`

	predicate func(comprehend.EntitySnapshot) ([]string, bool)
}

// validate reports the first structural defect in a rule. A defective
// rule is skipped at evaluation time; it never aborts its neighbors.
func (r Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule missing id")
	}
	switch r.Severity {
	case models.SeverityCritical, models.SeverityHigh, models.SeverityModerate:
	default:
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if len(r.All) == 0 && r.predicate == nil {
		return fmt.Errorf("rule %s: no conditions", r.ID)
	}
	for i, c := range r.All {
		if c.Type == "" {
			return fmt.Errorf("rule %s: condition %d missing entity type", r.ID, i)
		}
	}
	return nil
}

// DefaultRules is the compiled-in rule table, applied when no YAML table
// is configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:             "acs-chest-pain-radiation",
			Severity:       models.SeverityCritical,
			Specificity:    2,
			Recommendation: "Radiating chest pain: evaluate for acute coronary syndrome, obtain 12-lead ECG immediately",
			All: []Condition{
				{Type: models.EntitySymptom, Canonical: "chest pain", Attr: string(models.AttrRadiation)},
			},
		},
		{
			ID:             "acs-chest-pain-diaphoresis",
			Severity:       models.SeverityCritical,
			Specificity:    3,
			Recommendation: "Chest pain with diaphoresis: high suspicion for acute coronary syndrome",
			All: []Condition{
				{Type: models.EntitySymptom, Canonical: "chest pain"},
				{Type: models.EntitySymptom, Canonical: "diaphoresis"},
			},
		},
		{
			ID:             "chest-pain-syncope",
			Severity:       models.SeverityHigh,
			Specificity:    2,
			Recommendation: "Chest pain with syncope: assess for arrhythmia and aortic pathology",
			All: []Condition{
				{Type: models.EntitySymptom, Canonical: "chest pain"},
				{Type: models.EntitySymptom, Canonical: "syncope"},
			},
		},
		{
			ID:             "anaphylaxis-risk",
			Severity:       models.SeverityHigh,
			Specificity:    3,
			Recommendation: "Documented allergy matches a current medication: verify before administration",
			predicate:      allergyMedicationOverlap,
		},
		{
			ID:             "hypoxia",
			Severity:       models.SeverityCritical,
			Specificity:    2,
			Recommendation: "Oxygen saturation below 90%: assess airway and begin supplemental oxygen",
			All: []Condition{
				{Type: models.EntityVitalSign, Canonical: "oxygen saturation",
					Attr: string(models.AttrReading), ValueBelow: 90},
			},
		},
		{
			ID:             "hypertensive-urgency",
			Severity:       models.SeverityHigh,
			Specificity:    2,
			Recommendation: "Systolic blood pressure above 180: recheck and evaluate for end-organ damage",
			All: []Condition{
				{Type: models.EntityVitalSign, Canonical: "blood pressure",
					Attr: string(models.AttrReading), ValueAbove: 180},
			},
		},
		{
			ID:             "tachycardia",
			Severity:       models.SeverityModerate,
			Specificity:    1,
			Recommendation: "Heart rate above 130: obtain ECG and assess perfusion",
			All: []Condition{
				{Type: models.EntityVitalSign, Canonical: "heart rate",
					Attr: string(models.AttrReading), ValueAbove: 130},
			},
		},
	}
}

// allergyMedicationOverlap fires when a live medication entity shares
// its canonical term with a documented allergy.
func allergyMedicationOverlap(snap comprehend.EntitySnapshot) ([]string, bool) {
	allergies := make(map[string]string)
	for _, e := range snap.Entities {
		if e.Type == models.EntityAllergy && e.Present() && !e.Superseded {
			allergies[e.Canonical] = e.ID
		}
	}
	if len(allergies) == 0 {
		return nil, false
	}
	for _, e := range snap.Entities {
		if e.Type != models.EntityMedication || !e.Present() || e.Superseded {
			continue
		}
		if allergyID, ok := allergies[e.Canonical]; ok {
			return []string{allergyID, e.ID}, true
		}
	}
	return nil, false
}
