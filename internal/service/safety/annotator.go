package safety

import (
	"fmt"
	"os"
	"sort"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"
	"clinical-scribe-service/internal/service/comprehend"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Annotator evaluates a fixed rule table against entity snapshots.
type Annotator struct {
	rules   []Rule
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an Annotator over the given rule table.
func New(rules []Rule) *Annotator {
	return &Annotator{
		rules:   rules,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("safety"),
	}
}

// LoadRules reads a YAML rule table. An unreadable or unparsable file is
// an error; individually malformed rules inside a valid file are kept
// and skipped at evaluation time so one bad rule cannot disable the
// table.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rule table: %w", err)
	}
	return doc.Rules, nil
}

// Evaluate runs every rule against the snapshot. All satisfied rules
// fire; output is sorted severity descending, then specificity
// descending. Malformed rules are skipped and logged, never fatal.
func (a *Annotator) Evaluate(snap comprehend.EntitySnapshot) []models.SafetyAlert {
	var alerts []models.SafetyAlert
	for _, rule := range a.rules {
		if err := rule.validate(); err != nil {
			a.metrics.RecordRuleError(rule.ID)
			a.logger.Warn().Err(err).Str("rule", rule.ID).Msg("skipping malformed rule")
			continue
		}
		supporting, ok := a.matches(rule, snap)
		if !ok {
			continue
		}
		alerts = append(alerts, models.SafetyAlert{
			RuleID:              rule.ID,
			Severity:            rule.Severity,
			SupportingEntityIDs: supporting,
			Recommendation:      rule.Recommendation,
			Specificity:         rule.Specificity,
		})
		a.metrics.RecordAlerts(string(rule.Severity), 1)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].Specificity > alerts[j].Specificity
	})
	return alerts
}

func (a *Annotator) matches(rule Rule, snap comprehend.EntitySnapshot) ([]string, bool) {
	if rule.predicate != nil {
		return rule.predicate(snap)
	}
	var supporting []string
	for _, cond := range rule.All {
		ent := firstMatch(cond, snap)
		if ent == nil {
			return nil, false
		}
		supporting = append(supporting, ent.ID)
	}
	return supporting, true
}

func firstMatch(cond Condition, snap comprehend.EntitySnapshot) *models.ClinicalEntity {
	for _, e := range snap.Entities {
		if satisfies(cond, e) {
			return e
		}
	}
	return nil
}

func satisfies(cond Condition, e *models.ClinicalEntity) bool {
	if e.Superseded || e.Type != cond.Type {
		return false
	}
	if e.Present() == cond.Negated {
		return false
	}
	if cond.Canonical != "" && e.Canonical != cond.Canonical {
		return false
	}
	if cond.Attr == "" {
		return true
	}
	v, ok := e.Attr(models.AttrKey(cond.Attr))
	if !ok {
		return false
	}
	if cond.AttrEquals != "" && v.Text != cond.AttrEquals {
		return false
	}
	if cond.ValueAbove != 0 && (!v.IsNumber || v.Number <= cond.ValueAbove) {
		return false
	}
	if cond.ValueBelow != 0 && (!v.IsNumber || v.Number >= cond.ValueBelow) {
		return false
	}
	return true
}
