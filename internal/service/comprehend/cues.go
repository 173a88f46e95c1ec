package comprehend

import (
	"regexp"
	"strings"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/vocab"
)

// Attribute cues are free-text patterns that refine the span's focus
// entity (the symptom most recently mentioned or resolved).

var radiationPattern = regexp.MustCompile(
	`\bradiat(?:es|ed|ing)?\s+(?:down\s+|up\s+)?(?:to\s+|into\s+)?(?:my\s+|the\s+|his\s+|her\s+|their\s+)?((?:left|right)\s+)?(arm|shoulder|jaw|neck|back|leg|chest|abdomen)\b`)

var severityScalePattern = regexp.MustCompile(
	`\b(\d{1,2})\s+(?:out\s+of|over)\s+(?:10|ten)\b`)

var aggravatingPattern = regexp.MustCompile(
	`\b(?:worse|aggravated|triggered|brought\s+on)\s+(?:with|when|by|on|after)\s+((?:\w+\s?){1,3}?)(?:[.,]|$|\band\b|\bbut\b)`)

var alleviatingPattern = regexp.MustCompile(
	`\b(?:better|relieved|improved|improves|eased)\s+(?:with|when|by|after)\s+((?:\w+\s?){1,3}?)(?:[.,]|$|\band\b|\bbut\b)`)

var severityWords = []string{"mild", "moderate", "severe", "excruciating", "unbearable"}

// applyCues extracts attribute refinements from the span text onto the
// focus entity. Each write goes through the store so history is kept.
func (e *Engine) applyCues(s *store, ent *models.ClinicalEntity, sp spanCtx) {
	lower := strings.ToLower(sp.text)
	conf := sp.conf

	if m := radiationPattern.FindStringSubmatch(lower); m != nil {
		target := strings.TrimSpace(m[1] + m[2])
		s.setAttr(ent, models.AttrRadiation, models.TextValue(target, conf), sp.start)
	}

	if m := severityScalePattern.FindStringSubmatch(lower); m != nil {
		s.setAttr(ent, models.AttrSeverity, models.TextValue(m[1]+"/10", conf), sp.start)
	} else {
		for _, w := range severityWords {
			if containsWord(lower, w) {
				s.setAttr(ent, models.AttrSeverity, models.TextValue(w, conf), sp.start)
				break
			}
		}
	}

	if _, has := ent.Attr(models.AttrCharacter); !has {
		for _, c := range vocab.PainCharacters {
			if containsWord(lower, c) {
				s.setAttr(ent, models.AttrCharacter, models.TextValue(c, conf), sp.start)
				break
			}
		}
	}

	if m := aggravatingPattern.FindStringSubmatch(lower); m != nil {
		s.setAttr(ent, models.AttrAggravating, models.TextValue(strings.TrimSpace(m[1]), conf), sp.start)
	}
	if m := alleviatingPattern.FindStringSubmatch(lower); m != nil {
		s.setAttr(ent, models.AttrAlleviating, models.TextValue(strings.TrimSpace(m[1]), conf), sp.start)
	}

	switch {
	case strings.Contains(lower, "comes and goes") || containsWord(lower, "intermittent") ||
		strings.Contains(lower, "off and on"):
		s.setAttr(ent, models.AttrTiming, models.TextValue("intermittent", conf), sp.start)
	case containsWord(lower, "constant") || strings.Contains(lower, "all the time") ||
		strings.Contains(lower, "the whole time"):
		s.setAttr(ent, models.AttrTiming, models.TextValue("constant", conf), sp.start)
	}

	if d, ok := durationExpr(sp.text); ok {
		s.setAttr(ent, models.AttrDuration, models.TextValue(d, conf), sp.start)
	}
}

// Vital-sign readings: phrase plus value, "blood pressure 140 over 90".

var bpPattern = regexp.MustCompile(
	`\b(?:blood\s+pressure|bp)\s+(?:is\s+|was\s+|of\s+|at\s+)?(\d{2,3})\s*(?:over|/)\s*(\d{2,3})\b`)

var hrPattern = regexp.MustCompile(
	`\b(?:heart\s+rate|pulse)\s+(?:is\s+|was\s+|of\s+|at\s+)?(\d{2,3})\b`)

var tempPattern = regexp.MustCompile(
	`\btemperature\s+(?:is\s+|was\s+|of\s+|at\s+)?(\d{2,3}(?:\.\d)?)\b`)

var spo2Pattern = regexp.MustCompile(
	`\b(?:oxygen\s+saturation|o2\s+sat|spo2)\s+(?:is\s+|was\s+|of\s+|at\s+)?(\d{2,3})\s*(?:percent|%)?`)

type vitalReading struct {
	canonical string
	value     string
	number    float64
	unit      string
}

// vitalReadings captures numeric vital-sign values from the span text.
func vitalReadings(text string) []vitalReading {
	lower := strings.ToLower(text)
	var out []vitalReading
	if m := bpPattern.FindStringSubmatch(lower); m != nil {
		sys := parseNum(m[1])
		out = append(out, vitalReading{
			canonical: "blood pressure", value: m[1] + "/" + m[2], number: sys, unit: "mmHg",
		})
	}
	if m := hrPattern.FindStringSubmatch(lower); m != nil {
		out = append(out, vitalReading{canonical: "heart rate", value: m[1], number: parseNum(m[1]), unit: "bpm"})
	}
	if m := tempPattern.FindStringSubmatch(lower); m != nil {
		out = append(out, vitalReading{canonical: "temperature", value: m[1], number: parseNum(m[1]), unit: "F"})
	}
	if m := spo2Pattern.FindStringSubmatch(lower); m != nil {
		out = append(out, vitalReading{canonical: "oxygen saturation", value: m[1], number: parseNum(m[1]), unit: "%"})
	}
	return out
}

func parseNum(s string) float64 {
	var n float64
	for _, r := range s {
		if r == '.' {
			break
		}
		n = n*10 + float64(r-'0')
	}
	if i := strings.IndexByte(s, '.'); i >= 0 && i+1 < len(s) {
		n += float64(s[i+1]-'0') / 10
	}
	return n
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isLetter(lower[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(lower) || !isLetter(lower[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
