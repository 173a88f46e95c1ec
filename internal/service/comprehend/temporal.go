package comprehend

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"clinical-scribe-service/internal/models"
)

// Relative time expressions are resolved against the wall-clock time of
// the enclosing span, never against processing time, so replaying a
// session yields the same anchors.

var agoPattern = regexp.MustCompile(
	`\b(a|an|one|two|three|four|five|six|seven|eight|nine|ten|\d+)\s+(minute|hour|day|week|month)s?\s+ago\b`)

var sincePattern = regexp.MustCompile(
	`\bsince\s+(yesterday|this\s+morning|last\s+night|last\s+week)\b`)

var forPattern = regexp.MustCompile(
	`\bfor\s+(?:the\s+(?:last|past)\s+)?(a|an|one|two|three|four|five|six|seven|eight|nine|ten|\d+)\s+(minute|hour|day|week|month)s?\b`)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var unitDurations = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
}

// anchorHit is one resolved temporal expression in a span.
type anchorHit struct {
	anchor models.TemporalAnchor
	// duration holds the span-relative offset for duration attributes.
	source string
}

// temporalAnchors resolves all relative time expressions in text against
// spanStart. Anchor kind depends on the surrounding verbs: onset for
// "started"/"began" (or no cue at all), change for worsening/improving
// phrasing, resolution for "resolved"/"went away".
func temporalAnchors(text string, spanStart time.Time) []anchorHit {
	lower := strings.ToLower(text)
	var out []anchorHit

	for _, m := range agoPattern.FindAllStringSubmatchIndex(lower, -1) {
		qty := lower[m[2]:m[3]]
		unit := lower[m[4]:m[5]]
		d := parseQuantity(qty, unit)
		if d == 0 {
			continue
		}
		out = append(out, anchorHit{
			anchor: models.TemporalAnchor{
				Time:   spanStart.Add(-d),
				Kind:   anchorKind(lower, m[0]),
				Source: strings.TrimSpace(lower[m[0]:m[1]]),
			},
			source: lower[m[0]:m[1]],
		})
	}

	for _, m := range sincePattern.FindAllStringSubmatchIndex(lower, -1) {
		ref := strings.Join(strings.Fields(lower[m[2]:m[3]]), " ")
		out = append(out, anchorHit{
			anchor: models.TemporalAnchor{
				Time:   resolveNamedTime(ref, spanStart),
				Kind:   models.AnchorOnset,
				Source: strings.TrimSpace(lower[m[0]:m[1]]),
			},
			source: lower[m[0]:m[1]],
		})
	}
	return out
}

// durationExpr returns the first "for N units" expression in text, for
// the duration attribute.
func durationExpr(text string) (string, bool) {
	lower := strings.ToLower(text)
	m := forPattern.FindStringSubmatch(lower)
	if m == nil {
		return "", false
	}
	qty := m[1]
	unit := m[2]
	n := numberWords[qty]
	if n == 0 {
		n, _ = strconv.Atoi(qty)
	}
	if n == 0 {
		return "", false
	}
	if n == 1 {
		return "1 " + unit, true
	}
	return strconv.Itoa(n) + " " + unit + "s", true
}

func parseQuantity(qty, unit string) time.Duration {
	n := numberWords[qty]
	if n == 0 {
		n, _ = strconv.Atoi(qty)
	}
	return time.Duration(n) * unitDurations[unit]
}

// anchorKind inspects the clause before the expression for verbs that
// reclassify the anchor.
func anchorKind(lower string, exprStart int) models.AnchorKind {
	from := exprStart - 40
	if from < 0 {
		from = 0
	}
	clause := lower[from:exprStart]
	switch {
	case strings.Contains(clause, "resolved") || strings.Contains(clause, "went away") ||
		strings.Contains(clause, "stopped"):
		return models.AnchorResolution
	case strings.Contains(clause, "worse") || strings.Contains(clause, "better") ||
		strings.Contains(clause, "changed") || strings.Contains(clause, "spread"):
		return models.AnchorChange
	default:
		return models.AnchorOnset
	}
}

// resolveNamedTime maps coarse named references onto clock times.
// Yesterday and last night resolve to conventional hours, not exact
// instants; the anchor is a clinical ordering aid, not a timestamp.
func resolveNamedTime(ref string, spanStart time.Time) time.Time {
	midnight := time.Date(spanStart.Year(), spanStart.Month(), spanStart.Day(), 0, 0, 0, 0, spanStart.Location())
	switch ref {
	case "yesterday":
		return midnight.Add(-12 * time.Hour) // prior day, midday
	case "this morning":
		return midnight.Add(7 * time.Hour)
	case "last night":
		return midnight.Add(-2 * time.Hour) // prior evening
	case "last week":
		return midnight.Add(-7 * 24 * time.Hour)
	default:
		return spanStart
	}
}
