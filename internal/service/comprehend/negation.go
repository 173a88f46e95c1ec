package comprehend

// negationMarkers are scanned in a fixed token window before a candidate
// mention. A hit records the mention as a pertinent negative: the entity
// keeps the mention but its present attribute is set false.
var negationMarkers = map[string]bool{
	"no":       true,
	"not":      true,
	"denies":   true,
	"denied":   true,
	"without":  true,
	"never":    true,
	"negative": true,
}

// negatedAt reports whether a mention starting at token idx sits inside
// negation scope. Scope breaks at conjunctions so "no fever but chest
// pain" negates only the fever.
func negatedAt(toks []token, idx, window int) bool {
	from := idx - window
	if from < 0 {
		from = 0
	}
	for i := idx - 1; i >= from; i-- {
		n := toks[i].norm
		if n == "but" || n == "and" || n == "however" {
			// "no fever, no chills" repeats the marker, so stopping at a
			// conjunction never hides a genuine negation.
			return false
		}
		if negationMarkers[n] {
			return true
		}
		// "negative for chest pain"
		if n == "for" && i > 0 && toks[i-1].norm == "negative" {
			return true
		}
	}
	return false
}
