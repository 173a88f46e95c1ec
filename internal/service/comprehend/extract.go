package comprehend

import (
	"strings"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/vocab"
)

// token is one word of a span with its normalized form. Positions are
// token indices, not byte offsets.
type token struct {
	raw  string
	norm string // lowercased, punctuation-trimmed, brand/misheard-normalized
}

func tokenize(text string) []token {
	fields := strings.Fields(text)
	toks := make([]token, len(fields))
	for i, f := range fields {
		toks[i] = token{raw: f, norm: vocab.Normalize(f)}
	}
	return toks
}

// phrase joins the normalized forms of toks[start:start+n].
func phrase(toks []token, start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = toks[start+i].norm
	}
	return strings.Join(parts, " ")
}

// match is one dictionary hit inside a span.
type match struct {
	start     int // first token index
	end       int // one past the last token index
	text      string
	entType   models.EntityType
	canonical string
	seedAttrs map[models.AttrKey]string // attributes implied by the phrase itself
}

const maxPhraseLen = 4

// extract scans the token stream for dictionary phrases, longest first
// so "chest pain" wins over "pain". Abbreviations are expanded before
// lookup so "BP" lands in the vital-sign table.
func extract(toks []token) []match {
	var out []match
	consumed := make([]bool, len(toks))

	for n := maxPhraseLen; n >= 1; n-- {
		for i := 0; i+n <= len(toks); i++ {
			if anyConsumed(consumed, i, i+n) {
				continue
			}
			p := phrase(toks, i, n)
			if n == 1 {
				p = strings.ToLower(vocab.Expand(p))
			}
			m, ok := lookup(p)
			if !ok {
				continue
			}
			m.start, m.end = i, i+n
			m.text = rawText(toks, i, i+n)
			if isAllergyContext(toks, i) {
				m.entType = models.EntityAllergy
			}
			out = append(out, m)
			for j := i; j < i+n; j++ {
				consumed[j] = true
			}
		}
	}

	// Restore span order: matching ran longest-phrase-first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].start < out[j-1].start; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func lookup(p string) (match, bool) {
	if t, ok := vocab.Symptoms[p]; ok {
		seeds := map[models.AttrKey]string{}
		if t.Location != "" {
			seeds[models.AttrLocation] = t.Location
		}
		if t.Character != "" {
			seeds[models.AttrCharacter] = t.Character
		}
		return match{entType: models.EntitySymptom, canonical: t.Canonical, seedAttrs: seeds}, true
	}
	if c, ok := vocab.Conditions[p]; ok {
		return match{entType: models.EntityHistoryItem, canonical: c}, true
	}
	if v, ok := vocab.VitalSigns[p]; ok {
		return match{entType: models.EntityVitalSign, canonical: v}, true
	}
	if tr, ok := vocab.Treatments[p]; ok {
		return match{entType: models.EntityTreatment, canonical: tr}, true
	}
	if g, ok := vocab.Medications[p]; ok {
		return match{entType: models.EntityMedication, canonical: g}, true
	}
	return match{}, false
}

func anyConsumed(consumed []bool, from, to int) bool {
	for i := from; i < to; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}

func rawText(toks []token, from, to int) string {
	parts := make([]string, to-from)
	for i := from; i < to; i++ {
		parts[i-from] = strings.Trim(toks[i].raw, ".,;:!?")
	}
	return strings.Join(parts, " ")
}

// isAllergyContext reports whether the tokens immediately before idx
// read "allergic to" or "allergy to", which retypes a medication or
// substance mention into an allergy.
func isAllergyContext(toks []token, idx int) bool {
	if idx < 2 {
		return false
	}
	if toks[idx-1].norm != "to" {
		return false
	}
	prev := toks[idx-2].norm
	return prev == "allergic" || prev == "allergy"
}

// reference is a pronoun or definite description awaiting backward
// resolution.
type reference struct {
	start int
	text  string
	kind  models.ReferenceKind
	// wantType narrows the search; empty means any type.
	wantType models.EntityType
	// wantSubstring further narrows by canonical term ("the pain").
	wantSubstring string
}

// definiteNouns maps the noun of a definite description to the entity
// constraint it implies.
var definiteNouns = map[string]reference{
	"pain":       {wantType: models.EntitySymptom, wantSubstring: "pain"},
	"symptom":    {wantType: models.EntitySymptom},
	"symptoms":   {wantType: models.EntitySymptom},
	"medication": {wantType: models.EntityMedication},
	"medicine":   {wantType: models.EntityMedication},
	"pill":       {wantType: models.EntityMedication},
	"pills":      {wantType: models.EntityMedication},
	"cough":      {wantType: models.EntitySymptom, wantSubstring: "cough"},
	"rash":       {wantType: models.EntitySymptom, wantSubstring: "rash"},
	"swelling":   {wantType: models.EntitySymptom, wantSubstring: "swelling"},
	"headache":   {wantType: models.EntitySymptom, wantSubstring: "headache"},
}

// references finds pronoun and definite-description mentions, skipping
// token positions already claimed by a dictionary match.
func references(toks []token, consumed map[int]bool) []reference {
	var out []reference
	for i, t := range toks {
		if consumed[i] {
			continue
		}
		switch t.norm {
		case "it", "this", "that":
			// Bare demonstratives only count when followed by a verb-ish
			// token, so "that hurts" resolves but "that day" does not.
			if i+1 < len(toks) && looksVerbal(toks[i+1].norm) {
				out = append(out, reference{start: i, text: t.raw, kind: models.RefPronoun})
			}
		case "the", "my":
			if i+1 >= len(toks) || consumed[i+1] {
				continue
			}
			if ref, ok := definiteNouns[toks[i+1].norm]; ok {
				ref.start = i
				ref.text = t.raw + " " + toks[i+1].raw
				ref.kind = models.RefDefinite
				out = append(out, ref)
			}
		}
	}
	return out
}

var verbalCues = map[string]bool{
	"radiates": true, "radiated": true, "radiating": true,
	"started": true, "starts": true, "began": true, "begins": true,
	"hurts": true, "hurt": true, "feels": true, "felt": true,
	"comes": true, "came": true, "goes": true, "went": true,
	"gets": true, "got": true, "is": true, "was": true,
	"worsens": true, "improves": true, "wakes": true,
}

func looksVerbal(norm string) bool {
	return verbalCues[norm]
}
