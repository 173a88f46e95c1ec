// Package comprehend converts the locked transcript stream into typed
// clinical entities: dictionary extraction, backward reference
// resolution, negation scoping, temporal anchoring, and relationship
// edges. The engine owns the entity set; everything else reads
// snapshots.
package comprehend

import (
	"sync"
	"time"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"

	"github.com/rs/zerolog"
)

// Config holds comprehension settings.
type Config struct {
	LookbackSpans       int           // reference search depth in spans
	LookbackAge         time.Duration // reference search depth in time
	NegationWindow      int           // tokens scanned before a mention
	ResolutionThreshold float64       // minimum entity confidence to bind a reference
}

// DefaultConfig returns comprehension defaults.
func DefaultConfig() Config {
	return Config{
		LookbackSpans:       50,
		LookbackAge:         5 * time.Minute,
		NegationWindow:      3,
		ResolutionThreshold: 0.5,
	}
}

// EntitySnapshot is an immutable copy of the entity set at a version.
type EntitySnapshot struct {
	Version  int
	Entities []*models.ClinicalEntity
}

// spanCtx carries the parts of a locked span the cue extractors need.
type spanCtx struct {
	start time.Time
	end   time.Time
	text  string
	conf  float64
}

// Engine consumes locked spans in time order and maintains the entity
// set. Ingest is single-threaded by contract (one consumer goroutine);
// the mutex only guards snapshot readers against in-flight mutation.
type Engine struct {
	cfg Config

	mu          sync.RWMutex
	store       *store
	transcript  []models.ReconciledSpan
	recentSpans []time.Time // start times of recent spans, oldest first
	version     int

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.LookbackSpans <= 0 {
		cfg.LookbackSpans = DefaultConfig().LookbackSpans
	}
	if cfg.LookbackAge <= 0 {
		cfg.LookbackAge = DefaultConfig().LookbackAge
	}
	if cfg.NegationWindow <= 0 {
		cfg.NegationWindow = DefaultConfig().NegationWindow
	}
	if cfg.ResolutionThreshold <= 0 {
		cfg.ResolutionThreshold = DefaultConfig().ResolutionThreshold
	}
	return &Engine{
		cfg:     cfg,
		store:   newStore(),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("comprehend"),
	}
}

// Run drains the locked-span stream until it closes. Shutdown belongs to
// the producer: the reconciler finalizes and closes the stream, and every
// span it committed still reaches the entity set. Each span is fully
// folded before the next is read, preserving the happens-before
// relationship between spans and the entities they touch.
func (e *Engine) Run(spans <-chan models.ReconciledSpan, onUpdate func(models.ReconciledSpan, EntitySnapshot)) {
	for sp := range spans {
		e.Ingest(sp)
		if onUpdate != nil {
			onUpdate(sp, e.Snapshot())
		}
	}
}

// Snapshot returns a versioned deep copy of the entity set.
func (e *Engine) Snapshot() EntitySnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return EntitySnapshot{Version: e.version, Entities: e.store.snapshot()}
}

// Transcript returns the locked spans ingested so far.
func (e *Engine) Transcript() []models.ReconciledSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.ReconciledSpan(nil), e.transcript...)
}

// Ingest folds one locked span into the entity set.
func (e *Engine) Ingest(sp models.ReconciledSpan) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.transcript = append(e.transcript, sp)
	e.recentSpans = append(e.recentSpans, sp.Start)
	if len(e.recentSpans) > e.cfg.LookbackSpans {
		e.recentSpans = e.recentSpans[len(e.recentSpans)-e.cfg.LookbackSpans:]
	}

	ctx := spanCtx{start: sp.Start, end: sp.End, text: sp.Text, conf: tagConfidence(sp.Tag)}
	toks := tokenize(sp.Text)
	matches := extract(toks)

	consumed := make(map[int]bool)
	for _, m := range matches {
		for i := m.start; i < m.end; i++ {
			consumed[i] = true
		}
	}

	var mentioned []spanEntity
	var focus *models.ClinicalEntity

	for _, m := range matches {
		negated := negatedAt(toks, m.start, e.cfg.NegationWindow)
		ent := e.attach(m, ctx, negated, toks)
		mentioned = append(mentioned, spanEntity{pos: m.start, ent: ent})
		if ent.Type == models.EntitySymptom && !negated {
			focus = ent
		}
	}

	for _, ref := range references(toks, consumed) {
		ent := e.resolve(ref, sp.Start)
		if ent == nil {
			if ref.kind == models.RefDefinite && ref.wantType != "" {
				// A definite description with no antecedent still names a
				// real finding; start a fresh entity from the noun.
				canonical := ref.wantSubstring
				if canonical == "" {
					canonical = lastWord(ref.text)
				}
				ent = e.store.create(ref.wantType, canonical, ctx.conf)
				e.metrics.RecordEntity(string(ref.wantType))
			} else {
				e.logger.Debug().Str("reference", ref.text).Msg("unresolved reference")
				continue
			}
		}
		e.store.addMention(ent, models.Mention{
			SpanStart: sp.Start, SpanEnd: sp.End, Text: ref.text, Kind: ref.kind,
		})
		e.metrics.RecordMention(string(ref.kind))
		mentioned = append(mentioned, spanEntity{pos: ref.start, ent: ent})
		if ent.Type == models.EntitySymptom {
			focus = ent
		}
	}

	if focus != nil {
		e.applyCues(e.store, focus, ctx)
	}

	e.anchorTemporal(ctx, focus, mentioned)
	e.linkRelations(toks, mentioned)

	e.version++
}

// attach binds one dictionary match to an existing or new entity and
// records the mention, honoring negation and explicit corrections.
func (e *Engine) attach(m match, ctx spanCtx, negated bool, toks []token) *models.ClinicalEntity {
	kind := models.RefDirect
	if correctionCue(toks, m.start) {
		e.supersedePrior(m, ctx)
		kind = models.RefCorrection
	}

	ent := e.store.find(m.entType, m.canonical)
	if ent == nil {
		ent = e.store.create(m.entType, m.canonical, ctx.conf)
		e.metrics.RecordEntity(string(m.entType))
		for k, v := range m.seedAttrs {
			e.store.setAttr(ent, k, models.TextValue(v, ctx.conf), ctx.start)
		}
	} else if ctx.conf > ent.Confidence {
		ent.Confidence = ctx.conf
	}

	e.store.setAttr(ent, models.AttrPresent, models.BoolValue(!negated, ctx.conf), ctx.start)
	e.store.addMention(ent, models.Mention{
		SpanStart: ctx.start, SpanEnd: ctx.end, Text: m.text, Kind: kind, Negated: negated,
	})
	e.metrics.RecordMention(string(kind))
	if negated {
		e.metrics.NegatedMentions.Inc()
	}

	if ent.Type == models.EntityVitalSign {
		for _, r := range vitalReadings(ctx.text) {
			if r.canonical != ent.Canonical {
				continue
			}
			reading := models.AttrValue{Text: r.value, Number: r.number, IsNumber: true, Confidence: ctx.conf}
			e.store.setAttr(ent, models.AttrReading, reading, ctx.start)
			e.store.setAttr(ent, models.AttrUnit, models.TextValue(r.unit, ctx.conf), ctx.start)
		}
	}
	return ent
}

// supersedePrior marks the most recent live entity of the same type but
// different canonical as superseded. The old entity keeps its history
// and gains a correction mention; current-value queries move to the new
// entity.
func (e *Engine) supersedePrior(m match, ctx spanCtx) {
	cutoff := ctx.start.Add(-e.cfg.LookbackAge)
	for _, prior := range e.store.recentFirst(cutoff) {
		if prior.Type != m.entType || prior.Canonical == m.canonical {
			continue
		}
		prior.Superseded = true
		e.store.addMention(prior, models.Mention{
			SpanStart: ctx.start, SpanEnd: ctx.end, Text: m.text, Kind: models.RefCorrection,
		})
		e.logger.Info().
			Str("superseded", prior.ID).
			Str("canonical", prior.Canonical).
			Str("replacement", m.canonical).
			Msg("entity superseded by correction")
		return
	}
}

// anchorTemporal attaches resolved time expressions to the focus entity,
// falling back to the last entity mentioned in the span.
func (e *Engine) anchorTemporal(ctx spanCtx, focus *models.ClinicalEntity, mentioned []spanEntity) {
	hits := temporalAnchors(ctx.text, ctx.start)
	if len(hits) == 0 {
		return
	}
	target := focus
	if target == nil && len(mentioned) > 0 {
		target = mentioned[len(mentioned)-1].ent
	}
	if target == nil {
		return
	}
	for _, h := range hits {
		if hasAnchor(target, h.anchor) {
			continue
		}
		target.TemporalAnchors = append(target.TemporalAnchors, h.anchor)
		e.metrics.AnchorsResolved.Inc()
		if h.anchor.Kind == models.AnchorOnset {
			if _, has := target.Attr(models.AttrOnset); !has {
				e.store.setAttr(target, models.AttrOnset, models.TextValue(h.anchor.Source, ctx.conf), ctx.start)
			}
		}
	}
}

func (e *Engine) linkRelations(toks []token, mentioned []spanEntity) {
	for _, edge := range extractRelations(toks, mentioned) {
		if hasRelation(edge.from, edge.kind, edge.to.ID) {
			continue
		}
		edge.from.Relationships = append(edge.from.Relationships, models.Relationship{
			TargetID: edge.to.ID, Kind: edge.kind,
		})
	}
}

func hasAnchor(ent *models.ClinicalEntity, a models.TemporalAnchor) bool {
	for _, existing := range ent.TemporalAnchors {
		if existing.Kind == a.Kind && existing.Source == a.Source {
			return true
		}
	}
	return false
}

// correctionCue reports whether the tokens just before idx signal an
// explicit correction ("actually it was", "no, I mean").
func correctionCue(toks []token, idx int) bool {
	from := idx - 4
	if from < 0 {
		from = 0
	}
	for i := from; i < idx; i++ {
		switch toks[i].norm {
		case "actually", "correction", "rather":
			return true
		case "mean":
			if i > 0 && toks[i-1].norm == "i" {
				return true
			}
		}
	}
	return false
}

// tagConfidence maps the display confidence class onto the numeric
// scale entities carry.
func tagConfidence(tag models.ConfidenceTag) float64 {
	switch tag {
	case models.ConfidenceHigh:
		return 0.9
	case models.ConfidenceMedium:
		return 0.7
	default:
		return 0.5
	}
}

func lastWord(s string) string {
	fields := tokenize(s)
	if len(fields) == 0 {
		return s
	}
	return fields[len(fields)-1].norm
}
