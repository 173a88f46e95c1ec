// Replay - offline pipeline run over the scripted encounter.
// Prints the reconciled transcript, extracted entities, safety alerts,
// and quality summary without any external services.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/events"
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/service/comprehend"
	"clinical-scribe-service/internal/service/quality"
	"clinical-scribe-service/internal/service/reconcile"
	"clinical-scribe-service/internal/service/safety"
	"clinical-scribe-service/internal/service/segment"
	"clinical-scribe-service/internal/service/session"
	"clinical-scribe-service/internal/service/stt"
	"clinical-scribe-service/internal/service/stt/correct"
	"clinical-scribe-service/internal/service/stt/mock"
)

func main() {
	duration := flag.Duration("duration", 15*time.Second, "encounter length")
	rate := flag.Int("rate", 8000, "synthetic audio sample rate")
	verbose := flag.Bool("v", false, "show pipeline logs")
	flag.Parse()

	if !*verbose {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	src := mock.NewAudioSource(*rate, *duration)
	seg := segment.New(src, segment.DefaultConfig(), time.Now())

	fast := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierFast, Timeout: time.Second, QueueSize: 8, MaxBehind: 8,
	}, mock.Tier(models.TierFast, mock.DefaultEncounter))
	accurate := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierAccurate, Timeout: 2 * time.Second, QueueSize: 16, MaxBehind: 16,
	}, mock.Tier(models.TierAccurate, mock.DefaultEncounter))
	corrected := stt.NewRunner(stt.RunnerConfig{
		Tier: models.TierCorrected, Timeout: 5 * time.Second, QueueSize: 32, MaxBehind: 32,
	}, correct.New(mock.Tier(models.TierCorrected, mock.DefaultEncounter)))

	sess := session.New(
		seg, fast, accurate, corrected,
		reconcile.New(reconcile.DefaultConfig()),
		comprehend.New(comprehend.DefaultConfig()),
		safety.New(safety.DefaultRules()),
		quality.New(0.5),
		events.New(&events.Config{Enabled: false}),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *duration+30*time.Second)
	defer cancel()

	if err := sess.Run(ctx); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	transcript, entities := sess.Finalize(ctx)

	printTranscript(transcript)
	printEntities(entities)
	printAlerts(sess.Alerts())
	printQuality(sess.Quality())
}

func printTranscript(spans session.Transcript) {
	fmt.Println("== Transcript ==")
	for _, sp := range spans {
		if sp.Text == "" {
			continue
		}
		fmt.Printf("[%s - %s] (%s/%s) %s\n",
			sp.Start.Format("15:04:05"), sp.End.Format("15:04:05"),
			sp.SourceTier, sp.Tag, sp.Text)
	}
	fmt.Println()
}

func printEntities(entities []*models.ClinicalEntity) {
	fmt.Println("== Entities ==")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entities {
		status := "present"
		if !e.Present() {
			status = "denied"
		}
		if e.Superseded {
			status = "superseded"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			e.ID, e.Type, e.Canonical, status, e.Confidence, attrSummary(e))
		for _, a := range e.TemporalAnchors {
			fmt.Fprintf(w, "\t\t%s\t%s\t\t%q\n", a.Kind, a.Time.Format("15:04"), a.Source)
		}
		for _, r := range e.Relationships {
			fmt.Fprintf(w, "\t\t%s -> %s\n", r.Kind, r.TargetID)
		}
	}
	w.Flush()
	fmt.Println()
}

func attrSummary(e *models.ClinicalEntity) string {
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		if k == models.AttrPresent {
			continue
		}
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		v := e.Attributes[models.AttrKey(k)]
		out += fmt.Sprintf("%s=%s", k, v.Text)
	}
	return out
}

func printAlerts(alerts []models.SafetyAlert) {
	fmt.Println("== Alerts ==")
	if len(alerts) == 0 {
		fmt.Println("(none)")
	}
	for _, a := range alerts {
		fmt.Printf("[%s] %s: %s (entities %v)\n",
			a.Severity, a.RuleID, a.Recommendation, a.SupportingEntityIDs)
	}
	fmt.Println()
}

func printQuality(q models.QualitySnapshot) {
	fmt.Println("== Quality ==")
	fmt.Printf("completeness %.0f%%  confidence %.2f\n", q.Completeness*100, q.Confidence)
	if len(q.MissingFields) > 0 {
		fmt.Printf("missing: %v\n", q.MissingFields)
	}
}
