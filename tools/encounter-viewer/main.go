// Encounter Viewer - live console display of a running encounter.
// Consumes the span, alert, and quality Kafka topics and renders them
// as they arrive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"clinical-scribe-service/internal/events"
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func consume(ctx context.Context, brokers, topic string, handle func([]byte)) {
	// Partition reader without a consumer group: works through a
	// port-forward and needs no coordination for a single viewer.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	reader.SetOffsetAt(ctx, time.Now().Add(-5*time.Minute))
	log.Printf("consuming %s partition 0", topic)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}
		handle(msg.Value)
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicSpans := flag.String("topic-spans", "scribe.transcript.spans", "transcript span topic")
	topicAlerts := flag.String("topic-alerts", "scribe.safety.alerts", "safety alert topic")
	topicQuality := flag.String("topic-quality", "scribe.quality.snapshots", "quality snapshot topic")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consume(ctx, *brokers, *topicSpans, func(value []byte) {
		var e events.SpanEvent
		if err := json.Unmarshal(value, &e); err != nil {
			log.Printf("bad span event: %v", err)
			return
		}
		fmt.Printf("[%s] %-9s %-6s %s\n",
			e.Start.Format("15:04:05"), e.Tier, e.Tag, truncate(e.Text, 100))
	})

	go consume(ctx, *brokers, *topicAlerts, func(value []byte) {
		var e events.AlertEvent
		if err := json.Unmarshal(value, &e); err != nil {
			log.Printf("bad alert event: %v", err)
			return
		}
		for _, a := range e.Alerts {
			fmt.Printf("!! %-8s %s: %s\n", a.Severity, a.RuleID, truncate(a.Recommendation, 80))
		}
	})

	go consume(ctx, *brokers, *topicQuality, func(value []byte) {
		var e events.QualityEvent
		if err := json.Unmarshal(value, &e); err != nil {
			log.Printf("bad quality event: %v", err)
			return
		}
		fmt.Printf(".. v%d completeness %.0f%% confidence %.2f missing %v\n",
			e.Version, e.Quality.Completeness*100, e.Quality.Confidence, e.Quality.MissingFields)
	})

	log.Printf("encounter viewer connected to %s", *brokers)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
