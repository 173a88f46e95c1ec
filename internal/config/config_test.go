package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	envVars := []string{
		"SERVICE_NAME", "FEED_PORT", "METRICS_PORT",
		"SEGMENTER_WINDOW_DURATION", "SEGMENTER_OVERLAP",
		"TIER_FAST_PROVIDER", "TIER_FAST_TIMEOUT",
		"TIER_ACCURATE_TIMEOUT", "TIER_CORRECTED_TIMEOUT",
		"RECONCILER_DEBOUNCE", "COMPREHEND_LOOKBACK_SPANS",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "REDIS_ENABLED", "LOG_LEVEL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Service.Name != "clinical-scribe-service" {
		t.Errorf("expected default service name, got %s", cfg.Service.Name)
	}
	if cfg.Segmenter.WindowDuration != 2*time.Second {
		t.Errorf("expected default window duration 2s, got %v", cfg.Segmenter.WindowDuration)
	}
	if cfg.Segmenter.Overlap != 0.20 {
		t.Errorf("expected default overlap 0.20, got %v", cfg.Segmenter.Overlap)
	}
	if cfg.Tiers.Fast.Provider != "mock" {
		t.Errorf("expected default fast provider 'mock', got %s", cfg.Tiers.Fast.Provider)
	}
	if cfg.Tiers.Fast.Timeout != 150*time.Millisecond {
		t.Errorf("expected default fast timeout 150ms, got %v", cfg.Tiers.Fast.Timeout)
	}
	if cfg.Tiers.Accurate.Timeout != 2*time.Second {
		t.Errorf("expected default accurate timeout 2s, got %v", cfg.Tiers.Accurate.Timeout)
	}
	if cfg.Reconciler.Debounce != 150*time.Millisecond {
		t.Errorf("expected default debounce 150ms, got %v", cfg.Reconciler.Debounce)
	}
	if cfg.Comprehend.LookbackSpans != 50 {
		t.Errorf("expected default lookback 50 spans, got %d", cfg.Comprehend.LookbackSpans)
	}
	if cfg.Comprehend.LookbackAge != 5*time.Minute {
		t.Errorf("expected default lookback age 5m, got %v", cfg.Comprehend.LookbackAge)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_NAME", "scribe-test")
	os.Setenv("SEGMENTER_WINDOW_DURATION", "1.5s")
	os.Setenv("SEGMENTER_OVERLAP", "0.25")
	os.Setenv("TIER_FAST_PROVIDER", "google")
	os.Setenv("TIER_FAST_TIMEOUT", "100ms")
	os.Setenv("RECONCILER_DEBOUNCE", "200ms")
	os.Setenv("COMPREHEND_LOOKBACK_SPANS", "25")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	defer func() {
		for _, v := range []string{
			"SERVICE_NAME", "SEGMENTER_WINDOW_DURATION", "SEGMENTER_OVERLAP",
			"TIER_FAST_PROVIDER", "TIER_FAST_TIMEOUT", "RECONCILER_DEBOUNCE",
			"COMPREHEND_LOOKBACK_SPANS", "KAFKA_ENABLED", "KAFKA_BROKERS",
		} {
			os.Unsetenv(v)
		}
	}()

	cfg := Load()

	if cfg.Service.Name != "scribe-test" {
		t.Errorf("expected 'scribe-test', got %s", cfg.Service.Name)
	}
	if cfg.Segmenter.WindowDuration != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", cfg.Segmenter.WindowDuration)
	}
	if cfg.Segmenter.Overlap != 0.25 {
		t.Errorf("expected 0.25, got %v", cfg.Segmenter.Overlap)
	}
	if cfg.Tiers.Fast.Provider != "google" {
		t.Errorf("expected 'google', got %s", cfg.Tiers.Fast.Provider)
	}
	if cfg.Tiers.Fast.Timeout != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", cfg.Tiers.Fast.Timeout)
	}
	if cfg.Reconciler.Debounce != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", cfg.Reconciler.Debounce)
	}
	if cfg.Comprehend.LookbackSpans != 25 {
		t.Errorf("expected 25, got %d", cfg.Comprehend.LookbackSpans)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	os.Setenv("SEGMENTER_WINDOW_DURATION", "not-a-duration")
	os.Setenv("COMPREHEND_LOOKBACK_SPANS", "many")
	os.Setenv("SEGMENTER_OVERLAP", "wide")
	defer func() {
		os.Unsetenv("SEGMENTER_WINDOW_DURATION")
		os.Unsetenv("COMPREHEND_LOOKBACK_SPANS")
		os.Unsetenv("SEGMENTER_OVERLAP")
	}()

	cfg := Load()

	if cfg.Segmenter.WindowDuration != 2*time.Second {
		t.Errorf("expected fallback 2s, got %v", cfg.Segmenter.WindowDuration)
	}
	if cfg.Comprehend.LookbackSpans != 50 {
		t.Errorf("expected fallback 50, got %d", cfg.Comprehend.LookbackSpans)
	}
	if cfg.Segmenter.Overlap != 0.20 {
		t.Errorf("expected fallback 0.20, got %v", cfg.Segmenter.Overlap)
	}
}
