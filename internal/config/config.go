// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds service identity and HTTP surface settings.
type ServiceConfig struct {
	Name        string
	FeedPort    string
	MetricsPort string
}

// SegmenterConfig holds audio windowing settings.
type SegmenterConfig struct {
	WindowDuration time.Duration // initial window duration
	MinDuration    time.Duration
	MaxDuration    time.Duration
	Overlap        float64       // overlap fraction, 0.15-0.25
	LatencyHigh    time.Duration // shrink windows above this
	LatencyLow     time.Duration // grow windows below this
	AdaptCooldown  time.Duration
	AdaptStep      time.Duration
}

// TierConfig holds settings for one transcription producer.
type TierConfig struct {
	Provider  string // mock, google
	Timeout   time.Duration
	QueueSize int
	MaxBehind int // skip forward when this many windows behind
}

// TiersConfig holds settings for the three producers.
type TiersConfig struct {
	Fast      TierConfig
	Accurate  TierConfig
	Corrected TierConfig
}

// ReconcilerConfig holds reconciliation buffer settings.
type ReconcilerConfig struct {
	Debounce      time.Duration // divergent replacement debounce
	FlushInterval time.Duration // merge loop tick
}

// ComprehendConfig holds entity comprehension settings.
type ComprehendConfig struct {
	LookbackSpans       int
	LookbackAge         time.Duration
	NegationWindow      int // tokens scanned before a mention
	ResolutionThreshold float64
}

// SafetyConfig holds safety annotator settings.
type SafetyConfig struct {
	RulesPath string // optional YAML rule table; empty uses built-ins
}

// QualityConfig holds quality scorer settings.
type QualityConfig struct {
	MinFieldConfidence float64
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicSpans   string
	TopicAlerts  string
	TopicQuality string
	Principal    string
}

// RedisConfig holds the optional session archive settings.
type RedisConfig struct {
	Enabled bool
	Addr    string
	Prefix  string
	TTL     time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Configuration is the root configuration for the service.
type Configuration struct {
	Service       ServiceConfig
	Segmenter     SegmenterConfig
	Tiers         TiersConfig
	Reconciler    ReconcilerConfig
	Comprehend    ComprehendConfig
	Safety        SafetyConfig
	Quality       QualityConfig
	Kafka         KafkaConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Name:        envOrDefault("SERVICE_NAME", "clinical-scribe-service"),
			FeedPort:    envOrDefault("FEED_PORT", "8080"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Segmenter: SegmenterConfig{
			WindowDuration: envDuration("SEGMENTER_WINDOW_DURATION", 2*time.Second),
			MinDuration:    envDuration("SEGMENTER_MIN_DURATION", 1500*time.Millisecond),
			MaxDuration:    envDuration("SEGMENTER_MAX_DURATION", 3*time.Second),
			Overlap:        envFloat("SEGMENTER_OVERLAP", 0.20),
			LatencyHigh:    envDuration("SEGMENTER_LATENCY_HIGH", 1500*time.Millisecond),
			LatencyLow:     envDuration("SEGMENTER_LATENCY_LOW", 500*time.Millisecond),
			AdaptCooldown:  envDuration("SEGMENTER_ADAPT_COOLDOWN", 10*time.Second),
			AdaptStep:      envDuration("SEGMENTER_ADAPT_STEP", 250*time.Millisecond),
		},
		Tiers: TiersConfig{
			Fast: TierConfig{
				Provider:  envOrDefault("TIER_FAST_PROVIDER", "mock"),
				Timeout:   envDuration("TIER_FAST_TIMEOUT", 150*time.Millisecond),
				QueueSize: envInt("TIER_FAST_QUEUE", 8),
				MaxBehind: envInt("TIER_FAST_MAX_BEHIND", 4),
			},
			Accurate: TierConfig{
				Provider:  envOrDefault("TIER_ACCURATE_PROVIDER", "mock"),
				Timeout:   envDuration("TIER_ACCURATE_TIMEOUT", 2*time.Second),
				QueueSize: envInt("TIER_ACCURATE_QUEUE", 16),
				MaxBehind: envInt("TIER_ACCURATE_MAX_BEHIND", 8),
			},
			Corrected: TierConfig{
				Provider:  envOrDefault("TIER_CORRECTED_PROVIDER", "mock"),
				Timeout:   envDuration("TIER_CORRECTED_TIMEOUT", 5*time.Second),
				QueueSize: envInt("TIER_CORRECTED_QUEUE", 32),
				MaxBehind: envInt("TIER_CORRECTED_MAX_BEHIND", 16),
			},
		},
		Reconciler: ReconcilerConfig{
			Debounce:      envDuration("RECONCILER_DEBOUNCE", 150*time.Millisecond),
			FlushInterval: envDuration("RECONCILER_FLUSH_INTERVAL", 50*time.Millisecond),
		},
		Comprehend: ComprehendConfig{
			LookbackSpans:       envInt("COMPREHEND_LOOKBACK_SPANS", 50),
			LookbackAge:         envDuration("COMPREHEND_LOOKBACK_AGE", 5*time.Minute),
			NegationWindow:      envInt("COMPREHEND_NEGATION_WINDOW", 3),
			ResolutionThreshold: envFloat("COMPREHEND_RESOLUTION_THRESHOLD", 0.5),
		},
		Safety: SafetyConfig{
			RulesPath: envOrDefault("SAFETY_RULES_PATH", ""),
		},
		Quality: QualityConfig{
			MinFieldConfidence: envFloat("QUALITY_MIN_FIELD_CONFIDENCE", 0.5),
		},
		Kafka: KafkaConfig{
			Enabled:      envBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS", nil),
			TopicSpans:   envOrDefault("KAFKA_TOPIC_SPANS", "scribe.transcript.spans"),
			TopicAlerts:  envOrDefault("KAFKA_TOPIC_ALERTS", "scribe.safety.alerts"),
			TopicQuality: envOrDefault("KAFKA_TOPIC_QUALITY", "scribe.quality.snapshots"),
			Principal:    envOrDefault("SERVICE_PRINCIPAL", "svc-clinical-scribe"),
		},
		Redis: RedisConfig{
			Enabled: envBool("REDIS_ENABLED", false),
			Addr:    envOrDefault("REDIS_ADDR", "localhost:6379"),
			Prefix:  envOrDefault("REDIS_PREFIX", "scribe:session:"),
			TTL:     envDuration("REDIS_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return def
}
