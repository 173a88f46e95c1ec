// Package app assembles the service from configuration: logging, the
// event publisher, the optional session archive, the live feed, and the
// observability server, plus session construction from a configured
// provider stack.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/config"
	"clinical-scribe-service/internal/events"
	"clinical-scribe-service/internal/feed"
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/service/comprehend"
	"clinical-scribe-service/internal/service/quality"
	"clinical-scribe-service/internal/service/reconcile"
	"clinical-scribe-service/internal/service/safety"
	"clinical-scribe-service/internal/service/segment"
	"clinical-scribe-service/internal/service/session"
	"clinical-scribe-service/internal/service/stt"
	"clinical-scribe-service/internal/service/stt/correct"
	"clinical-scribe-service/internal/service/stt/google"
	"clinical-scribe-service/internal/service/stt/mock"
	"clinical-scribe-service/internal/service/vocab"
	"clinical-scribe-service/internal/store"
)

// Application holds the long-lived collaborators shared across sessions.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Configuration
	Publisher   *events.Publisher
	Archive     *store.Archive // nil when the archive is disabled
	Hub         *feed.Hub

	obs     *observability.Server
	feedSrv *http.Server
	closers []func() error
	logger  zerolog.Logger
}

// New builds the application. Logging is initialized here so every
// component constructed afterwards inherits the configured level.
func New(cfg *config.Configuration) *Application {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	app := &Application{
		StartupTime: time.Now(),
		Cfg:         cfg,
		Hub:         feed.NewHub(),
		logger:      logging.WithComponent("app"),
	}

	app.Publisher = events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicSpans:   cfg.Kafka.TopicSpans,
		TopicAlerts:  cfg.Kafka.TopicAlerts,
		TopicQuality: cfg.Kafka.TopicQuality,
		Principal:    cfg.Kafka.Principal,
	})
	app.closers = append(app.closers, app.Publisher.Close)

	if cfg.Redis.Enabled {
		app.Archive = store.New(store.Config{
			Addr:   cfg.Redis.Addr,
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Redis.TTL,
		})
		app.closers = append(app.closers, app.Archive.Close)
	}

	app.logger.Info().
		Str("service", cfg.Service.Name).
		Bool("kafka", cfg.Kafka.Enabled).
		Bool("redis", cfg.Redis.Enabled).
		Msg("application configured")
	return app
}

// NewSession builds a session over the given audio source using the
// configured provider stack.
func (a *Application) NewSession(ctx context.Context, src segment.Source) (*session.Session, error) {
	cfg := a.Cfg

	seg := segment.New(src, segment.Config{
		WindowDuration: cfg.Segmenter.WindowDuration,
		MinDuration:    cfg.Segmenter.MinDuration,
		MaxDuration:    cfg.Segmenter.MaxDuration,
		Overlap:        cfg.Segmenter.Overlap,
		LatencyHigh:    cfg.Segmenter.LatencyHigh,
		LatencyLow:     cfg.Segmenter.LatencyLow,
		AdaptCooldown:  cfg.Segmenter.AdaptCooldown,
		AdaptStep:      cfg.Segmenter.AdaptStep,
	}, time.Now())

	fast, err := a.runner(ctx, models.TierFast, cfg.Tiers.Fast)
	if err != nil {
		return nil, err
	}
	accurate, err := a.runner(ctx, models.TierAccurate, cfg.Tiers.Accurate)
	if err != nil {
		return nil, err
	}
	corrected, err := a.runner(ctx, models.TierCorrected, cfg.Tiers.Corrected)
	if err != nil {
		return nil, err
	}

	rec := reconcile.New(reconcile.Config{
		Debounce:      cfg.Reconciler.Debounce,
		FlushInterval: cfg.Reconciler.FlushInterval,
	})
	engine := comprehend.New(comprehend.Config{
		LookbackSpans:       cfg.Comprehend.LookbackSpans,
		LookbackAge:         cfg.Comprehend.LookbackAge,
		NegationWindow:      cfg.Comprehend.NegationWindow,
		ResolutionThreshold: cfg.Comprehend.ResolutionThreshold,
	})

	rules := safety.DefaultRules()
	if cfg.Safety.RulesPath != "" {
		rules, err = safety.LoadRules(cfg.Safety.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("loading safety rules: %w", err)
		}
	}
	annotator := safety.New(rules)
	scorer := quality.New(cfg.Quality.MinFieldConfidence)

	return session.New(seg, fast, accurate, corrected, rec, engine, annotator, scorer, a.Publisher, a.Hub), nil
}

// runner builds the tier runner over the configured provider. The
// corrected tier is always wrapped in the vocabulary correction pass.
func (a *Application) runner(ctx context.Context, tier models.Tier, tc config.TierConfig) (*stt.Runner, error) {
	var provider stt.Provider
	switch tc.Provider {
	case "mock", "":
		provider = mock.Tier(tier, mock.DefaultEncounter)
	case "google":
		p, err := google.New(ctx, google.Config{
			LanguageCode:    "en-US",
			VocabularyHints: vocab.Hints(),
			MaxAlternatives: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("building %s provider: %w", tier, err)
		}
		a.closers = append(a.closers, p.Close)
		provider = p
	default:
		return nil, fmt.Errorf("unknown provider %q for tier %s", tc.Provider, tier)
	}

	if tier == models.TierCorrected {
		provider = correct.New(provider)
	}

	return stt.NewRunner(stt.RunnerConfig{
		Tier:      tier,
		Timeout:   tc.Timeout,
		QueueSize: tc.QueueSize,
		MaxBehind: tc.MaxBehind,
	}, provider), nil
}

// Start launches the feed and observability servers and the hub loop.
// The feed serves the given session view.
func (a *Application) Start(view feed.SessionView) {
	go a.Hub.Run()

	a.obs = observability.NewServer(":" + a.Cfg.Service.MetricsPort)
	a.obs.Start()

	a.feedSrv = &http.Server{
		Addr:    ":" + a.Cfg.Service.FeedPort,
		Handler: feed.NewRouter(view, a.Hub),
	}
	go func() {
		a.logger.Info().Str("addr", a.feedSrv.Addr).Msg("live feed listening")
		if err := a.feedSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("feed server failed")
		}
	}()
}

// Shutdown stops the HTTP surfaces and closes the publisher, archive,
// and any cloud providers.
func (a *Application) Shutdown(ctx context.Context) {
	if a.feedSrv != nil {
		if err := a.feedSrv.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("feed server shutdown")
		}
	}
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("observability server shutdown")
		}
	}
	a.Hub.Close()

	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn().Err(err).Msg("closing component")
		}
	}
	a.logger.Info().Dur("uptime", time.Since(a.StartupTime)).Msg("application stopped")
}
