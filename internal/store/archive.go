// Package store archives finalized sessions to Redis: the locked-span
// transcript and the final entity set, written once at session end. The
// pipeline itself performs no storage I/O; the command wires this sink.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
)

// Config holds archive settings.
type Config struct {
	Addr   string
	Prefix string
	TTL    time.Duration
}

// Archive writes finalized sessions to Redis.
type Archive struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates an Archive. The connection is verified lazily; Ping checks
// reachability.
func New(cfg Config) *Archive {
	return &Archive{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logging.WithComponent("archive"),
	}
}

// Ping verifies the Redis connection.
func (a *Archive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Save writes the session's transcript and entity set. Both keys carry
// the same TTL so a session expires atomically from the reader's view.
func (a *Archive) Save(ctx context.Context, sessionID string, transcript []models.ReconciledSpan, entities []*models.ClinicalEntity) error {
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("marshaling entities: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.Set(ctx, a.key(sessionID, "transcript"), transcriptJSON, a.ttl)
	pipe.Set(ctx, a.key(sessionID, "entities"), entitiesJSON, a.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archiving session %s: %w", sessionID, err)
	}

	a.logger.Info().
		Str("sessionId", sessionID).
		Int("spans", len(transcript)).
		Int("entities", len(entities)).
		Msg("session archived")
	return nil
}

// LoadTranscript reads an archived transcript.
func (a *Archive) LoadTranscript(ctx context.Context, sessionID string) ([]models.ReconciledSpan, error) {
	data, err := a.client.Get(ctx, a.key(sessionID, "transcript")).Bytes()
	if err != nil {
		return nil, fmt.Errorf("loading transcript %s: %w", sessionID, err)
	}
	var out []models.ReconciledSpan
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding transcript %s: %w", sessionID, err)
	}
	return out, nil
}

// LoadEntities reads an archived entity set.
func (a *Archive) LoadEntities(ctx context.Context, sessionID string) ([]*models.ClinicalEntity, error) {
	data, err := a.client.Get(ctx, a.key(sessionID, "entities")).Bytes()
	if err != nil {
		return nil, fmt.Errorf("loading entities %s: %w", sessionID, err)
	}
	var out []*models.ClinicalEntity
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding entities %s: %w", sessionID, err)
	}
	return out, nil
}

// Close releases the Redis connection.
func (a *Archive) Close() error {
	return a.client.Close()
}

func (a *Archive) key(sessionID, suffix string) string {
	return a.prefix + sessionID + ":" + suffix
}
