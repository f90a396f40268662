package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/common/metrics"
	"admachine-studio/modules/creative"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Usage - per-client generation counter stored in Redis
type Usage struct {
	ClientID    string    `json:"clientId"`
	UsedCount   int       `json:"usedCount"`
	FirstUsedAt time.Time `json:"firstUsedAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

// Limiter - caps AI generations per client id. Without Redis every call is allowed.
type Limiter struct {
	rdb *redis.Client
	max int
	ttl time.Duration
	log zerolog.Logger
}

func NewLimiter(rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *Limiter {
	l := &Limiter{
		rdb: rdb,
		max: cfg.MaxGuestGenerations,
		ttl: cfg.GuestLimitTTL,
		log: log.With().Str("component", "quota").Logger(),
	}
	if rdb == nil {
		l.log.Warn().Msg("⚠️ [Quota] Redis not configured - generation limit disabled")
	}
	return l
}

func (l *Limiter) Enabled() bool {
	return l.rdb != nil && l.max > 0
}

func key(clientID string) string {
	return fmt.Sprintf("guest:usage:%s", clientID)
}

// Check - current usage and whether the limit is reached
func (l *Limiter) Check(ctx context.Context, clientID string) (*Usage, bool, error) {
	if !l.Enabled() {
		return &Usage{ClientID: clientID}, false, nil
	}

	data, err := l.rdb.Get(ctx, key(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		now := time.Now()
		return &Usage{ClientID: clientID, FirstUsedAt: now, LastUsedAt: now}, false, nil
	}
	if err != nil {
		l.log.Warn().Err(err).Msg("⚠️ [Quota] Redis error")
		return nil, false, err
	}

	var usage Usage
	if err := json.Unmarshal([]byte(data), &usage); err != nil {
		l.log.Warn().Err(err).Str("client", clientID).Msg("⚠️ [Quota] Failed to parse usage")
		return nil, false, err
	}
	return &usage, usage.UsedCount >= l.max, nil
}

// Allow - ErrQuotaExceeded once the client used up its generations
func (l *Limiter) Allow(ctx context.Context, clientID string) error {
	_, reached, err := l.Check(ctx, clientID)
	if err != nil {
		// a flaky quota store must not block generation
		l.log.Warn().Err(err).Str("client", clientID).Msg("⚠️ [Quota] Check failed, allowing request")
		return nil
	}
	if reached {
		metrics.QuotaRejections.Inc()
		l.log.Info().Str("client", clientID).Int("limit", l.max).Msg("🚫 [Quota] Limit reached")
		return creative.ErrQuotaExceeded
	}
	return nil
}

// Increment - count one generation; the TTL restarts on every write
func (l *Limiter) Increment(ctx context.Context, clientID string) (*Usage, error) {
	if !l.Enabled() {
		return &Usage{ClientID: clientID, UsedCount: 1}, nil
	}

	usage, _, err := l.Check(ctx, clientID)
	if err != nil {
		return nil, err
	}

	usage.UsedCount++
	usage.LastUsedAt = time.Now()
	if usage.FirstUsedAt.IsZero() {
		usage.FirstUsedAt = usage.LastUsedAt
	}

	data, err := json.Marshal(usage)
	if err != nil {
		return nil, err
	}
	if err := l.rdb.Set(ctx, key(clientID), data, l.ttl).Err(); err != nil {
		l.log.Warn().Err(err).Msg("⚠️ [Quota] Failed to save usage")
		return nil, err
	}

	l.log.Info().
		Str("client", clientID).
		Int("used", usage.UsedCount).
		Int("limit", l.max).
		Msg("📊 [Quota] Usage updated")
	return usage, nil
}
