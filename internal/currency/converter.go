package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/virtualwallet/backend/internal/observability"
	"go.uber.org/zap"
)

const cacheName = "fx_rate"

// RateSource returns the exchange rate for a currency pair.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Converter converts amounts between currencies. Rates are cached in Redis
// under fx:FROM:TO when a client is configured.
type Converter struct {
	source  RateSource
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewConverter(source RateSource, rdb *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Converter {
	return &Converter{
		source:  source,
		redis:   rdb,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Convert returns amount expressed in to, rounded to cents. Matching codes
// are returned unchanged without a lookup.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	rate, err := c.rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), nil
}

func (c *Converter) rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := fmt.Sprintf("fx:%s:%s", from, to)

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			if rate, perr := decimal.NewFromString(cached); perr == nil {
				c.metrics.IncrCacheHit(cacheName)
				return rate, nil
			}
			c.logger.Warn("discarding malformed cached rate", zap.String("key", key))
		case err != redis.Nil:
			c.logger.Warn("rate cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.IncrCacheMiss(cacheName)
	}

	rate, err := c.source.Rate(ctx, from, to)
	if err != nil {
		c.metrics.IncrExternalError("exchange_rate")
		return decimal.Zero, err
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, rate.String(), c.ttl).Err(); err != nil {
			c.logger.Warn("rate cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return rate, nil
}
