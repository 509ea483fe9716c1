package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/pkg/logger"
)

// Client caches prediction responses so repeated predicts for the same
// planet skip the inference pipeline.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis prediction cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func predictionKey(planetID uint, detailed bool) string {
	return fmt.Sprintf("prediction:%d:detailed=%t", planetID, detailed)
}

// SetPrediction stores a prediction response under the planet's key.
func (c *Client) SetPrediction(ctx context.Context, planetID uint, detailed bool, response any) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	if err := c.client.Set(ctx, predictionKey(planetID, detailed), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set prediction cache: %w", err)
	}

	logger.Debug("Prediction cached", zap.Uint("planet_id", planetID), zap.Bool("detailed", detailed))
	return nil
}

// GetPrediction loads a cached prediction response into out, reporting
// whether the key was present.
func (c *Client) GetPrediction(ctx context.Context, planetID uint, detailed bool, out any) (bool, error) {
	data, err := c.client.Get(ctx, predictionKey(planetID, detailed)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached prediction: %w", err)
	}

	logger.Debug("Prediction cache hit", zap.Uint("planet_id", planetID))
	return true, nil
}

// InvalidatePredictions clears all cached predictions, used after retraining
// swaps the active model.
func (c *Client) InvalidatePredictions(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "prediction:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Prediction cache invalidated")
	return nil
}
