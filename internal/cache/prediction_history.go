package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"mushroom-classifier/internal/model"
)

// PredictionHistory keeps the latest predictions of each user in a capped
// Redis list that expires when the user goes quiet.
type PredictionHistory struct {
	client redisv9.Cmdable
	ttl    time.Duration
	size   int
}

func NewPredictionHistory(client redisv9.Cmdable, ttl time.Duration, size int) *PredictionHistory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if size <= 0 {
		size = 10
	}
	return &PredictionHistory{
		client: client,
		ttl:    ttl,
		size:   size,
	}
}

func (h *PredictionHistory) Record(ctx context.Context, p model.Prediction) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction failed: %w", err)
	}

	key := h.key(p.UserID)
	_, err = h.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(h.size-1))
		pipe.Expire(ctx, key, h.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record prediction failed: %w", err)
	}
	return nil
}

// Recent returns the newest predictions first.
func (h *PredictionHistory) Recent(ctx context.Context, userID uint) ([]model.Prediction, error) {
	raw, err := h.client.LRange(ctx, h.key(userID), 0, int64(h.size-1)).Result()
	if err == redisv9.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis list predictions failed: %w", err)
	}

	out := make([]model.Prediction, 0, len(raw))
	for _, item := range raw {
		var p model.Prediction
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (h *PredictionHistory) key(userID uint) string {
	return fmt.Sprintf("predictions:recent:%d", userID)
}
