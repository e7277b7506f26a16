package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// RatingStore persists player ratings as JSON values in Redis. Ratings never
// expire; they are the durable progression state of a player.
type RatingStore struct {
	client *redis.Client
}

func NewRatingStore(client *redis.Client) *RatingStore {
	return &RatingStore{client: client}
}

func (s *RatingStore) Get(ctx context.Context, playerID string) (domain.PlayerRating, error) {
	raw, err := s.client.Get(ctx, s.key(playerID)).Bytes()
	if err == redis.Nil {
		return domain.DefaultRating(playerID), nil
	}
	if err != nil {
		return domain.PlayerRating{}, fmt.Errorf("get rating: %w", err)
	}
	var r domain.PlayerRating
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.PlayerRating{}, fmt.Errorf("unmarshal rating: %w", err)
	}
	return r, nil
}

func (s *RatingStore) Put(ctx context.Context, r domain.PlayerRating) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	if err := s.client.Set(ctx, s.key(r.PlayerID), raw, 0).Err(); err != nil {
		return fmt.Errorf("put rating: %w", err)
	}
	return nil
}

func (s *RatingStore) key(playerID string) string {
	return "player:rating:" + playerID
}
