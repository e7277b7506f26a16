package memory

import (
	"context"
	"sync"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// RatingStore keeps player ratings in process memory. Unknown players start
// at the default rating.
type RatingStore struct {
	mu      sync.RWMutex
	ratings map[string]domain.PlayerRating
}

func NewRatingStore() *RatingStore {
	return &RatingStore{ratings: make(map[string]domain.PlayerRating)}
}

func (s *RatingStore) Get(_ context.Context, playerID string) (domain.PlayerRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.ratings[playerID]; ok {
		return r, nil
	}
	return domain.DefaultRating(playerID), nil
}

func (s *RatingStore) Put(_ context.Context, r domain.PlayerRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[r.PlayerID] = r
	return nil
}
