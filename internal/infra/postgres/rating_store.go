package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// RatingStore persists player ratings in Postgres. Unknown players read as
// the default rating; writes upsert.
type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

func (s *RatingStore) Get(ctx context.Context, playerID string) (domain.PlayerRating, error) {
	r := domain.PlayerRating{PlayerID: playerID}
	err := s.pool.QueryRow(ctx,
		`SELECT trophies, elo, win_streak FROM player_ratings WHERE player_id=$1`,
		playerID,
	).Scan(&r.Trophies, &r.Elo, &r.WinStreak)
	if err == pgx.ErrNoRows {
		return domain.DefaultRating(playerID), nil
	}
	if err != nil {
		return domain.PlayerRating{}, fmt.Errorf("get rating: %w", err)
	}
	return r, nil
}

func (s *RatingStore) Put(ctx context.Context, r domain.PlayerRating) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO player_ratings (player_id, trophies, elo, win_streak, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (player_id) DO UPDATE
		 SET trophies=EXCLUDED.trophies, elo=EXCLUDED.elo, win_streak=EXCLUDED.win_streak, updated_at=now()`,
		r.PlayerID, r.Trophies, r.Elo, r.WinStreak,
	)
	if err != nil {
		return fmt.Errorf("put rating: %w", err)
	}
	return nil
}
