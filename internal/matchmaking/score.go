package matchmaking

import (
	"time"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// Config holds the matchmaking thresholds. Time thresholds are measured from
// the requesting player's enqueue time.
type Config struct {
	SameSchoolTimeout    time.Duration
	SameGradeTimeout     time.Duration
	AdjacentGradeTimeout time.Duration
	AnyMatchTimeout      time.Duration

	IdealTrophyDiff int
	GoodTrophyDiff  int
	FairTrophyDiff  int
	MaxTrophyDiff   int

	MaxQueueTime time.Duration
	// MinQueueTime smooths UX on the client side only; a match found earlier
	// is still honored.
	MinQueueTime time.Duration
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		SameSchoolTimeout:    10 * time.Second,
		SameGradeTimeout:     20 * time.Second,
		AdjacentGradeTimeout: 30 * time.Second,
		AnyMatchTimeout:      45 * time.Second,
		IdealTrophyDiff:      100,
		GoodTrophyDiff:       200,
		FairTrophyDiff:       400,
		MaxTrophyDiff:        1000,
		MaxQueueTime:         60 * time.Second,
		MinQueueTime:         3 * time.Second,
	}
}

// Score rates how well two queued players fit together. Deterministic and
// pure; higher is better, never negative.
func Score(a, b domain.QueuedPlayer, cfg Config) int {
	score := 100

	gradeDiff := abs(a.Grade - b.Grade)
	switch {
	case gradeDiff == 0:
		score += 50
	case gradeDiff == 1:
		score += 20
	case gradeDiff == 2:
		// neutral
	default:
		score -= 30
	}

	if a.SchoolID != "" && a.SchoolID == b.SchoolID {
		score += 30
	}

	trophyDiff := abs(a.Trophies - b.Trophies)
	switch {
	case trophyDiff <= cfg.IdealTrophyDiff:
		score += 40
	case trophyDiff <= cfg.GoodTrophyDiff:
		score += 25
	case trophyDiff <= cfg.FairTrophyDiff:
		score += 10
	case trophyDiff <= cfg.MaxTrophyDiff:
		// neutral
	default:
		score -= 20
	}

	if a.Language == b.Language {
		score += 15
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Quality derives the coarse match label from the raw differences. Two
// players without a school count as "same school" here, matching the score
// semantics players actually observe.
func Quality(a, b domain.QueuedPlayer, cfg Config) domain.MatchQuality {
	gradeDiff := abs(a.Grade - b.Grade)
	trophyDiff := abs(a.Trophies - b.Trophies)
	sameSchool := a.SchoolID == b.SchoolID

	if gradeDiff == 0 && trophyDiff <= cfg.IdealTrophyDiff && sameSchool {
		return domain.QualityPerfect
	}
	if gradeDiff == 0 && trophyDiff <= cfg.GoodTrophyDiff {
		return domain.QualityGood
	}
	if gradeDiff <= 1 && trophyDiff <= cfg.FairTrophyDiff {
		return domain.QualityFair
	}
	return domain.QualityAny
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
