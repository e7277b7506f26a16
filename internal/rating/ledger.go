package rating

import (
	"math"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// Config holds the tunable constants of the trophy algorithm. All values are
// plain integers; the ledger itself never reads configuration globally.
type Config struct {
	WinBase           int
	LossBase          int
	UnderdogThreshold int
	UnderdogBonus     int
	FavoritePenalty   int
	StreakBonus       int
	MaxStreakBonus    int
	MinTrophies       int
	WalkoverAward     int
	EloK              int
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		WinBase:           30,
		LossBase:          20,
		UnderdogThreshold: 200,
		UnderdogBonus:     15,
		FavoritePenalty:   10,
		StreakBonus:       5,
		MaxStreakBonus:    25,
		MinTrophies:       0,
		WalkoverAward:     30,
		EloK:              32,
	}
}

// Breakdown itemizes a single trophy delta for display.
type Breakdown struct {
	Base          int `json:"base"`
	UnderdogBonus int `json:"underdogBonus"`
	FavoriteBonus int `json:"favoriteBonus"`
	StreakBonus   int `json:"streakBonus"`
	Total         int `json:"total"`
}

// Ledger computes rating adjustments from match outcomes. It is a pure
// calculator: no shared mutable state, no side effects.
type Ledger struct {
	cfg Config
}

func NewLedger(cfg Config) *Ledger {
	return &Ledger{cfg: cfg}
}

// ComputeDelta calculates one side's trophy change. currentStreak is the win
// streak entering the match; the streak bonus only kicks in once the new
// streak exceeds one win.
func (l *Ledger) ComputeDelta(playerTrophies, opponentTrophies int, won bool, currentStreak int) Breakdown {
	diff := opponentTrophies - playerTrophies

	if won {
		b := Breakdown{Base: l.cfg.WinBase}
		if diff >= l.cfg.UnderdogThreshold {
			b.UnderdogBonus = l.cfg.UnderdogBonus
		}
		newStreak := currentStreak + 1
		if newStreak > 1 {
			bonus := (newStreak - 1) * l.cfg.StreakBonus
			if bonus > l.cfg.MaxStreakBonus {
				bonus = l.cfg.MaxStreakBonus
			}
			b.StreakBonus = bonus
		}
		b.Total = b.Base + b.UnderdogBonus + b.StreakBonus
		return b
	}

	b := Breakdown{Base: -l.cfg.LossBase}
	if diff <= -l.cfg.UnderdogThreshold {
		b.FavoriteBonus = -l.cfg.FavoritePenalty
	}
	b.Total = b.Base + b.FavoriteBonus
	return b
}

// Outcome is the full per-player result of processing a match.
type Outcome struct {
	PreviousTrophies int
	NewTrophies      int
	Change           int
	PreviousLeague   League
	NewLeague        League
	Promoted         bool
	Demoted          bool
	WinStreak        int
	Breakdown        Breakdown
}

// ProcessMatchResult applies ComputeDelta to both sides of a finished match,
// clamps new ratings at the floor, and resolves league transitions. On a draw
// both deltas are zero and both streaks reset.
func (l *Ledger) ProcessMatchResult(winnerTrophies, loserTrophies, winnerStreak int, draw bool) (winner, loser Outcome) {
	if draw {
		return l.drawOutcome(winnerTrophies), l.drawOutcome(loserTrophies)
	}

	wb := l.ComputeDelta(winnerTrophies, loserTrophies, true, winnerStreak)
	lb := l.ComputeDelta(loserTrophies, winnerTrophies, false, 0)

	winner = l.applied(winnerTrophies, wb)
	winner.WinStreak = winnerStreak + 1
	winner.Demoted = false
	winner.Promoted = winner.NewLeague.ID != winner.PreviousLeague.ID && winner.NewTrophies > winner.PreviousTrophies

	loser = l.applied(loserTrophies, lb)
	loser.WinStreak = 0
	loser.Promoted = false
	loser.Demoted = loser.NewLeague.ID != loser.PreviousLeague.ID && loser.NewTrophies < loser.PreviousTrophies
	return winner, loser
}

// Walkover resolves an abandoned match: the remaining player gets a fixed
// award, the leaver the symmetric penalty, regardless of the in-game score.
func (l *Ledger) Walkover(stayerTrophies, leaverTrophies, stayerStreak int) (stayer, leaver Outcome) {
	award := l.cfg.WalkoverAward
	stayer = l.applied(stayerTrophies, Breakdown{Base: award, Total: award})
	stayer.WinStreak = stayerStreak + 1
	leaver = l.applied(leaverTrophies, Breakdown{Base: -award, Total: -award})
	leaver.WinStreak = 0
	leaver.Demoted = leaver.NewLeague.ID != leaver.PreviousLeague.ID && leaver.NewTrophies < leaver.PreviousTrophies
	return stayer, leaver
}

func (l *Ledger) applied(trophies int, b Breakdown) Outcome {
	next := trophies + b.Total
	if next < l.cfg.MinTrophies {
		next = l.cfg.MinTrophies
	}
	return Outcome{
		PreviousTrophies: trophies,
		NewTrophies:      next,
		Change:           next - trophies,
		PreviousLeague:   LeagueFor(trophies),
		NewLeague:        LeagueFor(next),
		Breakdown:        b,
	}
}

func (l *Ledger) drawOutcome(trophies int) Outcome {
	league := LeagueFor(trophies)
	return Outcome{
		PreviousTrophies: trophies,
		NewTrophies:      trophies,
		PreviousLeague:   league,
		NewLeague:        league,
	}
}

// Update converts an outcome into the transportable rating update.
func (o Outcome) Update(playerID string) domain.RatingUpdate {
	return domain.RatingUpdate{
		PlayerID:         playerID,
		PreviousTrophies: o.PreviousTrophies,
		NewTrophies:      o.NewTrophies,
		Change:           o.Change,
		PreviousLeague:   o.PreviousLeague.ID,
		NewLeague:        o.NewLeague.ID,
		Promoted:         o.Promoted,
		Demoted:          o.Demoted,
		WinStreak:        o.WinStreak,
	}
}

// EloChange returns the K-factor expected-score adjustment used to keep the
// matchmaking skill estimate honest alongside trophies.
func (l *Ledger) EloChange(playerElo, opponentElo int, won bool) int {
	expected := 1 / (1 + math.Pow(10, float64(opponentElo-playerElo)/400))
	actual := 0.0
	if won {
		actual = 1.0
	}
	return int(math.Round(float64(l.cfg.EloK) * (actual - expected)))
}
