package domain

import "time"

// QueueStatus tracks a queued player's lifecycle inside the matchmaking queue.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueMatched   QueueStatus = "matched"
	QueueReady     QueueStatus = "ready"
	QueueCancelled QueueStatus = "cancelled"
)

// MatchQuality is a coarse label for how well two queued players fit together.
type MatchQuality string

const (
	QualityPerfect MatchQuality = "perfect"
	QualityGood    MatchQuality = "good"
	QualityFair    MatchQuality = "fair"
	QualityAny     MatchQuality = "any"
)

// Rank returns an ordering value for tie-breaking (higher is better).
func (q MatchQuality) Rank() int {
	switch q {
	case QualityPerfect:
		return 4
	case QualityGood:
		return 3
	case QualityFair:
		return 2
	default:
		return 1
	}
}

// QueuedPlayer is a player waiting for an opponent. SchoolID is empty when
// the player has no school affiliation.
type QueuedPlayer struct {
	ID       string
	Name     string
	Trophies int
	Elo      int
	Grade    int
	SchoolID string
	Language string
	JoinedAt time.Time
	Status   QueueStatus
}

// MatchPlayer is the identity and rating snapshot a duel session keeps per slot.
type MatchPlayer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
	Elo      int    `json:"elo"`
	Grade    int    `json:"grade"`
	League   string `json:"league"`
}

// AnswerSubmission is the transient input for one answer. Value carries the
// chosen index for choice questions and the typed number for number input.
type AnswerSubmission struct {
	PlayerID      string
	QuestionIndex int
	Value         float64
	ElapsedMs     int
}

// PlayerOutcome is one side's tally in a finished match.
type PlayerOutcome struct {
	PlayerID string `json:"playerId"`
	Correct  int    `json:"correct"`
	Goals    int    `json:"goals"`
	Score    int    `json:"score"`
}

// RatingUpdate captures the before/after rating of one player for one match.
type RatingUpdate struct {
	PlayerID         string `json:"playerId"`
	PreviousTrophies int    `json:"previousTrophies"`
	NewTrophies      int    `json:"newTrophies"`
	Change           int    `json:"change"`
	PreviousLeague   string `json:"previousLeague"`
	NewLeague        string `json:"newLeague"`
	Promoted         bool   `json:"promoted"`
	Demoted          bool   `json:"demoted"`
	WinStreak        int    `json:"winStreak"`
}

// MatchResult is produced exactly once per duel session. WinnerID is empty on
// a draw. Ratings is keyed by player id and filled in by the rating ledger
// before the result is delivered.
type MatchResult struct {
	MatchID   string                  `json:"matchId"`
	WinnerID  string                  `json:"winnerId,omitempty"`
	Draw      bool                    `json:"draw"`
	Abandoned bool                    `json:"abandoned"`
	Players   []PlayerOutcome         `json:"players"`
	Ratings   map[string]RatingUpdate `json:"ratings,omitempty"`
	Duration  time.Duration           `json:"duration"`
}

// Outcome returns the tally for the given player, if present.
func (r MatchResult) Outcome(playerID string) (PlayerOutcome, bool) {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return PlayerOutcome{}, false
}

// PlayerRating is the persisted skill state of one player in the rating store.
type PlayerRating struct {
	PlayerID  string `json:"playerId"`
	Trophies  int    `json:"trophies"`
	Elo       int    `json:"elo"`
	WinStreak int    `json:"winStreak"`
}

// DefaultRating is the state of a player who has never finished a match.
func DefaultRating(playerID string) PlayerRating {
	return PlayerRating{PlayerID: playerID, Trophies: 0, Elo: 1200}
}
