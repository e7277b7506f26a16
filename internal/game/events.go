package game

import "github.com/maluki2001/LearnKick2-sub002/internal/domain"

// Event is anything a session broadcasts to its subscribers. Name is the
// wire-level message type.
type Event interface {
	Name() string
}

// PlayerReadyEvent announces one slot flipping to ready.
type PlayerReadyEvent struct {
	PlayerID string `json:"playerId"`
}

func (PlayerReadyEvent) Name() string { return "player_ready" }

// CountdownEvent carries the pre-game countdown, 3..0.
type CountdownEvent struct {
	Seconds int `json:"seconds"`
}

func (CountdownEvent) Name() string { return "countdown" }

// GameStartEvent delivers the initial state as the session turns active.
type GameStartEvent struct {
	State Snapshot `json:"state"`
}

func (GameStartEvent) Name() string { return "game_start" }

// QuestionEvent presents the current question, answers stripped.
type QuestionEvent struct {
	Index       int                      `json:"index"`
	Question    domain.SanitizedQuestion `json:"question"`
	TimeLimitMs int                      `json:"timeLimitMs"`
}

func (QuestionEvent) Name() string { return "question" }

// OpponentAnsweredEvent signals that a player locked in an answer without
// revealing correctness. Transports must not echo it back to the answerer.
type OpponentAnsweredEvent struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex int    `json:"questionIndex"`
	ElapsedMs     int    `json:"elapsedMs"`
}

func (OpponentAnsweredEvent) Name() string { return "opponent_answered" }

// AnswerResultEvent is the resolved outcome of one submission.
type AnswerResultEvent struct {
	Outcome AnswerOutcome `json:"outcome"`
}

func (AnswerResultEvent) Name() string { return "answer_result" }

// ScoreUpdateEvent mirrors the running totals after each applied answer.
type ScoreUpdateEvent struct {
	Scores        map[string]int `json:"scores"`
	Goals         map[string]int `json:"goals"`
	FieldPosition int            `json:"fieldPosition"`
}

func (ScoreUpdateEvent) Name() string { return "score_update" }

// TimeUpdateEvent ticks once per second of remaining game time.
type TimeUpdateEvent struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

func (TimeUpdateEvent) Name() string { return "time_update" }

// TimeWarningEvent fires while the clock is inside the warning window.
type TimeWarningEvent struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

func (TimeWarningEvent) Name() string { return "time_warning" }

// OpponentDisconnectedEvent tells the remaining player how long the grace
// window lasts.
type OpponentDisconnectedEvent struct {
	PlayerID           string `json:"playerId"`
	GraceWindowSeconds int    `json:"graceWindowSeconds"`
}

func (OpponentDisconnectedEvent) Name() string { return "opponent_disconnected" }

// OpponentReconnectedEvent clears a pending disconnect.
type OpponentReconnectedEvent struct {
	PlayerID string `json:"playerId"`
}

func (OpponentReconnectedEvent) Name() string { return "opponent_reconnected" }

// GameEndEvent carries the final result, rating updates included.
type GameEndEvent struct {
	Result domain.MatchResult `json:"result"`
}

func (GameEndEvent) Name() string { return "game_end" }

// GameAbandonedEvent reports a walkover after a reconnect window expired.
type GameAbandonedEvent struct {
	WinnerID string             `json:"winnerId"`
	Reason   string             `json:"reason"`
	Result   domain.MatchResult `json:"result"`
}

func (GameAbandonedEvent) Name() string { return "game_abandoned" }
