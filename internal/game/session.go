package game

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// Status is the duel session state machine. finished and abandoned are
// terminal; no transition leaves them.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

// PlayerSlot is one side of the duel.
type PlayerSlot struct {
	Player    domain.MatchPlayer `json:"player"`
	Ready     bool               `json:"ready"`
	Connected bool               `json:"connected"`
	Score     int                `json:"score"`
	Correct   int                `json:"correct"`
	Goals     int                `json:"goals"`
}

// AnswerOutcome is the resolved effect of one accepted submission.
type AnswerOutcome struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	CorrectIndex  int    `json:"correctIndex"`
	PointsEarned  int    `json:"pointsEarned"`
	FieldPosition int    `json:"newFieldPosition"`
	GoalScored    bool   `json:"goalScored"`
	ScoredBy      string `json:"scoredBy,omitempty"`
}

// Snapshot is a client-safe view of the session. Questions are always
// sanitized so a snapshot can never leak correctness data.
type Snapshot struct {
	MatchID          string                     `json:"matchId"`
	ViewerID         string                     `json:"viewerId,omitempty"`
	Status           Status                     `json:"status"`
	Players          []PlayerSlot               `json:"players"`
	CurrentIndex     int                        `json:"currentIndex"`
	TotalQuestions   int                        `json:"totalQuestions"`
	SecondsRemaining int                        `json:"secondsRemaining"`
	FieldPosition    int                        `json:"fieldPosition"`
	QuestionLimitMs  int                        `json:"questionLimitMs"`
	Questions        []domain.SanitizedQuestion `json:"questions"`
}

// Session runs one duel. All state below the inbox is owned by a single
// goroutine; client calls and timer callbacks alike are funneled through the
// inbox so a tick and an answer can never race.
type Session struct {
	matchID       string
	cfg           Config
	questionLimit time.Duration
	clock         func() time.Time
	sched         Scheduler
	log           *slog.Logger
	finalize      func(*domain.MatchResult)

	inbox   chan func()
	stopped chan struct{}

	// actor-owned state
	status        Status
	slots         [2]*PlayerSlot
	questions     []domain.Question
	current       int
	answered      map[string]bool
	fieldPos      int
	remaining     int
	countdown     int
	questionEpoch int
	startedAt     time.Time
	finishedAt    time.Time
	result        *domain.MatchResult

	cancelCountdown func()
	cancelQuestion  func()
	cancelTick      func()
	cancelGrace     map[string]func()

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock injects a deterministic time source.
func WithClock(clock func() time.Time) SessionOption {
	return func(s *Session) { s.clock = clock }
}

// WithScheduler injects a timer source, used by tests to fire timers by hand.
func WithScheduler(sched Scheduler) SessionOption {
	return func(s *Session) { s.sched = sched }
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithFinalizer registers the hook that fills in rating updates before the
// terminal result is broadcast.
func WithFinalizer(fn func(*domain.MatchResult)) SessionOption {
	return func(s *Session) { s.finalize = fn }
}

// NewSession creates a duel between two players over an ordered question
// list and starts its actor goroutine. The per-question limit follows the
// rounded average grade of the two players.
func NewSession(matchID string, p1, p2 domain.MatchPlayer, questions []domain.Question, cfg Config, opts ...SessionOption) *Session {
	avgGrade := int(math.Round(float64(p1.Grade+p2.Grade) / 2))
	s := &Session{
		matchID:       matchID,
		cfg:           cfg,
		questionLimit: cfg.QuestionTimeForGrade(avgGrade),
		clock:         time.Now,
		sched:         NewScheduler(),
		log:           slog.Default(),
		inbox:         make(chan func(), 64),
		stopped:       make(chan struct{}),
		status:        StatusWaiting,
		questions:     questions,
		current:       -1,
		answered:      make(map[string]bool),
		remaining:     int(cfg.GameDuration / time.Second),
		cancelGrace:   make(map[string]func()),
		subs:          make(map[chan Event]struct{}),
	}
	s.slots[0] = &PlayerSlot{Player: p1, Connected: true}
	s.slots[1] = &PlayerSlot{Player: p2, Connected: true}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *Session) MatchID() string { return s.matchID }

// QuestionLimit is the per-question time limit chosen for this match.
func (s *Session) QuestionLimit() time.Duration { return s.questionLimit }

func (s *Session) run() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.stopped:
			// Drain commands that raced with the terminal transition; each is
			// a no-op against a terminal status but may carry a reply channel.
			for {
				select {
				case fn := <-s.inbox:
					fn()
				default:
					return
				}
			}
		}
	}
}

// do delivers fn to the actor. Returns false once the session is terminal;
// late messages are expected and harmless.
func (s *Session) do(fn func()) bool {
	select {
	case <-s.stopped:
		return false
	case s.inbox <- fn:
		return true
	}
}

// Subscribe returns the session's event feed. Slow consumers lose the oldest
// buffered event rather than blocking the actor.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emit(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// SetReady marks a slot ready; when both slots are ready the countdown
// begins. Unknown ids fail, terminal sessions absorb the call.
func (s *Session) SetReady(playerID string) error {
	ch := make(chan error, 1)
	ok := s.do(func() {
		slot := s.slot(playerID)
		if slot == nil {
			ch <- domain.ErrUnknownPlayer
			return
		}
		if s.status != StatusWaiting {
			ch <- nil
			return
		}
		slot.Ready = true
		s.emit(PlayerReadyEvent{PlayerID: playerID})
		if s.slots[0].Ready && s.slots[1].Ready {
			s.beginCountdown()
		}
		ch <- nil
	})
	if !ok {
		return nil
	}
	return <-ch
}

// Submit applies an answer. Timing races are absorbed as (nil, nil):
// terminal session, stale question index, duplicate answer,
// or a session that is not active yet. When both players answer
// "simultaneously" the order is whichever command reaches the actor first.
func (s *Session) Submit(sub domain.AnswerSubmission) (*AnswerOutcome, error) {
	type resp struct {
		out *AnswerOutcome
		err error
	}
	ch := make(chan resp, 1)
	ok := s.do(func() {
		out, err := s.handleSubmit(sub)
		ch <- resp{out, err}
	})
	if !ok {
		return nil, nil
	}
	r := <-ch
	return r.out, r.err
}

func (s *Session) handleSubmit(sub domain.AnswerSubmission) (*AnswerOutcome, error) {
	slot := s.slot(sub.PlayerID)
	if slot == nil {
		return nil, domain.ErrUnknownPlayer
	}
	// A disconnected player may still have an answer in flight; accept it.
	if s.status != StatusActive {
		return nil, nil
	}
	if sub.QuestionIndex != s.current {
		return nil, nil
	}
	if s.answered[sub.PlayerID] {
		return nil, nil
	}
	s.answered[sub.PlayerID] = true

	question := s.questions[s.current]
	correct := question.Check(sub.Value)

	points := 0
	if correct {
		points = s.cfg.CorrectPoints
		limitMs := float64(s.questionLimit / time.Millisecond)
		// Client-reported timing is clamped to the question window; the bonus
		// stays within [0, TimeBonusMax].
		elapsed := math.Min(math.Max(float64(sub.ElapsedMs), 0), limitMs)
		points += int(math.Round(float64(s.cfg.TimeBonusMax) * (1 - elapsed/limitMs)))
		slot.Correct++
	}
	slot.Score += points

	// A correct answer pushes the field toward the answerer's attacking end;
	// a wrong one pushes it toward the opponent's.
	direction := 1
	if slot == s.slots[1] {
		direction = -1
	}
	if !correct {
		direction = -direction
	}
	s.fieldPos += direction
	if s.fieldPos > s.cfg.FieldBound {
		s.fieldPos = s.cfg.FieldBound
	}
	if s.fieldPos < -s.cfg.FieldBound {
		s.fieldPos = -s.cfg.FieldBound
	}

	goalScored := false
	scoredBy := ""
	if s.fieldPos >= s.cfg.FieldBound {
		s.slots[0].Goals++
		scoredBy = s.slots[0].Player.ID
		goalScored = true
	} else if s.fieldPos <= -s.cfg.FieldBound {
		s.slots[1].Goals++
		scoredBy = s.slots[1].Player.ID
		goalScored = true
	}
	if goalScored {
		s.fieldPos = 0
	}

	out := &AnswerOutcome{
		PlayerID:      sub.PlayerID,
		QuestionIndex: sub.QuestionIndex,
		Correct:       correct,
		CorrectIndex:  question.RevealIndex(),
		PointsEarned:  points,
		FieldPosition: s.fieldPos,
		GoalScored:    goalScored,
		ScoredBy:      scoredBy,
	}

	s.emit(OpponentAnsweredEvent{PlayerID: sub.PlayerID, QuestionIndex: sub.QuestionIndex, ElapsedMs: sub.ElapsedMs})
	s.emit(AnswerResultEvent{Outcome: *out})
	s.emit(ScoreUpdateEvent{
		Scores:        map[string]int{s.slots[0].Player.ID: s.slots[0].Score, s.slots[1].Player.ID: s.slots[1].Score},
		Goals:         map[string]int{s.slots[0].Player.ID: s.slots[0].Goals, s.slots[1].Player.ID: s.slots[1].Goals},
		FieldPosition: s.fieldPos,
	})

	if s.allConnectedAnswered() {
		s.advance()
	}
	return out, nil
}

func (s *Session) allConnectedAnswered() bool {
	any := false
	for _, slot := range s.slots {
		if !slot.Connected {
			continue
		}
		any = true
		if !s.answered[slot.Player.ID] {
			return false
		}
	}
	return any
}

// CurrentQuestion returns the sanitized question at the current index. ok is
// false unless the session is active.
func (s *Session) CurrentQuestion() (q domain.SanitizedQuestion, index, limitMs int, ok bool) {
	type resp struct {
		q       domain.SanitizedQuestion
		index   int
		limitMs int
		ok      bool
	}
	ch := make(chan resp, 1)
	delivered := s.do(func() {
		if s.status != StatusActive || s.current < 0 || s.current >= len(s.questions) {
			ch <- resp{}
			return
		}
		ch <- resp{
			q:       s.questions[s.current].Sanitized(),
			index:   s.current,
			limitMs: int(s.questionLimit / time.Millisecond),
			ok:      true,
		}
	})
	if !delivered {
		return domain.SanitizedQuestion{}, 0, 0, false
	}
	r := <-ch
	return r.q, r.index, r.limitMs, r.ok
}

// Disconnect marks a slot disconnected and arms the grace timer. Timers keep
// running: the game does not pause for a dropped connection.
func (s *Session) Disconnect(playerID string) {
	s.do(func() {
		slot := s.slot(playerID)
		if slot == nil || !slot.Connected {
			return
		}
		slot.Connected = false
		s.emit(OpponentDisconnectedEvent{
			PlayerID:           playerID,
			GraceWindowSeconds: int(s.cfg.ReconnectWindow / time.Second),
		})
		s.log.Info("player disconnected", "match", s.matchID, "player", playerID)

		if cancel, ok := s.cancelGrace[playerID]; ok {
			cancel()
		}
		s.cancelGrace[playerID] = s.sched.AfterFunc(s.cfg.ReconnectWindow, func() {
			s.graceExpired(playerID)
		})
	})
}

func (s *Session) graceExpired(playerID string) {
	s.do(func() {
		slot := s.slot(playerID)
		if slot == nil || slot.Connected {
			return
		}
		s.abandon(playerID)
	})
}

// Reconnect clears a pending disconnect inside the grace window and returns
// the viewer's snapshot. A nil snapshot signals a session that already ended.
func (s *Session) Reconnect(playerID string) (*Snapshot, error) {
	type resp struct {
		snap *Snapshot
		err  error
	}
	ch := make(chan resp, 1)
	ok := s.do(func() {
		slot := s.slot(playerID)
		if slot == nil {
			ch <- resp{nil, domain.ErrUnknownPlayer}
			return
		}
		if cancel, ok := s.cancelGrace[playerID]; ok {
			cancel()
			delete(s.cancelGrace, playerID)
		}
		if !slot.Connected {
			slot.Connected = true
			s.emit(OpponentReconnectedEvent{PlayerID: playerID})
			s.log.Info("player reconnected", "match", s.matchID, "player", playerID)
		}
		snap := s.snapshot(playerID)
		ch <- resp{&snap, nil}
	})
	if !ok {
		return nil, nil
	}
	r := <-ch
	return r.snap, r.err
}

// Snapshot returns the viewer-filtered state of the session. Works on
// terminal sessions too, since the actor state is quiescent after stop.
func (s *Session) Snapshot(viewerID string) Snapshot {
	ch := make(chan Snapshot, 1)
	if !s.do(func() { ch <- s.snapshot(viewerID) }) {
		return s.snapshot(viewerID)
	}
	return <-ch
}

// Status reports the current state machine position.
func (s *Session) Status() Status {
	ch := make(chan Status, 1)
	if !s.do(func() { ch <- s.status }) {
		return s.status
	}
	return <-ch
}

// Result returns the terminal result once the session has ended.
func (s *Session) Result() *domain.MatchResult {
	ch := make(chan *domain.MatchResult, 1)
	if !s.do(func() { ch <- s.result }) {
		return s.result
	}
	return <-ch
}

// Close cancels all timers and stops the actor without producing a result.
// Used for shutdown; a normally finished session stops itself.
func (s *Session) Close() {
	s.do(func() {
		s.clearTimers()
		s.stop()
	})
}

func (s *Session) slot(playerID string) *PlayerSlot {
	for _, slot := range s.slots {
		if slot.Player.ID == playerID {
			return slot
		}
	}
	return nil
}

func (s *Session) opponent(playerID string) *PlayerSlot {
	if s.slots[0].Player.ID == playerID {
		return s.slots[1]
	}
	return s.slots[0]
}

func (s *Session) beginCountdown() {
	s.status = StatusCountdown
	s.countdown = s.cfg.CountdownSeconds
	s.emit(CountdownEvent{Seconds: s.countdown})
	s.cancelCountdown = s.sched.AfterFunc(time.Second, s.countdownTick)
}

func (s *Session) countdownTick() {
	s.do(func() {
		if s.status != StatusCountdown {
			return
		}
		s.countdown--
		if s.countdown >= 0 {
			s.emit(CountdownEvent{Seconds: s.countdown})
		}
		if s.countdown <= 0 {
			s.startGame()
			return
		}
		s.cancelCountdown = s.sched.AfterFunc(time.Second, s.countdownTick)
	})
}

func (s *Session) startGame() {
	s.status = StatusActive
	s.startedAt = s.clock()
	s.current = 0
	s.emit(GameStartEvent{State: s.snapshot("")})
	s.log.Info("game started",
		"match", s.matchID,
		"player1", s.slots[0].Player.ID,
		"player2", s.slots[1].Player.ID,
		"questions", len(s.questions),
		"questionLimit", s.questionLimit)
	s.cancelTick = s.sched.AfterFunc(time.Second, s.gameTick)
	s.presentQuestion()
}

func (s *Session) presentQuestion() {
	if s.current >= len(s.questions) {
		s.finish()
		return
	}
	s.answered = make(map[string]bool)
	s.questionEpoch++
	epoch := s.questionEpoch
	s.emit(QuestionEvent{
		Index:       s.current,
		Question:    s.questions[s.current].Sanitized(),
		TimeLimitMs: int(s.questionLimit / time.Millisecond),
	})
	if s.cancelQuestion != nil {
		s.cancelQuestion()
	}
	s.cancelQuestion = s.sched.AfterFunc(s.questionLimit, func() {
		s.questionTimeout(epoch)
	})
}

func (s *Session) questionTimeout(epoch int) {
	s.do(func() {
		if s.status != StatusActive || epoch != s.questionEpoch {
			return
		}
		s.advance()
	})
}

// advance moves to the next question; past the last one the session ends.
// The current index is monotonically non-decreasing.
func (s *Session) advance() {
	s.current++
	s.presentQuestion()
}

func (s *Session) gameTick() {
	s.do(func() {
		if s.status != StatusActive {
			return
		}
		s.remaining--
		s.emit(TimeUpdateEvent{SecondsRemaining: s.remaining})
		if s.remaining > 0 && s.remaining <= s.cfg.TimeWarningAt {
			s.emit(TimeWarningEvent{SecondsRemaining: s.remaining})
		}
		if s.remaining <= 0 {
			s.finish()
			return
		}
		s.cancelTick = s.sched.AfterFunc(time.Second, s.gameTick)
	})
}

// finish resolves the winner by goals, then score, then draw.
func (s *Session) finish() {
	s.clearTimers()
	s.status = StatusFinished
	s.finishedAt = s.clock()

	winnerID := ""
	draw := false
	p1, p2 := s.slots[0], s.slots[1]
	switch {
	case p1.Goals > p2.Goals:
		winnerID = p1.Player.ID
	case p2.Goals > p1.Goals:
		winnerID = p2.Player.ID
	case p1.Score > p2.Score:
		winnerID = p1.Player.ID
	case p2.Score > p1.Score:
		winnerID = p2.Player.ID
	default:
		draw = true
	}

	result := s.buildResult(winnerID, draw, false)
	if s.finalize != nil {
		s.finalize(&result)
	}
	s.result = &result
	s.emit(GameEndEvent{Result: result})
	s.log.Info("game finished", "match", s.matchID, "winner", winnerID, "draw", draw)
	s.stop()
}

// abandon terminates the session as a walkover for the remaining player.
func (s *Session) abandon(leaverID string) {
	s.clearTimers()
	s.status = StatusAbandoned
	s.finishedAt = s.clock()

	winnerID := s.opponent(leaverID).Player.ID
	result := s.buildResult(winnerID, false, true)
	if s.finalize != nil {
		s.finalize(&result)
	}
	s.result = &result
	s.emit(GameAbandonedEvent{
		WinnerID: winnerID,
		Reason:   "opponent did not reconnect",
		Result:   result,
	})
	s.log.Info("game abandoned", "match", s.matchID, "winner", winnerID, "leaver", leaverID)
	s.stop()
}

func (s *Session) buildResult(winnerID string, draw, abandoned bool) domain.MatchResult {
	duration := time.Duration(0)
	if !s.startedAt.IsZero() {
		duration = s.finishedAt.Sub(s.startedAt)
	}
	players := make([]domain.PlayerOutcome, 0, 2)
	for _, slot := range s.slots {
		players = append(players, domain.PlayerOutcome{
			PlayerID: slot.Player.ID,
			Correct:  slot.Correct,
			Goals:    slot.Goals,
			Score:    slot.Score,
		})
	}
	return domain.MatchResult{
		MatchID:   s.matchID,
		WinnerID:  winnerID,
		Draw:      draw,
		Abandoned: abandoned,
		Players:   players,
		Duration:  duration,
	}
}

func (s *Session) clearTimers() {
	if s.cancelCountdown != nil {
		s.cancelCountdown()
		s.cancelCountdown = nil
	}
	if s.cancelQuestion != nil {
		s.cancelQuestion()
		s.cancelQuestion = nil
	}
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	for id, cancel := range s.cancelGrace {
		cancel()
		delete(s.cancelGrace, id)
	}
}

func (s *Session) stop() {
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
}

func (s *Session) snapshot(viewerID string) Snapshot {
	players := make([]PlayerSlot, 0, 2)
	for _, slot := range s.slots {
		players = append(players, *slot)
	}
	sanitized := make([]domain.SanitizedQuestion, 0, len(s.questions))
	for _, q := range s.questions {
		sanitized = append(sanitized, q.Sanitized())
	}
	return Snapshot{
		MatchID:          s.matchID,
		ViewerID:         viewerID,
		Status:           s.status,
		Players:          players,
		CurrentIndex:     s.current,
		TotalQuestions:   len(s.questions),
		SecondsRemaining: s.remaining,
		FieldPosition:    s.fieldPos,
		QuestionLimitMs:  int(s.questionLimit / time.Millisecond),
		Questions:        sanitized,
	}
}
