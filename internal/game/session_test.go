package game

import (
	"sync"
	"testing"
	"time"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	fired   bool
	stopped bool
}

// fakeScheduler records armed timers so tests can fire them by duration.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := &fakeTimer{d: d, fn: fn}
	f.mu.Lock()
	f.timers = append(f.timers, t)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		t.stopped = true
		f.mu.Unlock()
	}
}

func (f *fakeScheduler) fire(t *testing.T, d time.Duration) {
	t.Helper()
	f.mu.Lock()
	var timer *fakeTimer
	for _, tm := range f.timers {
		if !tm.fired && !tm.stopped && tm.d == d {
			timer = tm
			break
		}
	}
	if timer != nil {
		timer.fired = true
	}
	f.mu.Unlock()
	if timer == nil {
		t.Fatalf("no pending timer for %s", d)
	}
	timer.fn()
}

func (f *fakeScheduler) pending(d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tm := range f.timers {
		if !tm.fired && !tm.stopped && tm.d == d {
			return true
		}
	}
	return false
}

func matchPlayer(id string, grade, trophies int) domain.MatchPlayer {
	return domain.MatchPlayer{ID: id, Name: id, Trophies: trophies, Elo: 1200, Grade: grade, League: "gold"}
}

func mcq(id string, correct int) domain.Question {
	return domain.Question{
		ID:           id,
		Kind:         domain.MultipleChoice,
		Prompt:       "2+2?",
		Choices:      []string{"3", "4", "5", "6"},
		CorrectIndex: correct,
	}
}

func questionBank(n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, mcq("q", 1))
	}
	return qs
}

// newTestSession builds a grade-3 duel (10s question limit) over n questions.
func newTestSession(n int, opts ...SessionOption) (*Session, *fakeScheduler) {
	sched := &fakeScheduler{}
	base := []SessionOption{
		WithScheduler(sched),
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	}
	s := NewSession("m1",
		matchPlayer("p1", 3, 1000),
		matchPlayer("p2", 3, 1100),
		questionBank(n),
		DefaultConfig(),
		append(base, opts...)...,
	)
	return s, sched
}

// startGame drives both ready flags and the full countdown.
func startGame(t *testing.T, s *Session, sched *fakeScheduler) {
	t.Helper()
	if err := s.SetReady("p1"); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := s.SetReady("p2"); err != nil {
		t.Fatalf("ready p2: %v", err)
	}
	if got := s.Status(); got != StatusCountdown {
		t.Fatalf("expected countdown after both ready, got %s", got)
	}
	for i := 0; i < 3; i++ {
		sched.fire(t, time.Second)
		_ = s.Status() // let the actor process the tick before the next fire
	}
	if got := s.Status(); got != StatusActive {
		t.Fatalf("expected active after countdown, got %s", got)
	}
}

func TestBothReadyRunsCountdownIntoActiveGame(t *testing.T) {
	s, sched := newTestSession(3)
	if got := s.Status(); got != StatusWaiting {
		t.Fatalf("expected waiting, got %s", got)
	}
	if err := s.SetReady("p1"); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if got := s.Status(); got != StatusWaiting {
		t.Fatalf("one ready player must not start the countdown, got %s", got)
	}
	startGameReady(t, s, sched)
	q, index, limitMs, ok := s.CurrentQuestion()
	if !ok || index != 0 {
		t.Fatalf("expected question 0 active, got ok=%v index=%d", ok, index)
	}
	if limitMs != 10_000 {
		t.Fatalf("grade 3 duel must use a 10s limit, got %dms", limitMs)
	}
	if q.Choices[1] != "4" {
		t.Fatalf("unexpected sanitized question %+v", q)
	}
}

// startGameReady finishes the start sequence when p1 is already ready.
func startGameReady(t *testing.T, s *Session, sched *fakeScheduler) {
	t.Helper()
	if err := s.SetReady("p2"); err != nil {
		t.Fatalf("ready p2: %v", err)
	}
	for i := 0; i < 3; i++ {
		sched.fire(t, time.Second)
		_ = s.Status()
	}
	if got := s.Status(); got != StatusActive {
		t.Fatalf("expected active, got %s", got)
	}
}

func TestFastCorrectAnswerEarnsTimeBonus(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	// 1s of a 10s limit: 100 base + round(50 * 0.9) = 145.
	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 1000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out == nil || !out.Correct {
		t.Fatalf("expected a correct outcome, got %+v", out)
	}
	if out.PointsEarned != 145 {
		t.Fatalf("expected 145 points, got %d", out.PointsEarned)
	}
	if out.FieldPosition != 1 {
		t.Fatalf("a correct answer must push the field by one, got %d", out.FieldPosition)
	}
}

func TestSlowCorrectAnswerEarnsNoBonus(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 10_000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.PointsEarned != 100 {
		t.Fatalf("expected base points only, got %d", out.PointsEarned)
	}
}

func TestNegativeElapsedTimeIsClampedToMaxBonus(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: -10_000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.PointsEarned != 150 {
		t.Fatalf("a negative elapsed time must cap at the full bonus, got %d", out.PointsEarned)
	}
}

func TestWrongAnswerMovesFieldTowardOpponent(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 2, ElapsedMs: 500})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Correct || out.PointsEarned != 0 {
		t.Fatalf("wrong answers earn nothing, got %+v", out)
	}
	if out.FieldPosition != -1 {
		t.Fatalf("a wrong answer by p1 must move the field to -1, got %d", out.FieldPosition)
	}
	if out.CorrectIndex != 1 {
		t.Fatalf("outcome must reveal the correct index, got %d", out.CorrectIndex)
	}
}

func TestFifthPushScoresGoalAndResetsField(t *testing.T) {
	s, sched := newTestSession(6)
	startGame(t, s, sched)

	// With p2 gone, p1's lone answer advances each question.
	s.Disconnect("p2")

	var last *AnswerOutcome
	for i := 0; i < 5; i++ {
		out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: i, Value: 1, ElapsedMs: 500})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		last = out
	}
	if !last.GoalScored || last.ScoredBy != "p1" {
		t.Fatalf("fifth consecutive push must score a goal, got %+v", last)
	}
	if last.FieldPosition != 0 {
		t.Fatalf("field must reset to 0 after a goal, got %d", last.FieldPosition)
	}
	snap := s.Snapshot("p1")
	if snap.Players[0].Goals != 1 {
		t.Fatalf("expected one goal for p1, got %d", snap.Players[0].Goals)
	}
}

func TestDuplicateAnswerIsIgnored(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	if _, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 500}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 2, ElapsedMs: 600})
	if err != nil || out != nil {
		t.Fatalf("duplicate submission must be a silent no-op, got %+v, %v", out, err)
	}
	snap := s.Snapshot("")
	if snap.Players[0].Score != 145 {
		t.Fatalf("duplicate must not change the score, got %d", snap.Players[0].Score)
	}
}

func TestStaleQuestionIndexIsIgnored(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 2, Value: 1, ElapsedMs: 500})
	if err != nil || out != nil {
		t.Fatalf("stale index must be a silent no-op, got %+v, %v", out, err)
	}
}

func TestUnknownPlayerIsRejected(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	if _, err := s.Submit(domain.AnswerSubmission{PlayerID: "ghost", QuestionIndex: 0, Value: 1}); err != domain.ErrUnknownPlayer {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
	if err := s.SetReady("ghost"); err != domain.ErrUnknownPlayer {
		t.Fatalf("expected ErrUnknownPlayer from ready, got %v", err)
	}
}

func TestBothAnswersAdvanceTheQuestion(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 500})
	if _, index, _, _ := s.CurrentQuestion(); index != 0 {
		t.Fatalf("one answer must not advance, got index %d", index)
	}
	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p2", QuestionIndex: 0, Value: 3, ElapsedMs: 700})
	if _, index, _, _ := s.CurrentQuestion(); index != 1 {
		t.Fatalf("both answers must advance, got index %d", index)
	}
}

func TestQuestionTimerAdvancesWithoutAnswers(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	sched.fire(t, 10*time.Second)
	if _, index, _, _ := s.CurrentQuestion(); index != 1 {
		t.Fatalf("expected timeout to advance to question 1, got %d", index)
	}
}

func TestClockRunoutFinishesWithScoreWinner(t *testing.T) {
	s, sched := newTestSession(100)
	startGame(t, s, sched)

	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 500})
	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p2", QuestionIndex: 0, Value: 3, ElapsedMs: 700})

	for i := 0; i < 60; i++ {
		sched.fire(t, time.Second)
		_ = s.Status()
	}
	if got := s.Status(); got != StatusFinished {
		t.Fatalf("expected finished after 60 ticks, got %s", got)
	}
	res := s.Result()
	if res == nil || res.WinnerID != "p1" || res.Draw {
		t.Fatalf("p1 leads on score and must win, got %+v", res)
	}
	out, ok := res.Outcome("p1")
	if !ok || out.Correct != 1 || out.Score != 145 {
		t.Fatalf("unexpected p1 outcome %+v", out)
	}
}

func TestClockRunoutWithEqualTotalsIsADraw(t *testing.T) {
	s, sched := newTestSession(100)
	startGame(t, s, sched)

	for i := 0; i < 60; i++ {
		sched.fire(t, time.Second)
		_ = s.Status()
	}
	res := s.Result()
	if res == nil || !res.Draw || res.WinnerID != "" {
		t.Fatalf("expected a draw, got %+v", res)
	}
}

func TestExhaustedQuestionsFinishTheGame(t *testing.T) {
	s, sched := newTestSession(2)
	startGame(t, s, sched)

	for i := 0; i < 2; i++ {
		_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: i, Value: 1, ElapsedMs: 500})
		_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p2", QuestionIndex: i, Value: 3, ElapsedMs: 700})
	}
	if got := s.Status(); got != StatusFinished {
		t.Fatalf("expected finished after the last question, got %s", got)
	}
}

func TestGraceExpiryAbandonsAsWalkover(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	s.Disconnect("p2")
	sched.fire(t, 30*time.Second)
	if got := s.Status(); got != StatusAbandoned {
		t.Fatalf("expected abandoned after the grace window, got %s", got)
	}
	res := s.Result()
	if res == nil || !res.Abandoned || res.WinnerID != "p1" {
		t.Fatalf("the remaining player must win the walkover, got %+v", res)
	}
}

func TestReconnectInsideGraceResumesTheGame(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	s.Disconnect("p2")
	snap, err := s.Reconnect("p2")
	if err != nil || snap == nil {
		t.Fatalf("reconnect: %+v, %v", snap, err)
	}
	if snap.Status != StatusActive || snap.CurrentIndex != 0 {
		t.Fatalf("unexpected reconnect snapshot %+v", snap)
	}
	if sched.pending(30 * time.Second) {
		t.Fatalf("reconnect must cancel the grace timer")
	}
	if got := s.Status(); got != StatusActive {
		t.Fatalf("expected the game to keep running, got %s", got)
	}
}

func TestLateMessagesAfterTerminalStateAreNoOps(t *testing.T) {
	s, sched := newTestSession(3)
	startGame(t, s, sched)

	s.Disconnect("p2")
	sched.fire(t, 30*time.Second)

	out, err := s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1})
	if out != nil || err != nil {
		t.Fatalf("submit after end must be a no-op, got %+v, %v", out, err)
	}
	if err := s.SetReady("p1"); err != nil {
		t.Fatalf("ready after end must be a no-op, got %v", err)
	}
	s.Disconnect("p1")
	if got := s.Status(); got != StatusAbandoned {
		t.Fatalf("terminal status must not change, got %s", got)
	}
}

func TestAnswerEventsReachSubscribers(t *testing.T) {
	s, sched := newTestSession(3)
	events, cancel := s.Subscribe()
	defer cancel()
	startGame(t, s, sched)

	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 500})

	names := make(map[string]bool)
	for len(events) > 0 {
		names[(<-events).Name()] = true
	}
	for _, want := range []string{"countdown", "game_start", "question", "opponent_answered", "answer_result", "score_update"} {
		if !names[want] {
			t.Fatalf("missing %s event, saw %v", want, names)
		}
	}
}

func TestFinalizerFillsRatingsBeforeResultDelivery(t *testing.T) {
	finalize := func(r *domain.MatchResult) {
		r.Ratings = map[string]domain.RatingUpdate{
			"p1": {PlayerID: "p1", Change: 30},
			"p2": {PlayerID: "p2", Change: -20},
		}
	}
	s, sched := newTestSession(1, WithFinalizer(finalize))
	events, cancel := s.Subscribe()
	defer cancel()
	startGame(t, s, sched)

	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p1", QuestionIndex: 0, Value: 1, ElapsedMs: 500})
	_, _ = s.Submit(domain.AnswerSubmission{PlayerID: "p2", QuestionIndex: 0, Value: 3, ElapsedMs: 700})

	var end *GameEndEvent
	for len(events) > 0 {
		if e, ok := (<-events).(GameEndEvent); ok {
			end = &e
		}
	}
	if end == nil {
		t.Fatalf("expected a game_end event")
	}
	if end.Result.Ratings["p1"].Change != 30 {
		t.Fatalf("ratings must be attached before delivery, got %+v", end.Result.Ratings)
	}
}

func TestSnapshotSanitizesQuestions(t *testing.T) {
	questions := []domain.Question{
		mcq("q1", 2),
		{ID: "q2", Kind: domain.TrueFalse, Prompt: "The sun is a star.", CorrectBool: true},
		{ID: "q3", Kind: domain.NumberInput, Prompt: "7*8?", CorrectNumber: 56, Tolerance: 0},
	}
	sched := &fakeScheduler{}
	s := NewSession("m2",
		matchPlayer("p1", 3, 1000),
		matchPlayer("p2", 3, 1100),
		questions,
		DefaultConfig(),
		WithScheduler(sched),
	)
	snap := s.Snapshot("p1")
	if snap.TotalQuestions != 3 {
		t.Fatalf("expected 3 questions, got %d", snap.TotalQuestions)
	}
	tf := snap.Questions[1]
	if len(tf.Choices) != 2 || tf.Choices[0] != "True" {
		t.Fatalf("true/false must expose the fixed pair, got %+v", tf.Choices)
	}
	if snap.Questions[2].Choices != nil {
		t.Fatalf("number input must carry no choices, got %+v", snap.Questions[2].Choices)
	}
	s.Close()
}

func TestRegistryRoutesByMatchAndPlayer(t *testing.T) {
	reg := NewRegistry()
	s, _ := newTestSession(1)
	reg.Add(s, "p1", "p2")

	if got, err := reg.Get("m1"); err != nil || got != s {
		t.Fatalf("get by match: %v", err)
	}
	if got, err := reg.ForPlayer("p2"); err != nil || got != s {
		t.Fatalf("get by player: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one session, got %d", reg.Len())
	}

	reg.Remove("m1")
	if _, err := reg.Get("m1"); err != domain.ErrUnknownMatch {
		t.Fatalf("expected ErrUnknownMatch after remove, got %v", err)
	}
	if _, err := reg.ForPlayer("p1"); err != domain.ErrUnknownMatch {
		t.Fatalf("player routes must be dropped with the session, got %v", err)
	}
	s.Close()
}
