package app

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
	"github.com/maluki2001/LearnKick2-sub002/internal/game"
	"github.com/maluki2001/LearnKick2-sub002/internal/matchmaking"
	"github.com/maluki2001/LearnKick2-sub002/internal/rating"
)

// QuestionSource supplies the question list for a new duel.
type QuestionSource interface {
	Questions(ctx context.Context, grade int, language string, count int) ([]domain.Question, error)
}

// RatingStore persists player skill state. Get returns the default rating for
// an id it has never seen.
type RatingStore interface {
	Get(ctx context.Context, playerID string) (domain.PlayerRating, error)
	Put(ctx context.Context, r domain.PlayerRating) error
}

// Notifier delivers out-of-band messages to players who are not attached to a
// session yet. The WebSocket layer implements it.
type Notifier interface {
	MatchFound(playerID string, info MatchInfo)
	QueueTimeout(playerID string)
}

// JoinRequest is the client payload for entering the matchmaking queue.
type JoinRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Grade    int    `json:"grade"`
	SchoolID string `json:"schoolId,omitempty"`
	Language string `json:"language,omitempty"`
}

// MatchInfo is the match_found payload, oriented per recipient.
type MatchInfo struct {
	MatchID          string              `json:"matchId"`
	Player           domain.MatchPlayer  `json:"player"`
	Opponent         domain.MatchPlayer  `json:"opponent"`
	Quality          domain.MatchQuality `json:"quality"`
	QuestionLimitMs  int                 `json:"questionLimitMs"`
	CountdownSeconds int                 `json:"countdownSeconds"`
}

// Service ties the queue, the session registry, the question source and the
// rating ledger together. One instance serves all connections.
type Service struct {
	queue     *matchmaking.Queue
	registry  *game.Registry
	questions QuestionSource
	ratings   RatingStore
	ledger    *rating.Ledger
	gameCfg   game.Config
	qCount    int
	pumpEvery time.Duration
	sessOpts  []game.SessionOption
	log       *slog.Logger

	notifyMu sync.RWMutex
	notifier Notifier

	cron gocron.Scheduler
}

// Option configures a Service.
type Option func(*Service)

// WithGameConfig overrides the duel constants.
func WithGameConfig(cfg game.Config) Option {
	return func(s *Service) { s.gameCfg = cfg }
}

// WithQuestionCount sets how many questions a duel draws.
func WithQuestionCount(n int) Option {
	return func(s *Service) { s.qCount = n }
}

// WithPumpInterval sets how often the background matcher and queue sweeper run.
func WithPumpInterval(d time.Duration) Option {
	return func(s *Service) { s.pumpEvery = d }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithSessionOptions forwards extra options to every session the service
// creates, used by tests to inject clocks and schedulers.
func WithSessionOptions(opts ...game.SessionOption) Option {
	return func(s *Service) { s.sessOpts = opts }
}

func NewService(queue *matchmaking.Queue, registry *game.Registry, questions QuestionSource, ratings RatingStore, ledger *rating.Ledger, opts ...Option) *Service {
	s := &Service{
		queue:     queue,
		registry:  registry,
		questions: questions,
		ratings:   ratings,
		ledger:    ledger,
		gameCfg:   game.DefaultConfig(),
		qCount:    15,
		pumpEvery: time.Second,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotifier attaches the transport. Must be called before players join.
func (s *Service) SetNotifier(n Notifier) {
	s.notifyMu.Lock()
	s.notifier = n
	s.notifyMu.Unlock()
}

// Start launches the background job that retries matching for waiting players
// and evicts players past the maximum queue time.
func (s *Service) Start() error {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = cron.NewJob(
		gocron.DurationJob(s.pumpEvery),
		gocron.NewTask(func() { s.Pump(context.Background()) }),
	)
	if err != nil {
		return err
	}
	cron.Start()
	s.cron = cron
	return nil
}

// Stop shuts down the background job and force-closes live sessions.
func (s *Service) Stop() {
	if s.cron != nil {
		_ = s.cron.Shutdown()
	}
	for _, sess := range s.registry.List() {
		sess.Close()
	}
}

// Pump runs one matcher-and-sweeper round. Exported so tests can drive it
// without the scheduler.
func (s *Service) Pump(ctx context.Context) {
	for _, p := range s.queue.Waiting() {
		// A player may have been taken as an opponent earlier in this round.
		if _, err := s.tryMatch(ctx, p.ID); err == domain.ErrUnknownPlayer {
			continue
		}
	}
	for _, p := range s.queue.Sweep() {
		s.log.Info("queue timeout", "player", p.ID)
		s.notify(func(n Notifier) { n.QueueTimeout(p.ID) })
	}
}

// JoinQueue enters a player into the queue and immediately tries to match.
// Returns true when the join produced a match; both players are notified
// through the Notifier either way.
func (s *Service) JoinQueue(ctx context.Context, req JoinRequest) (bool, error) {
	r, err := s.ratings.Get(ctx, req.PlayerID)
	if err != nil {
		s.log.Error("rating lookup failed", "player", req.PlayerID, "err", err)
		r = domain.DefaultRating(req.PlayerID)
	}
	err = s.queue.Enqueue(domain.QueuedPlayer{
		ID:       req.PlayerID,
		Name:     req.Name,
		Trophies: r.Trophies,
		Elo:      r.Elo,
		Grade:    req.Grade,
		SchoolID: req.SchoolID,
		Language: req.Language,
	})
	if err != nil {
		return false, err
	}
	return s.tryMatch(ctx, req.PlayerID)
}

// LeaveQueue removes a waiting player. Safe to call for unknown ids.
func (s *Service) LeaveQueue(playerID string) {
	s.queue.Cancel(playerID)
}

func (s *Service) tryMatch(ctx context.Context, playerID string) (bool, error) {
	m, err := s.queue.FindBestMatch(playerID)
	if err != nil || m == nil {
		return false, err
	}
	if err := s.startMatch(ctx, m); err != nil {
		// Both players are back in line with their wait preserved; the next
		// pump retries the pairing.
		return false, nil
	}
	return true, nil
}

func (s *Service) startMatch(ctx context.Context, m *matchmaking.Match) error {
	avgGrade := int(math.Round(float64(m.Player.Grade+m.Opponent.Grade) / 2))
	questions, err := s.questions.Questions(ctx, avgGrade, m.Player.Language, s.qCount)
	if err != nil {
		s.log.Error("question load failed, requeueing players", "match", m.MatchID, "err", err)
		s.queue.Requeue(m.Player)
		s.queue.Requeue(m.Opponent)
		return err
	}

	p1 := toMatchPlayer(m.Player)
	p2 := toMatchPlayer(m.Opponent)
	opts := append([]game.SessionOption{
		game.WithLogger(s.log),
		game.WithFinalizer(s.finalizer(p1, p2)),
	}, s.sessOpts...)
	sess := game.NewSession(m.MatchID, p1, p2, questions, s.gameCfg, opts...)
	s.registry.Add(sess, p1.ID, p2.ID)
	go s.reap(sess)

	limitMs := int(sess.QuestionLimit() / time.Millisecond)
	s.notify(func(n Notifier) {
		n.MatchFound(p1.ID, MatchInfo{
			MatchID:          m.MatchID,
			Player:           p1,
			Opponent:         p2,
			Quality:          m.Quality,
			QuestionLimitMs:  limitMs,
			CountdownSeconds: s.gameCfg.CountdownSeconds,
		})
		n.MatchFound(p2.ID, MatchInfo{
			MatchID:          m.MatchID,
			Player:           p2,
			Opponent:         p1,
			Quality:          m.Quality,
			QuestionLimitMs:  limitMs,
			CountdownSeconds: s.gameCfg.CountdownSeconds,
		})
	})
	return nil
}

// reap removes the session from the registry once it reaches a terminal state.
func (s *Service) reap(sess *game.Session) {
	events, cancel := sess.Subscribe()
	defer cancel()
	for e := range events {
		switch e.(type) {
		case game.GameEndEvent, game.GameAbandonedEvent:
			s.registry.Remove(sess.MatchID())
			return
		}
	}
}

// Ready flags a player ready in their current session.
func (s *Service) Ready(playerID string) error {
	sess, err := s.registry.ForPlayer(playerID)
	if err != nil {
		return err
	}
	return sess.SetReady(playerID)
}

// Answer routes an answer submission to the player's session.
func (s *Service) Answer(sub domain.AnswerSubmission) (*game.AnswerOutcome, error) {
	sess, err := s.registry.ForPlayer(sub.PlayerID)
	if err != nil {
		return nil, err
	}
	return sess.Submit(sub)
}

// Disconnect handles a dropped connection: the player leaves the queue if
// waiting, and their session, if any, starts the reconnect grace window.
func (s *Service) Disconnect(playerID string) {
	s.queue.Cancel(playerID)
	if sess, err := s.registry.ForPlayer(playerID); err == nil {
		sess.Disconnect(playerID)
	}
}

// Reconnect resumes a player's live session. Returns ErrUnknownMatch when no
// resumable session exists.
func (s *Service) Reconnect(playerID string) (*game.Snapshot, *game.Session, error) {
	sess, err := s.registry.ForPlayer(playerID)
	if err != nil {
		return nil, nil, err
	}
	snap, err := sess.Reconnect(playerID)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, domain.ErrUnknownMatch
	}
	return snap, sess, nil
}

// Session returns a live session by id, for event subscription and ops views.
func (s *Service) Session(matchID string) (*game.Session, error) {
	return s.registry.Get(matchID)
}

// SessionForPlayer returns the live session a player belongs to.
func (s *Service) SessionForPlayer(playerID string) (*game.Session, error) {
	return s.registry.ForPlayer(playerID)
}

// Sessions lists snapshots of all live sessions.
func (s *Service) Sessions() []game.Snapshot {
	live := s.registry.List()
	out := make([]game.Snapshot, 0, len(live))
	for _, sess := range live {
		out = append(out, sess.Snapshot(""))
	}
	return out
}

// QueueState lists waiting players in join order.
func (s *Service) QueueState() []domain.QueuedPlayer {
	return s.queue.Waiting()
}

// Rating exposes the persisted rating of one player.
func (s *Service) Rating(ctx context.Context, playerID string) (domain.PlayerRating, error) {
	return s.ratings.Get(ctx, playerID)
}

func (s *Service) notify(fn func(Notifier)) {
	s.notifyMu.RLock()
	n := s.notifier
	s.notifyMu.RUnlock()
	if n != nil {
		fn(n)
	}
}

// finalizer produces the hook that converts a raw match result into trophy
// and elo updates, attaches them to the result, and persists them.
func (s *Service) finalizer(p1, p2 domain.MatchPlayer) func(*domain.MatchResult) {
	return func(res *domain.MatchResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		r1 := s.ratingOf(ctx, p1)
		r2 := s.ratingOf(ctx, p2)

		var o1, o2 rating.Outcome
		p1Won := res.WinnerID == p1.ID
		switch {
		case res.Draw:
			o1, o2 = s.ledger.ProcessMatchResult(r1.Trophies, r2.Trophies, r1.WinStreak, true)
		case res.Abandoned && p1Won:
			o1, o2 = s.ledger.Walkover(r1.Trophies, r2.Trophies, r1.WinStreak)
		case res.Abandoned:
			o2, o1 = s.ledger.Walkover(r2.Trophies, r1.Trophies, r2.WinStreak)
		case p1Won:
			o1, o2 = s.ledger.ProcessMatchResult(r1.Trophies, r2.Trophies, r1.WinStreak, false)
		default:
			o2, o1 = s.ledger.ProcessMatchResult(r2.Trophies, r1.Trophies, r2.WinStreak, false)
		}

		elo1, elo2 := r1.Elo, r2.Elo
		if !res.Draw {
			elo1 += s.ledger.EloChange(r1.Elo, r2.Elo, p1Won)
			elo2 += s.ledger.EloChange(r2.Elo, r1.Elo, !p1Won)
		}

		res.Ratings = map[string]domain.RatingUpdate{
			p1.ID: o1.Update(p1.ID),
			p2.ID: o2.Update(p2.ID),
		}

		n1 := domain.PlayerRating{PlayerID: p1.ID, Trophies: o1.NewTrophies, Elo: elo1, WinStreak: o1.WinStreak}
		n2 := domain.PlayerRating{PlayerID: p2.ID, Trophies: o2.NewTrophies, Elo: elo2, WinStreak: o2.WinStreak}
		go s.persist(n1, n2)
	}
}

func (s *Service) persist(ratings ...domain.PlayerRating) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range ratings {
		if err := s.ratings.Put(ctx, r); err != nil {
			s.log.Error("rating persist failed", "player", r.PlayerID, "err", err)
		}
	}
}

func (s *Service) ratingOf(ctx context.Context, p domain.MatchPlayer) domain.PlayerRating {
	r, err := s.ratings.Get(ctx, p.ID)
	if err != nil {
		s.log.Error("rating lookup failed", "player", p.ID, "err", err)
		return domain.PlayerRating{PlayerID: p.ID, Trophies: p.Trophies, Elo: p.Elo}
	}
	return r
}

func toMatchPlayer(p domain.QueuedPlayer) domain.MatchPlayer {
	return domain.MatchPlayer{
		ID:       p.ID,
		Name:     p.Name,
		Trophies: p.Trophies,
		Elo:      p.Elo,
		Grade:    p.Grade,
		League:   rating.LeagueFor(p.Trophies).ID,
	}
}
