package matchmaking

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// Match is an emitted pairing. Player is the requester, Opponent the matched
// candidate.
type Match struct {
	MatchID  string
	Player   domain.QueuedPlayer
	Opponent domain.QueuedPlayer
	Quality  domain.MatchQuality
}

// Queue is the shared matchmaking structure. All mutation is serialized
// through one mutex; candidate scoring is pure and happens under the same
// lock so a waiting player can never be committed to two matches.
type Queue struct {
	cfg   Config
	clock func() time.Time
	log   *slog.Logger

	mu      sync.Mutex
	players map[string]*domain.QueuedPlayer
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock injects a deterministic time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

// WithLogger sets the queue logger.
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

func NewQueue(cfg Config, opts ...Option) *Queue {
	q := &Queue{
		cfg:     cfg,
		clock:   time.Now,
		log:     slog.Default(),
		players: make(map[string]*domain.QueuedPlayer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a waiting player. Re-enqueueing an already queued id fails
// with ErrDuplicateEntry.
func (q *Queue) Enqueue(p domain.QueuedPlayer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.players[p.ID]; ok {
		return domain.ErrDuplicateEntry
	}
	p.JoinedAt = q.clock()
	p.Status = domain.QueueWaiting
	q.players[p.ID] = &p
	q.log.Debug("player enqueued", "player", p.ID, "grade", p.Grade, "trophies", p.Trophies)
	return nil
}

// Requeue puts a player back in line after a failed match start. The
// original enqueue time is kept so the relaxation phase and the eviction
// clock do not reset.
func (q *Queue) Requeue(p domain.QueuedPlayer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.players[p.ID]; ok {
		return
	}
	p.Status = domain.QueueWaiting
	q.players[p.ID] = &p
	q.log.Debug("player requeued", "player", p.ID)
}

// Cancel removes a waiting player. No-op when the id is absent or already
// matched.
func (q *Queue) Cancel(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.players[playerID]
	if !ok || p.Status != domain.QueueWaiting {
		return
	}
	delete(q.players, playerID)
	q.log.Debug("player left queue", "player", playerID)
}

// Len returns the number of queued players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.players)
}

// Waiting returns a snapshot of waiting players ordered by enqueue time.
func (q *Queue) Waiting() []domain.QueuedPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueuedPlayer, 0, len(q.players))
	for _, p := range q.players {
		if p.Status == domain.QueueWaiting {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

type scoredCandidate struct {
	opponent *domain.QueuedPlayer
	score    int
	quality  domain.MatchQuality
	waited   time.Duration
}

// FindBestMatch evaluates all other waiting players for the given requester
// and commits the best pairing allowed by the current relaxation phase. Both
// players are removed from the queue atomically. Returns nil when no
// acceptable candidate exists yet.
func (q *Queue) FindBestMatch(playerID string) (*Match, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	player, ok := q.players[playerID]
	if !ok {
		return nil, domain.ErrUnknownPlayer
	}
	if player.Status != domain.QueueWaiting {
		return nil, nil
	}

	now := q.clock()
	waitTime := now.Sub(player.JoinedAt)

	candidates := make([]scoredCandidate, 0, len(q.players))
	for _, other := range q.players {
		if other.ID == player.ID || other.Status != domain.QueueWaiting {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			opponent: other,
			score:    Score(*player, *other, q.cfg),
			quality:  Quality(*player, *other, q.cfg),
			waited:   now.Sub(other.JoinedAt),
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Quality first, then raw score, then fairness toward long waiters.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.quality.Rank() != b.quality.Rank() {
			return a.quality.Rank() > b.quality.Rank()
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.waited > b.waited
	})

	for _, c := range candidates {
		if q.acceptable(waitTime, c) {
			return q.commit(player, c), nil
		}
	}

	// Past the final relaxation phase the best candidate wins unconditionally.
	if waitTime >= q.cfg.AnyMatchTimeout {
		return q.commit(player, candidates[0]), nil
	}
	return nil, nil
}

// acceptable implements the time-phased relaxation policy.
func (q *Queue) acceptable(waitTime time.Duration, c scoredCandidate) bool {
	switch {
	case waitTime < q.cfg.SameSchoolTimeout:
		return c.quality == domain.QualityPerfect
	case waitTime < q.cfg.SameGradeTimeout:
		return c.quality == domain.QualityPerfect || c.quality == domain.QualityGood
	case waitTime < q.cfg.AdjacentGradeTimeout:
		return c.quality != domain.QualityAny
	default:
		return c.score >= 50
	}
}

// commit removes both players and emits the match. Caller holds the lock.
func (q *Queue) commit(player *domain.QueuedPlayer, c scoredCandidate) *Match {
	player.Status = domain.QueueMatched
	c.opponent.Status = domain.QueueMatched
	delete(q.players, player.ID)
	delete(q.players, c.opponent.ID)

	m := &Match{
		MatchID:  "match_" + uuid.NewString(),
		Player:   *player,
		Opponent: *c.opponent,
		Quality:  c.quality,
	}
	q.log.Info("match found",
		"match", m.MatchID,
		"player", m.Player.ID,
		"opponent", m.Opponent.ID,
		"quality", m.Quality,
		"score", c.score)
	return m
}

// Sweep evicts players whose wait exceeded the maximum queue time and
// returns them so callers can notify with ErrQueueTimeout.
func (q *Queue) Sweep() []domain.QueuedPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	var evicted []domain.QueuedPlayer
	for id, p := range q.players {
		if p.Status == domain.QueueWaiting && now.Sub(p.JoinedAt) >= q.cfg.MaxQueueTime {
			p.Status = domain.QueueCancelled
			delete(q.players, id)
			evicted = append(evicted, *p)
		}
	}
	if len(evicted) > 0 {
		q.log.Info("queue sweep evicted players", "count", len(evicted))
	}
	return evicted
}
