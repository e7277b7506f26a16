package matchmaking

import (
	"testing"
	"time"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time              { return c.now }
func (c *fakeClock) Advance(d time.Duration)     { c.now = c.now.Add(d) }
func newFakeClock() *fakeClock                   { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }
func newTestQueue(clock *fakeClock, cfg Config) *Queue {
	return NewQueue(cfg, WithClock(clock.Now))
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	q := newTestQueue(newFakeClock(), DefaultConfig())
	if err := q.Enqueue(player("a", 3, 1000, "s1", "de")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(player("a", 3, 1000, "s1", "de")); err != domain.ErrDuplicateEntry {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestCancelRemovesWaitingPlayer(t *testing.T) {
	q := newTestQueue(newFakeClock(), DefaultConfig())
	_ = q.Enqueue(player("a", 3, 1000, "s1", "de"))
	q.Cancel("a")
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
	// Cancelling an absent id is a no-op.
	q.Cancel("missing")
}

func TestRequeueKeepsTheOriginalEnqueueTime(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	_ = q.Enqueue(player("a", 3, 1000, "s1", "de"))
	joined := q.Waiting()[0].JoinedAt

	clock.Advance(12 * time.Second)
	_ = q.Enqueue(player("b", 3, 1150, "s2", "de"))
	m, _ := q.FindBestMatch("a")
	if m == nil {
		t.Fatalf("expected a good match after 10s")
	}

	q.Requeue(m.Player)
	q.Requeue(m.Opponent)
	waiting := q.Waiting()
	if len(waiting) != 2 {
		t.Fatalf("expected both players back in the queue, got %d", len(waiting))
	}
	if !waiting[0].JoinedAt.Equal(joined) {
		t.Fatalf("requeue must not reset the enqueue time, got %v want %v", waiting[0].JoinedAt, joined)
	}

	// The preserved wait keeps the pairing immediately repeatable.
	m2, _ := q.FindBestMatch("a")
	if m2 == nil || m2.Opponent.ID != "b" {
		t.Fatalf("expected the requeued pair to match again, got %+v", m2)
	}
}

func TestPerfectPairMatchesInPhaseOne(t *testing.T) {
	// Scenario: grade 3 both, same school, 1000 vs 1050 trophies.
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	_ = q.Enqueue(player("a", 3, 1000, "s1", "de"))
	clock.Advance(2 * time.Second)
	_ = q.Enqueue(player("b", 3, 1050, "s1", "de"))

	m, err := q.FindBestMatch("b")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m == nil {
		t.Fatalf("expected a match within phase one")
	}
	if m.Quality != domain.QualityPerfect {
		t.Fatalf("expected perfect quality, got %s", m.Quality)
	}
	if m.Opponent.ID != "a" {
		t.Fatalf("expected opponent a, got %s", m.Opponent.ID)
	}
	if q.Len() != 0 {
		t.Fatalf("matched players must leave the queue, got %d left", q.Len())
	}
}

func TestGoodPairWaitsForPhaseTwo(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	// Same grade, different schools, 150 trophy gap: good, not perfect.
	_ = q.Enqueue(player("a", 3, 1000, "s1", "de"))
	_ = q.Enqueue(player("b", 3, 1150, "s2", "de"))

	if m, _ := q.FindBestMatch("a"); m != nil {
		t.Fatalf("good pair must not match inside the same-school phase")
	}

	clock.Advance(11 * time.Second)
	m, _ := q.FindBestMatch("a")
	if m == nil || m.Quality != domain.QualityGood {
		t.Fatalf("expected good match after 10s, got %+v", m)
	}
}

func TestFairPairWaitsForPhaseThree(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	_ = q.Enqueue(player("a", 3, 1000, "s1", "de"))
	_ = q.Enqueue(player("b", 4, 1300, "s2", "de"))

	clock.Advance(15 * time.Second)
	if m, _ := q.FindBestMatch("a"); m != nil {
		t.Fatalf("fair pair must not match before 20s")
	}

	clock.Advance(6 * time.Second)
	m, _ := q.FindBestMatch("a")
	if m == nil || m.Quality != domain.QualityFair {
		t.Fatalf("expected fair match after 20s, got %+v", m)
	}
}

func TestAnyQualityNeedsMinimumScoreUntilFinalPhase(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	// Grade gap 3, trophy gap beyond max: score 100-30-20+15 = 65, quality any.
	_ = q.Enqueue(player("a", 1, 100, "", "de"))
	_ = q.Enqueue(player("b", 4, 2000, "", "de"))

	clock.Advance(31 * time.Second)
	m, _ := q.FindBestMatch("a")
	if m == nil {
		t.Fatalf("score 65 >= 50 must be accepted in the final relaxation window")
	}
	if m.Quality != domain.QualityAny {
		t.Fatalf("expected any quality, got %s", m.Quality)
	}
}

func TestWorstPairingStillMatchesInFinalPhases(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	// Worst possible pairing: grade gap 5, trophy gap beyond max, different
	// language. Score bottoms out at 100-30-20 = 50, so phase four accepts it.
	_ = q.Enqueue(player("a", 1, 100, "", "de"))
	_ = q.Enqueue(player("b", 6, 3000, "", "fr"))

	clock.Advance(29 * time.Second)
	if m, _ := q.FindBestMatch("a"); m != nil {
		t.Fatalf("any-quality pairs must not match before 30s")
	}

	clock.Advance(2 * time.Second)
	m, _ := q.FindBestMatch("a")
	if m == nil {
		t.Fatalf("expected the pairing to be accepted in the final window")
	}
	if m.Quality != domain.QualityAny {
		t.Fatalf("expected any quality, got %s", m.Quality)
	}
}

func TestTieBreakPrefersQualityThenScoreThenWait(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	_ = q.Enqueue(player("longwait", 3, 1150, "s2", "de"))
	clock.Advance(5 * time.Second)
	_ = q.Enqueue(player("shortwait", 3, 1150, "s3", "de"))
	_ = q.Enqueue(player("perfect", 3, 1050, "s1", "de"))
	_ = q.Enqueue(player("me", 3, 1000, "s1", "de"))

	m, _ := q.FindBestMatch("me")
	if m == nil || m.Opponent.ID != "perfect" {
		t.Fatalf("expected the perfect-quality candidate to win, got %+v", m)
	}

	// Between the two remaining equal candidates the longer waiter wins.
	_ = q.Enqueue(player("me2", 3, 1000, "", "de"))
	clock.Advance(11 * time.Second)
	m2, _ := q.FindBestMatch("me2")
	if m2 == nil || m2.Opponent.ID != "longwait" {
		t.Fatalf("expected the longest-waiting candidate, got %+v", m2)
	}
}

func TestSweepEvictsAfterMaxQueueTime(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	_ = q.Enqueue(player("a", 1, 100, "", "de"))
	clock.Advance(30 * time.Second)
	_ = q.Enqueue(player("b", 6, 3000, "", "fr"))

	if evicted := q.Sweep(); len(evicted) != 0 {
		t.Fatalf("no one has waited 60s yet, got %d evicted", len(evicted))
	}

	clock.Advance(31 * time.Second)
	evicted := q.Sweep()
	if len(evicted) != 1 || evicted[0].ID != "a" {
		t.Fatalf("expected only player a evicted, got %+v", evicted)
	}
	if q.Len() != 1 {
		t.Fatalf("expected one player left, got %d", q.Len())
	}
}

func TestNeverMatchedWithSelf(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, DefaultConfig())
	_ = q.Enqueue(player("a", 3, 1000, "s1", "de"))
	clock.Advance(50 * time.Second)
	m, _ := q.FindBestMatch("a")
	if m != nil {
		t.Fatalf("a lone player must never match, got %+v", m)
	}
}
