package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// QuestionLoader fetches the full question set for a grade and language from
// a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, grade int, language string) ([]domain.Question, error)
}

// QuestionSource caches question sets with TTL to avoid repeated DB hits and
// draws a random subset per match.
type QuestionSource struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSource(loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// Questions returns up to count questions for the grade and language, in
// random order so repeat opponents see fresh material.
func (s *QuestionSource) Questions(ctx context.Context, grade int, language string, count int) ([]domain.Question, error) {
	key := setKey(grade, language)
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[key]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return s.sample(entry.questions, count), nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[key]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.questions, nil
		}
		s.mu.RUnlock()

		questions, err := s.loader.LoadQuestions(ctx, grade, language)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[key] = cachedSet{
			questions: questions,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return s.sample(result.([]domain.Question), count), nil
}

func (s *QuestionSource) sample(questions []domain.Question, count int) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	s.rndMu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.rndMu.Unlock()
	if count > 0 && count < len(out) {
		out = out[:count]
	}
	return out
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

func setKey(grade int, language string) string {
	return fmt.Sprintf("%d:%s", grade, language)
}

// StaticQuestionLoader serves questions from an in-memory slice (useful for
// tests and the demo server). A question with an empty language matches any
// requested language.
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, grade int, language string) ([]domain.Question, error) {
	var out []domain.Question
	for _, q := range l.questions {
		if q.Grade != grade {
			continue
		}
		if q.Language != "" && language != "" && q.Language != language {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, domain.ErrQuestionSetNotFound
	}
	return out, nil
}
