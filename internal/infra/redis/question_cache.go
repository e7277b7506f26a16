package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// QuestionLoader fetches the full question set for a grade and language from
// a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, grade int, language string) ([]domain.Question, error)
}

// QuestionSource caches full question sets as JSON in Redis so every server
// instance draws from the same pool, and falls back to a loader on miss.
type QuestionSource struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionSource(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Questions returns up to count questions for the grade and language in
// random order.
func (s *QuestionSource) Questions(ctx context.Context, grade int, language string, count int) ([]domain.Question, error) {
	key := s.key(grade, language)

	if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var cached []domain.Question
		if err := json.Unmarshal(raw, &cached); err == nil && len(cached) > 0 {
			return s.sample(cached, count), nil
		}
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
			var cached []domain.Question
			if err := json.Unmarshal(raw, &cached); err == nil && len(cached) > 0 {
				return cached, nil
			}
		}

		questions, err := s.loader.LoadQuestions(ctx, grade, language)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(questions); err == nil {
			_ = s.client.Set(ctx, key, raw, s.ttlWithJitter()).Err()
		}
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

func (s *QuestionSource) key(grade int, language string) string {
	return fmt.Sprintf("questions:%d:%s", grade, language)
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
