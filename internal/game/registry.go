package game

import (
	"sync"

	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
)

// Registry tracks live sessions by match id and by player id, so a
// reconnecting player can be routed back without knowing the match id.
type Registry struct {
	mu       sync.RWMutex
	byMatch  map[string]*Session
	byPlayer map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		byMatch:  make(map[string]*Session),
		byPlayer: make(map[string]*Session),
	}
}

// Add registers a session under its match id and both player ids.
func (r *Registry) Add(s *Session, playerIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMatch[s.MatchID()] = s
	for _, id := range playerIDs {
		r.byPlayer[id] = s
	}
}

// Get returns the session for a match id.
func (r *Registry) Get(matchID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byMatch[matchID]
	if !ok {
		return nil, domain.ErrUnknownMatch
	}
	return s, nil
}

// ForPlayer returns the session a player is currently part of.
func (r *Registry) ForPlayer(playerID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byPlayer[playerID]
	if !ok {
		return nil, domain.ErrUnknownMatch
	}
	return s, nil
}

// Remove drops a session and all player routes pointing at it.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byMatch[matchID]
	if !ok {
		return
	}
	delete(r.byMatch, matchID)
	for id, sess := range r.byPlayer {
		if sess == s {
			delete(r.byPlayer, id)
		}
	}
}

// List returns all live sessions in no particular order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byMatch))
	for _, s := range r.byMatch {
		out = append(out, s)
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMatch)
}
