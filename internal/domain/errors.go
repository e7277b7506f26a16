package domain

import "errors"

var (
	// ErrDuplicateEntry is returned when a player enqueues while already queued.
	ErrDuplicateEntry = errors.New("player already in matchmaking queue")
	// ErrQueueTimeout is reported when a player waited past the maximum queue time.
	ErrQueueTimeout = errors.New("matchmaking queue timeout")
	// ErrUnknownPlayer indicates an operation referenced a player the session has no slot for.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrUnknownMatch indicates an operation referenced a match id the core has no record of.
	ErrUnknownMatch = errors.New("unknown match")
	// ErrQuestionSetNotFound indicates no question content exists for the requested grade/language.
	ErrQuestionSetNotFound = errors.New("question set not found")
)
