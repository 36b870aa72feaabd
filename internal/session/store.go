package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/catalog"
	"github.com/tanq16/telegrab/internal/types"
)

// ErrNotFound covers every "expired" case: no session for the requester, an
// unknown option id, or a session already consumed. Callers prompt the user
// to resubmit the URL.
var ErrNotFound = errors.New("no pending selection")

type Session struct {
	RequesterKey int64
	SourceURL    string
	Title        string
	MenuRef      types.MessageRef
	Options      map[string]catalog.Option
}

// Store holds at most one pending selection per requester between "menu
// shown" and "choice made". It is the only state shared across producers,
// so every open/resolve pair runs under one lock.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Open records a new pending selection, replacing any existing session for
// the requester. A replaced session's ids resolve to ErrNotFound afterwards.
func (s *Store) Open(requesterKey int64, sourceURL, title string, menuRef types.MessageRef, options []catalog.Option) {
	byID := make(map[string]catalog.Option, len(options))
	for _, opt := range options {
		byID[opt.ID] = opt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[requesterKey]; exists {
		log.Debug().Str("op", "session/open").Msgf("replacing pending selection for requester %d", requesterKey)
	}
	s.sessions[requesterKey] = &Session{
		RequesterKey: requesterKey,
		SourceURL:    sourceURL,
		Title:        title,
		MenuRef:      menuRef,
		Options:      byID,
	}
}

// Resolve looks up the chosen option and deletes the session atomically with
// the read, so a second resolve of the same id observes ErrNotFound.
func (s *Store) Resolve(requesterKey int64, chosenID string) (*Session, catalog.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[requesterKey]
	if !exists {
		return nil, catalog.Option{}, ErrNotFound
	}
	opt, exists := sess.Options[chosenID]
	if !exists {
		return nil, catalog.Option{}, ErrNotFound
	}
	delete(s.sessions, requesterKey)
	return sess, opt, nil
}

// Invalidate drops a requester's pending selection if one exists.
func (s *Store) Invalidate(requesterKey int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, requesterKey)
}
