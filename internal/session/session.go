// Package session keeps per-user conversation state in memory. State is
// process-local and expires after a configurable idle TTL.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/duet/internal/domain"
)

// Store holds live sessions keyed by user ID. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// Option configures optional Store parameters.
type Option func(*Store)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store whose sessions expire after ttl of inactivity.
func New(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendTurn records one conversation turn for the user, creating the session
// on first contact.
func (s *Store) AppendTurn(userID string, role domain.Role, content string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, now)
	sess.History = append(sess.History, domain.Turn{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	sess.LastInteraction = now
}

// RecentHistory returns a copy of the user's last n turns, oldest first.
// A missing session yields nil.
func (s *Store) RecentHistory(userID string, n int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok || n <= 0 {
		return nil
	}

	start := len(sess.History) - n
	if start < 0 {
		start = 0
	}

	out := make([]domain.Turn, len(sess.History)-start)
	copy(out, sess.History[start:])
	return out
}

// Touch refreshes the session's idle deadline without recording a turn.
func (s *Store) Touch(userID string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(userID, now).LastInteraction = now
}

// IncrementFeedback bumps the user's feedback counter and returns the new
// value.
func (s *Store) IncrementFeedback(userID string) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, now)
	sess.FeedbackCount++
	return sess.FeedbackCount
}

// ResetFeedback zeroes the user's feedback counter at the start of a new
// request so the revision count reflects the current conversation only.
func (s *Store) ResetFeedback(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.FeedbackCount = 0
	}
}

// Snapshot returns a deep copy of the user's session.
func (s *Store) Snapshot(userID string) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}

	out := *sess
	out.History = make([]domain.Turn, len(sess.History))
	copy(out.History, sess.History)
	return out, true
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune removes sessions idle past the TTL and returns how many were removed.
func (s *Store) Prune() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, sess := range s.sessions {
		if sess.LastInteraction.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

// StartJanitor prunes expired sessions every interval until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Prune(); n > 0 {
					log.Debug().Int("removed", n).Msg("expired sessions pruned")
				}
			}
		}
	}()
}

func (s *Store) getOrCreateLocked(userID string, now time.Time) *domain.Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &domain.Session{
			UserID:          userID,
			LastInteraction: now,
		}
		s.sessions[userID] = sess
	}
	return sess
}
