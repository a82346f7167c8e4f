package services

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore implements VaultStore without a database. It backs tests
// and single-node deployments that opt out of Postgres.
type InMemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]*ChallengeRecord
	sessions   map[string]*SessionRecord
	attempts   []*AttemptRecord
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		challenges: make(map[string]*ChallengeRecord),
		sessions:   make(map[string]*SessionRecord),
	}
}

func copyChallenge(rec *ChallengeRecord) *ChallengeRecord {
	cp := *rec
	return &cp
}

func copySession(rec *SessionRecord) *SessionRecord {
	cp := *rec
	return &cp
}

// SaveChallenge stores a challenge in memory.
func (s *InMemoryStore) SaveChallenge(ctx context.Context, rec *ChallengeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.challenges {
		if existing.FileHash == rec.FileHash {
			return ErrDuplicateFile
		}
		if existing.MappingHash == rec.MappingHash {
			return ErrDuplicateMapping
		}
	}
	s.challenges[rec.ID] = copyChallenge(rec)
	return nil
}

// ChallengeByID loads a challenge record.
func (s *InMemoryStore) ChallengeByID(ctx context.Context, id string) (*ChallengeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyChallenge(rec), nil
}

// ChallengeByFileHash loads the challenge with the given file hash.
func (s *InMemoryStore) ChallengeByFileHash(ctx context.Context, hash string) (*ChallengeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.challenges {
		if rec.FileHash == hash {
			return copyChallenge(rec), nil
		}
	}
	return nil, ErrNotFound
}

// ChallengeByMappingHash loads the challenge with the given mapping hash.
func (s *InMemoryStore) ChallengeByMappingHash(ctx context.Context, hash string) (*ChallengeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.challenges {
		if rec.MappingHash == hash {
			return copyChallenge(rec), nil
		}
	}
	return nil, ErrNotFound
}

// NextUnusedChallenge returns the unused challenge for (user, key name) with
// the lowest key index.
func (s *InMemoryStore) NextUnusedChallenge(ctx context.Context, userID, keyName string) (*ChallengeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]*ChallengeRecord, 0, 4)
	for _, rec := range s.challenges {
		if rec.UserID == userID && rec.KeyName == keyName && !rec.Used {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].KeyIndex < candidates[j].KeyIndex })
	return copyChallenge(candidates[0]), nil
}

// MarkChallengeUsed consumes a challenge.
func (s *InMemoryStore) MarkChallengeUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.challenges[id]
	if !ok {
		return ErrNotFound
	}
	rec.Used = true
	return nil
}

// CreateSession stores a session in memory.
func (s *InMemoryStore) CreateSession(ctx context.Context, rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[rec.Token]; exists {
		return ErrDuplicateToken
	}
	s.sessions[rec.Token] = copySession(rec)
	return nil
}

// SessionByToken loads a session by its token.
func (s *InMemoryStore) SessionByToken(ctx context.Context, token string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(rec), nil
}

// UpdateSession persists the mutable session fields.
func (s *InMemoryStore) UpdateSession(ctx context.Context, rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[rec.Token]
	if !ok {
		return ErrNotFound
	}
	stored.Attempts = rec.Attempts
	stored.Verified = rec.Verified
	return nil
}

// RecordAttempt stores an attempt in memory.
func (s *InMemoryStore) RecordAttempt(ctx context.Context, rec *AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.attempts = append(s.attempts, &cp)
	return nil
}

// HasSuccessForMapping reports whether any session for the mapping hash has
// a successful attempt on record.
func (s *InMemoryStore) HasSuccessForMapping(ctx context.Context, mappingHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, att := range s.attempts {
		if !att.Successful {
			continue
		}
		for _, sess := range s.sessions {
			if sess.ID == att.SessionID && sess.MappingHash == mappingHash {
				return true, nil
			}
		}
	}
	return false, nil
}

// CountFailedAttempts counts a user's failed attempts since the cutoff.
func (s *InMemoryStore) CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, att := range s.attempts {
		if att.UserID == userID && !att.Successful && !att.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// OldestFailedAttempt returns the time of the user's oldest failed attempt
// since the cutoff.
func (s *InMemoryStore) OldestFailedAttempt(ctx context.Context, userID string, since time.Time) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		oldest time.Time
		found  bool
	)
	for _, att := range s.attempts {
		if att.UserID != userID || att.Successful || att.AttemptedAt.Before(since) {
			continue
		}
		if !found || att.AttemptedAt.Before(oldest) {
			oldest = att.AttemptedAt
			found = true
		}
	}
	return oldest, found, nil
}
