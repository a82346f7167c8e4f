package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mfrager/mystery/protocol"
)

// Store-level sentinel errors. Unique-index violations in the Postgres
// store and pre-checks in the vault both map onto these.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateFile is returned when a challenge package with the same
	// file hash was already submitted.
	ErrDuplicateFile = errors.New("challenge package already submitted")

	// ErrDuplicateMapping is returned when a mapping table with the same
	// canonical hash was already submitted.
	ErrDuplicateMapping = errors.New("mapping table already submitted")

	// ErrDuplicateToken is returned on a session token collision.
	ErrDuplicateToken = errors.New("session token already exists")
)

// ChallengeRecord is one stored challenge package. Mapping holds the
// obfuscated (length-extended) table; MappingHash is computed over the
// canonical JSON of the real table before extension.
type ChallengeRecord struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	KeyName     string                `json:"key_name"`
	KeyIndex    int                   `json:"key_index"`
	FileHash    string                `json:"file_hash"`
	Package     []byte                `json:"-"`
	Mapping     protocol.MappingTable `json:"mapping,omitempty"`
	MappingHash string                `json:"mapping_hash"`
	CreatedAt   time.Time             `json:"created_at"`
	Used        bool                  `json:"is_used"`
}

// SessionRecord is one authentication session minted against a challenge.
type SessionRecord struct {
	ID          string    `json:"id"`
	Token       string    `json:"session_token"`
	ChallengeID string    `json:"challenge_id"`
	UserID      string    `json:"user_id"`
	MappingHash string    `json:"mapping_hash"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Verified    bool      `json:"is_verified"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// Valid reports whether the session can still accept solution attempts:
// unexpired, under its attempt budget, and not yet verified.
func (s *SessionRecord) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt) && s.Attempts < s.MaxAttempts && !s.Verified
}

// AttemptRecord is one recorded solution attempt.
type AttemptRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Successful  bool      `json:"was_successful"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// VaultStore persists challenges, sessions and attempts. Implementations
// must be safe for concurrent use.
type VaultStore interface {
	// SaveChallenge inserts a new challenge record. Returns
	// ErrDuplicateFile or ErrDuplicateMapping when a unique hash collides.
	SaveChallenge(ctx context.Context, rec *ChallengeRecord) error

	// ChallengeByID loads a challenge record.
	ChallengeByID(ctx context.Context, id string) (*ChallengeRecord, error)

	// ChallengeByFileHash loads the challenge with the given file hash.
	ChallengeByFileHash(ctx context.Context, hash string) (*ChallengeRecord, error)

	// ChallengeByMappingHash loads the challenge with the given mapping hash.
	ChallengeByMappingHash(ctx context.Context, hash string) (*ChallengeRecord, error)

	// NextUnusedChallenge returns the unused challenge for (user, key name)
	// with the lowest key index.
	NextUnusedChallenge(ctx context.Context, userID, keyName string) (*ChallengeRecord, error)

	// MarkChallengeUsed consumes a challenge after a successful verification.
	MarkChallengeUsed(ctx context.Context, id string) error

	// CreateSession inserts a new session. Returns ErrDuplicateToken on a
	// token collision.
	CreateSession(ctx context.Context, rec *SessionRecord) error

	// SessionByToken loads a session by its token.
	SessionByToken(ctx context.Context, token string) (*SessionRecord, error)

	// UpdateSession persists the mutable session fields (attempts, verified).
	UpdateSession(ctx context.Context, rec *SessionRecord) error

	// RecordAttempt inserts a solution attempt.
	RecordAttempt(ctx context.Context, rec *AttemptRecord) error

	// HasSuccessForMapping reports whether any session for the mapping hash
	// has a successful attempt on record.
	HasSuccessForMapping(ctx context.Context, mappingHash string) (bool, error)

	// CountFailedAttempts counts a user's failed attempts since the cutoff.
	CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error)

	// OldestFailedAttempt returns the time of the user's oldest failed
	// attempt since the cutoff; ok is false when there is none.
	OldestFailedAttempt(ctx context.Context, userID string, since time.Time) (t time.Time, ok bool, err error)
}

// newRecordID returns a fresh version-4 UUID string. Record identifiers
// follow RFC 4122 so they interoperate with external tooling that expects
// UUID columns.
func newRecordID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("draw record id: %w", err)
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

// newSessionToken returns a URL-safe random token with 256 bits of entropy.
func newSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("draw session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// isUUID checks the canonical 8-4-4-4-12 hex form.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}

// fileHash is the dedup hash over raw challenge package bytes.
func fileHash(pkg []byte) string {
	sum := sha256.Sum256(pkg)
	return hex.EncodeToString(sum[:])
}

// mappingHash is the dedup hash over the canonical JSON of the real table.
func mappingHash(table protocol.MappingTable) (string, error) {
	canonical, err := table.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
