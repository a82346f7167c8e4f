package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfrager/mystery/crypto"
	"github.com/mfrager/mystery/metrics"
	"github.com/mfrager/mystery/protocol"
)

const (
	// DefaultSessionTimeout bounds how long an authentication session stays
	// open for solution attempts.
	DefaultSessionTimeout = 30 * time.Minute

	// DefaultMaxAttempts is the per-session solution attempt budget.
	DefaultMaxAttempts = 3

	// DefaultFailedPerHour is the per-user failed attempt budget inside
	// RateLimitWindow.
	DefaultFailedPerHour = 20

	// RateLimitWindow is the rolling window for failed-attempt counting.
	// Successful attempts never count against it.
	RateLimitWindow = time.Hour
)

// Service-level sentinel errors. The HTTP layer maps these onto status
// codes; everything else surfaces as an internal error.
var (
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound is returned for an unknown session token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionSpent is returned when a session is expired, out of
	// attempts, or already verified.
	ErrSessionSpent = errors.New("session no longer valid")

	// ErrRateLimited is returned when a user exhausted the failed-attempt
	// budget for the rolling window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrMappingConsumed is returned when the challenge's mapping was
	// already verified successfully through any session.
	ErrMappingConsumed = errors.New("mapping already verified")

	// ErrNoChallenges is returned when a user has no unused challenge left
	// under the requested key name.
	ErrNoChallenges = errors.New("no unused challenges available")
)

// VaultConfig configures the vault service.
type VaultConfig struct {
	// Protocol carries the lattice parameters, segment count and exposed
	// mapping length shared with submitters and verifiers.
	Protocol protocol.Config

	// SessionTimeout is the default session lifetime. Zero selects
	// DefaultSessionTimeout.
	SessionTimeout time.Duration

	// MaxAttempts is the per-session attempt budget. Zero selects
	// DefaultMaxAttempts.
	MaxAttempts int

	// MaxFailedPerHour is the per-user failed attempt budget. Zero selects
	// DefaultFailedPerHour.
	MaxFailedPerHour int

	Log *slog.Logger
}

// Vault stores sealed challenge packages and arbitrates solution attempts
// against them. It never sees owner or verifier private keys at rest:
// verification keys arrive with each verify call and are dropped after use.
type Vault struct {
	cfg   VaultConfig
	store VaultStore
	log   *slog.Logger
}

// NewVault creates a vault service over the given store.
func NewVault(cfg VaultConfig, store VaultStore) *Vault {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxFailedPerHour <= 0 {
		cfg.MaxFailedPerHour = DefaultFailedPerHour
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Vault{cfg: cfg, store: store, log: log}
}

// ChallengeSubmission is the input to SubmitChallenge. Mapping is the real
// table used during the protocol run; the vault extends it to the exposed
// length before storing.
type ChallengeSubmission struct {
	Package  []byte
	Mapping  protocol.MappingTable
	UserID   string
	KeyName  string
	KeyIndex int
	Segments int
}

// SubmitChallenge validates and stores one sealed challenge package. Both
// the package bytes and the real mapping table are deduplicated by hash, so
// resubmitting either fails with ErrDuplicateFile or ErrDuplicateMapping.
// The stored mapping is the length-extended table handed out to
// authenticating users.
func (v *Vault) SubmitChallenge(ctx context.Context, sub *ChallengeSubmission) (*ChallengeRecord, error) {
	if !isUUID(sub.UserID) {
		return nil, fmt.Errorf("user id must be a UUID: %w", ErrInvalidInput)
	}
	if sub.KeyName == "" || len(sub.KeyName) > 64 {
		return nil, fmt.Errorf("key name must be 1-64 characters: %w", ErrInvalidInput)
	}
	if sub.KeyIndex < 0 {
		return nil, fmt.Errorf("key index must not be negative: %w", ErrInvalidInput)
	}
	if len(sub.Package) == 0 {
		return nil, fmt.Errorf("empty challenge package: %w", ErrInvalidInput)
	}

	segments := sub.Segments
	if segments <= 0 {
		segments = v.cfg.Protocol.Segments
	}

	final, err := protocol.UnmarshalMessage[protocol.FinalPackage](sub.Package)
	if err != nil {
		return nil, fmt.Errorf("challenge package does not parse: %w", ErrInvalidInput)
	}
	if len(final.SequenceData) == 0 {
		return nil, fmt.Errorf("challenge package has no sequence data: %w", ErrInvalidInput)
	}
	if err := sub.Mapping.Validate(segments); err != nil {
		return nil, fmt.Errorf("mapping table invalid: %v: %w", err, ErrInvalidInput)
	}
	if len(sub.Mapping) != len(final.SequenceData) {
		return nil, fmt.Errorf("mapping has %d positions, package has %d: %w",
			len(sub.Mapping), len(final.SequenceData), ErrInvalidInput)
	}

	fh := fileHash(sub.Package)
	mh, err := mappingHash(sub.Mapping)
	if err != nil {
		return nil, err
	}

	// Pre-check both hashes for a friendlier error; the unique indexes
	// still catch concurrent submissions.
	if _, err := v.store.ChallengeByFileHash(ctx, fh); err == nil {
		return nil, ErrDuplicateFile
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := v.store.ChallengeByMappingHash(ctx, mh); err == nil {
		return nil, ErrDuplicateMapping
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	extended, err := sub.Mapping.ExtendTo(v.cfg.Protocol.ExposedLength, segments)
	if err != nil {
		return nil, fmt.Errorf("extend mapping: %w", err)
	}

	id, err := newRecordID()
	if err != nil {
		return nil, err
	}
	rec := &ChallengeRecord{
		ID:          id,
		UserID:      sub.UserID,
		KeyName:     sub.KeyName,
		KeyIndex:    sub.KeyIndex,
		FileHash:    fh,
		Package:     sub.Package,
		Mapping:     extended,
		MappingHash: mh,
		CreatedAt:   time.Now().UTC(),
	}
	if err := v.store.SaveChallenge(ctx, rec); err != nil {
		return nil, err
	}

	metrics.IncChallengeSubmitted()
	v.log.Info("stored challenge package",
		"challenge_id", rec.ID,
		"user_id", rec.UserID,
		"key_name", rec.KeyName,
		"key_index", rec.KeyIndex,
	)
	return rec, nil
}

// IssueSession opens an authentication session against the user's unused
// challenge with the lowest key index under keyName. It returns the session
// and the challenge's obfuscated mapping table; the caller derives its
// target sequence from that table. A non-positive timeout selects the
// configured default.
func (v *Vault) IssueSession(ctx context.Context, userID, keyName string, timeout time.Duration) (*SessionRecord, protocol.MappingTable, error) {
	if !isUUID(userID) {
		return nil, nil, fmt.Errorf("user id must be a UUID: %w", ErrInvalidInput)
	}
	if keyName == "" {
		return nil, nil, fmt.Errorf("key name required: %w", ErrInvalidInput)
	}
	if timeout <= 0 {
		timeout = v.cfg.SessionTimeout
	}

	ch, err := v.store.NextUnusedChallenge(ctx, userID, keyName)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, fmt.Errorf("user %s key %s: %w", userID, keyName, ErrNoChallenges)
	}
	if err != nil {
		return nil, nil, err
	}

	id, err := newRecordID()
	if err != nil {
		return nil, nil, err
	}
	token, err := newSessionToken()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	sess := &SessionRecord{
		ID:          id,
		Token:       token,
		ChallengeID: ch.ID,
		UserID:      userID,
		MappingHash: ch.MappingHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
		MaxAttempts: v.cfg.MaxAttempts,
	}
	if err := v.store.CreateSession(ctx, sess); err != nil {
		return nil, nil, err
	}

	metrics.IncSessionIssued()
	v.log.Info("issued authentication session",
		"session_id", sess.ID,
		"challenge_id", ch.ID,
		"user_id", userID,
		"expires_at", sess.ExpiresAt,
	)
	return sess, ch.Mapping, nil
}

// VerifySolution runs one blinded verification of the target sequence
// against the session's challenge package. The verifier private set is used
// for this call only and never stored. A cryptographic mismatch is a normal
// result, not an error: it consumes a session attempt and counts toward the
// user's rolling failure budget.
func (v *Vault) VerifySolution(ctx context.Context, token string, target []uint64, set *crypto.VerifierPrivateSet) (*protocol.VerifyResult, error) {
	if token == "" {
		return nil, fmt.Errorf("session token required: %w", ErrInvalidInput)
	}
	if len(target) == 0 {
		return nil, fmt.Errorf("target sequence required: %w", ErrInvalidInput)
	}
	if set == nil {
		return nil, fmt.Errorf("verifier key set required: %w", ErrInvalidInput)
	}
	for i, val := range target {
		if val >= v.cfg.Protocol.Params.PlainModulus {
			return nil, fmt.Errorf("target position %d exceeds plain modulus: %w", i, ErrInvalidInput)
		}
	}

	sess, err := v.store.SessionByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !sess.Valid(now) {
		return nil, fmt.Errorf("session %s: %w", sess.ID, ErrSessionSpent)
	}

	failed, err := v.store.CountFailedAttempts(ctx, sess.UserID, now.Add(-RateLimitWindow))
	if err != nil {
		return nil, err
	}
	if failed >= v.cfg.MaxFailedPerHour {
		metrics.IncRateLimited()
		v.log.Warn("rate limited verification attempt", "user_id", sess.UserID, "failed_attempts", failed)
		return nil, fmt.Errorf("%d failed attempts in window: %w", failed, ErrRateLimited)
	}

	consumed, err := v.store.HasSuccessForMapping(ctx, sess.MappingHash)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, ErrMappingConsumed
	}

	ch, err := v.store.ChallengeByID(ctx, sess.ChallengeID)
	if err != nil {
		return nil, err
	}

	verifier, err := crypto.LoadVerifierDomain(set)
	if err != nil {
		return nil, fmt.Errorf("verifier key set does not load: %w", ErrInvalidInput)
	}
	final, err := protocol.UnmarshalMessage[protocol.FinalPackage](ch.Package)
	if err != nil {
		return nil, fmt.Errorf("stored challenge package corrupt: %w", err)
	}

	messager := &protocol.VerifierMessager{Config: v.cfg.Protocol}
	result, err := messager.Verify(verifier, final, target)
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	attemptID, err := newRecordID()
	if err != nil {
		return nil, err
	}
	att := &AttemptRecord{
		ID:          attemptID,
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Successful:  result.IsMatch,
		AttemptedAt: now,
	}
	if err := v.store.RecordAttempt(ctx, att); err != nil {
		return nil, err
	}

	sess.Attempts++
	if result.IsMatch {
		sess.Verified = true
		if err := v.store.MarkChallengeUsed(ctx, ch.ID); err != nil {
			return nil, err
		}
	}
	if err := v.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	if result.IsMatch {
		metrics.IncVerifySuccess()
	} else {
		metrics.IncVerifyFailure()
	}
	v.log.Info("verification attempt",
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"is_match", result.IsMatch,
		"attempts", sess.Attempts,
	)
	return result, nil
}

// SessionStatus returns the session record and whether it can still accept
// attempts.
func (v *Vault) SessionStatus(ctx context.Context, token string) (*SessionRecord, bool, error) {
	if token == "" {
		return nil, false, fmt.Errorf("session token required: %w", ErrInvalidInput)
	}
	sess, err := v.store.SessionByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, false, ErrSessionNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return sess, sess.Valid(time.Now().UTC()), nil
}

// RateLimitStatus summarizes a user's standing against the rolling failed
// attempt budget, addressed by session token.
type RateLimitStatus struct {
	Limited    bool       `json:"is_limited"`
	FailedUsed int        `json:"failed_attempts"`
	MaxPerHour int        `json:"max_per_hour"`
	Remaining  int        `json:"remaining"`
	ResetAt    *time.Time `json:"reset_time,omitempty"`
}

// RateLimitStatus reports the failure budget for the session's user. ResetAt
// is the oldest windowed failure plus the window length, present only when
// at least one failure is on record.
func (v *Vault) RateLimitStatus(ctx context.Context, token string) (*RateLimitStatus, error) {
	if token == "" {
		return nil, fmt.Errorf("session token required: %w", ErrInvalidInput)
	}
	sess, err := v.store.SessionByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	since := now.Add(-RateLimitWindow)
	failed, err := v.store.CountFailedAttempts(ctx, sess.UserID, since)
	if err != nil {
		return nil, err
	}

	status := &RateLimitStatus{
		Limited:    failed >= v.cfg.MaxFailedPerHour,
		FailedUsed: failed,
		MaxPerHour: v.cfg.MaxFailedPerHour,
		Remaining:  v.cfg.MaxFailedPerHour - failed,
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	if failed > 0 {
		oldest, ok, err := v.store.OldestFailedAttempt(ctx, sess.UserID, since)
		if err != nil {
			return nil, err
		}
		if ok {
			reset := oldest.Add(RateLimitWindow)
			status.ResetAt = &reset
		}
	}
	return status, nil
}
