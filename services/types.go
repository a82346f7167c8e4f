package services

import (
	"time"

	"github.com/mfrager/mystery/crypto"
	"github.com/mfrager/mystery/protocol"
)

// SubmitChallengeRequest stores a sealed challenge package in the vault.
// ChallengePackage is the serialized final package; Mapping is the real
// (unextended) table the package was finalized against. Segments defaults
// to the vault's configured segment count when zero.
type SubmitChallengeRequest struct {
	ChallengePackage []byte                `json:"challenge_package"`
	Mapping          protocol.MappingTable `json:"mapping"`
	UserID           string                `json:"user_id"`
	KeyName          string                `json:"key_name"`
	KeyIndex         int                   `json:"key_index"`
	Segments         int                   `json:"segments,omitempty"`
}

// SubmitChallengeResponse acknowledges a stored challenge.
type SubmitChallengeResponse struct {
	Success     bool   `json:"success"`
	ChallengeID string `json:"challenge_id"`
	Message     string `json:"message,omitempty"`
}

// AuthenticationChallengeRequest opens a session against the caller's next
// unused challenge under KeyName. TimeoutMinutes defaults to the vault's
// session timeout when zero.
type AuthenticationChallengeRequest struct {
	UserID         string `json:"user_id"`
	KeyName        string `json:"key_name"`
	TimeoutMinutes int    `json:"timeout_minutes,omitempty"`
}

// AuthenticationChallengeResponse carries the session token and the
// obfuscated mapping table the caller derives its target sequence from.
type AuthenticationChallengeResponse struct {
	Success        bool                  `json:"success"`
	SessionToken   string                `json:"session_token"`
	Mapping        protocol.MappingTable `json:"mapping"`
	ExpiresAt      time.Time             `json:"expires_at"`
	TimeoutMinutes int                   `json:"timeout_minutes"`
}

// VerifySolutionRequest submits one target sequence for verification. The
// verifier private set travels with the request and is dropped after use.
type VerifySolutionRequest struct {
	SessionToken    string                     `json:"session_token"`
	TargetSequence  []uint64                   `json:"target_sequence"`
	VerifierPrivate *crypto.VerifierPrivateSet `json:"verifier_private"`
}

// VerifySolutionResponse reports one verification outcome. PrizeValue is
// the recovered prize in hex, present only on a match.
type VerifySolutionResponse struct {
	Success    bool   `json:"success"`
	IsMatch    bool   `json:"is_match"`
	PrizeValue string `json:"prize_value,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SessionStatusResponse reports a session's record and current validity.
type SessionStatusResponse struct {
	Success bool           `json:"success"`
	Session *SessionRecord `json:"session"`
	IsValid bool           `json:"is_valid"`
}

// RateLimitStatusResponse reports the failure budget for the session's user.
type RateLimitStatusResponse struct {
	Success   bool            `json:"success"`
	RateLimit RateLimitStatus `json:"rate_limit_status"`
}
