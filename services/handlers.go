package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// VaultHandler exposes the vault service over HTTP. It satisfies the base
// server's route registrar interface; request logging, recovery and liveness
// endpoints come from the base server's middleware.
type VaultHandler struct {
	vault *Vault
}

// NewVaultHandler creates the HTTP handler for a vault service.
func NewVaultHandler(vault *Vault) *VaultHandler {
	return &VaultHandler{vault: vault}
}

// RegisterRoutes registers the vault endpoints.
func (h *VaultHandler) RegisterRoutes(r chi.Router) {
	r.Post("/submit-challenge", h.handleSubmitChallenge)
	r.Post("/authentication-challenge", h.handleAuthenticationChallenge)
	r.Post("/verify-solution", h.handleVerifySolution)
	r.Get("/session-status/{token}", h.handleSessionStatus)
	r.Get("/rate-limit-status/{token}", h.handleRateLimitStatus)
}

// writeServiceError maps service sentinels onto HTTP status codes. Anything
// unrecognized is an internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNoChallenges), errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicateFile), errors.Is(err, ErrDuplicateMapping), errors.Is(err, ErrMappingConsumed):
		status = http.StatusConflict
	case errors.Is(err, ErrSessionSpent):
		status = http.StatusGone
	case errors.Is(err, ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	http.Error(w, err.Error(), status)
}

func (h *VaultHandler) handleSubmitChallenge(w http.ResponseWriter, req *http.Request) {
	var body SubmitChallengeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.vault.SubmitChallenge(req.Context(), &ChallengeSubmission{
		Package:  body.ChallengePackage,
		Mapping:  body.Mapping,
		UserID:   body.UserID,
		KeyName:  body.KeyName,
		KeyIndex: body.KeyIndex,
		Segments: body.Segments,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(&SubmitChallengeResponse{
		Success:     true,
		ChallengeID: rec.ID,
		Message:     "challenge stored",
	})
}

func (h *VaultHandler) handleAuthenticationChallenge(w http.ResponseWriter, req *http.Request) {
	var body AuthenticationChallengeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeout := time.Duration(body.TimeoutMinutes) * time.Minute
	sess, mapping, err := h.vault.IssueSession(req.Context(), body.UserID, body.KeyName, timeout)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	json.NewEncoder(w).Encode(&AuthenticationChallengeResponse{
		Success:        true,
		SessionToken:   sess.Token,
		Mapping:        mapping,
		ExpiresAt:      sess.ExpiresAt,
		TimeoutMinutes: int(sess.ExpiresAt.Sub(sess.CreatedAt) / time.Minute),
	})
}

func (h *VaultHandler) handleVerifySolution(w http.ResponseWriter, req *http.Request) {
	var body VerifySolutionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.vault.VerifySolution(req.Context(), body.SessionToken, body.TargetSequence, body.VerifierPrivate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := &VerifySolutionResponse{Success: true, IsMatch: result.IsMatch}
	if result.IsMatch && result.Prize != nil {
		resp.PrizeValue = result.Prize.String()
		resp.Message = "solution verified"
	} else {
		resp.Message = "solution does not match"
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *VaultHandler) handleSessionStatus(w http.ResponseWriter, req *http.Request) {
	sess, valid, err := h.vault.SessionStatus(req.Context(), chi.URLParam(req, "token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(&SessionStatusResponse{
		Success: true,
		Session: sess,
		IsValid: valid,
	})
}

func (h *VaultHandler) handleRateLimitStatus(w http.ResponseWriter, req *http.Request) {
	status, err := h.vault.RateLimitStatus(req.Context(), chi.URLParam(req, "token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(&RateLimitStatusResponse{
		Success:   true,
		RateLimit: *status,
	})
}
