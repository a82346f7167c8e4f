package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VaultClient is a typed HTTP client for the vault service.
type VaultClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewVaultClient creates a client for the vault at baseURL. The timeout
// leaves room for the lattice arithmetic a verification runs server-side.
func NewVaultClient(baseURL string) *VaultClient {
	return &VaultClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *VaultClient) postJSON(ctx context.Context, path string, in, out any, wantStatus int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (%d): %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *VaultClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (%d): %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SubmitChallenge stores a sealed challenge package in the vault.
func (c *VaultClient) SubmitChallenge(ctx context.Context, req *SubmitChallengeRequest) (*SubmitChallengeResponse, error) {
	var resp SubmitChallengeResponse
	if err := c.postJSON(ctx, "/submit-challenge", req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestAuthenticationChallenge opens a session and returns its token and
// the challenge's obfuscated mapping table.
func (c *VaultClient) RequestAuthenticationChallenge(ctx context.Context, req *AuthenticationChallengeRequest) (*AuthenticationChallengeResponse, error) {
	var resp AuthenticationChallengeResponse
	if err := c.postJSON(ctx, "/authentication-challenge", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifySolution submits a target sequence for verification.
func (c *VaultClient) VerifySolution(ctx context.Context, req *VerifySolutionRequest) (*VerifySolutionResponse, error) {
	var resp VerifySolutionResponse
	if err := c.postJSON(ctx, "/verify-solution", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionStatus fetches a session's record and validity.
func (c *VaultClient) SessionStatus(ctx context.Context, token string) (*SessionStatusResponse, error) {
	var resp SessionStatusResponse
	if err := c.getJSON(ctx, "/session-status/"+url.PathEscape(token), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RateLimitStatus fetches the failure budget for the session's user.
func (c *VaultClient) RateLimitStatus(ctx context.Context, token string) (*RateLimitStatusResponse, error) {
	var resp RateLimitStatusResponse
	if err := c.getJSON(ctx, "/rate-limit-status/"+url.PathEscape(token), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
