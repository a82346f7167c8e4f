/*
# Vault Services Package

The services package provides the prize vault: an HTTP service that stores
sealed challenge packages and arbitrates solution attempts against them.

## Overview

The vault is the collaborator both protocol parties hand their artifacts to.
It never holds decryption keys at rest, enabling:
- Challenge custody without trust in the host
- Session-scoped authentication with attempt budgets
- Per-user rate limiting on failed attempts
- Pluggable persistence (PostgreSQL or in-memory)

## Components

### Vault Service

1. **Vault** (`vault.go`)
  - Validates, deduplicates and stores challenge packages
  - Issues authentication sessions against unused challenges
  - Runs blinded verification with caller-supplied keys
  - Tracks attempts for session budgets and rate limits

2. **VaultHandler** (`handlers.go`)
  - Exposes the vault over HTTP via the base server
  - Endpoints:
  - `POST /submit-challenge` - Store a sealed challenge package
  - `POST /authentication-challenge` - Open a session, returns the obfuscated mapping
  - `POST /verify-solution` - Verify a target sequence against the session's challenge
  - `GET /session-status/{token}` - Session record and validity
  - `GET /rate-limit-status/{token}` - Failure budget for the session's user

3. **VaultClient** (`client.go`)
  - Typed client over the five endpoints

### Stores

`VaultStore` (`store.go`) persists challenges, sessions and attempts.
`PostgresStore` (`postgres_store.go`) backs production deployments;
`InMemoryStore` (`memory_store.go`) backs tests and single-node runs.

## Usage

```go
import "github.com/mfrager/mystery/services"

store := services.NewInMemoryStore()
vault := services.NewVault(services.VaultConfig{
    Protocol: protocol.DefaultConfig(),
}, store)

srv, err := httpserver.New(&httpserver.HTTPServerConfig{
    ListenAddr:  ":1776",
    MetricsAddr: ":9090",
    Log:         log,
}, services.NewVaultHandler(vault))
```

## Request Flow

1. **Submission**:
  - Owner finalizes a challenge package off-host
  - Package and real mapping table are submitted once
  - Vault hashes both for dedup, extends the mapping, stores the record

2. **Authentication**:
  - User requests a session under a key name
  - Vault selects the lowest-index unused challenge
  - Returns a session token and the extended mapping only

3. **Verification**:
  - User derives a target sequence from the mapping and their secret
  - Verifier keys travel with the request and are dropped after use
  - A match consumes the challenge and closes the session;
    a mismatch spends one attempt and counts toward the rate limit

## Status Codes

- `201` challenge stored
- `400` validation failure
- `404` unknown token or no unused challenges
- `409` duplicate package/mapping, or mapping already verified
- `410` session expired, exhausted, or already verified
- `429` failed-attempt budget exceeded
*/
package services
