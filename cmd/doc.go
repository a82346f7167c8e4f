// Package cmd provides CLI commands for the mystery challenge system.
//
// # Commands
//
// vault-server: Runs the prize vault HTTP service. Accepts challenge
// packages, issues authentication sessions, and verifies candidate
// sequences against stored challenges. Backed by Postgres or an in-memory
// store.
//
//	go run ./cmd/vault-server --listen-addr=:1776
//	go run ./cmd/vault-server --config=vault.yaml --storage=postgres
//
// mystery-demo: Walks the complete challenge exchange in process: key
// provisioning, prize draw, mapping commitment, secret registration,
// transform, finalize, and a wrong-then-right verification. With
// --vault-url the finalized package is also pushed through a running
// vault server.
//
//	go run ./cmd/mystery-demo --secret="hunter2!"
//	go run ./cmd/mystery-demo --vault-url=http://localhost:1776
//
// # Configuration
//
// The vault-server command supports a YAML configuration file via the
// --config flag. Command-line flags override config file values.
//
// Example config:
//
//	listen_addr: ":1776"
//	metrics_addr: ":9090"
//	log_json: true
//	protocol:
//	  params:
//	    poly_degree: 8192
//	    plain_modulus: 65537
//	  segments: 10
//	  exposed_length: 64
//	session_timeout_minutes: 30
//	max_attempts: 3
//	max_failed_per_hour: 20
//	storage:
//	  backend: "postgres"
//	  postgres:
//	    host: "localhost"
//	    port: 5432
//	    user: "vault"
//	    password: "vault"
//	    database: "vault"
package cmd
