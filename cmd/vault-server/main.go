// Command vault-server runs the prize vault HTTP service.
//
// The vault stores sealed challenge packages and arbitrates solution
// attempts against them: it deduplicates submissions, issues bounded
// authentication sessions, enforces per-user failure budgets, and runs
// blinded verification with keys supplied per request. It never holds
// decryption keys at rest.
//
// # Configuration File
//
// Create a YAML file with server settings:
//
//	listen_addr: ":1776"
//	metrics_addr: ":9090"
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
//	  backend: "postgres"   # postgres or memory
//	  postgres:
//	    host: "localhost"
//	    port: 5432
//	    user: "vault"
//	    password: "secret"
//	    database: "mystery"
//
// Submitters must finalize their challenges against the same protocol
// parameters the vault is configured with.
//
// # Usage
//
//	go run ./cmd/vault-server --config=vault.yaml
//	go run ./cmd/vault-server --storage=memory --listen-addr=:1776
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mfrager/mystery/api/httpserver"
	"github.com/mfrager/mystery/cmd/common"
	buildinfo "github.com/mfrager/mystery/common"
	"github.com/mfrager/mystery/services"
)

// corsRegistrar installs permissive CORS ahead of the vault routes so
// browser-based clients can call the API directly. It must precede route
// registration, so it is passed to the server before the vault handler.
type corsRegistrar struct{}

func (corsRegistrar) RegisterRoutes(r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		listenAddr  = flag.String("listen-addr", "", "HTTP listen address (overrides config)")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (overrides config)")
		storage     = flag.String("storage", "", "Storage backend: postgres or memory (overrides config)")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debugging API")
		logJSON     = flag.Bool("log-json", false, "Log JSON instead of text")
		logDebug    = flag.Bool("log-debug", false, "Log debug messages")
	)
	flag.Parse()

	cfg, err := common.LoadVaultServerConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *storage != "" {
		cfg.Storage.Backend = *storage
	}
	if *enablePprof {
		cfg.EnablePprof = true
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	if *logDebug {
		cfg.LogDebug = true
	}

	log := common.SetupLogger(cfg.LogJSON, cfg.LogDebug)

	if err := cfg.Protocol.Validate(); err != nil {
		log.Error("Invalid protocol configuration", "err", err)
		os.Exit(1)
	}

	store, closeStore, err := common.NewVaultStore(&cfg.Storage)
	if err != nil {
		log.Error("Storage setup failed", "err", err)
		os.Exit(1)
	}

	vault := services.NewVault(cfg.VaultConfig(log), store)

	srv, err := httpserver.New(cfg.ServerConfig(log),
		corsRegistrar{},
		services.NewVaultHandler(vault),
	)
	if err != nil {
		log.Error("Server setup failed", "err", err)
		os.Exit(1)
	}

	log.Info("Starting vault server",
		"version", buildinfo.Version,
		"listenAddr", cfg.ListenAddr,
		"metricsAddr", cfg.MetricsAddr,
		"storage", cfg.Storage.Backend,
		"polyDegree", cfg.Protocol.Params.PolyDegree,
		"segments", cfg.Protocol.Segments,
	)
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down vault server...")
	srv.Shutdown()
	if err := closeStore(); err != nil {
		log.Error("Closing store failed", "err", err)
	}
}
