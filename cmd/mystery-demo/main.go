// Command mystery-demo runs the complete challenge exchange in process.
//
// The demo walks both parties through the protocol: the owner registers a
// secret and draws a prize, the verifier commits to a mapping table and
// transforms the registered ciphertexts, the owner finalizes the sealed
// package, and the verifier checks first a wrong candidate sequence and
// then the right one, recovering the prize.
//
// With --vault-url the finalized package is additionally pushed through a
// running vault server: submit, open a session, fail once, then verify and
// collect the prize over HTTP.
//
// # Usage
//
//	go run ./cmd/mystery-demo
//	go run ./cmd/mystery-demo --secret="my pass7!" --degree=8192 --segments=10
//	go run ./cmd/mystery-demo --vault-url=http://localhost:1776
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mfrager/mystery/crypto"
	"github.com/mfrager/mystery/protocol"
	"github.com/mfrager/mystery/services"
)

func main() {
	var (
		secret   = flag.String("secret", "hunter2!", "Secret string to register (protocol alphabet only)")
		degree   = flag.Int("degree", 4096, "BFV ring degree (4096, 8192 or 16384)")
		segments = flag.Int("segments", 4, "Mapping segment count")
		exposed  = flag.Int("exposed", 16, "Obfuscated mapping length")
		vaultURL = flag.String("vault-url", "", "Optional vault server URL for the HTTP leg")
		userID   = flag.String("user-id", "11111111-2222-4333-8444-555555555555", "User ID for the vault leg")
		keyName  = flag.String("key-name", "demo-key", "Key name for the vault leg")
	)
	flag.Parse()

	cfg := protocol.Config{
		Params:        crypto.Params{PolyDegree: *degree, PlainModulus: 65537},
		Segments:      *segments,
		ExposedLength: *exposed,
	}

	if err := run(cfg, *secret, *vaultURL, *userID, *keyName); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg protocol.Config, secret, vaultURL, userID, keyName string) error {
	eng, err := protocol.NewEngine(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Provisioning key domains (degree %d)...\n", cfg.Params.PolyDegree)
	start := time.Now()
	if err := eng.ProvisionKeys(); err != nil {
		return fmt.Errorf("provision keys: %w", err)
	}
	fmt.Printf("Key domains ready in %v\n", time.Since(start).Round(time.Millisecond))

	fmt.Println("Drawing prize...")
	prize, err := eng.GeneratePrize()
	if err != nil {
		return fmt.Errorf("generate prize: %w", err)
	}
	fmt.Printf("Prize (owner side): %s\n", prize)

	fmt.Printf("Generating mapping table for %d positions...\n", len(secret))
	table, err := eng.GenerateMappings(len(secret))
	if err != nil {
		return fmt.Errorf("generate mappings: %w", err)
	}

	digest, err := eng.Commit(table)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	fmt.Printf("Commitment digest: %s\n", digest)

	fmt.Println("Registering secret under the owner key...")
	if err := eng.Register(secret); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Println("Transforming registered ciphertexts...")
	if err := eng.Transform(); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	fmt.Println("Finalizing challenge package...")
	if err := eng.Finalize(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	alpha := protocol.NewAlphabet()
	right, err := eng.Mappings().SequenceFor(alpha, secret)
	if err != nil {
		return fmt.Errorf("derive sequence: %w", err)
	}
	wrong := mutateSequence(right, uint64(cfg.Segments))

	fmt.Println("Verifying a wrong candidate sequence...")
	result, err := eng.Verify(wrong)
	if err != nil {
		return fmt.Errorf("verify wrong candidate: %w", err)
	}
	fmt.Printf("Match: %v (expected false)\n", result.IsMatch)

	fmt.Println("Verifying the right candidate sequence...")
	result, err = eng.Verify(right)
	if err != nil {
		return fmt.Errorf("verify right candidate: %w", err)
	}
	if !result.IsMatch || result.Prize == nil {
		return fmt.Errorf("right candidate did not match")
	}
	fmt.Printf("Match: true, recovered prize: %s\n", result.Prize)
	if *result.Prize != prize {
		return fmt.Errorf("recovered prize differs from the drawn one")
	}
	fmt.Println("Recovered prize equals the drawn prize")

	if vaultURL == "" {
		return nil
	}
	return runVaultLeg(eng, cfg, secret, vaultURL, userID, keyName)
}

// runVaultLeg pushes the finalized package through a running vault server.
func runVaultLeg(eng *protocol.Engine, cfg protocol.Config, secret, vaultURL, userID, keyName string) error {
	ctx := context.Background()
	client := services.NewVaultClient(vaultURL)
	alpha := protocol.NewAlphabet()

	pkg, err := protocol.SerializeMessage(eng.Final())
	if err != nil {
		return fmt.Errorf("serialize package: %w", err)
	}
	verifierKeys, err := eng.VerifierPrivate()
	if err != nil {
		return fmt.Errorf("export verifier keys: %w", err)
	}

	fmt.Printf("\nSubmitting challenge package to %s...\n", vaultURL)
	submitResp, err := client.SubmitChallenge(ctx, &services.SubmitChallengeRequest{
		ChallengePackage: pkg,
		Mapping:          eng.Mappings(),
		UserID:           userID,
		KeyName:          keyName,
		KeyIndex:         0,
		Segments:         cfg.Segments,
	})
	if err != nil {
		return fmt.Errorf("submit challenge: %w", err)
	}
	fmt.Printf("Challenge stored: %s\n", submitResp.ChallengeID)

	fmt.Println("Requesting authentication challenge...")
	authResp, err := client.RequestAuthenticationChallenge(ctx, &services.AuthenticationChallengeRequest{
		UserID:         userID,
		KeyName:        keyName,
		TimeoutMinutes: 5,
	})
	if err != nil {
		return fmt.Errorf("authentication challenge: %w", err)
	}
	fmt.Printf("Session token: %s\n", authResp.SessionToken)
	fmt.Printf("Obfuscated mapping length: %d (secret length %d)\n", len(authResp.Mapping), len(secret))

	target, err := authResp.Mapping.SequenceFor(alpha, secret)
	if err != nil {
		return fmt.Errorf("derive target: %w", err)
	}
	wrong := mutateSequence(target, uint64(cfg.Segments))

	fmt.Println("Verifying a wrong candidate through the vault...")
	verifyResp, err := client.VerifySolution(ctx, &services.VerifySolutionRequest{
		SessionToken:    authResp.SessionToken,
		TargetSequence:  wrong,
		VerifierPrivate: verifierKeys,
	})
	if err != nil {
		return fmt.Errorf("verify wrong candidate: %w", err)
	}
	fmt.Printf("Match: %v (expected false)\n", verifyResp.IsMatch)

	rateResp, err := client.RateLimitStatus(ctx, authResp.SessionToken)
	if err != nil {
		return fmt.Errorf("rate limit status: %w", err)
	}
	fmt.Printf("Failed attempts this hour: %d of %d\n",
		rateResp.RateLimit.FailedUsed, rateResp.RateLimit.MaxPerHour)

	fmt.Println("Verifying the right candidate through the vault...")
	verifyResp, err = client.VerifySolution(ctx, &services.VerifySolutionRequest{
		SessionToken:    authResp.SessionToken,
		TargetSequence:  target,
		VerifierPrivate: verifierKeys,
	})
	if err != nil {
		return fmt.Errorf("verify right candidate: %w", err)
	}
	if !verifyResp.IsMatch {
		return fmt.Errorf("right candidate did not match through the vault")
	}
	fmt.Printf("Match: true, prize from vault: %s\n", verifyResp.PrizeValue)

	statusResp, err := client.SessionStatus(ctx, authResp.SessionToken)
	if err != nil {
		return fmt.Errorf("session status: %w", err)
	}
	fmt.Printf("Session verified: %v, attempts used: %d, still valid: %v\n",
		statusResp.Session.Verified, statusResp.Session.Attempts, statusResp.IsValid)

	return nil
}

// mutateSequence returns a copy of seq with the first value moved to a
// different segment, staying inside [1, segments].
func mutateSequence(seq []uint64, segments uint64) []uint64 {
	wrong := append([]uint64(nil), seq...)
	wrong[0]++
	if wrong[0] > segments {
		wrong[0] = 1
	}
	return wrong
}
