package services

import (
	"context"
	"testing"
	"time"

	"github.com/mfrager/mystery/crypto"
	"github.com/mfrager/mystery/protocol"
	"github.com/mfrager/mystery/testutil"
	"github.com/stretchr/testify/require"
)

func testVaultConfig() VaultConfig {
	return VaultConfig{
		Protocol: *testutil.NewTestConfig(
			testutil.WithSegments(4),
			testutil.WithExposedLength(8),
		),
	}
}

const testUserID = "a3bb189e-8bf9-4888-9912-ace4e6543002"

// fakePackage fabricates a parseable challenge package without running any
// lattice arithmetic, together with a fresh mapping of matching length.
// nonce varies the package bytes so file hashes differ between calls.
func fakePackage(t *testing.T, positions int, nonce byte) ([]byte, protocol.MappingTable) {
	t.Helper()

	seq := make([][]byte, positions)
	for i := range seq {
		seq[i] = []byte{nonce, byte(i)}
	}
	final := &protocol.FinalPackage{
		SequenceData: seq,
		Prize: protocol.PrizeBundle{
			Chunks:       [][]byte{{nonce}},
			SequenceSalt: []byte{1, 2, 3},
			ChunkBits:    8,
			NumChunks:    protocol.PrizeTotalBytes,
			ParityBytes:  protocol.PrizeParityBytes,
		},
	}
	data, err := protocol.SerializeMessage(final)
	require.NoError(t, err)

	table, err := protocol.GenerateMappings(positions, 4)
	require.NoError(t, err)
	return data, table
}

func submission(pkg []byte, table protocol.MappingTable, keyIndex int) *ChallengeSubmission {
	return &ChallengeSubmission{
		Package:  pkg,
		Mapping:  table,
		UserID:   testUserID,
		KeyName:  "login",
		KeyIndex: keyIndex,
		Segments: 4,
	}
}

func TestSubmitChallengeValidation(t *testing.T) {
	ctx := context.Background()
	vault := NewVault(testVaultConfig(), NewInMemoryStore())
	pkg, table := fakePackage(t, 5, 1)

	cases := []struct {
		name string
		mod  func(*ChallengeSubmission)
	}{
		{"bad user id", func(s *ChallengeSubmission) { s.UserID = "not-a-uuid" }},
		{"empty key name", func(s *ChallengeSubmission) { s.KeyName = "" }},
		{"oversized key name", func(s *ChallengeSubmission) {
			long := make([]byte, 65)
			for i := range long {
				long[i] = 'k'
			}
			s.KeyName = string(long)
		}},
		{"negative key index", func(s *ChallengeSubmission) { s.KeyIndex = -1 }},
		{"empty package", func(s *ChallengeSubmission) { s.Package = nil }},
		{"garbage package", func(s *ChallengeSubmission) { s.Package = []byte("not json") }},
		{"empty mapping", func(s *ChallengeSubmission) { s.Mapping = nil }},
		{"length mismatch", func(s *ChallengeSubmission) {
			short, err := protocol.GenerateMappings(3, 4)
			require.NoError(t, err)
			s.Mapping = short
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := submission(pkg, table, 0)
			tc.mod(sub)
			_, err := vault.SubmitChallenge(ctx, sub)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// The unmodified submission passes.
	rec, err := vault.SubmitChallenge(ctx, submission(pkg, table, 0))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
}

func TestSubmitChallengeDedupAndExtension(t *testing.T) {
	ctx := context.Background()
	cfg := testVaultConfig()
	vault := NewVault(cfg, NewInMemoryStore())

	pkg, table := fakePackage(t, 5, 7)
	rec, err := vault.SubmitChallenge(ctx, submission(pkg, table, 0))
	require.NoError(t, err)

	// Stored mapping is extended to the exposed length; the hash still
	// covers the real table.
	require.Len(t, rec.Mapping, cfg.Protocol.ExposedLength)
	wantHash, err := mappingHash(table)
	require.NoError(t, err)
	require.Equal(t, wantHash, rec.MappingHash)
	require.Equal(t, fileHash(pkg), rec.FileHash)
	require.False(t, rec.Used)

	// Same package bytes, fresh mapping: file dedup trips first.
	_, otherTable := fakePackage(t, 5, 8)
	_, err = vault.SubmitChallenge(ctx, submission(pkg, otherTable, 1))
	require.ErrorIs(t, err, ErrDuplicateFile)

	// Fresh package bytes, same mapping: mapping dedup trips.
	otherPkg, _ := fakePackage(t, 5, 9)
	_, err = vault.SubmitChallenge(ctx, submission(otherPkg, table, 1))
	require.ErrorIs(t, err, ErrDuplicateMapping)
}

func TestIssueSessionSelection(t *testing.T) {
	ctx := context.Background()
	cfg := testVaultConfig()
	vault := NewVault(cfg, NewInMemoryStore())

	_, _, err := vault.IssueSession(ctx, testUserID, "login", 0)
	require.ErrorIs(t, err, ErrNoChallenges)

	pkgHigh, tableHigh := fakePackage(t, 5, 20)
	recHigh, err := vault.SubmitChallenge(ctx, submission(pkgHigh, tableHigh, 2))
	require.NoError(t, err)
	pkgLow, tableLow := fakePackage(t, 5, 21)
	recLow, err := vault.SubmitChallenge(ctx, submission(pkgLow, tableLow, 1))
	require.NoError(t, err)

	// The lowest key index wins regardless of insertion order.
	sess, mapping, err := vault.IssueSession(ctx, testUserID, "login", 0)
	require.NoError(t, err)
	require.Equal(t, recLow.ID, sess.ChallengeID)
	require.Equal(t, recLow.MappingHash, sess.MappingHash)
	require.NotEqual(t, recHigh.MappingHash, sess.MappingHash)
	require.Len(t, mapping, cfg.Protocol.ExposedLength)
	require.NotEmpty(t, sess.Token)
	require.Equal(t, DefaultMaxAttempts, sess.MaxAttempts)
	require.WithinDuration(t, time.Now().Add(DefaultSessionTimeout), sess.ExpiresAt, time.Minute)

	// A custom timeout moves the expiry; sessions do not consume the
	// challenge, so the same one is served again.
	sess2, _, err := vault.IssueSession(ctx, testUserID, "login", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, recLow.ID, sess2.ChallengeID)
	require.WithinDuration(t, time.Now().Add(5*time.Minute), sess2.ExpiresAt, time.Minute)

	// Unknown key names and users have nothing to serve.
	_, _, err = vault.IssueSession(ctx, testUserID, "other-key", 0)
	require.ErrorIs(t, err, ErrNoChallenges)
	_, _, err = vault.IssueSession(ctx, "b3bb189e-8bf9-4888-9912-ace4e6543002", "login", 0)
	require.ErrorIs(t, err, ErrNoChallenges)

	_, _, err = vault.IssueSession(ctx, "bogus", "login", 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

// plantSession inserts a session directly so tests can shape expiry,
// attempts and verified state without going through the issue path.
func plantSession(t *testing.T, store VaultStore, sess *SessionRecord) *SessionRecord {
	t.Helper()
	if sess.ID == "" {
		id, err := newRecordID()
		require.NoError(t, err)
		sess.ID = id
	}
	if sess.Token == "" {
		token, err := newSessionToken()
		require.NoError(t, err)
		sess.Token = token
	}
	if sess.MaxAttempts == 0 {
		sess.MaxAttempts = DefaultMaxAttempts
	}
	require.NoError(t, store.CreateSession(context.Background(), sess))
	return sess
}

// plantAttempt inserts an attempt record directly.
func plantAttempt(t *testing.T, store VaultStore, sessionID, userID string, successful bool, at time.Time) {
	t.Helper()
	id, err := newRecordID()
	require.NoError(t, err)
	require.NoError(t, store.RecordAttempt(context.Background(), &AttemptRecord{
		ID:          id,
		SessionID:   sessionID,
		UserID:      userID,
		Successful:  successful,
		AttemptedAt: at,
	}))
}

func TestVerifySolutionGuards(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := NewVault(testVaultConfig(), store)
	dummySet := &crypto.VerifierPrivateSet{}
	target := []uint64{1, 2, 3}

	_, err := vault.VerifySolution(ctx, "", target, dummySet)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = vault.VerifySolution(ctx, "tok", nil, dummySet)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = vault.VerifySolution(ctx, "tok", target, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = vault.VerifySolution(ctx, "tok", []uint64{65537}, dummySet)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = vault.VerifySolution(ctx, "unknown-token", target, dummySet)
	require.ErrorIs(t, err, ErrSessionNotFound)

	now := time.Now().UTC()

	expired := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	})
	_, err = vault.VerifySolution(ctx, expired.Token, target, dummySet)
	require.ErrorIs(t, err, ErrSessionSpent)

	exhausted := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour), Attempts: 3,
	})
	_, err = vault.VerifySolution(ctx, exhausted.Token, target, dummySet)
	require.ErrorIs(t, err, ErrSessionSpent)

	verified := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour), Verified: true,
	})
	_, err = vault.VerifySolution(ctx, verified.Token, target, dummySet)
	require.ErrorIs(t, err, ErrSessionSpent)
}

func TestVerifySolutionRateLimit(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := NewVault(testVaultConfig(), store)
	now := time.Now().UTC()

	sess := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	for i := 0; i < DefaultFailedPerHour; i++ {
		plantAttempt(t, store, sess.ID, testUserID, false, now.Add(-time.Duration(i)*time.Minute))
	}

	_, err := vault.VerifySolution(ctx, sess.Token, []uint64{1}, &crypto.VerifierPrivateSet{})
	require.ErrorIs(t, err, ErrRateLimited)

	// Another user with the same store is unaffected by the budget; their
	// call fails later, on the planted session's missing challenge record.
	other := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: "b3bb189e-8bf9-4888-9912-ace4e6543002", MappingHash: "m2",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	_, err = vault.VerifySolution(ctx, other.Token, []uint64{1}, &crypto.VerifierPrivateSet{})
	require.NotErrorIs(t, err, ErrRateLimited)
}

func TestVerifySolutionMappingConsumed(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := NewVault(testVaultConfig(), store)
	now := time.Now().UTC()

	winner := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "shared-mapping",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour), Verified: true,
	})
	plantAttempt(t, store, winner.ID, testUserID, true, now)

	// A fresh session against the same mapping hash is rejected before any
	// cryptography runs.
	retry := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "shared-mapping",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	_, err := vault.VerifySolution(ctx, retry.Token, []uint64{1}, &crypto.VerifierPrivateSet{})
	require.ErrorIs(t, err, ErrMappingConsumed)
}

func TestVerifySolutionRejectsBadKeySet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := NewVault(testVaultConfig(), store)

	pkg, table := fakePackage(t, 5, 30)
	rec, err := vault.SubmitChallenge(ctx, submission(pkg, table, 0))
	require.NoError(t, err)
	sess, _, err := vault.IssueSession(ctx, testUserID, "login", 0)
	require.NoError(t, err)
	require.Equal(t, rec.ID, sess.ChallengeID)

	// An empty key set fails to load and is reported as caller error, not
	// as an internal one.
	_, err = vault.VerifySolution(ctx, sess.Token, []uint64{1, 2, 3, 4, 1}, &crypto.VerifierPrivateSet{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSessionStatus(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := NewVault(testVaultConfig(), store)
	now := time.Now().UTC()

	_, _, err := vault.SessionStatus(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = vault.SessionStatus(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	live := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	got, valid, err := vault.SessionStatus(ctx, live.Token)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, live.ID, got.ID)

	dead := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	})
	_, valid, err = vault.SessionStatus(ctx, dead.Token)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestRateLimitStatus(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := NewVault(testVaultConfig(), store)
	now := time.Now().UTC()

	sess := plantSession(t, store, &SessionRecord{
		ChallengeID: "c1", UserID: testUserID, MappingHash: "m1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})

	status, err := vault.RateLimitStatus(ctx, sess.Token)
	require.NoError(t, err)
	require.False(t, status.Limited)
	require.Zero(t, status.FailedUsed)
	require.Equal(t, DefaultFailedPerHour, status.MaxPerHour)
	require.Equal(t, DefaultFailedPerHour, status.Remaining)
	require.Nil(t, status.ResetAt)

	// Three failures inside the window, one stale failure outside it, and
	// one success that never counts.
	oldest := now.Add(-50 * time.Minute)
	plantAttempt(t, store, sess.ID, testUserID, false, oldest)
	plantAttempt(t, store, sess.ID, testUserID, false, now.Add(-10*time.Minute))
	plantAttempt(t, store, sess.ID, testUserID, false, now.Add(-time.Minute))
	plantAttempt(t, store, sess.ID, testUserID, false, now.Add(-2*time.Hour))
	plantAttempt(t, store, sess.ID, testUserID, true, now.Add(-5*time.Minute))

	status, err = vault.RateLimitStatus(ctx, sess.Token)
	require.NoError(t, err)
	require.False(t, status.Limited)
	require.Equal(t, 3, status.FailedUsed)
	require.Equal(t, DefaultFailedPerHour-3, status.Remaining)
	require.NotNil(t, status.ResetAt)
	require.WithinDuration(t, oldest.Add(RateLimitWindow), *status.ResetAt, time.Second)

	_, err = vault.RateLimitStatus(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
