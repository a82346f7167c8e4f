package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements VaultStore with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vault_challenges (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		key_name VARCHAR(64) NOT NULL,
		key_index INTEGER NOT NULL,
		file_hash VARCHAR(64) NOT NULL,
		package BYTEA NOT NULL,
		mapping_json TEXT NOT NULL,
		mapping_hash VARCHAR(64) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		is_used BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_vault_challenges_file_hash ON vault_challenges(file_hash);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vault_challenges_mapping_hash ON vault_challenges(mapping_hash);
	CREATE INDEX IF NOT EXISTS idx_vault_challenges_selection ON vault_challenges(user_id, key_name, is_used, key_index);

	CREATE TABLE IF NOT EXISTS vault_sessions (
		id VARCHAR(36) PRIMARY KEY,
		session_token VARCHAR(64) NOT NULL,
		challenge_id VARCHAR(36) NOT NULL REFERENCES vault_challenges(id),
		user_id VARCHAR(36) NOT NULL,
		mapping_hash VARCHAR(64) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_vault_sessions_token ON vault_sessions(session_token);
	CREATE INDEX IF NOT EXISTS idx_vault_sessions_mapping ON vault_sessions(mapping_hash);

	CREATE TABLE IF NOT EXISTS vault_attempts (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL REFERENCES vault_sessions(id),
		user_id VARCHAR(36) NOT NULL,
		was_successful BOOLEAN NOT NULL,
		attempted_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_vault_attempts_user_time ON vault_attempts(user_id, attempted_at);
	CREATE INDEX IF NOT EXISTS idx_vault_attempts_session ON vault_attempts(session_id);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// mapUniqueViolation translates Postgres unique-index violations into the
// store's sentinel errors.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "idx_vault_challenges_file_hash":
			return ErrDuplicateFile
		case "idx_vault_challenges_mapping_hash":
			return ErrDuplicateMapping
		case "idx_vault_sessions_token":
			return ErrDuplicateToken
		}
	}
	return err
}

// SaveChallenge inserts a new challenge record.
func (s *PostgresStore) SaveChallenge(ctx context.Context, rec *ChallengeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	mappingJSON, err := json.Marshal(rec.Mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	query := `
	INSERT INTO vault_challenges
		(id, user_id, key_name, key_index, file_hash, package, mapping_json, mapping_hash, created_at, is_used)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.KeyName,
		rec.KeyIndex,
		rec.FileHash,
		rec.Package,
		string(mappingJSON),
		rec.MappingHash,
		rec.CreatedAt,
		rec.Used,
	)
	return mapUniqueViolation(err)
}

const challengeColumns = `id, user_id, key_name, key_index, file_hash, package, mapping_json, mapping_hash, created_at, is_used`

func (s *PostgresStore) scanChallenge(row *sql.Row) (*ChallengeRecord, error) {
	var (
		rec         ChallengeRecord
		mappingJSON string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.KeyName, &rec.KeyIndex, &rec.FileHash,
		&rec.Package, &mappingJSON, &rec.MappingHash, &rec.CreatedAt, &rec.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning challenge: %w", err)
	}
	if err := json.Unmarshal([]byte(mappingJSON), &rec.Mapping); err != nil {
		return nil, fmt.Errorf("decode stored mapping: %w", err)
	}
	return &rec, nil
}

// ChallengeByID loads a challenge record.
func (s *PostgresStore) ChallengeByID(ctx context.Context, id string) (*ChallengeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM vault_challenges WHERE id = $1`, id)
	return s.scanChallenge(row)
}

// ChallengeByFileHash loads the challenge with the given file hash.
func (s *PostgresStore) ChallengeByFileHash(ctx context.Context, hash string) (*ChallengeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM vault_challenges WHERE file_hash = $1`, hash)
	return s.scanChallenge(row)
}

// ChallengeByMappingHash loads the challenge with the given mapping hash.
func (s *PostgresStore) ChallengeByMappingHash(ctx context.Context, hash string) (*ChallengeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM vault_challenges WHERE mapping_hash = $1`, hash)
	return s.scanChallenge(row)
}

// NextUnusedChallenge returns the unused challenge for (user, key name) with
// the lowest key index.
func (s *PostgresStore) NextUnusedChallenge(ctx context.Context, userID, keyName string) (*ChallengeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM vault_challenges
		WHERE user_id = $1 AND key_name = $2 AND is_used = FALSE
		ORDER BY key_index ASC
		LIMIT 1`, userID, keyName)
	return s.scanChallenge(row)
}

// MarkChallengeUsed consumes a challenge after a successful verification.
func (s *PostgresStore) MarkChallengeUsed(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE vault_challenges SET is_used = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession inserts a new session.
func (s *PostgresStore) CreateSession(ctx context.Context, rec *SessionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO vault_sessions
		(id, session_token, challenge_id, user_id, mapping_hash, created_at, expires_at, is_verified, attempts, max_attempts)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Token,
		rec.ChallengeID,
		rec.UserID,
		rec.MappingHash,
		rec.CreatedAt,
		rec.ExpiresAt,
		rec.Verified,
		rec.Attempts,
		rec.MaxAttempts,
	)
	return mapUniqueViolation(err)
}

// SessionByToken loads a session by its token.
func (s *PostgresStore) SessionByToken(ctx context.Context, token string) (*SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec SessionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_token, challenge_id, user_id, mapping_hash, created_at, expires_at, is_verified, attempts, max_attempts
		FROM vault_sessions WHERE session_token = $1`, token).
		Scan(&rec.ID, &rec.Token, &rec.ChallengeID, &rec.UserID, &rec.MappingHash,
			&rec.CreatedAt, &rec.ExpiresAt, &rec.Verified, &rec.Attempts, &rec.MaxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return &rec, nil
}

// UpdateSession persists the mutable session fields.
func (s *PostgresStore) UpdateSession(ctx context.Context, rec *SessionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE vault_sessions SET attempts = $2, is_verified = $3 WHERE id = $1`,
		rec.ID, rec.Attempts, rec.Verified)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAttempt inserts a solution attempt.
func (s *PostgresStore) RecordAttempt(ctx context.Context, rec *AttemptRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_attempts (id, session_id, user_id, was_successful, attempted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.SessionID, rec.UserID, rec.Successful, rec.AttemptedAt)
	return err
}

// HasSuccessForMapping reports whether any session for the mapping hash has
// a successful attempt on record.
func (s *PostgresStore) HasSuccessForMapping(ctx context.Context, mappingHash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vault_attempts a
			JOIN vault_sessions s ON a.session_id = s.id
			WHERE s.mapping_hash = $1 AND a.was_successful = TRUE
		)`, mappingHash).Scan(&exists)
	return exists, err
}

// CountFailedAttempts counts a user's failed attempts since the cutoff.
func (s *PostgresStore) CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vault_attempts
		WHERE user_id = $1 AND attempted_at >= $2 AND was_successful = FALSE`,
		userID, since).Scan(&count)
	return count, err
}

// OldestFailedAttempt returns the time of the user's oldest failed attempt
// since the cutoff.
func (s *PostgresStore) OldestFailedAttempt(ctx context.Context, userID string, since time.Time) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT attempted_at FROM vault_attempts
		WHERE user_id = $1 AND attempted_at >= $2 AND was_successful = FALSE
		ORDER BY attempted_at ASC
		LIMIT 1`, userID, since).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
