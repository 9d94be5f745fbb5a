package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Document model:
//   - One row per session; devices and messages are stored as JSONB
//     documents, mirroring the document shape the registry mutates. The
//     store persists; it never interprets roster or log contents.
//
// Expected DDL (managed outside the process, no runtime migrations):
//
//	CREATE TABLE beacon.sessions (
//	    session_id text PRIMARY KEY,
//	    devices    jsonb NOT NULL DEFAULT '[]',
//	    messages   jsonb NOT NULL DEFAULT '[]',
//	    created_at timestamptz NOT NULL,
//	    updated_at timestamptz NOT NULL
//	);
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "beacon").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("session: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("session: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "beacon",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("session: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Get returns the current document for id.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Session, error) {
	if s == nil || s.pool == nil {
		return Session{}, errors.New("session: nil store")
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	sessions := pgIdent(s.schema, "sessions")

	var (
		devicesJSON  []byte
		messagesJSON []byte
		out          Session
	)
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, devices, messages, created_at, updated_at
		   FROM `+sessions+`
		  WHERE session_id = $1`,
		sessionID,
	).Scan(&out.SessionID, &devicesJSON, &messagesJSON, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	if err := unmarshalDoc(devicesJSON, &out.Devices); err != nil {
		return Session{}, fmt.Errorf("decode devices: %w", err)
	}
	if err := unmarshalDoc(messagesJSON, &out.Messages); err != nil {
		return Session{}, fmt.Errorf("decode messages: %w", err)
	}
	if out.Devices == nil {
		out.Devices = []Device{}
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out, nil
}

// Ensure creates an empty document if absent and returns the current one.
// ON CONFLICT DO NOTHING makes the create race-free and idempotent.
func (s *PostgresStore) Ensure(ctx context.Context, sessionID string, now time.Time) (Session, error) {
	if s == nil || s.pool == nil {
		return Session{}, errors.New("session: nil store")
	}
	if sessionID == "" {
		return Session{}, ErrMissingSessionID
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	sessions := pgIdent(s.schema, "sessions")

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+sessions+` (session_id, devices, messages, created_at, updated_at)
		 VALUES ($1, '[]', '[]', $2, $2)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, now,
	); err != nil {
		return Session{}, err
	}

	return s.Get(ctx, sessionID)
}

// Delete removes the document for id.
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if s == nil || s.pool == nil {
		return errors.New("session: nil store")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sessions := pgIdent(s.schema, "sessions")

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+sessions+` WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Save persists the full document and refreshes UpdatedAt.
func (s *PostgresStore) Save(ctx context.Context, sess *Session, now time.Time) error {
	if s == nil || s.pool == nil {
		return errors.New("session: nil store")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	devicesJSON, err := json.Marshal(sess.Devices)
	if err != nil {
		return fmt.Errorf("encode devices: %w", err)
	}
	messagesJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	sessions := pgIdent(s.schema, "sessions")

	var createdAt time.Time
	err = s.pool.QueryRow(ctx,
		`UPDATE `+sessions+`
		    SET devices = $2,
		        messages = $3,
		        updated_at = $4
		  WHERE session_id = $1
		RETURNING created_at`,
		sess.SessionID, devicesJSON, messagesJSON, now,
	).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	sess.CreatedAt = createdAt
	sess.UpdatedAt = now
	return nil
}

func unmarshalDoc(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
