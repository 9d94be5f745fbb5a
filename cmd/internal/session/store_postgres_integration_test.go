package session

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when BEACON_DATABASE_URL is set and assume
// the beacon.sessions table exists (see the DDL in store_postgres.go).
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_EnsureGetSaveDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustTestPool(ctx, t)
	defer pool.Close()

	store := mustTestStore(t, pool)
	sessionID := newTestSessionID(t)
	t.Cleanup(func() { cleanupSession(ctx, pool, sessionID) })

	now := time.Now().UTC().Truncate(time.Microsecond)

	sess, err := store.Ensure(ctx, sessionID, now)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if sess.SessionID != sessionID || len(sess.Devices) != 0 || len(sess.Messages) != 0 {
		t.Fatalf("unexpected fresh session: %+v", sess)
	}
	if !sess.CreatedAt.UTC().Truncate(time.Microsecond).Equal(now) {
		t.Fatalf("CreatedAt: got=%v want=%v", sess.CreatedAt, now)
	}

	sess.Devices = append(sess.Devices, Device{
		ID:           "dev-1",
		UserAgent:    "beacon-test/1.0",
		Name:         "integration",
		JoinedAt:     now,
		LastActiveAt: now,
	})
	sess.Messages = append(sess.Messages, Message{
		ID:     "msg-1",
		Type:   "text",
		Sender: "dev-1",
		SentAt: now,
		Text:   "hello",
	})

	saved := now.Add(time.Second)
	if err := store.Save(ctx, &sess, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Devices) != 1 || got.Devices[0].ID != "dev-1" {
		t.Fatalf("devices round trip: %+v", got.Devices)
	}
	if len(got.Messages) != 1 || got.Messages[0].Text != "hello" {
		t.Fatalf("messages round trip: %+v", got.Messages)
	}
	if !got.UpdatedAt.UTC().Truncate(time.Microsecond).Equal(saved) {
		t.Fatalf("UpdatedAt: got=%v want=%v", got.UpdatedAt, saved)
	}
	if !got.CreatedAt.UTC().Truncate(time.Microsecond).Equal(now) {
		t.Fatalf("CreatedAt changed on save: got=%v want=%v", got.CreatedAt, now)
	}

	if err := store.Delete(ctx, sessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, sessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, sessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double delete, got %v", err)
	}
}

func TestPostgresStore_EnsureIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustTestPool(ctx, t)
	defer pool.Close()

	store := mustTestStore(t, pool)
	sessionID := newTestSessionID(t)
	t.Cleanup(func() { cleanupSession(ctx, pool, sessionID) })

	now := time.Now().UTC().Truncate(time.Microsecond)

	sess, err := store.Ensure(ctx, sessionID, now)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	sess.Devices = append(sess.Devices, Device{ID: "dev-1", JoinedAt: now, LastActiveAt: now})
	if err := store.Save(ctx, &sess, now.Add(time.Second)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := store.Ensure(ctx, sessionID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if len(again.Devices) != 1 {
		t.Fatalf("re-ensure must not reset the document: %+v", again)
	}
	if !again.CreatedAt.UTC().Truncate(time.Microsecond).Equal(now) {
		t.Fatalf("CreatedAt changed on re-ensure: got=%v want=%v", again.CreatedAt, now)
	}
}

func TestPostgresStore_SaveAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustTestPool(ctx, t)
	defer pool.Close()

	store := mustTestStore(t, pool)

	sess := Session{SessionID: newTestSessionID(t)}
	if err := store.Save(ctx, &sess, time.Now().UTC()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func mustTestPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("BEACON_DATABASE_URL")
	if dbURL == "" {
		t.Skip("BEACON_DATABASE_URL is not set; skipping Postgres integration test")
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("pgxpool.ParseConfig: %v", err)
	}

	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pgxpool.NewWithConfig: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (BEACON_DATABASE_URL set): %v", err)
		}
		t.Fatalf("pool.Ping: %v", err)
	}

	return pool
}

func mustTestStore(t *testing.T, pool *pgxpool.Pool) *PostgresStore {
	t.Helper()

	schema := os.Getenv("BEACON_TEST_DB_SCHEMA")
	if schema == "" {
		schema = "beacon"
	}

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return store
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

func newTestSessionID(t *testing.T) string {
	t.Helper()

	entropy := ulid.Monotonic(rand.Reader, 0)
	return "it-" + ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

func cleanupSession(ctx context.Context, pool *pgxpool.Pool, sessionID string) {
	schema := os.Getenv("BEACON_TEST_DB_SCHEMA")
	if schema == "" {
		schema = "beacon"
	}
	_, _ = pool.Exec(ctx, `DELETE FROM `+pgIdent(schema, "sessions")+` WHERE session_id = $1`, sessionID)
}
