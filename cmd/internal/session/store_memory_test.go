package session

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_EnsureIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := st.Ensure(ctx, "s1", now)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if first.SessionID != "s1" || len(first.Devices) != 0 || len(first.Messages) != 0 {
		t.Fatalf("unexpected fresh session: %+v", first)
	}

	first.Devices = append(first.Devices, Device{ID: "d1"})
	if err := st.Save(ctx, &first, now.Add(time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := st.Ensure(ctx, "s1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if len(again.Devices) != 1 {
		t.Fatalf("re-ensure must not reset the document: %+v", again)
	}
	if !again.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt changed on re-ensure: got=%v want=%v", again.CreatedAt, now)
	}
}

func TestInMemoryStore_GetCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()
	now := time.Now().UTC()

	if _, err := st.Ensure(ctx, "s1", now); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	a, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a.Devices = append(a.Devices, Device{ID: "leak"})

	b, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(b.Devices) != 0 {
		t.Fatalf("mutation through Get copy leaked into the store")
	}
}

func TestInMemoryStore_GetAbsent(t *testing.T) {
	t.Parallel()

	if _, err := NewInMemoryStore().Get(context.Background(), "missing"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	if _, err := st.Ensure(ctx, "s1", time.Now().UTC()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(ctx, "s1"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound on double delete, got %v", err)
	}
}

func TestInMemoryStore_SaveRequiresExisting(t *testing.T) {
	t.Parallel()

	sess := Session{SessionID: "ghost"}
	if err := NewInMemoryStore().Save(context.Background(), &sess, time.Now().UTC()); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInMemoryStore_SaveRefreshesUpdatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	saved := created.Add(time.Minute)

	sess, err := st.Ensure(ctx, "s1", created)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	sess.CreatedAt = saved.Add(time.Hour) // must be ignored
	if err := st.Save(ctx, &sess, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !sess.CreatedAt.Equal(created) || !sess.UpdatedAt.Equal(saved) {
		t.Fatalf("caller copy timestamps: created=%v updated=%v", sess.CreatedAt, sess.UpdatedAt)
	}

	got, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(saved) {
		t.Fatalf("stored timestamps: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}
}
