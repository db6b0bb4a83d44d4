package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	sqlitestore "github.com/mohamed2108268/Smart-Access/internal/access/store/sqlite"
)

// ── Create / Get ────────────────────────────────────────────────────────────

func TestAccountStore_CreateAndGet(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccountStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	id, err := as.CreateAccount(ctx, store.Account{
		Username:      "alice",
		PasswordHash:  "hash",
		FullName:      "Alice A",
		TenantID:      1,
		FaceTemplate:  []byte("face"),
		VoiceTemplate: []byte("voice"),
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	a, err := as.GetAccountByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAccountByUsername: %v", err)
	}
	if a.ID != id {
		t.Errorf("expected id %d, got %d", id, a.ID)
	}
	if a.FullName != "Alice A" || a.TenantID != 1 {
		t.Errorf("unexpected account: %+v", a)
	}
	if string(a.FaceTemplate) != "face" || string(a.VoiceTemplate) != "voice" {
		t.Errorf("templates not round-tripped: %q %q", a.FaceTemplate, a.VoiceTemplate)
	}
	if a.IsFrozen || a.FailedAttempts != 0 {
		t.Errorf("new account should be clean, got %+v", a)
	}

	if _, err := as.GetAccount(ctx, id+100); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := as.GetAccountByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountStore_CreateDuplicateUsername(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccountStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if _, err := as.CreateAccount(ctx, store.Account{Username: "bob", PasswordHash: "x", TenantID: 1}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	_, err := as.CreateAccount(ctx, store.Account{Username: "bob", PasswordHash: "y", TenantID: 1})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

// ── UpdateCounters ──────────────────────────────────────────────────────────

func TestAccountStore_UpdateCounters_FreezeAndReset(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccountStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	id, err := as.CreateAccount(ctx, store.Account{Username: "carol", PasswordHash: "x", TenantID: 1})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	frozenAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	got, err := as.UpdateCounters(ctx, id, func(cur store.Counters) store.Counters {
		return store.Counters{FailedAttempts: cur.FailedAttempts + 3, IsFrozen: true, FrozenAt: &frozenAt}
	})
	if err != nil {
		t.Fatalf("UpdateCounters: %v", err)
	}
	if got.FailedAttempts != 3 || !got.IsFrozen {
		t.Errorf("unexpected counters: %+v", got)
	}

	a, _ := as.GetAccount(ctx, id)
	if !a.IsFrozen || a.FrozenAt == nil || !a.FrozenAt.Equal(frozenAt) {
		t.Errorf("frozen state not stored: %+v", a)
	}

	frozen, err := as.ListFrozen(ctx, 1)
	if err != nil {
		t.Fatalf("ListFrozen: %v", err)
	}
	if len(frozen) != 1 || frozen[0].Username != "carol" {
		t.Errorf("expected carol frozen, got %+v", frozen)
	}

	if _, err := as.UpdateCounters(ctx, id, func(store.Counters) store.Counters { return store.Counters{} }); err != nil {
		t.Fatalf("UpdateCounters reset: %v", err)
	}
	a, _ = as.GetAccount(ctx, id)
	if a.IsFrozen || a.FailedAttempts != 0 || a.FrozenAt != nil {
		t.Errorf("expected reset counters, got %+v", a)
	}
}

func TestAccountStore_UpdateCounters_ConcurrentIncrementsNotLost(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccountStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	id, err := as.CreateAccount(ctx, store.Account{Username: "dave", PasswordHash: "x", TenantID: 1})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = as.UpdateCounters(ctx, id, func(cur store.Counters) store.Counters {
				cur.FailedAttempts++
				return cur
			})
		}()
	}
	wg.Wait()

	a, _ := as.GetAccount(ctx, id)
	if a.FailedAttempts != n {
		t.Errorf("expected %d failed attempts, got %d", n, a.FailedAttempts)
	}
}

func TestAccountStore_UpdateCounters_Missing(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccountStore(conn, newTestWriter(t, conn))

	_, err := as.UpdateCounters(context.Background(), 42, func(c store.Counters) store.Counters { return c })
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ── SetTemplates ────────────────────────────────────────────────────────────

func TestAccountStore_SetTemplates(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccountStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	id, _ := as.CreateAccount(ctx, store.Account{Username: "erin", PasswordHash: "x", TenantID: 1})
	if err := as.SetTemplates(ctx, id, []byte("f2"), []byte("v2")); err != nil {
		t.Fatalf("SetTemplates: %v", err)
	}
	a, _ := as.GetAccount(ctx, id)
	if string(a.FaceTemplate) != "f2" || string(a.VoiceTemplate) != "v2" {
		t.Errorf("templates not replaced: %q %q", a.FaceTemplate, a.VoiceTemplate)
	}

	if err := as.SetTemplates(ctx, id+1, nil, nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
