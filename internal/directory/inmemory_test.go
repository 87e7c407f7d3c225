package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func seedAccount(t *testing.T, store *InMemory, id, userID, roll string, role Role) {
	t.Helper()
	err := store.Create(context.Background(), &Account{
		ID: id, Name: "User " + userID, UserID: userID, RollNumber: roll,
		Role: role, PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("seed %s: %v", userID, err)
	}
}

func TestInMemoryUniqueness(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleStudent)

	err := store.Create(context.Background(), &Account{ID: "a2", UserID: "u1", RollNumber: "R2"})
	if !errors.Is(err, ErrDuplicateUserID) {
		t.Fatalf("expected ErrDuplicateUserID, got %v", err)
	}
	err = store.Create(context.Background(), &Account{ID: "a3", UserID: "u3", RollNumber: "R1"})
	if !errors.Is(err, ErrDuplicateRollNumber) {
		t.Fatalf("expected ErrDuplicateRollNumber, got %v", err)
	}
}

func TestInMemoryClaimSessionExclusive(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleStudent)

	if err := store.ClaimSession(context.Background(), "a1", "tok-1", true); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := store.ClaimSession(context.Background(), "a1", "tok-2", true)
	if !errors.Is(err, ErrSessionHeld) {
		t.Fatalf("expected ErrSessionHeld, got %v", err)
	}
	acc, _ := store.Find(context.Background(), "a1")
	if acc.SessionToken != "tok-1" {
		t.Fatalf("rejected claim must not touch the token: %q", acc.SessionToken)
	}
}

func TestInMemoryClaimSessionRotation(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleFaculty)

	if err := store.ClaimSession(context.Background(), "a1", "tok-1", false); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := store.ClaimSession(context.Background(), "a1", "tok-2", false); err != nil {
		t.Fatalf("rotation: %v", err)
	}
	acc, _ := store.Find(context.Background(), "a1")
	if acc.SessionToken != "tok-2" {
		t.Fatalf("token not rotated: %q", acc.SessionToken)
	}
}

func TestInMemoryClaimSessionConcurrent(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleStudent)

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := store.ClaimSession(context.Background(), "a1", "tok", true); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("exactly one concurrent claim must win, got %d", won)
	}
}

func TestInMemoryClearSessionIdempotent(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleStudent)

	if err := store.ClaimSession(context.Background(), "a1", "tok", true); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.ClearSession(context.Background(), "a1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.ClearSession(context.Background(), "a1"); err != nil {
		t.Fatalf("second clear should succeed: %v", err)
	}
	if err := store.ClaimSession(context.Background(), "a1", "tok-2", true); err != nil {
		t.Fatalf("claim after clear: %v", err)
	}
}

func TestInMemoryUpdateMaintainsIndexes(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleStudent)
	seedAccount(t, store, "a2", "u2", "R2", RoleStudent)

	taken := "u2"
	if _, err := store.Update(context.Background(), "a1", Update{UserID: &taken}); !errors.Is(err, ErrDuplicateUserID) {
		t.Fatalf("expected ErrDuplicateUserID, got %v", err)
	}

	fresh := "u9"
	updated, err := store.Update(context.Background(), "a1", Update{UserID: &fresh})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.UserID != "u9" {
		t.Fatalf("user id not updated: %+v", updated)
	}
	if _, err := store.FindByUserID(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old user id still resolves: %v", err)
	}
	if _, err := store.FindByUserID(context.Background(), "u9"); err != nil {
		t.Fatalf("new user id should resolve: %v", err)
	}
}

func TestInMemoryListOrder(t *testing.T) {
	store := NewInMemory()
	seedAccount(t, store, "a1", "u1", "R1", RoleStudent)
	seedAccount(t, store, "a2", "u2", "R2", RoleFaculty)
	seedAccount(t, store, "a3", "u3", "R3", RoleStudent)

	accounts, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	for i, userID := range []string{"u1", "u2", "u3"} {
		if accounts[i].UserID != userID {
			t.Fatalf("insertion order not preserved: %+v", accounts)
		}
	}
}
