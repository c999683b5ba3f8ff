package refresh

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewRedisStore(client, "test", ttl), mr
}

func testUser() *models.User {
	return &models.User{
		ID:       7,
		TenantID: 1,
		Email:    "a@x.test",
		Roles:    []models.Role{{ID: 1, Name: "admin"}},
	}
}

func TestGenerateAndValidate(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Generate(ctx, testUser())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if !strings.Contains(token, ".") {
		t.Fatalf("expected composite token, got %q", token)
	}

	rec, err := store.Validate(ctx, token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if rec == nil {
		t.Fatal("expected record for fresh token")
	}

	if rec.UserID != 7 || rec.TenantID != 1 || rec.Email != "a@x.test" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if len(rec.Roles) != 1 || rec.Roles[0] != "admin" {
		t.Fatalf("expected role snapshot [admin], got %v", rec.Roles)
	}
}

func TestValidate_UnknownAndMalformed(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	for _, token := range []string{"", "nodot", "unknown-id.secret"} {
		rec, err := store.Validate(ctx, token)
		if err != nil || rec != nil {
			t.Fatalf("token %q: expected nil record and nil error, got rec=%v err=%v", token, rec, err)
		}
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Generate(ctx, testUser())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	id, _, _ := splitToken(token)

	rec, err := store.Validate(ctx, id+".wrongsecret")
	if err != nil || rec != nil {
		t.Fatalf("expected nil record for wrong secret, got rec=%v err=%v", rec, err)
	}
}

func TestValidate_Expired(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Generate(ctx, testUser())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	rec, err := store.Validate(ctx, token)
	if err != nil || rec != nil {
		t.Fatalf("expected expired token to be invalid, got rec=%v err=%v", rec, err)
	}
}

func TestRotate_SingleUse(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	user := testUser()

	t1, err := store.Generate(ctx, user)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	t2, ok, err := store.Rotate(ctx, t1, user)
	if err != nil || !ok {
		t.Fatalf("rotate failed: ok=%v err=%v", ok, err)
	}

	if t2 == t1 {
		t.Fatal("successor token must differ from predecessor")
	}

	// predecessor is forever invalid
	if rec, err := store.Validate(ctx, t1); err != nil || rec != nil {
		t.Fatalf("rotated-away token must be invalid, got rec=%v err=%v", rec, err)
	}

	// successor is valid
	if rec, err := store.Validate(ctx, t2); err != nil || rec == nil {
		t.Fatalf("successor token must be valid, got rec=%v err=%v", rec, err)
	}

	// replaying the predecessor fails and mutates nothing
	if _, ok, err := store.Rotate(ctx, t1, user); err != nil || ok {
		t.Fatalf("replayed rotation must fail, got ok=%v err=%v", ok, err)
	}

	if rec, err := store.Validate(ctx, t2); err != nil || rec == nil {
		t.Fatalf("successor must survive a failed replay, got rec=%v err=%v", rec, err)
	}
}

func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	user := testUser()

	for range 20 {
		token, err := store.Generate(ctx, user)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)

		for range 2 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, ok, err := store.Rotate(ctx, token, user)
				if err != nil {
					t.Errorf("rotate error: %v", err)
					return
				}

				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one rotation winner, got %d", wins)
		}
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Generate(ctx, testUser())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if rec, err := store.Validate(ctx, token); err != nil || rec != nil {
		t.Fatalf("revoked token must be invalid, got rec=%v err=%v", rec, err)
	}

	// second revoke is a no-op
	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("second revoke must not error: %v", err)
	}
}

func TestRevokeAll(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	user := testUser()

	t1, _ := store.Generate(ctx, user)
	t2, _ := store.Generate(ctx, user)

	other := testUser()
	other.ID = 8
	t3, _ := store.Generate(ctx, other)

	if err := store.RevokeAll(ctx, user.ID); err != nil {
		t.Fatalf("revokeall failed: %v", err)
	}

	for _, token := range []string{t1, t2} {
		if rec, _ := store.Validate(ctx, token); rec != nil {
			t.Fatalf("token %q must be revoked", token)
		}
	}

	// another user's token is untouched
	if rec, _ := store.Validate(ctx, t3); rec == nil {
		t.Fatal("other user's token must survive RevokeAll")
	}
}

func TestBackendDown_SurfacesError(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Generate(ctx, testUser())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	mr.Close()

	if _, err := store.Validate(ctx, token); err == nil {
		t.Fatal("expected error when backend is down; the token store never fails open")
	}
}
