package mfa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&models.Tenant{}, &models.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	engine, err := NewEngine(db, "tenantauth-test", testKey)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return engine, db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	tenant := models.Tenant{ID: 1, Name: "t1", Domain: "t1.example.test", Status: models.TenantStatusActive}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	user := models.User{
		TenantID: 1,
		Email:    "alice@x.test",
		Status:   models.UserStatusActive,
	}

	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	return &user
}

// codeFor computes the current valid TOTP code for an enrollment.
func codeFor(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}

	return code
}

func TestNewEngine_KeySize(t *testing.T) {
	if _, err := NewEngine(nil, "x", []byte("short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := sealSecret(testKey, "JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	if sealed == "JBSWY3DPEHPK3PXP" {
		t.Fatal("secret stored in the clear")
	}

	secret, err := openSecret(testKey, sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if secret != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("round trip mismatch: %q", secret)
	}

	// A different key must not decrypt it.
	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	if _, err := openSecret(otherKey, sealed); err == nil {
		t.Fatal("expected decryption failure with wrong key")
	}
}

func TestSetupVerifyActivation(t *testing.T) {
	engine, db := newTestEngine(t)
	user := seedUser(t, db)
	ctx := context.Background()

	enrollment, err := engine.Setup(ctx, user)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if enrollment.Secret == "" || enrollment.URL == "" {
		t.Fatalf("incomplete enrollment: %+v", enrollment)
	}

	// Pending state: secret stored but not active.
	if user.MfaEnabled {
		t.Fatal("setup must not enable mfa before confirmation")
	}

	// Wrong code does not activate.
	if err := engine.Verify(ctx, user, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	if user.MfaEnabled {
		t.Fatal("failed verification must not enable mfa")
	}

	// Correct code activates.
	if err := engine.Verify(ctx, user, codeFor(t, enrollment.Secret, time.Now())); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if !user.MfaEnabled {
		t.Fatal("expected mfa to be enabled after first valid code")
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}

	if !stored.MfaEnabled {
		t.Fatal("activation not persisted")
	}

	if stored.MfaSecret == enrollment.Secret {
		t.Fatal("secret persisted in the clear")
	}
}

func TestSetup_AlreadyEnabled(t *testing.T) {
	engine, db := newTestEngine(t)
	user := seedUser(t, db)
	ctx := context.Background()

	enrollment, err := engine.Setup(ctx, user)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := engine.Verify(ctx, user, codeFor(t, enrollment.Secret, time.Now())); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if _, err := engine.Setup(ctx, user); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("expected ErrAlreadyEnabled, got %v", err)
	}
}

func TestSetup_ReplacesPendingSecret(t *testing.T) {
	engine, db := newTestEngine(t)
	user := seedUser(t, db)
	ctx := context.Background()

	first, err := engine.Setup(ctx, user)
	if err != nil {
		t.Fatalf("first setup failed: %v", err)
	}

	second, err := engine.Setup(ctx, user)
	if err != nil {
		t.Fatalf("second setup failed: %v", err)
	}

	// The abandoned secret no longer verifies.
	if err := engine.Verify(ctx, user, codeFor(t, first.Secret, time.Now())); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected stale secret to be rejected, got %v", err)
	}

	if err := engine.Verify(ctx, user, codeFor(t, second.Secret, time.Now())); err != nil {
		t.Fatalf("verify with replacement secret failed: %v", err)
	}
}

func TestVerify_ClockSkew(t *testing.T) {
	engine, db := newTestEngine(t)
	user := seedUser(t, db)
	ctx := context.Background()

	enrollment, err := engine.Setup(ctx, user)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	now := time.Now()
	engine.now = func() time.Time { return now }

	// One period behind and ahead are inside the accepted skew.
	if err := engine.Verify(ctx, user, codeFor(t, enrollment.Secret, now.Add(-totpPeriod*time.Second))); err != nil {
		t.Fatalf("code one period behind rejected: %v", err)
	}

	if err := engine.Verify(ctx, user, codeFor(t, enrollment.Secret, now.Add(totpPeriod*time.Second))); err != nil {
		t.Fatalf("code one period ahead rejected: %v", err)
	}

	// Two periods out is rejected.
	stale := codeFor(t, enrollment.Secret, now.Add(-2*totpPeriod*time.Second))
	if err := engine.Verify(ctx, user, stale); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for stale code, got %v", err)
	}
}

func TestVerifyLogin_PendingDoesNotGate(t *testing.T) {
	engine, db := newTestEngine(t)
	user := seedUser(t, db)
	ctx := context.Background()

	if _, err := engine.Setup(ctx, user); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// Pending state: login-time verification reports not configured
	// rather than demanding a code.
	if err := engine.VerifyLogin(ctx, user, "123456"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured in pending state, got %v", err)
	}
}

func TestDisable(t *testing.T) {
	engine, db := newTestEngine(t)
	user := seedUser(t, db)
	ctx := context.Background()

	enrollment, err := engine.Setup(ctx, user)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := engine.Verify(ctx, user, codeFor(t, enrollment.Secret, time.Now())); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	// Disabling demands a current code.
	if err := engine.Disable(ctx, user, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	if err := engine.Disable(ctx, user, codeFor(t, enrollment.Secret, time.Now())); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	if user.MfaEnabled || user.MfaSecret != "" {
		t.Fatal("expected cleared mfa state")
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}

	if stored.MfaEnabled || stored.MfaSecret != "" {
		t.Fatal("disable not persisted")
	}
}
