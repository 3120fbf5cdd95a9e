package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/supportchat-server/internal/store"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T, requireToken bool) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}

	return NewService(st, jwtConfig, requireToken), st
}

func TestAuthenticate_TrustsUserWithoutToken(t *testing.T) {
	svc, _ := newTestAuthService(t, false)

	ident, err := svc.Authenticate(context.Background(), Credentials{UserID: "c1"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.UserID != "c1" || ident.Role != store.RoleCustomer {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestAuthenticate_RequiresUserID(t *testing.T) {
	svc, _ := newTestAuthService(t, false)

	if _, err := svc.Authenticate(context.Background(), Credentials{UserID: "  "}); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestAuthenticate_RejectsUnknownRole(t *testing.T) {
	svc, _ := newTestAuthService(t, false)

	if _, err := svc.Authenticate(context.Background(), Credentials{UserID: "u", Role: "root"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestAuthenticate_ProfileRoleWins(t *testing.T) {
	svc, st := newTestAuthService(t, false)
	ctx := context.Background()

	if err := st.UpsertProfile(ctx, &store.Profile{UserID: "u1", Role: store.RoleCustomer}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	ident, err := svc.Authenticate(ctx, Credentials{UserID: "u1", Role: "admin"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.Role != store.RoleCustomer {
		t.Fatalf("expected stored role customer, got %s", ident.Role)
	}
}

func TestAuthenticate_TokenRequired(t *testing.T) {
	svc, _ := newTestAuthService(t, true)

	if _, err := svc.Authenticate(context.Background(), Credentials{UserID: "u1"}); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestAuthenticate_WithToken(t *testing.T) {
	svc, _ := newTestAuthService(t, true)
	ctx := context.Background()

	token, err := svc.IssueToken("agent-7", store.RoleSupportAgent)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	ident, err := svc.Authenticate(ctx, Credentials{Token: token})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.UserID != "agent-7" || ident.Role != store.RoleSupportAgent {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	if _, err := svc.Authenticate(ctx, Credentials{UserID: "someone-else", Token: token}); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestAuthenticate_RejectsForeignSecret(t *testing.T) {
	svc, _ := newTestAuthService(t, true)

	other := &JWTConfig{Secret: []byte("other"), Issuer: "test", Audience: "test", TTL: time.Hour}
	token, err := GenerateToken(other, "u1", "customer")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), Credentials{Token: token}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s"), TTL: -time.Minute}
	token, err := GenerateToken(cfg, "u1", "customer")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}
