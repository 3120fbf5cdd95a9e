package http

import (
	"testing"

	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

func requireTokens(cfg *config.Config) {
	cfg.RequireToken = true
}

func TestWebSocketRequireToken(t *testing.T) {
	env := startTestServer(t, requireTokens)
	conn := env.dial(t)

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{UserID: "c1", Role: "customer"})
	msg := readUntil(t, conn, func(m wireMessage) bool { return m.Type == proto.OutboundTypeError })
	if msg.Event != proto.EventAuthenticationError || msg.Error == nil || msg.Error.Code != core.ErrCodeUnauthenticated {
		t.Fatalf("expected authentication_error, got %+v", msg)
	}

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{Token: "not-a-jwt"})
	readError(t, conn, core.ErrCodeUnauthenticated)

	env.login(t, conn, "c1", store.RoleCustomer)
}

func TestWebSocketTokenSubjectMismatch(t *testing.T) {
	env := startTestServer(t, requireTokens)
	conn := env.dial(t)

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{
		UserID: "c2",
		Token:  env.token(t, "c1", store.RoleCustomer),
	})
	readError(t, conn, core.ErrCodeUnauthenticated)
}

func TestWebSocketTokenRoleClaim(t *testing.T) {
	env := startTestServer(t, requireTokens)
	conn := env.dial(t)

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{
		Token: env.token(t, "a1", store.RoleSupportAgent),
	})
	var data proto.EventAuthenticatedData
	readEvent(t, conn, proto.EventAuthenticated, &data)
	if data.UserID != "a1" || data.Role != string(store.RoleSupportAgent) {
		t.Fatalf("unexpected identity: %+v", data)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	env := startTestServer(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorResponse
			if code := env.do(t, "GET", "/api/rooms", tt.token, "", &body); code != 401 {
				t.Fatalf("expected 401, got %d", code)
			}
			if body.Error == "" {
				t.Fatal("expected error body")
			}
		})
	}
}
