package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/store"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
	hub   *core.Hub
}

// wireMessage mirrors proto.Outbound with the payload left raw.
type wireMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// startTestServer runs a hub and HTTP server over an in-memory store.
// mutate may adjust the config before the server is built.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	return startTestServerWithStore(t, mutate, nil)
}

// startTestServerWithStore is startTestServer with the hub and handlers
// reading through wrap(store). Token issuance stays on the plain store.
func startTestServerWithStore(t *testing.T, mutate func(*config.Config), wrap func(store.Store) store.Store) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = testSecret
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}, cfg.RequireToken)

	var served store.Store = st
	if wrap != nil {
		served = wrap(st)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(served, core.Options{
		Authenticator: authService,
		StoreTimeout:  cfg.StoreTimeout,
		TypingTTL:     cfg.TypingTTL,
		Logger:        &logger,
	})

	server := NewServer(hub, authService, served, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{ts: ts, store: st, auth: authService, hub: hub}
}

func (e *testEnv) token(t *testing.T, userID string, role store.Role) string {
	t.Helper()

	token, err := e.auth.IssueToken(userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// do sends an authenticated REST request and decodes a JSON response into out.
func (e *testEnv) do(t *testing.T, method, path, token, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads frames until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for {
		var msg wireMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readEvent(t *testing.T, conn *websocket.Conn, event string, out any) {
	t.Helper()

	msg := readUntil(t, conn, func(m wireMessage) bool {
		return m.Type == proto.OutboundTypeEvent && m.Event == event
	})
	if out != nil {
		if err := json.Unmarshal(msg.Data, out); err != nil {
			t.Fatalf("decode %s: %v", event, err)
		}
	}
}

func readError(t *testing.T, conn *websocket.Conn, code string) *proto.Error {
	t.Helper()

	msg := readUntil(t, conn, func(m wireMessage) bool {
		return m.Type == proto.OutboundTypeError
	})
	if msg.Error == nil || msg.Error.Code != code {
		t.Fatalf("expected %s error, got %+v", code, msg.Error)
	}
	if msg.Error.Message == "" {
		t.Fatalf("%s error has no message", code)
	}
	return msg.Error
}

// login authenticates conn with a token for userID.
func (e *testEnv) login(t *testing.T, conn *websocket.Conn, userID string, role store.Role) {
	t.Helper()

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{
		UserID:   userID,
		Token:    e.token(t, userID, role),
		Protocol: proto.ProtocolVersion,
	})
	var data proto.EventAuthenticatedData
	readEvent(t, conn, proto.EventAuthenticated, &data)
	if !data.Success || data.UserID != userID {
		t.Fatalf("unexpected authenticated payload: %+v", data)
	}
}

func (e *testEnv) seedRoom(t *testing.T, customerID string) *store.Room {
	t.Helper()

	room := &store.Room{CustomerID: customerID}
	if err := e.store.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}
