package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
)

func TestServerMountsWebSocketOutsideRouter(t *testing.T) {
	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	logger := zerolog.Nop()
	hub := core.NewHub(st, core.Options{Logger: &logger})
	server := NewServer(hub, nil, st, &cfg, &logger)

	mux, ok := server.Handler.(*http.ServeMux)
	if !ok {
		t.Fatalf("expected a ServeMux, got %T", server.Handler)
	}

	handler, _ := mux.Handler(httptest.NewRequest(http.MethodGet, "/ws", nil))
	if _, ok := handler.(*WSHandler); !ok {
		t.Fatalf("/ws should be served by the websocket handler, got %T", handler)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/health through the mux: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("/api/rooms without a token: got %d", rec.Code)
	}
}
