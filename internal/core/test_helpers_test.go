package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
	"github.com/vovakirdan/supportchat-server/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustError(t *testing.T, ch <-chan *Event, code string) *CoreError {
	t.Helper()

	ev := mustEvent(t, ch, EventError)
	if ev.Error == nil || ev.Error.Code != code {
		t.Fatalf("expected %s error, got %+v", code, ev.Error)
	}
	return ev.Error
}

// expectNoEvent fails if an event of kind arrives within d.
func expectNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, d time.Duration) {
	t.Helper()

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		case <-timer.C:
			return
		}
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// startHub runs a hub over st until the test ends.
func startHub(t *testing.T, st store.Store, opts Options) *Hub {
	t.Helper()

	hub := NewHub(st, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.stopped
	})
	return hub
}

func authCreds(userID string, role store.Role) auth.Credentials {
	return auth.Credentials{UserID: userID, Role: string(role)}
}

// connect registers a client and authenticates it as userID with role.
func connect(t *testing.T, hub *Hub, userID string, role store.Role) *Client {
	t.Helper()

	c := NewClient(uuid.NewString(), 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{
		Kind:        CommandAuthenticate,
		Credentials: authCreds(userID, role),
	}
	ev := mustEvent(t, c.Events, EventAuthenticated)
	if ev.Identity == nil || ev.Identity.UserID != userID {
		t.Fatalf("unexpected authenticated event: %+v", ev)
	}
	return c
}

func join(t *testing.T, c *Client, roomID string) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, Room: roomID}
	return mustEvent(t, c.Events, EventRoomJoined)
}

func seedRoom(t *testing.T, st store.RoomStore, customerID string) *store.Room {
	t.Helper()

	room := &store.Room{CustomerID: customerID}
	if err := st.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func getRoom(t *testing.T, st store.RoomStore, id string) *store.Room {
	t.Helper()

	room, err := st.GetRoom(context.Background(), id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	return room
}
