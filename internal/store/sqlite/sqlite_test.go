package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoomLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	subject := "refund"
	room := &store.Room{CustomerID: "c1", Subject: &subject, Tags: []string{"billing"}}
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.ID == "" || room.Status != store.RoomStatusWaiting || room.Priority != store.PriorityNormal {
		t.Fatalf("defaults not applied: %+v", room)
	}

	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.AgentID != nil || got.Subject == nil || *got.Subject != "refund" || fmt.Sprint(got.Tags) != "[billing]" {
		t.Fatalf("unexpected room: %+v", got)
	}

	assigned, err := s.AssignAgent(ctx, room.ID, "a1")
	if err != nil {
		t.Fatalf("assign agent: %v", err)
	}
	if assigned.Status != store.RoomStatusActive || assigned.AgentID == nil || *assigned.AgentID != "a1" {
		t.Fatalf("unexpected assigned room: %+v", assigned)
	}

	waiting, err := s.UpdateRoomStatus(ctx, room.ID, store.RoomStatusWaiting, store.PriorityUrgent)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if waiting.AgentID != nil || waiting.Priority != store.PriorityUrgent {
		t.Fatalf("waiting room should drop its agent: %+v", waiting)
	}

	if _, err := s.AssignAgent(ctx, room.ID, "a2"); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	closed, err := s.UpdateRoomStatus(ctx, room.ID, store.RoomStatusClosed, "")
	if err != nil {
		t.Fatalf("close room: %v", err)
	}
	if closed.ClosedAt == nil || closed.Priority != store.PriorityUrgent {
		t.Fatalf("unexpected closed room: %+v", closed)
	}
}

func TestClosedRoomIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := &store.Room{CustomerID: "c1"}
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := s.AssignAgent(ctx, room.ID, "a1"); err != nil {
		t.Fatalf("assign agent: %v", err)
	}
	if _, err := s.UpdateRoomStatus(ctx, room.ID, store.RoomStatusClosed, ""); err != nil {
		t.Fatalf("close room: %v", err)
	}

	if _, err := s.AssignAgent(ctx, room.ID, "a2"); !errors.Is(err, store.ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
	for _, status := range []store.RoomStatus{store.RoomStatusWaiting, store.RoomStatusActive, store.RoomStatusClosed} {
		if _, err := s.UpdateRoomStatus(ctx, room.ID, status, ""); !errors.Is(err, store.ErrRoomClosed) {
			t.Fatalf("status %s: expected ErrRoomClosed, got %v", status, err)
		}
	}

	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Status != store.RoomStatusClosed || got.AgentID == nil || *got.AgentID != "a1" {
		t.Fatalf("closed room changed: %+v", got)
	}
}

func TestRoomNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRoom(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.AssignAgent(ctx, "nope", "a1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.TouchRoom(ctx, "nope", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenRoomReusesOpenRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.OpenRoom(ctx, &store.Room{CustomerID: "c1"})
	if err != nil || !created {
		t.Fatalf("open room: created=%v err=%v", created, err)
	}

	again, created, err := s.OpenRoom(ctx, &store.Room{CustomerID: "c1"})
	if err != nil {
		t.Fatalf("open room again: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected reuse of %s, got %s (created=%v)", first.ID, again.ID, created)
	}

	if _, err := s.UpdateRoomStatus(ctx, first.ID, store.RoomStatusClosed, ""); err != nil {
		t.Fatalf("close room: %v", err)
	}
	fresh, created, err := s.OpenRoom(ctx, &store.Room{CustomerID: "c1"})
	if err != nil || !created || fresh.ID == first.ID {
		t.Fatalf("expected a new room after close, got %+v created=%v err=%v", fresh, created, err)
	}
}

func TestListRoomsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []struct {
		customer string
		priority store.Priority
		offset   time.Duration
	}{
		{"c1", store.PriorityNormal, time.Minute},
		{"c2", store.PriorityUrgent, 0},
		{"c3", store.PriorityNormal, 2 * time.Minute},
		{"c4", store.PriorityLow, 3 * time.Minute},
	}
	for _, r := range seed {
		room := &store.Room{CustomerID: r.customer, Priority: r.priority, CreatedAt: base.Add(r.offset)}
		if err := s.CreateRoom(ctx, room); err != nil {
			t.Fatalf("create room: %v", err)
		}
	}

	rooms, err := s.ListRooms(ctx, store.RoomFilter{Status: store.RoomStatusWaiting})
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	var order []string
	for _, r := range rooms {
		order = append(order, r.CustomerID)
	}
	if got := fmt.Sprint(order); got != "[c2 c3 c1 c4]" {
		t.Fatalf("unexpected order: %s", got)
	}

	mine, err := s.ListRooms(ctx, store.RoomFilter{CustomerID: "c3"})
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(mine) != 1 || mine[0].CustomerID != "c3" {
		t.Fatalf("unexpected customer rooms: %+v", mine)
	}
}

func TestMessagesAndMarkRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := &store.Room{CustomerID: "c1"}
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}

	var ids []string
	senders := []string{"c1", "a1", "c1", "a1"}
	for i, sender := range senders {
		msg := &store.Message{
			RoomID:     room.ID,
			SenderID:   sender,
			SenderType: store.SenderCustomer,
			Body:       fmt.Sprintf("m%d", i),
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	page, err := s.ListMessages(ctx, room.ID, 2, "")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(page) != 2 || page[0].Body != "m2" || page[1].Body != "m3" {
		t.Fatalf("unexpected latest page: %v, %v", page[0].Body, page[1].Body)
	}

	older, err := s.ListMessages(ctx, room.ID, 10, page[0].ID)
	if err != nil {
		t.Fatalf("list older messages: %v", err)
	}
	if len(older) != 2 || older[0].Body != "m0" || older[1].Body != "m1" {
		t.Fatalf("unexpected older page: %+v", older)
	}

	marked, err := s.MarkRead(ctx, room.ID, "c1", ids)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if fmt.Sprint(marked) != fmt.Sprint([]string{ids[1], ids[3]}) {
		t.Fatalf("expected only agent messages marked, got %v", marked)
	}

	all, err := s.ListMessages(ctx, room.ID, 10, "")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	for _, m := range all {
		if m.Read != (m.SenderID == "a1") {
			t.Fatalf("message %s by %s has read=%v", m.Body, m.SenderID, m.Read)
		}
	}

	// Messages of another room are never touched.
	other, err := s.MarkRead(ctx, "other-room", "x", ids)
	if err != nil {
		t.Fatalf("mark read other room: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected nothing marked, got %v", other)
	}
}

func TestTypingMarkers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	markers := []*store.TypingMarker{
		{RoomID: "r1", UserID: "u1", IsTyping: true, ExpiresAt: now.Add(-time.Second)},
		{RoomID: "r1", UserID: "u2", IsTyping: true, ExpiresAt: now.Add(10 * time.Second)},
	}
	for _, m := range markers {
		if err := s.UpsertTyping(ctx, m); err != nil {
			t.Fatalf("upsert typing: %v", err)
		}
	}

	// Expired markers are still returned; readers decide.
	m, err := s.GetTyping(ctx, "r1", "u1")
	if err != nil {
		t.Fatalf("get typing: %v", err)
	}
	if m.Live(now) {
		t.Fatal("expired marker reported live")
	}

	n, err := s.PurgeExpiredTyping(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one purged, got %d", n)
	}
	if _, err := s.GetTyping(ctx, "r1", "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}

	list, err := s.ListTyping(ctx, "r1")
	if err != nil {
		t.Fatalf("list typing: %v", err)
	}
	if len(list) != 1 || list[0].UserID != "u2" || !list[0].ExpiresAt.Equal(now.Add(10*time.Second)) {
		t.Fatalf("unexpected markers: %+v", list)
	}

	if err := s.DeleteTyping(ctx, "r1", "u2"); err != nil {
		t.Fatalf("delete typing: %v", err)
	}
	if list, _ := s.ListTyping(ctx, "r1"); len(list) != 0 {
		t.Fatalf("expected no markers, got %d", len(list))
	}
}

func TestParticipantsAndProfiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := s.UpsertParticipant(ctx, &store.Participant{RoomID: "r1", UserID: "u1", LastSeenAt: seen, Active: true}); err != nil {
		t.Fatalf("upsert participant: %v", err)
	}
	if err := s.UpsertParticipant(ctx, &store.Participant{RoomID: "r1", UserID: "u1", LastSeenAt: seen.Add(time.Minute), Active: false}); err != nil {
		t.Fatalf("upsert participant: %v", err)
	}

	parts, err := s.ListParticipants(ctx, "r1")
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(parts) != 1 || parts[0].Active || !parts[0].LastSeenAt.Equal(seen.Add(time.Minute)) {
		t.Fatalf("unexpected participants: %+v", parts)
	}

	if _, err := s.GetProfile(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpsertProfile(ctx, &store.Profile{UserID: "u1", Role: store.RoleManager, DisplayName: "Mia"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	p, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Role != store.RoleManager || p.DisplayName != "Mia" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}
