package core

import (
	"context"
	"strings"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// RoomRequest describes the room a customer asks for.
type RoomRequest struct {
	Subject  string
	Priority store.Priority
	Tags     []string
}

// OpenRoom returns the customer's current room, creating a waiting room when
// none is open. Only customers open rooms.
func (h *Hub) OpenRoom(ctx context.Context, ident auth.Identity, req RoomRequest) (*store.Room, bool, *CoreError) {
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, false, coreError(ErrCodeBadRequest, "invalid priority")
	}

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	role, err := h.access.Role(sctx, ident)
	if err != nil {
		return nil, false, storeError(err)
	}
	if role != store.RoleCustomer {
		return nil, false, coreError(ErrCodeBadRequest, "only customers open support rooms")
	}

	room := &store.Room{
		CustomerID: ident.UserID,
		Status:     store.RoomStatusWaiting,
		Priority:   req.Priority,
		Tags:       cleanTags(req.Tags),
		CreatedAt:  h.now().UTC(),
	}
	if subject := strings.TrimSpace(req.Subject); subject != "" {
		room.Subject = &subject
	}

	open, created, err := h.store.OpenRoom(sctx, room)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", ident.UserID).Msg("open room")
		return nil, false, storeError(err)
	}
	if created {
		h.log.Info().Str("room_id", open.ID).Str("user_id", ident.UserID).Msg("room created")
	}
	return open, created, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (h *Hub) createRoom(ctx context.Context, c *Client, cmd *Command) *CoreError {
	room, _, cerr := h.OpenRoom(ctx, *c.identity, RoomRequest{
		Subject:  cmd.Subject,
		Priority: cmd.Priority,
		Tags:     cmd.Tags,
	})
	if cerr != nil {
		return cerr
	}
	c.Deliver(&Event{
		Kind:     EventRoomCreated,
		Room:     room.ID,
		User:     c.identity.UserID,
		RoomInfo: room,
		At:       h.now().UTC(),
	})
	return nil
}

// checkPrivileged runs the access check and then requires a privileged role.
// Outsiders get access_denied; a room's own customer gets
// insufficient_permissions.
func (h *Hub) checkPrivileged(ctx context.Context, ident auth.Identity, roomID string) (*store.Room, *CoreError) {
	room, role, cerr := h.access.Check(ctx, ident, roomID)
	if cerr != nil {
		return nil, cerr
	}
	if !role.Privileged() {
		return nil, errNotPrivileged
	}
	return room, nil
}

func (h *Hub) assignRoom(ctx context.Context, c *Client, roomID, agentID string) *CoreError {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	ident := *c.identity

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	room, cerr := h.checkPrivileged(sctx, ident, roomID)
	if cerr != nil {
		return cerr
	}
	if room.Status == store.RoomStatusClosed {
		return errRoomClosed
	}

	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		agentID = ident.UserID
	}
	if agentID != ident.UserID {
		role, err := h.roles.ResolveRole(sctx, agentID, "")
		if err != nil {
			return storeError(err)
		}
		if !role.Privileged() {
			return coreError(ErrCodeBadRequest, "assignee is not a support agent")
		}
	}

	updated, err := h.store.AssignAgent(sctx, roomID, agentID)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", ident.UserID).Msg("assign room")
		return storeError(err)
	}

	h.log.Info().Str("room_id", roomID).Str("agent_id", agentID).Str("user_id", ident.UserID).Msg("room assigned")
	h.broadcastLifecycle(c, &Event{
		Kind:     EventRoomAssigned,
		Room:     roomID,
		User:     agentID,
		Actor:    ident.UserID,
		RoomInfo: updated,
		At:       h.now().UTC(),
	})
	return nil
}

func (h *Hub) updateRoomStatus(ctx context.Context, c *Client, roomID string, status store.RoomStatus, priority store.Priority) *CoreError {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	if !status.Valid() {
		return coreError(ErrCodeBadRequest, "invalid status")
	}
	if priority != "" && !priority.Valid() {
		return coreError(ErrCodeBadRequest, "invalid priority")
	}
	ident := *c.identity

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	room, cerr := h.checkPrivileged(sctx, ident, roomID)
	if cerr != nil {
		return cerr
	}
	if room.Status == store.RoomStatusClosed {
		return errRoomClosed
	}

	updated, err := h.store.UpdateRoomStatus(sctx, roomID, status, priority)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", ident.UserID).Msg("update room status")
		return storeError(err)
	}

	h.log.Info().Str("room_id", roomID).Str("status", string(updated.Status)).Str("priority", string(updated.Priority)).Str("user_id", ident.UserID).Msg("room status updated")
	h.broadcastLifecycle(c, &Event{
		Kind:     EventRoomStatusUpdated,
		Room:     roomID,
		Actor:    ident.UserID,
		RoomInfo: updated,
		At:       h.now().UTC(),
	})
	return nil
}

// broadcastLifecycle sends ev to the room and to the actor when the actor
// is not joined to it.
func (h *Hub) broadcastLifecycle(actor *Client, ev *Event) {
	if room := h.registry.Room(ev.Room); room != nil {
		room.Broadcast(ev, nil)
	}
	if !actor.membership.in(ev.Room) {
		actor.Deliver(ev)
	}
}
