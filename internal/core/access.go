package core

import (
	"context"
	"errors"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// RoleResolver returns the current role of a user. claimed is the role bound
// to the channel, used when no stored role exists.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string, claimed store.Role) (store.Role, error)
}

// AccessChecker decides whether a user may read and write a room. It is
// evaluated on every call; nothing is cached.
type AccessChecker struct {
	rooms store.RoomStore
	roles RoleResolver
}

// NewAccessChecker builds a checker over the room store and role resolver.
func NewAccessChecker(rooms store.RoomStore, roles RoleResolver) *AccessChecker {
	return &AccessChecker{rooms: rooms, roles: roles}
}

// Role returns the effective role of ident right now.
func (a *AccessChecker) Role(ctx context.Context, ident auth.Identity) (store.Role, error) {
	if a.roles == nil {
		return ident.Role, nil
	}
	role, err := a.roles.ResolveRole(ctx, ident.UserID, ident.Role)
	if errors.Is(err, auth.ErrInvalidRole) {
		return "", nil
	}
	return role, err
}

// Check loads the room and verifies ident may access it. It returns the room
// and the effective role so callers need not query again.
func (a *AccessChecker) Check(ctx context.Context, ident auth.Identity, roomID string) (*store.Room, store.Role, *CoreError) {
	room, err := a.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, "", storeError(err)
	}

	role, err := a.Role(ctx, ident)
	if err != nil {
		return nil, "", storeError(err)
	}

	if !Allowed(room, ident.UserID, role) {
		return nil, role, errAccessDenied
	}
	return room, role, nil
}

// HasAccess reports whether ident may access roomID.
func (a *AccessChecker) HasAccess(ctx context.Context, ident auth.Identity, roomID string) (bool, error) {
	_, _, cerr := a.Check(ctx, ident, roomID)
	switch {
	case cerr == nil:
		return true, nil
	case cerr.Code == ErrCodeAccessDenied || cerr.Code == ErrCodeRoomNotFound:
		return false, nil
	default:
		return false, cerr
	}
}

// Allowed is the access rule: the room's customer, its assigned agent, or
// any privileged role.
func Allowed(room *store.Room, userID string, role store.Role) bool {
	return room.HasParticipant(userID) || role.Privileged()
}
