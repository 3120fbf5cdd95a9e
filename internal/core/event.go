package core

import (
	"time"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAuthenticated acknowledges a successful authenticate.
	EventAuthenticated EventKind = iota
	// EventAuthError reports a failed authenticate.
	EventAuthError
	// EventRoomJoined acknowledges a join with the room snapshot.
	EventRoomJoined
	// EventRoomLeft acknowledges an explicit leave.
	EventRoomLeft
	// EventUserJoined notifies members that a user joined.
	EventUserJoined
	// EventUserLeft notifies members that a user left.
	EventUserLeft
	// EventNewMessage carries a persisted chat message.
	EventNewMessage
	// EventUserTyping notifies members about typing state.
	EventUserTyping
	// EventMessagesRead acknowledges mark_read to the caller.
	EventMessagesRead
	// EventRoomCreated returns the caller's support room.
	EventRoomCreated
	// EventRoomAssigned notifies members that an agent took the room.
	EventRoomAssigned
	// EventRoomStatusUpdated notifies members about a status change.
	EventRoomStatusUpdated
	// EventError notifies the originating client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind
	Room string
	// User is the subject of the event (who joined, typed, was assigned).
	User string
	// Actor is who caused a lifecycle change.
	Actor string
	At    time.Time

	Identity     *auth.Identity
	RoomInfo     *store.Room
	Participants []string
	Message      *store.Message
	MessageIDs   []string
	IsTyping     bool
	Error        *CoreError
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err, At: time.Now().UTC()}
}
