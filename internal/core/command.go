package core

import (
	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAuthenticate binds an identity to the channel.
	CommandAuthenticate CommandKind = iota
	// CommandJoinRoom moves the channel into a room.
	CommandJoinRoom
	// CommandLeaveRoom takes the channel out of its current room.
	CommandLeaveRoom
	// CommandSendMessage persists and broadcasts a chat message.
	CommandSendMessage
	// CommandMarkRead flags messages as read by the caller.
	CommandMarkRead
	// CommandTypingStart marks the caller as typing.
	CommandTypingStart
	// CommandTypingStop clears the caller's typing marker.
	CommandTypingStop
	// CommandCreateRoom opens (or reuses) the caller's support room.
	CommandCreateRoom
	// CommandAssignRoom assigns a room to an agent.
	CommandAssignRoom
	// CommandUpdateRoomStatus changes room status and priority.
	CommandUpdateRoomStatus
	// CommandInvalid carries an inbound frame the gateway could not accept.
	CommandInvalid
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Room string
	// Err is set when the gateway rejected the frame. The hub reports it
	// after the identity check.
	Err *CoreError

	Credentials auth.Credentials
	Message     MessageDraft
	MessageIDs  []string

	Status   store.RoomStatus
	Priority store.Priority
	AgentID  string
	Subject  string
	Tags     []string
}

// MessageDraft is an unsaved message as submitted by a client.
type MessageDraft struct {
	Body     string
	Kind     store.MessageKind
	FileURL  string
	FileName string
	FileSize int64
}
