package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeAuthenticate     = "authenticate"
	InboundTypeJoinRoom         = "join_room"
	InboundTypeLeaveRoom        = "leave_room"
	InboundTypeSendMessage      = "send_message"
	InboundTypeTypingStart      = "typing_start"
	InboundTypeTypingStop       = "typing_stop"
	InboundTypeMarkRead         = "mark_read"
	InboundTypeCreateRoom       = "create_room"
	InboundTypeAssignRoom       = "assign_room"
	InboundTypeUpdateRoomStatus = "update_room_status"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Outbound event names.
const (
	EventAuthenticated       = "authenticated"
	EventAuthenticationError = "authentication_error"
	EventRoomJoined          = "room_joined"
	EventRoomLeft            = "room_left"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventNewMessage          = "new_message"
	EventUserTyping          = "user_typing"
	EventMessagesRead        = "messages_read"
	EventRoomCreated         = "room_created"
	EventRoomAssigned        = "room_assigned"
	EventRoomStatusUpdated   = "room_status_updated"
)

// AuthenticateData binds an identity to the connection.
type AuthenticateData struct {
	UserID   string `json:"userId"`
	Role     string `json:"role,omitempty"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// RoomData names the room a command targets.
type RoomData struct {
	RoomID string `json:"roomId"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	RoomID      string `json:"roomId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty"`
	FileURL     string `json:"fileUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
}

// MarkReadData lists messages the caller has read.
type MarkReadData struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
}

// CreateRoomData opens a support room for the calling customer.
type CreateRoomData struct {
	Subject  string   `json:"subject,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// AssignRoomData assigns a room; AgentID defaults to the caller.
type AssignRoomData struct {
	RoomID  string `json:"roomId"`
	AgentID string `json:"agentId,omitempty"`
}

// UpdateRoomStatusData changes status and optionally priority.
type UpdateRoomStatusData struct {
	RoomID   string `json:"roomId"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Room is the wire form of a chat room.
type Room struct {
	ID            string   `json:"id"`
	CustomerID    string   `json:"customerId"`
	AgentID       *string  `json:"supportAgentId"`
	Status        string   `json:"status"`
	Priority      string   `json:"priority"`
	Subject       *string  `json:"subject,omitempty"`
	Tags          []string `json:"tags"`
	CreatedAt     int64    `json:"createdAt"`
	LastMessageAt int64    `json:"lastMessageAt"`
	ClosedAt      *int64   `json:"closedAt,omitempty"`
}

// Message is the wire form of a persisted chat message.
type Message struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"roomId"`
	SenderID    string  `json:"senderId"`
	SenderType  string  `json:"senderType"`
	Message     string  `json:"message"`
	MessageType string  `json:"messageType"`
	FileURL     *string `json:"fileUrl,omitempty"`
	FileName    *string `json:"fileName,omitempty"`
	FileSize    *int64  `json:"fileSize,omitempty"`
	IsRead      bool    `json:"isRead"`
	CreatedAt   int64   `json:"createdAt"`
}

// EventAuthenticatedData acknowledges authenticate.
type EventAuthenticatedData struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	Protocol int    `json:"protocol"`
}

// EventRoomJoinedData acknowledges join_room.
type EventRoomJoinedData struct {
	RoomID       string   `json:"roomId"`
	RoomInfo     *Room    `json:"roomInfo"`
	Participants []string `json:"participants"`
}

// EventRoomData carries a room snapshot (room_created).
type EventRoomData struct {
	RoomID string `json:"roomId"`
	Room   *Room  `json:"room"`
}

// EventUserPresence notifies that a user joined or left a room.
type EventUserPresence struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// EventUserTypingData notifies typing state.
type EventUserTypingData struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp int64  `json:"timestamp"`
}

// EventMessagesReadData acknowledges mark_read.
type EventMessagesReadData struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
}

// EventRoomAssignedData notifies that an agent took a room.
type EventRoomAssignedData struct {
	RoomID     string `json:"roomId"`
	AgentID    string `json:"agentId"`
	AssignedBy string `json:"assignedBy"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"timestamp"`
}

// EventRoomStatusData notifies a status change.
type EventRoomStatusData struct {
	RoomID    string `json:"roomId"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	UpdatedBy string `json:"updatedBy"`
	Timestamp int64  `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}
