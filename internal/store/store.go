package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomClosed is returned when a transition is attempted on a closed room.
	ErrRoomClosed = errors.New("room is closed")
)

// Role is the role string returned by the identity resolver.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleSupportAgent Role = "support_agent"
	RoleManager      Role = "manager"
	RoleAdmin        Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSupportAgent, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether r may act on rooms it does not own.
func (r Role) Privileged() bool {
	return r == RoleSupportAgent || r == RoleManager || r == RoleAdmin
}

// RoomStatus is the lifecycle state of a chat room.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusClosed  RoomStatus = "closed"
)

// Valid reports whether s is a known status.
func (s RoomStatus) Valid() bool {
	return s == RoomStatusWaiting || s == RoomStatusActive || s == RoomStatusClosed
}

// Priority orders rooms in the agent queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SenderType tags who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// SenderTypeFor derives the sender type from the author's role.
func SenderTypeFor(role Role) SenderType {
	if role == RoleCustomer {
		return SenderCustomer
	}
	return SenderAgent
}

// MessageKind describes the body of a message.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageImage  MessageKind = "image"
	MessageFile   MessageKind = "file"
	MessageSystem MessageKind = "system"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// Room is a support conversation between a customer and at most one agent.
type Room struct {
	ID            string
	CustomerID    string
	AgentID       *string
	Status        RoomStatus
	Priority      Priority
	Subject       *string
	Tags          []string
	CreatedAt     time.Time
	LastMessageAt time.Time
	ClosedAt      *time.Time
}

// HasParticipant reports whether userID is the room's customer or assigned agent.
func (r *Room) HasParticipant(userID string) bool {
	if r.CustomerID == userID {
		return true
	}
	return r.AgentID != nil && *r.AgentID == userID
}

// Message is a persisted chat message. Only Read ever changes after creation.
type Message struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderType SenderType
	Body       string
	Kind       MessageKind
	FileURL    *string
	FileName   *string
	FileSize   *int64
	Read       bool
	CreatedAt  time.Time
}

// TypingMarker records that a user is composing a message in a room.
type TypingMarker struct {
	RoomID    string
	UserID    string
	IsTyping  bool
	ExpiresAt time.Time
}

// Live reports whether the marker still counts at now.
func (m *TypingMarker) Live(now time.Time) bool {
	return m != nil && m.IsTyping && now.Before(m.ExpiresAt)
}

// Participant is the last-seen record of a user in a room.
type Participant struct {
	RoomID     string
	UserID     string
	LastSeenAt time.Time
	Active     bool
}

// Profile is the role record for a user.
type Profile struct {
	UserID      string
	Role        Role
	DisplayName string
	CreatedAt   time.Time
}

// RoomFilter narrows ListRooms results. Empty fields match everything.
type RoomFilter struct {
	CustomerID string
	AgentID    string
	Status     RoomStatus
	Limit      int
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a new room. ID and timestamps are filled in if empty.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoom retrieves a room by ID.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// OpenRoom returns the customer's newest non-closed room, or inserts
	// room when there is none. created reports which happened.
	OpenRoom(ctx context.Context, room *Room) (open *Room, created bool, err error)

	// ListRooms lists rooms ordered by priority and last activity.
	ListRooms(ctx context.Context, filter RoomFilter) ([]*Room, error)

	// AssignAgent sets the agent and moves the room to active.
	// Returns ErrRoomClosed if the room is closed.
	AssignAgent(ctx context.Context, roomID, agentID string) (*Room, error)

	// UpdateRoomStatus changes status and, when non-empty, priority.
	// Returns ErrRoomClosed if the room is closed.
	UpdateRoomStatus(ctx context.Context, roomID string, status RoomStatus, priority Priority) (*Room, error)

	// TouchRoom updates the last-message timestamp.
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message, assigning ID and CreatedAt if empty.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages in chronological order.
	// If beforeID is non-empty only messages older than it are returned.
	ListMessages(ctx context.Context, roomID string, limit int, beforeID string) ([]*Message, error)

	// MarkRead sets the read flag on ids in roomID not authored by readerID
	// and returns the ids that are now read.
	MarkRead(ctx context.Context, roomID, readerID string, ids []string) ([]string, error)
}

// TypingStore holds expiring typing markers. Implementations may keep
// expired markers around; callers check ExpiresAt.
type TypingStore interface {
	UpsertTyping(ctx context.Context, marker *TypingMarker) error
	DeleteTyping(ctx context.Context, roomID, userID string) error
	// GetTyping returns ErrNotFound when no marker exists.
	GetTyping(ctx context.Context, roomID, userID string) (*TypingMarker, error)
	ListTyping(ctx context.Context, roomID string) ([]*TypingMarker, error)
}

// ParticipantStore tracks last-seen records.
type ParticipantStore interface {
	UpsertParticipant(ctx context.Context, p *Participant) error
	ListParticipants(ctx context.Context, roomID string) ([]*Participant, error)
}

// ProfileStore resolves user roles.
type ProfileStore interface {
	// GetProfile returns ErrNotFound for unknown users.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore
	TypingStore
	ParticipantStore
	ProfileStore

	// Close closes the underlying database connection.
	Close() error
}
