package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub:   hub,
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Subject  string   `json:"subject" binding:"max=200"`
	Priority string   `json:"priority"`
	Tags     []string `json:"tags" binding:"omitempty,max=16"`
}

// PresenceResponse lists who is connected to a room and who is typing.
type PresenceResponse struct {
	RoomID       string                `json:"roomId"`
	Connected    []string              `json:"connected"`
	Typing       []string              `json:"typing"`
	Participants []ParticipantResponse `json:"participants"`
}

// ParticipantResponse is the last-seen record of a user in a room.
type ParticipantResponse struct {
	UserID     string `json:"userId"`
	Active     bool   `json:"active"`
	Online     bool   `json:"online"`
	LastSeenAt int64  `json:"lastSeenAt"`
}

func pageSize(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultPageSize, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxPageSize {
		n = maxPageSize
	}
	return n, true
}

// CreateRoom opens a support room for the calling customer, or returns the
// one already open.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	room, created, cerr := h.hub.OpenRoom(c.Request.Context(), ident, core.RoomRequest{
		Subject:  req.Subject,
		Priority: store.Priority(req.Priority),
		Tags:     req.Tags,
	})
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, roomToProto(room))
}

// ListRooms lists the caller's rooms. Customers see their own rooms; agents
// and above see the queue, optionally narrowed by ?status=.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}

	limit, ok := pageSize(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: core.ErrCodeBadRequest})
		return
	}

	ctx, cancel := h.hub.StoreContext(c.Request.Context())
	defer cancel()

	role, err := h.hub.Access().Role(ctx, ident)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", ident.UserID).Msg("failed to resolve role")
		writeCoreError(c, core.StoreError(err))
		return
	}

	filter := store.RoomFilter{Limit: limit}
	if status := c.Query("status"); status != "" {
		filter.Status = store.RoomStatus(status)
		if !filter.Status.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status", Code: core.ErrCodeBadRequest})
			return
		}
	}
	if !role.Privileged() {
		filter.CustomerID = ident.UserID
	}

	rooms, err := h.store.ListRooms(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", ident.UserID).Msg("failed to list rooms")
		writeCoreError(c, core.StoreError(err))
		return
	}

	response := make([]*proto.Room, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomToProto(room))
	}

	h.log.Debug().Str("user_id", ident.UserID).Int("room_count", len(rooms)).Msg("rooms listed")
	c.JSON(http.StatusOK, response)
}

// GetRoom returns a single room.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}

	ctx, cancel := h.hub.StoreContext(c.Request.Context())
	defer cancel()

	room, _, cerr := h.hub.Access().Check(ctx, ident, c.Param("id"))
	if cerr != nil {
		writeCoreError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, roomToProto(room))
}

// ListMessages returns room history, oldest first. ?before=<messageId>
// pages backwards.
// GET /api/rooms/:id/messages
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}

	limit, ok := pageSize(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: core.ErrCodeBadRequest})
		return
	}

	ctx, cancel := h.hub.StoreContext(c.Request.Context())
	defer cancel()

	roomID := c.Param("id")
	if _, _, cerr := h.hub.Access().Check(ctx, ident, roomID); cerr != nil {
		writeCoreError(c, cerr)
		return
	}

	messages, err := h.store.ListMessages(ctx, roomID, limit, c.Query("before"))
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to list messages")
		writeCoreError(c, core.StoreError(err))
		return
	}

	response := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		response = append(response, messageToProto(msg))
	}
	c.JSON(http.StatusOK, response)
}

// Presence reports connected users, typers and last-seen records for a room.
// GET /api/rooms/:id/presence
func (h *RoomHandlers) Presence(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}

	ctx, cancel := h.hub.StoreContext(c.Request.Context())
	defer cancel()

	roomID := c.Param("id")
	if _, _, cerr := h.hub.Access().Check(ctx, ident, roomID); cerr != nil {
		writeCoreError(c, cerr)
		return
	}

	typing, err := h.hub.Typing().Typers(ctx, roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to list typers")
		writeCoreError(c, core.StoreError(err))
		return
	}

	participants, err := h.store.ListParticipants(ctx, roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to list participants")
		writeCoreError(c, core.StoreError(err))
		return
	}

	resp := PresenceResponse{
		RoomID:       roomID,
		Connected:    h.hub.ConnectedUsers(roomID),
		Typing:       typing,
		Participants: make([]ParticipantResponse, 0, len(participants)),
	}
	if resp.Connected == nil {
		resp.Connected = []string{}
	}
	if resp.Typing == nil {
		resp.Typing = []string{}
	}
	for _, p := range participants {
		resp.Participants = append(resp.Participants, ParticipantResponse{
			UserID:     p.UserID,
			Active:     p.Active,
			Online:     h.hub.IsOnline(p.UserID),
			LastSeenAt: millis(p.LastSeenAt),
		})
	}

	c.JSON(http.StatusOK, resp)
}
