package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

// MaxMessageIDs caps a single mark_read request.
const MaxMessageIDs = 500

func (h *Hub) sendMessage(ctx context.Context, c *Client, roomID string, draft MessageDraft) *CoreError {
	msg, cerr := newMessage(draft)
	if cerr != nil {
		return cerr
	}
	ident := *c.identity

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	_, role, cerr := h.access.Check(sctx, ident, roomID)
	if cerr != nil {
		return cerr
	}

	room := h.registry.Room(roomID)
	if room == nil || !c.membership.in(roomID) {
		return coreError(ErrCodeNotInRoom, "join the room before sending")
	}

	msg.ID = uuid.NewString()
	msg.RoomID = roomID
	msg.SenderID = ident.UserID
	msg.SenderType = store.SenderTypeFor(role)

	room.send.Lock()
	defer room.send.Unlock()

	msg.CreatedAt = h.now().UTC()
	if err := h.store.SaveMessage(sctx, msg); err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Str("user_id", ident.UserID).Msg("save message")
		return storeError(err)
	}

	room.Broadcast(&Event{
		Kind:    EventNewMessage,
		Room:    roomID,
		User:    ident.UserID,
		Message: msg,
		At:      msg.CreatedAt,
	}, nil)

	if err := h.store.TouchRoom(sctx, roomID, msg.CreatedAt); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("message_id", msg.ID).Msg("update last message time")
	}

	h.log.Debug().Str("room_id", roomID).Str("user_id", ident.UserID).Str("message_id", msg.ID).Msg("message sent")
	return nil
}

// newMessage validates a draft. System messages cannot come from clients.
func newMessage(draft MessageDraft) (*store.Message, *CoreError) {
	kind := draft.Kind
	if kind == "" {
		kind = store.MessageText
	}
	if !kind.Valid() || kind == store.MessageSystem {
		return nil, coreError(ErrCodeBadRequest, "unsupported message type")
	}

	msg := &store.Message{Body: draft.Body, Kind: kind}
	switch kind {
	case store.MessageText:
		if strings.TrimSpace(draft.Body) == "" {
			return nil, coreError(ErrCodeBadRequest, "message is empty")
		}
	case store.MessageImage, store.MessageFile:
		if strings.TrimSpace(draft.FileURL) == "" {
			return nil, coreError(ErrCodeBadRequest, "fileUrl is required")
		}
		url := draft.FileURL
		msg.FileURL = &url
		if draft.FileName != "" {
			name := draft.FileName
			msg.FileName = &name
		}
		if draft.FileSize > 0 {
			size := draft.FileSize
			msg.FileSize = &size
		}
	}
	return msg, nil
}

func (h *Hub) markRead(ctx context.Context, c *Client, roomID string, ids []string) *CoreError {
	if strings.TrimSpace(roomID) == "" {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	if len(ids) > MaxMessageIDs {
		return coreError(ErrCodeBadRequest, "too many message ids")
	}
	ident := *c.identity

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	if _, _, cerr := h.access.Check(sctx, ident, roomID); cerr != nil {
		return cerr
	}

	marked := []string{}
	if len(ids) > 0 {
		var err error
		marked, err = h.store.MarkRead(sctx, roomID, ident.UserID, ids)
		if err != nil {
			h.log.Error().Err(err).Str("room_id", roomID).Str("user_id", ident.UserID).Msg("mark read")
			return storeError(err)
		}
	}

	c.Deliver(&Event{
		Kind:       EventMessagesRead,
		Room:       roomID,
		User:       ident.UserID,
		MessageIDs: marked,
		At:         h.now().UTC(),
	})
	return nil
}

func (h *Hub) setTyping(ctx context.Context, c *Client, roomID string, typing bool) *CoreError {
	ident := *c.identity

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	if _, _, cerr := h.access.Check(sctx, ident, roomID); cerr != nil {
		return cerr
	}
	if !c.membership.in(roomID) {
		return coreError(ErrCodeNotInRoom, "join the room before typing")
	}

	var (
		at  time.Time
		err error
	)
	if typing {
		at, err = h.typing.Start(sctx, roomID, ident.UserID)
	} else {
		at, err = h.typing.Stop(sctx, roomID, ident.UserID)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", ident.UserID).Bool("typing", typing).Msg("update typing marker")
		return storeError(err)
	}

	if room := h.registry.Room(roomID); room != nil {
		room.Broadcast(&Event{
			Kind:     EventUserTyping,
			Room:     roomID,
			User:     ident.UserID,
			IsTyping: typing,
			At:       at,
		}, c)
	}
	return nil
}
