package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

const (
	errCodeInvalidMessage     = "invalid_message"
	errCodeUnsupportedVersion = "unsupported_version"
)

// decodeData unmarshals an inbound payload. A missing payload decodes as
// the zero value.
func decodeData(data json.RawMessage, v any) *core.CoreError {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.NewError(core.ErrCodeBadRequest, "invalid payload")
	}
	return nil
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *core.CoreError) {
	switch inbound.Type {
	case proto.InboundTypeAuthenticate:
		var data proto.AuthenticateData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		if data.Protocol != 0 && data.Protocol != proto.ProtocolVersion {
			return nil, core.NewError(errCodeUnsupportedVersion, "unsupported protocol version")
		}
		return &core.Command{
			Kind: core.CommandAuthenticate,
			Credentials: auth.Credentials{
				UserID: data.UserID,
				Role:   data.Role,
				Token:  data.Token,
			},
		}, nil
	case proto.InboundTypeJoinRoom, proto.InboundTypeTypingStart, proto.InboundTypeTypingStop:
		var data proto.RoomData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		if data.RoomID == "" {
			return nil, core.NewError(core.ErrCodeBadRequest, "roomId is required")
		}
		kind := core.CommandJoinRoom
		switch inbound.Type {
		case proto.InboundTypeTypingStart:
			kind = core.CommandTypingStart
		case proto.InboundTypeTypingStop:
			kind = core.CommandTypingStop
		}
		return &core.Command{Kind: kind, Room: data.RoomID}, nil
	case proto.InboundTypeLeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom}, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		if data.RoomID == "" {
			return nil, core.NewError(core.ErrCodeBadRequest, "roomId is required")
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Room: data.RoomID,
			Message: core.MessageDraft{
				Body:     data.Message,
				Kind:     store.MessageKind(data.MessageType),
				FileURL:  data.FileURL,
				FileName: data.FileName,
				FileSize: data.FileSize,
			},
		}, nil
	case proto.InboundTypeMarkRead:
		var data proto.MarkReadData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		if data.RoomID == "" {
			return nil, core.NewError(core.ErrCodeBadRequest, "roomId is required")
		}
		return &core.Command{Kind: core.CommandMarkRead, Room: data.RoomID, MessageIDs: data.MessageIDs}, nil
	case proto.InboundTypeCreateRoom:
		var data proto.CreateRoomData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		return &core.Command{
			Kind:     core.CommandCreateRoom,
			Subject:  data.Subject,
			Priority: store.Priority(data.Priority),
			Tags:     data.Tags,
		}, nil
	case proto.InboundTypeAssignRoom:
		var data proto.AssignRoomData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		if data.RoomID == "" {
			return nil, core.NewError(core.ErrCodeBadRequest, "roomId is required")
		}
		return &core.Command{Kind: core.CommandAssignRoom, Room: data.RoomID, AgentID: data.AgentID}, nil
	case proto.InboundTypeUpdateRoomStatus:
		var data proto.UpdateRoomStatusData
		if cerr := decodeData(inbound.Data, &data); cerr != nil {
			return nil, cerr
		}
		if data.RoomID == "" {
			return nil, core.NewError(core.ErrCodeBadRequest, "roomId is required")
		}
		return &core.Command{
			Kind:     core.CommandUpdateRoomStatus,
			Room:     data.RoomID,
			Status:   store.RoomStatus(data.Status),
			Priority: store.Priority(data.Priority),
		}, nil
	default:
		return nil, core.NewError(errCodeInvalidMessage, "unknown message type")
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func roomToProto(room *store.Room) *proto.Room {
	if room == nil {
		return nil
	}
	out := &proto.Room{
		ID:            room.ID,
		CustomerID:    room.CustomerID,
		AgentID:       room.AgentID,
		Status:        string(room.Status),
		Priority:      string(room.Priority),
		Subject:       room.Subject,
		Tags:          room.Tags,
		CreatedAt:     millis(room.CreatedAt),
		LastMessageAt: millis(room.LastMessageAt),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if room.ClosedAt != nil {
		closed := millis(*room.ClosedAt)
		out.ClosedAt = &closed
	}
	return out
}

func messageToProto(msg *store.Message) proto.Message {
	return proto.Message{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		SenderType:  string(msg.SenderType),
		Message:     msg.Body,
		MessageType: string(msg.Kind),
		FileURL:     msg.FileURL,
		FileName:    msg.FileName,
		FileSize:    msg.FileSize,
		IsRead:      msg.Read,
		CreatedAt:   millis(msg.CreatedAt),
	}
}

func errorToProto(cerr *core.CoreError) *proto.Error {
	if cerr == nil {
		return &proto.Error{Code: "unknown", Message: "unknown error"}
	}
	return &proto.Error{Code: cerr.Code, Message: cerr.Message, Retryable: cerr.Retryable}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	ts := millis(event.At)

	switch event.Kind {
	case core.EventAuthenticated:
		data := proto.EventAuthenticatedData{Success: true, Protocol: proto.ProtocolVersion}
		if event.Identity != nil {
			data.UserID = event.Identity.UserID
			data.Role = string(event.Identity.Role)
		}
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventAuthenticated, Data: data}
	case core.EventAuthError:
		return proto.Outbound{Type: proto.OutboundTypeError, Event: proto.EventAuthenticationError, Error: errorToProto(event.Error)}
	case core.EventRoomJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomJoined,
			Data: proto.EventRoomJoinedData{
				RoomID:       event.Room,
				RoomInfo:     roomToProto(event.RoomInfo),
				Participants: event.Participants,
			},
		}
	case core.EventRoomLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomLeft,
			Data:  proto.EventUserPresence{RoomID: event.Room, UserID: event.User, Timestamp: ts},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  proto.EventUserPresence{RoomID: event.Room, UserID: event.User, Timestamp: ts},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeft,
			Data:  proto.EventUserPresence{RoomID: event.Room, UserID: event.User, Timestamp: ts},
		}
	case core.EventNewMessage:
		if event.Message == nil {
			break
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data: proto.EventUserTypingData{
				RoomID:    event.Room,
				UserID:    event.User,
				IsTyping:  event.IsTyping,
				Timestamp: ts,
			},
		}
	case core.EventMessagesRead:
		ids := event.MessageIDs
		if ids == nil {
			ids = []string{}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesRead,
			Data:  proto.EventMessagesReadData{RoomID: event.Room, MessageIDs: ids},
		}
	case core.EventRoomCreated:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomCreated,
			Data:  proto.EventRoomData{RoomID: event.Room, Room: roomToProto(event.RoomInfo)},
		}
	case core.EventRoomAssigned:
		data := proto.EventRoomAssignedData{
			RoomID:     event.Room,
			AgentID:    event.User,
			AssignedBy: event.Actor,
			Timestamp:  ts,
		}
		if event.RoomInfo != nil {
			data.Status = string(event.RoomInfo.Status)
		}
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventRoomAssigned, Data: data}
	case core.EventRoomStatusUpdated:
		data := proto.EventRoomStatusData{
			RoomID:    event.Room,
			UpdatedBy: event.Actor,
			Timestamp: ts,
		}
		if event.RoomInfo != nil {
			data.Status = string(event.RoomInfo.Status)
			data.Priority = string(event.RoomInfo.Priority)
		}
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventRoomStatusUpdated, Data: data}
	case core.EventError:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: errorToProto(event.Error)}
	}
	return proto.Outbound{Type: proto.OutboundTypeEvent}
}
