package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
)

// errClientClosed is returned when the hub drops the client, either on
// shutdown or because its event queue overflowed.
var errClientClosed = errors.New("client disconnected by server")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger

	maxMessageBytes   int64
	messagesPerMinute int
	eventBuffer       int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:               hub,
		log:               logger,
		maxMessageBytes:   cfg.MaxMessageBytes,
		messagesPerMinute: cfg.MessagesPerMinute,
		eventBuffer:       cfg.EventBuffer,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), h.eventBuffer)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.readLoop(ctx, conn, client)
	})
	g.Go(func() error {
		return h.writeLoop(ctx, conn, client)
	})
	err = g.Wait()

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	case errors.Is(err, errClientClosed):
		status = websocket.StatusTryAgainLater
		reason = err.Error()
	default:
		if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
			break
		}
		status = websocket.StatusInternalError
		reason = "connection error"
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	}

	_ = conn.Close(status, reason)
	h.log.Debug().Str("client_id", client.ID).Msg("ws disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.messagesPerMinute)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, cerr := inboundToCommand(inbound)
		if cerr == nil && cmd.Kind == core.CommandSendMessage && !limiter.allow(time.Now()) {
			cerr = core.NewError(core.ErrCodeRateLimited, "too many messages, slow down")
		}
		if cerr != nil {
			// Rejections go through the hub so unauthenticated channels
			// get unauthenticated first.
			h.log.Debug().Str("client_id", client.ID).Str("type", inbound.Type).Str("code", cerr.Code).Msg("rejected inbound")
			kind := core.CommandInvalid
			if inbound.Type == proto.InboundTypeAuthenticate {
				kind = core.CommandAuthenticate
			}
			cmd = &core.Command{Kind: kind, Err: cerr}
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return errClientClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			h.flush(ctx, conn, client)
			return errClientClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush writes events already queued when the client was dropped.
func (h *WSHandler) flush(ctx context.Context, conn *websocket.Conn, client *core.Client) {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return
			}
		default:
			return
		}
	}
}
