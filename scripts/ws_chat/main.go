package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/supportchat-server/internal/proto"
)

// inbound mirrors proto.Outbound with the payload left raw.
type inbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-customer", "user id")
	role := flag.String("role", "customer", "role claimed when no token is used")
	token := flag.String("token", "", "signed token (see `supportchat token`)")
	room := flag.String("room", "", "room to join; customers open one when empty")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &chat{conn: conn, room: *room}
	if err := c.send(ctx, proto.InboundTypeAuthenticate, proto.AuthenticateData{
		UserID:   *user,
		Role:     *role,
		Token:    *token,
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		return err
	}

	if c.room == "" {
		err = c.send(ctx, proto.InboundTypeCreateRoom, proto.CreateRoomData{Subject: "cli session"})
	} else {
		err = c.send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: c.room})
	}
	if err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter. Commands: /typing, /assign [agent], /status <status>, /leave. Ctrl+C to exit.")

	go func() {
		defer cancel()
		c.readLoop(ctx)
	}()

	c.writeLoop(ctx)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

type chat struct {
	conn *websocket.Conn

	mu   sync.Mutex
	room string
}

func (c *chat) roomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *chat) setRoom(id string) {
	c.mu.Lock()
	c.room = id
	c.mu.Unlock()
}

func (c *chat) send(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func (c *chat) readLoop(ctx context.Context) {
	for {
		var msg inbound
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if msg.Type == proto.OutboundTypeError {
			if msg.Error != nil {
				fmt.Printf("! %s: %s\n", msg.Error.Code, msg.Error.Message)
			}
			continue
		}

		switch msg.Event {
		case proto.EventRoomCreated:
			var evt proto.EventRoomData
			if decode(msg, &evt) {
				c.setRoom(evt.RoomID)
				fmt.Printf("room %s opened\n", evt.RoomID)
				if err := c.send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: evt.RoomID}); err != nil {
					log.Print(err)
				}
			}
		case proto.EventRoomJoined:
			var evt proto.EventRoomJoinedData
			if decode(msg, &evt) {
				fmt.Printf("[room %s] joined, online: %s\n", evt.RoomID, strings.Join(evt.Participants, ", "))
			}
		case proto.EventNewMessage:
			var evt proto.Message
			if decode(msg, &evt) {
				fmt.Printf("[%s] %s (%s): %s\n", evt.RoomID, evt.SenderID, evt.SenderType, evt.Message)
			}
		case proto.EventUserJoined, proto.EventUserLeft:
			var evt proto.EventUserPresence
			if decode(msg, &evt) {
				fmt.Printf("[room %s] %s %s\n", evt.RoomID, evt.UserID, strings.TrimPrefix(msg.Event, "user_"))
			}
		case proto.EventUserTyping:
			var evt proto.EventUserTypingData
			if decode(msg, &evt) && evt.IsTyping {
				fmt.Printf("[room %s] %s is typing...\n", evt.RoomID, evt.UserID)
			}
		case proto.EventRoomAssigned:
			var evt proto.EventRoomAssignedData
			if decode(msg, &evt) {
				fmt.Printf("[room %s] assigned to %s by %s\n", evt.RoomID, evt.AgentID, evt.AssignedBy)
			}
		case proto.EventRoomStatusUpdated:
			var evt proto.EventRoomStatusData
			if decode(msg, &evt) {
				fmt.Printf("[room %s] status %s (%s) by %s\n", evt.RoomID, evt.Status, evt.Priority, evt.UpdatedBy)
			}
		default:
			fmt.Printf("event=%s data=%s\n", msg.Event, msg.Data)
		}
	}
}

func decode(msg inbound, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		log.Printf("unmarshal %s: %v", msg.Event, err)
		return false
	}
	return true
}

func (c *chat) writeLoop(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := c.command(ctx, text); err != nil {
				log.Print(err)
				return
			}
		}
	}
}

func (c *chat) command(ctx context.Context, text string) error {
	room := c.roomID()
	fields := strings.Fields(text)
	switch fields[0] {
	case "/typing":
		return c.send(ctx, proto.InboundTypeTypingStart, proto.RoomData{RoomID: room})
	case "/assign":
		data := proto.AssignRoomData{RoomID: room}
		if len(fields) > 1 {
			data.AgentID = fields[1]
		}
		return c.send(ctx, proto.InboundTypeAssignRoom, data)
	case "/status":
		if len(fields) < 2 {
			fmt.Println("usage: /status <waiting|active|closed>")
			return nil
		}
		return c.send(ctx, proto.InboundTypeUpdateRoomStatus, proto.UpdateRoomStatusData{RoomID: room, Status: fields[1]})
	case "/leave":
		return c.send(ctx, proto.InboundTypeLeaveRoom, nil)
	}
	return c.send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: room, Message: text})
}
