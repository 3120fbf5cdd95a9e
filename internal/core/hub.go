package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

const (
	// DefaultStoreTimeout bounds every store call made on behalf of a channel.
	DefaultStoreTimeout = 5 * time.Second
	// DefaultPurgeInterval is how often expired typing markers are deleted.
	DefaultPurgeInterval = time.Minute
)

// Authenticator verifies the credentials a channel presents.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (auth.Identity, error)
}

// Options configures a Hub. Zero values pick defaults.
type Options struct {
	// Authenticator defaults to an auth.Service over the hub store that
	// trusts the supplied user id.
	Authenticator Authenticator
	// Roles defaults to Authenticator when it also resolves roles.
	Roles RoleResolver
	// Typing defaults to the hub store.
	Typing store.TypingStore

	StoreTimeout  time.Duration
	TypingTTL     time.Duration
	PurgeInterval time.Duration

	Logger *zerolog.Logger
	Now    func() time.Time
}

// Hub coordinates channels, the room registry and the store.
type Hub struct {
	store    store.Store
	auth     Authenticator
	access   *AccessChecker
	roles    RoleResolver
	typing   *TypingTracker
	registry *Registry
	log      *zerolog.Logger

	storeTimeout  time.Duration
	purgeInterval time.Duration
	now           func() time.Time

	register chan *Client
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// NewHub creates a new chat hub instance.
func NewHub(st store.Store, opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.PurgeInterval == 0 {
		opts.PurgeInterval = DefaultPurgeInterval
	}

	authenticator := opts.Authenticator
	if authenticator == nil {
		authenticator = auth.NewService(st, nil, false)
	}
	roles := opts.Roles
	if roles == nil {
		if r, ok := authenticator.(RoleResolver); ok {
			roles = r
		} else {
			roles = auth.NewService(st, nil, false)
		}
	}
	typingStore := opts.Typing
	if typingStore == nil {
		typingStore = st
	}

	return &Hub{
		store:         st,
		auth:          authenticator,
		access:        NewAccessChecker(st, roles),
		roles:         roles,
		typing:        NewTypingTracker(typingStore, opts.TypingTTL, opts.Now),
		registry:      NewRegistry(),
		log:           logger,
		storeTimeout:  opts.StoreTimeout,
		purgeInterval: opts.PurgeInterval,
		now:           opts.Now,
		register:      make(chan *Client),
		stopped:       make(chan struct{}),
	}
}

// Run accepts client registrations until ctx is canceled, then waits for all
// client goroutines to finish.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	if h.purgeInterval > 0 {
		h.wg.Add(1)
		go h.purgeLoop(ctx)
	}

	for {
		select {
		case c := <-h.register:
			h.wg.Add(1)
			go h.serveClient(ctx, c)
		case <-ctx.Done():
			h.wg.Wait()
			return
		}
	}
}

// RegisterClient starts the client's command loop.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
		c.Close()
	}
}

// UnregisterClient disconnects the client; its room is left implicitly.
func (h *Hub) UnregisterClient(c *Client) {
	c.Close()
}

// Access exposes the access checker for the HTTP layer.
func (h *Hub) Access() *AccessChecker {
	return h.access
}

// Typing exposes the typing tracker for presence queries.
func (h *Hub) Typing() *TypingTracker {
	return h.typing
}

// ConnectedUsers returns the users with a channel joined to roomID.
func (h *Hub) ConnectedUsers(roomID string) []string {
	return h.registry.UserIDs(roomID)
}

// IsOnline reports whether userID has a channel joined to any room.
func (h *Hub) IsOnline(userID string) bool {
	return h.registry.Online(userID)
}

func (h *Hub) serveClient(ctx context.Context, c *Client) {
	defer h.wg.Done()
	h.log.Debug().Str("client_id", c.ID).Msg("client registered")

	for {
		select {
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handle(ctx, c, cmd)
			}
		case <-c.quit:
			h.disconnect(ctx, c)
			return
		case <-ctx.Done():
			c.Close()
			h.disconnect(ctx, c)
			return
		}
	}
}

func (h *Hub) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.storeTimeout)
}

// StoreContext bounds a store call made on behalf of a REST request with the
// same timeout the hub uses.
func (h *Hub) StoreContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return h.storeCtx(ctx)
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	if cmd.Kind == CommandAuthenticate {
		if cmd.Err != nil {
			c.Deliver(errorEvent(cmd.Err))
			return
		}
		h.authenticate(ctx, c, cmd.Credentials)
		return
	}
	if c.identity == nil {
		c.Deliver(errorEvent(errUnauthenticated))
		return
	}
	if cmd.Err != nil {
		c.Deliver(errorEvent(cmd.Err))
		return
	}

	var cerr *CoreError
	switch cmd.Kind {
	case CommandJoinRoom:
		cerr = h.joinRoom(ctx, c, cmd.Room)
	case CommandLeaveRoom:
		cerr = h.leaveRoom(ctx, c)
	case CommandSendMessage:
		cerr = h.sendMessage(ctx, c, cmd.Room, cmd.Message)
	case CommandMarkRead:
		cerr = h.markRead(ctx, c, cmd.Room, cmd.MessageIDs)
	case CommandTypingStart:
		cerr = h.setTyping(ctx, c, cmd.Room, true)
	case CommandTypingStop:
		cerr = h.setTyping(ctx, c, cmd.Room, false)
	case CommandCreateRoom:
		cerr = h.createRoom(ctx, c, cmd)
	case CommandAssignRoom:
		cerr = h.assignRoom(ctx, c, cmd.Room, cmd.AgentID)
	case CommandUpdateRoomStatus:
		cerr = h.updateRoomStatus(ctx, c, cmd.Room, cmd.Status, cmd.Priority)
	default:
		cerr = coreError(ErrCodeBadRequest, "unknown command")
	}

	if cerr != nil {
		c.Deliver(errorEvent(cerr))
	}
}

func (h *Hub) authenticate(ctx context.Context, c *Client, creds auth.Credentials) {
	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	ident, err := h.auth.Authenticate(sctx, creds)
	if err != nil {
		h.log.Debug().Err(err).Str("client_id", c.ID).Msg("authentication failed")
		c.Deliver(&Event{Kind: EventAuthError, Error: authError(err), At: h.now().UTC()})
		return
	}

	// Switching users must not leave the old user in a room.
	if c.identity != nil && c.identity.UserID != ident.UserID && c.membership.joined {
		h.leave(ctx, c)
	}

	c.identity = &ident
	h.log.Debug().Str("client_id", c.ID).Str("user_id", ident.UserID).Str("role", string(ident.Role)).Msg("client authenticated")
	c.Deliver(&Event{Kind: EventAuthenticated, User: ident.UserID, Identity: &ident, At: h.now().UTC()})
}

func authError(err error) *CoreError {
	switch {
	case errors.Is(err, auth.ErrTokenRequired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingUser),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrIdentityMismatch):
		return coreError(ErrCodeUnauthenticated, err.Error())
	default:
		return storeError(err)
	}
}

func (h *Hub) joinRoom(ctx context.Context, c *Client, roomID string) *CoreError {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return coreError(ErrCodeBadRequest, "roomId is required")
	}
	ident := *c.identity

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	info, _, cerr := h.access.Check(sctx, ident, roomID)
	if cerr != nil {
		return cerr
	}

	now := h.now().UTC()
	if err := h.store.UpsertParticipant(sctx, &store.Participant{
		RoomID:     roomID,
		UserID:     ident.UserID,
		LastSeenAt: now,
		Active:     true,
	}); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", ident.UserID).Msg("update presence on join")
		return storeError(err)
	}

	if c.membership.in(roomID) {
		c.Deliver(&Event{
			Kind:         EventRoomJoined,
			Room:         roomID,
			User:         ident.UserID,
			RoomInfo:     info,
			Participants: h.registry.UserIDs(roomID),
			At:           now,
		})
		return nil
	}

	if c.membership.joined {
		h.leave(ctx, c)
	}

	room := h.registry.Join(roomID, ident.UserID, c)
	c.membership = membership{joined: true, roomID: roomID}

	room.Broadcast(&Event{Kind: EventUserJoined, Room: roomID, User: ident.UserID, At: now}, c)
	c.Deliver(&Event{
		Kind:         EventRoomJoined,
		Room:         roomID,
		User:         ident.UserID,
		RoomInfo:     info,
		Participants: room.UserIDs(),
		At:           now,
	})

	h.log.Debug().Str("client_id", c.ID).Str("user_id", ident.UserID).Str("room_id", roomID).Msg("joined room")
	return nil
}

func (h *Hub) leaveRoom(ctx context.Context, c *Client) *CoreError {
	if !c.membership.joined {
		return coreError(ErrCodeNotInRoom, "not in a room")
	}
	roomID := c.membership.roomID
	h.leave(ctx, c)
	c.Deliver(&Event{Kind: EventRoomLeft, Room: roomID, User: c.identity.UserID, At: h.now().UTC()})
	return nil
}

// leave takes c out of its room. Presence write failures are logged only; a
// leave always completes.
func (h *Hub) leave(ctx context.Context, c *Client) {
	if !c.membership.joined {
		return
	}
	roomID := c.membership.roomID
	userID := c.identity.UserID

	room := h.registry.Room(roomID)
	h.registry.Leave(roomID, c)
	c.membership = membership{}

	now := h.now().UTC()
	sctx, cancel := h.storeCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := h.store.UpsertParticipant(sctx, &store.Participant{
		RoomID:     roomID,
		UserID:     userID,
		LastSeenAt: now,
		Active:     false,
	}); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("update presence on leave")
	}

	if room != nil {
		room.Broadcast(&Event{Kind: EventUserLeft, Room: roomID, User: userID, At: now}, c)
	}
	h.log.Debug().Str("client_id", c.ID).Str("user_id", userID).Str("room_id", roomID).Msg("left room")
}

func (h *Hub) disconnect(ctx context.Context, c *Client) {
	if c.identity != nil {
		h.leave(ctx, c)
	}
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

// purgeLoop removes expired typing markers off the registration path.
func (h *Hub) purgeLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.purgeTyping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) purgeTyping(ctx context.Context) {
	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	n, err := h.typing.Purge(sctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("purge expired typing markers")
		return
	}
	if n > 0 {
		h.log.Debug().Int64("purged", n).Msg("purged expired typing markers")
	}
}
