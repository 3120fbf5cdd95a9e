package core

import (
	"sort"
	"sync"
)

// Room groups clients currently joined to the same chat room. It is a
// best-effort presence index; durable room state lives in the store.
type Room struct {
	ID string

	mu sync.RWMutex
	// clients maps each joined channel to its user id.
	clients map[*Client]string

	// send orders persist+broadcast so members see messages in the order
	// they were stored.
	send sync.Mutex
}

// NewRoom constructs a room with no clients.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		clients: make(map[*Client]string),
	}
}

// Members returns a snapshot of joined clients.
func (r *Room) Members() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		members = append(members, c)
	}
	return members
}

// UserIDs returns the distinct user ids joined to the room, sorted.
func (r *Room) UserIDs() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.clients))
	for _, uid := range r.clients {
		seen[uid] = struct{}{}
	}
	r.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for uid := range seen {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast delivers an event to every joined client except exclude.
func (r *Room) Broadcast(event *Event, exclude *Client) {
	for _, c := range r.Members() {
		if c == exclude {
			continue
		}
		c.Deliver(event)
	}
}

// Registry indexes rooms by id. The registry lock is always taken before a
// room lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	// users counts joined channels per user, for online checks.
	users map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		users: make(map[string]int),
	}
}

// Room returns the room if any client is joined to it.
func (g *Registry) Room(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rooms[id]
}

// Join adds c to room id on behalf of userID and returns the room.
func (g *Registry) Join(id, userID string, c *Client) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		room = NewRoom(id)
		g.rooms[id] = room
	}

	room.mu.Lock()
	if _, exists := room.clients[c]; !exists {
		room.clients[c] = userID
		g.users[userID]++
	}
	room.mu.Unlock()

	return room
}

// Leave removes c from room id. Returns false if c was not joined.
func (g *Registry) Leave(id string, c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	userID, exists := room.clients[c]
	if !exists {
		return false
	}
	delete(room.clients, c)

	if n := g.users[userID] - 1; n > 0 {
		g.users[userID] = n
	} else {
		delete(g.users, userID)
	}

	if len(room.clients) == 0 {
		delete(g.rooms, id)
	}
	return true
}

// UserIDs returns the distinct user ids joined to room id.
func (g *Registry) UserIDs(id string) []string {
	room := g.Room(id)
	if room == nil {
		return []string{}
	}
	return room.UserIDs()
}

// Online reports whether userID has at least one joined channel.
func (g *Registry) Online(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.users[userID] > 0
}

// RoomCount returns the number of rooms with at least one joined channel.
func (g *Registry) RoomCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
