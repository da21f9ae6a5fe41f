package websocket

import "sort"

// RoomCount is the number of live connections in one room.
type RoomCount struct {
	ID          int64 `json:"id"`
	Connections int   `json:"connections"`
}

// Presence is a point-in-time view of the hub's rooms.
type Presence struct {
	Connections int         `json:"connections"`
	Anonymous   int         `json:"anonymous"`
	Users       []RoomCount `json:"users"`
	Families    []RoomCount `json:"families"`
}

// Snapshot returns the current room occupancy, sorted by id.
func (h *Hub) Snapshot() Presence {
	if h == nil {
		return Presence{Users: []RoomCount{}, Families: []RoomCount{}}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	p := Presence{
		Connections: len(h.clients),
		Users:       roomCounts(h.users),
		Families:    roomCounts(h.families),
	}
	for c := range h.clients {
		if c.userID == 0 {
			p.Anonymous++
		}
	}
	return p
}

func roomCounts(groups map[int64]group) []RoomCount {
	out := make([]RoomCount, 0, len(groups))
	for id, g := range groups {
		out = append(out, RoomCount{ID: id, Connections: len(g)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserConnections returns the number of live connections authenticated as userID.
func (h *Hub) UserConnections(userID int64) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// FamilyConnections returns the number of live connections in familyID's room.
func (h *Hub) FamilyConnections(familyID int64) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.families[familyID])
}

// HasUser reports whether the user group for userID exists.
func (h *Hub) HasUser(userID int64) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// HasFamily reports whether the family room for familyID exists.
func (h *Hub) HasFamily(familyID int64) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.families[familyID]
	return ok
}
