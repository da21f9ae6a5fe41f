package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/famfin/internal/metrics"
)

// ErrNotAuthenticated is returned when a connection joins a family room
// before authenticating.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrFamilyForbidden is returned when the join policy rejects a family room.
var ErrFamilyForbidden = errors.New("not a member of this family")

// JoinPolicy decides whether userID may join familyID's room. A nil policy
// allows every join.
type JoinPolicy func(userID, familyID int64) bool

type group map[*Client]struct{}

// Hub tracks live connections by user and by family room and fans events
// out to them. All bookkeeping happens under mu; delivery is a non-blocking
// send into each client's buffer.
//
// A nil *Hub is valid: sends log and return zero recipients.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	users    map[int64]group
	families map[int64]group

	joinPolicy JoinPolicy
	logger     *slog.Logger
	now        func() time.Time
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		users:    make(map[int64]group),
		families: make(map[int64]group),
		logger:   logger,
		now:      time.Now,
	}
}

// SetJoinPolicy installs the check consulted by JoinFamily.
func (h *Hub) SetJoinPolicy(p JoinPolicy) {
	h.mu.Lock()
	h.joinPolicy = p
	h.mu.Unlock()
}

// Register adds an anonymous client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	metrics.ConnectionsActive.Set(float64(len(h.clients)))
	h.mu.Unlock()

	h.logger.Debug("client connected", "conn", c.id)
}

// Unregister removes a client from its user group and every family room,
// pruning emptied groups, and closes its send channel. Unknown clients are
// ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)

	if c.userID != 0 {
		removeMember(h.users, c.userID, c)
	}
	for familyID := range c.families {
		removeMember(h.families, familyID, c)
	}
	userID := c.userID
	c.userID = 0
	c.families = nil
	close(c.send)
	h.updateGaugesLocked()
	h.mu.Unlock()

	h.logger.Debug("client disconnected", "conn", c.id, "user_id", userID)
}

// Authenticate associates c with userID, joins the user's room, and
// acknowledges with an "authenticated" event. A connection carries a single
// identity: authenticating as a different user leaves the previous user's room.
func (h *Hub) Authenticate(c *Client, userID int64) error {
	if userID <= 0 {
		h.sendError(c, "invalid user id")
		return fmt.Errorf("invalid user id %d", userID)
	}
	if c.boundUserID != 0 && c.boundUserID != userID {
		h.sendError(c, "user does not match session")
		return fmt.Errorf("user %d does not match session user %d", userID, c.boundUserID)
	}

	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return nil
	}
	prev := c.userID
	if prev != 0 && prev != userID {
		removeMember(h.users, prev, c)
	}
	addMember(h.users, userID, c)
	c.userID = userID
	h.updateGaugesLocked()
	h.mu.Unlock()

	if prev != 0 && prev != userID {
		h.logger.Info("client re-authenticated", "conn", c.id, "from_user", prev, "to_user", userID)
	} else {
		h.logger.Debug("client authenticated", "conn", c.id, "user_id", userID)
	}

	h.sendTo(c, EventAuthenticated, AuthenticatedPayload{UserID: userID})
	return nil
}

// JoinFamily adds an authenticated client to familyID's room. Unauthenticated
// clients receive an "error" event and nothing changes.
func (h *Hub) JoinFamily(c *Client, familyID int64) error {
	h.mu.RLock()
	userID := c.userID
	policy := h.joinPolicy
	h.mu.RUnlock()

	if userID == 0 {
		h.sendError(c, "Not authenticated")
		return ErrNotAuthenticated
	}
	if familyID <= 0 {
		h.sendError(c, "invalid family id")
		return fmt.Errorf("invalid family id %d", familyID)
	}
	if policy != nil && !policy(userID, familyID) {
		h.sendError(c, "Not a member of this family")
		return ErrFamilyForbidden
	}

	h.mu.Lock()
	// The client may have disconnected or switched identity while the policy ran.
	if _, ok := h.clients[c]; !ok || c.userID != userID {
		h.mu.Unlock()
		return nil
	}
	addMember(h.families, familyID, c)
	c.families[familyID] = struct{}{}
	h.updateGaugesLocked()
	h.mu.Unlock()

	h.logger.Debug("client joined family", "conn", c.id, "user_id", userID, "family_id", familyID)
	return nil
}

// LeaveFamily removes c from familyID's room. Leaving a room the client is
// not in is a no-op.
func (h *Hub) LeaveFamily(c *Client, familyID int64) {
	h.mu.Lock()
	if _, ok := c.families[familyID]; ok {
		delete(c.families, familyID)
		removeMember(h.families, familyID, c)
		h.updateGaugesLocked()
	}
	h.mu.Unlock()
}

// EvictUser removes every connection of userID from familyID's room and
// returns how many were removed. Used when a membership is revoked.
func (h *Hub) EvictUser(userID, familyID int64) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	removed := 0
	for c := range h.users[userID] {
		if _, ok := c.families[familyID]; ok {
			delete(c.families, familyID)
			removeMember(h.families, familyID, c)
			removed++
		}
	}
	if removed > 0 {
		h.updateGaugesLocked()
	}
	h.mu.Unlock()
	return removed
}

// SendToUser delivers a notification to every connection of userID and
// returns the number of connections it was queued for.
func (h *Hub) SendToUser(userID int64, n Notification) int {
	return h.publishUser(userID, EventNotification, n)
}

// SendToFamily delivers a notification to every connection in familyID's room.
func (h *Hub) SendToFamily(familyID int64, n Notification) int {
	return h.publishFamily(familyID, EventNotification, n)
}

// Broadcast delivers a notification to every live connection, authenticated or not.
func (h *Hub) Broadcast(n Notification) int {
	if h == nil {
		slog.Warn("realtime hub not initialized, dropping broadcast")
		return 0
	}
	data, err := encodeFrame(EventNotification, n)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deliverLocked(h.clients, EventNotification, data)
}

func (h *Hub) NotifyBudgetCreated(familyID int64, b BudgetEvent) int {
	return h.publishFamily(familyID, EventBudgetCreated, b)
}

func (h *Hub) NotifyBudgetUpdated(familyID int64, b BudgetEvent) int {
	return h.publishFamily(familyID, EventBudgetUpdated, b)
}

func (h *Hub) NotifyBudgetDeleted(familyID int64, b BudgetEvent) int {
	return h.publishFamily(familyID, EventBudgetDeleted, b)
}

func (h *Hub) NotifyExpenseCreated(familyID int64, e ExpenseEvent) int {
	return h.publishFamily(familyID, EventExpenseCreated, e)
}

func (h *Hub) NotifyExpenseUpdated(familyID int64, e ExpenseEvent) int {
	return h.publishFamily(familyID, EventExpenseUpdated, e)
}

func (h *Hub) NotifyExpenseDeleted(familyID int64, e ExpenseEvent) int {
	return h.publishFamily(familyID, EventExpenseDeleted, e)
}

// NotifyBudgetShared tells userID that sharedByName shared budget b with them.
func (h *Hub) NotifyBudgetShared(userID int64, b BudgetEvent, sharedByName string) int {
	return h.SendToUser(userID, NewBudgetSharedNotification(b, sharedByName, h.clock()))
}

// NewBudgetSharedNotification builds the budget_shared notice. The id is a
// UUIDv7, so it sorts by creation time.
func NewBudgetSharedNotification(b BudgetEvent, sharedByName string, at time.Time) Notification {
	return Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      EventBudgetShared,
		Title:     "Budget Shared",
		Message:   fmt.Sprintf("%s shared a budget %q with you", sharedByName, b.Category),
		Timestamp: at,
		Read:      false,
		Data:      b,
	}
}

func (h *Hub) clock() time.Time {
	if h == nil || h.now == nil {
		return time.Now()
	}
	return h.now()
}

func (h *Hub) publishUser(userID int64, event string, payload any) int {
	if h == nil {
		slog.Warn("realtime hub not initialized, dropping event", "event", event, "user_id", userID)
		return 0
	}
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error("marshal event", "event", event, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deliverLocked(h.users[userID], event, data)
}

func (h *Hub) publishFamily(familyID int64, event string, payload any) int {
	if h == nil {
		slog.Warn("realtime hub not initialized, dropping event", "event", event, "family_id", familyID)
		return 0
	}
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error("marshal event", "event", event, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deliverLocked(h.families[familyID], event, data)
}

// deliverLocked queues data on every client in g. Callers hold at least mu.RLock.
func (h *Hub) deliverLocked(g map[*Client]struct{}, event string, data []byte) int {
	delivered := 0
	for c := range g {
		if c.trySend(data) {
			delivered++
		} else {
			metrics.EventsDropped.WithLabelValues(event).Inc()
			h.logger.Warn("client buffer full, dropping event", "conn", c.id, "event", event)
		}
	}
	if delivered > 0 {
		metrics.EventsDelivered.WithLabelValues(event).Add(float64(delivered))
	}
	return delivered
}

// sendTo queues a single event for c if it is still registered.
func (h *Hub) sendTo(c *Client, event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error("marshal event", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.deliverLocked(group{c: {}}, event, data)
	}
}

func (h *Hub) sendError(c *Client, msg string) {
	h.sendTo(c, EventError, ErrorPayload{Message: msg})
}

func (h *Hub) updateGaugesLocked() {
	metrics.ConnectionsActive.Set(float64(len(h.clients)))
	metrics.UserRooms.Set(float64(len(h.users)))
	metrics.FamilyRooms.Set(float64(len(h.families)))
}

func addMember(groups map[int64]group, key int64, c *Client) {
	g, ok := groups[key]
	if !ok {
		g = make(group)
		groups[key] = g
	}
	g[c] = struct{}{}
}

// removeMember deletes c from groups[key] and drops the entry once empty.
func removeMember(groups map[int64]group, key int64, c *Client) {
	g, ok := groups[key]
	if !ok {
		return
	}
	delete(g, c)
	if len(g) == 0 {
		delete(groups, key)
	}
}
