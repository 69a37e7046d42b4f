package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const metricNamespace = "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/realtime"

// Event names carried in outbound frames.
const (
	EventUserNotification  = "user-notification"
	EventAdminNotification = "admin-notification"
	EventNotification      = "notification"
)

// AdminNotificationsRoom is joined by every authenticated admin connection.
const AdminNotificationsRoom = "admin-notifications"

// UserRoom names the room of one principal. Admins join their user room too.
func UserRoom(id string) string { return "user:" + id }

// AdminRoom names the private room of one admin.
func AdminRoom(id string) string { return "admin:" + id }

// Frame is the JSON envelope exchanged over a connection.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is one live client connection. Send reports whether the frame was queued for delivery.
type Conn interface {
	ID() string
	Send(frame Frame) bool
	Close() error
}

// Member is the authenticated principal behind a connection.
type Member struct {
	ID    string
	Admin bool
}

// HubOptions configures a Hub.
type HubOptions struct {
	Tracker *Tracker
	Logger  *zap.Logger
	Meter   metric.Meter
}

// Hub routes frames to rooms of connections. A nil or stopped hub delivers nothing.
type Hub struct {
	tracker     *Tracker
	logger      *zap.Logger
	connections metric.Int64UpDownCounter
	frames      metric.Int64Counter

	mu      sync.RWMutex
	started bool
	conns   map[string]Conn
	rooms   map[string]map[string]struct{}
	joined  map[string][]string
}

// NewHub constructs a hub. Call Start before routing frames.
func NewHub(opts HubOptions) (*Hub, error) {
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	h := &Hub{
		tracker: tracker,
		logger:  logger,
		conns:   make(map[string]Conn),
		rooms:   make(map[string]map[string]struct{}),
		joined:  make(map[string][]string),
	}
	var err error
	if h.connections, err = meter.Int64UpDownCounter("realtime.connections",
		metric.WithDescription("Open realtime connections")); err != nil {
		return nil, fmt.Errorf("realtime: create counter: %w", err)
	}
	if h.frames, err = meter.Int64Counter("realtime.frames",
		metric.WithDescription("Frames queued to connections by event")); err != nil {
		return nil, fmt.Errorf("realtime: create counter: %w", err)
	}
	return h, nil
}

// Tracker exposes the presence tracker fed by this hub.
func (h *Hub) Tracker() *Tracker {
	if h == nil {
		return nil
	}
	return h.tracker
}

func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
	h.logger.Info("realtime hub started")
}

// Stop closes every connection and refuses further routing.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.started = false
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
		h.Detach(c.ID())
	}
}

// Attach registers an unauthenticated connection. It receives global broadcasts only.
func (h *Hub) Attach(c Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return errors.New("realtime: hub not started")
	}
	h.conns[c.ID()] = c
	h.connections.Add(context.Background(), 1)
	return nil
}

// Authenticate joins connID to the rooms of member and marks member online. A connection that
// authenticated before leaves the rooms and presence of its previous member first.
func (h *Hub) Authenticate(connID string, member Member) error {
	if member.ID == "" {
		return errors.New("realtime: member id is required")
	}
	h.mu.Lock()
	if _, ok := h.conns[connID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("realtime: connection %s not attached", connID)
	}
	h.leaveAll(connID)
	h.tracker.Remove(connID)
	rooms := []string{UserRoom(member.ID)}
	if member.Admin {
		rooms = append(rooms, AdminNotificationsRoom, AdminRoom(member.ID))
	}
	for _, room := range rooms {
		h.join(connID, room)
	}
	h.mu.Unlock()

	h.tracker.Register(member.ID, connID, member.Admin)
	h.logger.Debug("realtime connection authenticated",
		zap.String("connId", connID),
		zap.String("memberId", member.ID),
		zap.Bool("admin", member.Admin),
	)
	return nil
}

// Detach removes the connection from every room and from presence.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	if _, ok := h.conns[connID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)
	h.leaveAll(connID)
	h.mu.Unlock()

	h.connections.Add(context.Background(), -1)
	if removed := h.tracker.Remove(connID); len(removed) > 0 {
		h.logger.Debug("realtime connection closed", zap.String("connId", connID), zap.Strings("members", removed))
	}
}

// SendToUser delivers payload to the user room. It reports false when no connection took the frame.
func (h *Hub) SendToUser(userID string, payload any) bool {
	if !h.live() || userID == "" {
		return false
	}
	return h.emit(UserRoom(userID), Frame{Event: EventUserNotification, Data: payload})
}

// SendToAdmin delivers payload to one admin's private room.
func (h *Hub) SendToAdmin(adminID string, payload any) bool {
	if !h.live() || adminID == "" {
		return false
	}
	return h.emit(AdminRoom(adminID), Frame{Event: EventAdminNotification, Data: payload})
}

// SendToUsers delivers payload to each user room and reports whether any connection took it.
func (h *Hub) SendToUsers(userIDs []string, payload any) bool {
	if !h.live() {
		return false
	}
	delivered := false
	for _, id := range userIDs {
		if id != "" && h.emit(UserRoom(id), Frame{Event: EventUserNotification, Data: payload}) {
			delivered = true
		}
	}
	return delivered
}

// BroadcastToAdmins delivers payload to every admin connection.
func (h *Hub) BroadcastToAdmins(payload any) bool {
	if !h.live() {
		return false
	}
	h.emit(AdminNotificationsRoom, Frame{Event: EventAdminNotification, Data: payload})
	return true
}

// BroadcastToUsers delivers payload to every online non-admin user.
func (h *Hub) BroadcastToUsers(payload any) bool {
	if !h.live() {
		return false
	}
	frame := Frame{Event: EventUserNotification, Data: payload}
	for _, id := range h.tracker.OnlineUsers() {
		for _, connID := range h.tracker.userConns(id) {
			h.mu.RLock()
			c, ok := h.conns[connID]
			h.mu.RUnlock()
			if ok {
				h.send(c, frame)
			}
		}
	}
	return true
}

// Broadcast delivers payload to every attached connection.
func (h *Hub) Broadcast(payload any) bool {
	if !h.live() {
		return false
	}
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	frame := Frame{Event: EventNotification, Data: payload}
	for _, c := range conns {
		h.send(c, frame)
	}
	return true
}

func (h *Hub) IsUserOnline(userID string) bool {
	if h == nil {
		return false
	}
	return h.tracker.IsUserOnline(userID)
}

func (h *Hub) IsAdminOnline(adminID string) bool {
	if h == nil {
		return false
	}
	return h.tracker.IsAdminOnline(adminID)
}

func (h *Hub) live() bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// leaveAll must be called with h.mu held.
func (h *Hub) leaveAll(connID string) {
	for _, room := range h.joined[connID] {
		members := h.rooms[room]
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, connID)
}

// join must be called with h.mu held.
func (h *Hub) join(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	if _, ok := members[connID]; ok {
		return
	}
	members[connID] = struct{}{}
	h.joined[connID] = append(h.joined[connID], room)
}

func (h *Hub) emit(room string, frame Frame) bool {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		if c, ok := h.conns[connID]; ok {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	delivered := false
	for _, c := range conns {
		if h.send(c, frame) {
			delivered = true
		}
	}
	return delivered
}

func (h *Hub) send(c Conn, frame Frame) bool {
	ok := c.Send(frame)
	h.frames.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event", frame.Event),
		attribute.Bool("queued", ok),
	))
	return ok
}
