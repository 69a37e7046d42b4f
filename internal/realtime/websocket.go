package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
)

// Inbound and control events.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventPing          = "ping"
	EventPong          = "pong"
	EventError         = "error"
)

const (
	defaultSendBuffer = 32
	writeTimeout      = 10 * time.Second
	authTimeout       = 10 * time.Second
)

// TokenAuthenticator turns a Firebase ID token into an identity.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, idToken string) (*auth.Identity, error)
}

// ServerOptions configures the websocket endpoint.
type ServerOptions struct {
	SendBuffer     int
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server accepts websocket clients and hands their connections to a Hub.
type Server struct {
	hub            *Hub
	authenticator  TokenAuthenticator
	sendBuffer     int
	allowedOrigins []string
	logger         *zap.Logger
}

// NewServer constructs the websocket endpoint for hub.
func NewServer(hub *Hub, authenticator TokenAuthenticator, opts ServerOptions) (*Server, error) {
	if hub == nil {
		return nil, errors.New("realtime: hub is required")
	}
	if authenticator == nil {
		return nil, errors.New("realtime: authenticator is required")
	}
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make([]string, 0, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	return &Server{
		hub:            hub,
		authenticator:  authenticator,
		sendBuffer:     buffer,
		allowedOrigins: origins,
		logger:         logger.Named("realtime"),
	}, nil
}

// Handler returns the HTTP handler performing the websocket upgrade.
func (s *Server) Handler() http.Handler {
	return websocket.Server{
		Handshake: s.handshake,
		Handler:   s.serve,
	}
}

func (s *Server) handshake(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return err
	}
	cfg.Origin = origin
	if len(s.allowedOrigins) == 0 || slices.Contains(s.allowedOrigins, "*") {
		return nil
	}
	if origin == nil || !slices.Contains(s.allowedOrigins, strings.TrimRight(origin.String(), "/")) {
		return errors.New("realtime: origin not allowed")
	}
	return nil
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) serve(ws *websocket.Conn) {
	c := newConnection(uuid.NewString(), ws, s.sendBuffer, s.logger)
	if err := s.hub.Attach(c); err != nil {
		s.logger.Warn("realtime connection rejected", zap.Error(err))
		_ = c.Close()
		return
	}
	defer func() {
		s.hub.Detach(c.ID())
		_ = c.Close()
	}()
	go c.writeLoop()

	ctx := context.Background()
	if req := ws.Request(); req != nil {
		ctx = req.Context()
	}

	for {
		var in inboundFrame
		if err := websocket.JSON.Receive(ws, &in); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("realtime receive ended", zap.String("connId", c.ID()), zap.Error(err))
			}
			return
		}
		switch in.Event {
		case EventAuthenticate:
			s.authenticate(ctx, c, in.Data)
		case EventPing:
			c.Send(Frame{Event: EventPong})
		default:
			c.Send(Frame{Event: EventError, Data: errorPayload{Code: "unknown_event", Message: "unsupported event " + in.Event}})
		}
	}
}

func (s *Server) authenticate(ctx context.Context, c *connection, raw json.RawMessage) {
	var payload authenticatePayload
	if err := json.Unmarshal(raw, &payload); err != nil || strings.TrimSpace(payload.Token) == "" {
		c.Send(Frame{Event: EventError, Data: errorPayload{Code: "invalid_payload", Message: "token is required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	identity, err := s.authenticator.Authenticate(ctx, payload.Token)
	if err == nil && identity.Expired(time.Now()) {
		err = auth.ErrTokenExpired
	}
	if err != nil {
		s.logger.Info("realtime authentication failed", zap.String("connId", c.ID()), zap.Error(err))
		c.Send(Frame{Event: EventError, Data: errorPayload{Code: "unauthenticated", Message: "invalid or expired token"}})
		return
	}

	member := Member{ID: identity.UID, Admin: identity.IsAdmin()}
	if err := s.hub.Authenticate(c.ID(), member); err != nil {
		s.logger.Warn("realtime join failed", zap.String("connId", c.ID()), zap.Error(err))
		c.Send(Frame{Event: EventError, Data: errorPayload{Code: "join_failed", Message: "could not join rooms"}})
		return
	}
	ack := map[string]string{
		"userId": identity.UID,
		"role":   identity.PrimaryRole(),
	}
	if !identity.ExpiresAt.IsZero() {
		ack["expiresAt"] = identity.ExpiresAt.Format(time.RFC3339)
	}
	c.Send(Frame{Event: EventAuthenticated, Data: ack})
}

// connection owns one websocket. Frames are queued on a bounded buffer and written by a single
// goroutine; a full buffer closes the connection.
type connection struct {
	id     string
	ws     *websocket.Conn
	out    chan Frame
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newConnection(id string, ws *websocket.Conn, buffer int, logger *zap.Logger) *connection {
	return &connection{
		id:     id,
		ws:     ws,
		out:    make(chan Frame, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *connection) ID() string { return c.id }

func (c *connection) Send(frame Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("realtime slow consumer dropped", zap.String("connId", c.id))
		_ = c.Close()
		return false
	}
}

func (c *connection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *connection) writeLoop() {
	for {
		select {
		case frame := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.JSON.Send(c.ws, frame); err != nil {
				c.logger.Debug("realtime write failed", zap.String("connId", c.id), zap.Error(err))
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
