// Package websocket is the transport of the realtime core: it authenticates the
// handshake, upgrades the connection and pumps JSON frames both ways.
package websocket

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/runtime"
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// Gateway is the part of the core that accepts new connections.
type Gateway interface {
	Hub
	Connect(ctx context.Context, userID domain.UserID, sink contract.EventSink) (runtime.Client, error)
}

type Config struct {
	BufferSize        int
	SinkTimeout       time.Duration
	AllowedOrigins    []string
	UpgradesPerSecond float64
	UpgradeBurst      int
}

type Server struct {
	log      *slog.Logger
	gateway  Gateway
	verifier contract.Verifier
	attempts *auth.FailedAttemptTracker
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	config   Config
	now      func() time.Time
}

func NewServer(log *slog.Logger, gateway Gateway, verifier contract.Verifier,
	attempts *auth.FailedAttemptTracker, config Config) *Server {
	limit := rate.Inf
	if config.UpgradesPerSecond > 0 {
		limit = rate.Limit(config.UpgradesPerSecond)
	}
	s := &Server{
		log:      log,
		gateway:  gateway,
		verifier: verifier,
		attempts: attempts,
		limiter:  rate.NewLimiter(limit, max(config.UpgradeBurst, 1)),
		config:   config,
		now:      time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      s.checkOrigin,
	}
	return s
}

// ServeHTTP authenticates the handshake, then upgrades and serves the connection
// until it drops. Nothing is registered before the token is verified.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}
	addr := remoteAddr(r)
	if s.attempts.Blocked(addr, s.now()) {
		s.log.Debug("Handshake refused", "addr", addr, "error", errors.ErrTooManyAttempts)
		http.Error(w, errors.ErrTooManyAttempts.Error(), http.StatusTooManyRequests)
		return
	}

	token := extractToken(r)
	if token == "" {
		http.Error(w, errors.ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		failures := s.attempts.Fail(addr, s.now())
		s.log.Debug("Handshake rejected", "addr", addr, "failures", failures, "error", err)
		http.Error(w, errors.ErrInvalidToken.Error(), http.StatusUnauthorized)
		return
	}
	s.attempts.Reset(addr)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	// The request context ends with the hijack; keep its values only.
	ctx := context.WithoutCancel(r.Context())
	sink := NewSink(s.config.BufferSize, s.config.SinkTimeout)
	client, err := s.gateway.Connect(ctx, identity.UserID, sink)
	if stderrors.Is(err, errors.ErrConnectionReplaced) {
		s.log.Info("Connection replaced during registration", "user_id", identity.UserID)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, event.CloseNewWindow),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	if err != nil {
		s.log.Error("Connection not registered", "user_id", identity.UserID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	NewClient(s.log, s.gateway, conn, sink, client).Serve(ctx)
}

// checkOrigin accepts clients that send no Origin, and browsers whose origin is listed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.config.AllowedOrigins) == 0 {
		return true
	}
	if lo.Contains(s.config.AllowedOrigins, "*") || lo.Contains(s.config.AllowedOrigins, origin) {
		return true
	}
	s.log.Warn("Websocket origin rejected", "origin", origin)
	return false
}

// extractToken reads a bearer token from the Authorization header, then from the query.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
