package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playlinkhq/bingo-battle-backend/internal/notifier"
	"github.com/playlinkhq/bingo-battle-backend/internal/service"
)

// Server is the push-channel endpoint: it authenticates a participant,
// upgrades the connection and registers it in the presence registry so the
// dispatcher can reach the user. Inbound messages are not part of the
// protocol; every mutation goes through the REST surface.
type Server struct {
	logger   *slog.Logger
	registry *notifier.Registry
	auth     service.AuthService
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, registry *notifier.Registry, auth service.AuthService) *Server {
	return &Server{
		logger:   logger,
		registry: registry,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
	}
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	serveMux := http.NewServeMux()
	serveMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           serveMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleConnection")

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	userID, err := that.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	channel := newChannel(conn)
	that.registry.Register(userID, channel)
	log.Info("push channel opened", "user", userID)

	defer func() {
		that.registry.Deregister(userID, channel)
		_ = conn.Close()
		log.Info("push channel closed", "user", userID)
	}()

	// Drain the connection until the client goes away so close frames and
	// pings are processed.
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err = conn.ReadMessage(); err != nil {
			return
		}
	}
}
