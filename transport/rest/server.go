package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
	"github.com/playlinkhq/bingo-battle-backend/internal/service"
	"github.com/playlinkhq/bingo-battle-backend/internal/usecase"
)

type matchManager interface {
	CreateRequest(ctx context.Context, challengerID, opponentID string) (*entity.Match, error)
	Accept(ctx context.Context, matchID, callerID string) (*entity.Match, error)
	Reject(ctx context.Context, matchID, callerID string) error
	Stop(ctx context.Context, matchID, callerID string) error
	MarkNumber(ctx context.Context, matchID, callerID string, number int) (*entity.Match, error)
	HandleTimeout(ctx context.Context, matchID string) (*entity.Match, error)
	PendingRequests(ctx context.Context, userID string) ([]*entity.Match, error)
	GetRequestStatus(ctx context.Context, callerID, peerID string) (*usecase.RequestStatus, error)
}

type userService interface {
	Save(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

type Server struct {
	logger  *slog.Logger
	matches matchManager
	users   userService
	auth    service.AuthService
}

func New(logger *slog.Logger, matches matchManager, users userService, auth service.AuthService) *Server {
	return &Server{
		logger:  logger,
		matches: matches,
		users:   users,
		auth:    auth,
	}
}

// Start - starts the REST server.
func (that *Server) Start(port string) error {
	router := mux.NewRouter()

	router.HandleFunc("/ping", that.handlePing).Methods("GET")
	router.HandleFunc("/auth/register", that.handleRegister).Methods("POST")
	router.HandleFunc("/auth/token", that.handleIssueToken).Methods("POST")

	gameRouter := router.PathPrefix("/api/game").Subrouter()
	gameRouter.Use(that.authMiddleware)
	gameRouter.HandleFunc("/send-request", that.handleSendRequest).Methods("POST")
	gameRouter.HandleFunc("/accept-request", that.handleAcceptRequest).Methods("POST")
	gameRouter.HandleFunc("/reject-request", that.handleRejectRequest).Methods("POST")
	gameRouter.HandleFunc("/mark-cell", that.handleMarkCell).Methods("POST")
	gameRouter.HandleFunc("/stop-game", that.handleStopGame).Methods("POST")
	gameRouter.HandleFunc("/handle-timeout", that.handleTimeout).Methods("POST")
	gameRouter.HandleFunc("/pending-requests", that.handlePendingRequests).Methods("GET")
	gameRouter.HandleFunc("/request-status/{peerId}", that.handleRequestStatus).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
