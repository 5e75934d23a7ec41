package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/vasablaha/gomoku-tel/internal/game"
)

type gameRegistry interface {
	Create() *game.Session
	Get(id string) (*game.Session, error)
	ListOpenLobbies() []game.Lobby
	Count() int
}

type Server struct {
	logger   *slog.Logger
	registry gameRegistry
}

func New(logger *slog.Logger, registry gameRegistry) *Server {
	return &Server{
		logger:   logger,
		registry: registry,
	}
}

// Start - starts the REST API server.
func (that *Server) Start(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", that.handleCreateGame)
	mux.HandleFunc("GET /api/games/{id}", that.handleGetGame)
	mux.HandleFunc("GET /api/lobbies", that.handleListLobbies)
	mux.HandleFunc("GET /health", that.handleHealth)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      cors.AllowAll().Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
