package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vasablaha/gomoku-tel/internal/entity"
	"github.com/vasablaha/gomoku-tel/internal/game"
)

const (
	sendBufferSize = 32
	writeTimeout   = 10 * time.Second
)

type gameRegistry interface {
	Get(id string) (*game.Session, error)
}

type statsRecorder interface {
	RecordResult(ctx context.Context, seats []entity.Seat, winner string)
}

// Server is the event gateway: it delivers inbound participant actions
// to sessions and fans emitted events out to each session's room.
type Server struct {
	logger   *slog.Logger
	registry gameRegistry
	stats    statsRecorder

	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, conn *connection, payload json.RawMessage) error

	mu          sync.RWMutex
	rooms       map[string]map[string]*connection
	memberships map[string]map[string]bool
}

// connection is one participant socket. Outbound traffic goes through
// the buffered send channel so a slow reader never blocks a session.
// The send channel is never closed — a broadcast may race the
// disconnect — the write pump exits via done instead.
type connection struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func New(logger *slog.Logger, registry gameRegistry, stats statsRecorder) *Server {
	server := &Server{
		logger:   logger,
		registry: registry,
		stats:    stats,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},

		handlers:    make(map[string]func(context.Context, *connection, json.RawMessage) error),
		rooms:       make(map[string]map[string]*connection),
		memberships: make(map[string]map[string]bool),
	}

	server.handlers["joinGame"] = server.handleJoinGame
	server.handlers["makeMove"] = server.handleMakeMove
	server.handlers["restartGame"] = server.handleRestartGame

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	wsConn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := &connection{
		id:   uuid.NewString(),
		conn: wsConn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	log = log.With("connID", conn.id)
	log.Info("WebSocket connection established")

	go that.writePump(conn)

	that.readLoop(ctx, conn)
	that.handleDisconnect(conn)

	log.Info("WebSocket connection closed")
}

// readLoop - processes messages from the client until the socket dies.
func (that *Server) readLoop(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readLoop", "connID", conn.id)

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			log.Debug("connection read ended", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, conn, message.Payload); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

func (that *Server) writePump(conn *connection) {
	defer conn.conn.Close()

	for {
		select {
		case <-conn.done:
			return
		case data := <-conn.send:
			_ = conn.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// Closing the socket makes the read loop run disconnect.
				return
			}
		}
	}
}

// handleDisconnect raises a disconnect notice for every session the
// connection participated in. Seats stay assigned so the same identity
// can rejoin.
func (that *Server) handleDisconnect(conn *connection) {
	that.mu.Lock()
	gameIDs := make([]string, 0, len(that.memberships[conn.id]))
	for gameID := range that.memberships[conn.id] {
		gameIDs = append(gameIDs, gameID)
		delete(that.rooms[gameID], conn.id)
		if len(that.rooms[gameID]) == 0 {
			delete(that.rooms, gameID)
		}
	}
	delete(that.memberships, conn.id)
	that.mu.Unlock()

	close(conn.done)

	for _, gameID := range gameIDs {
		session, err := that.registry.Get(gameID)
		if err != nil {
			continue
		}
		session.MarkDisconnected(conn.id)
	}
}

func (that *Server) joinRoom(gameID string, conn *connection) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.rooms[gameID] == nil {
		that.rooms[gameID] = make(map[string]*connection)
	}
	that.rooms[gameID][conn.id] = conn

	if that.memberships[conn.id] == nil {
		that.memberships[conn.id] = make(map[string]bool)
	}
	that.memberships[conn.id][gameID] = true
}

func (that *Server) leaveRoom(gameID, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms[gameID], connID)
	if len(that.rooms[gameID]) == 0 {
		delete(that.rooms, gameID)
	}
	delete(that.memberships[connID], gameID)
}
