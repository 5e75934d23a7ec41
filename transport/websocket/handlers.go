package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vasablaha/gomoku-tel/internal/game"
)

const recordTimeout = 5 * time.Second

func (that *Server) handleJoinGame(_ context.Context, conn *connection, raw json.RawMessage) error {
	log := that.logger.With("method", "handleJoinGame", "connID", conn.id)

	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	session, err := that.registry.Get(payload.GameID)
	if err != nil {
		return that.sendError(conn, err.Error())
	}

	// Stable identity wins; without one the connection id is the seat
	// identity, so such a seat dies with its socket.
	identity := conn.id
	var name string
	if payload.User != nil && payload.User.ID != "" {
		identity = payload.User.ID
		name = payload.User.Name
	}

	// The room must include the joiner before the session broadcasts
	// player-joined, or the joiner misses its own join.
	that.joinRoom(session.ID, conn)

	snapshot, err := session.Join(identity, name, conn.id)
	if err != nil {
		that.leaveRoom(session.ID, conn.id)
		return that.sendError(conn, err.Error())
	}

	log.Info("player joined game", "gameID", session.ID, "mark", snapshot.PlayerSymbol)

	return that.sendEvent(conn, snapshot)
}

func (that *Server) handleMakeMove(_ context.Context, conn *connection, raw json.RawMessage) error {
	var payload movePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	session, err := that.registry.Get(payload.GameID)
	if err != nil {
		return that.sendError(conn, err.Error())
	}

	// Every rejection goes back to the mover only; the room sees
	// nothing until a move is accepted.
	if err = session.ApplyMove(conn.id, payload.Row, payload.Col); err != nil {
		return that.sendError(conn, err.Error())
	}

	return nil
}

func (that *Server) handleRestartGame(_ context.Context, conn *connection, raw json.RawMessage) error {
	var payload restartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	session, err := that.registry.Get(payload.GameID)
	if err != nil {
		return that.sendError(conn, err.Error())
	}

	session.Restart()

	return nil
}

// Broadcast implements game.Broadcaster: best-effort fan-out of a
// session event to its room. A full buffer drops the event for that
// connection rather than stalling the others.
func (that *Server) Broadcast(gameID string, event game.Event) {
	log := that.logger.With("method", "Broadcast", "gameID", gameID)

	data, err := marshalMessage(event.Action(), event)
	if err != nil {
		log.Error("failed to marshal event", "action", event.Action(), "error", err)
		return
	}

	that.mu.RLock()
	conns := make([]*connection, 0, len(that.rooms[gameID]))
	for _, conn := range that.rooms[gameID] {
		conns = append(conns, conn)
	}
	that.mu.RUnlock()

	for _, conn := range conns {
		select {
		case conn.send <- data:
		default:
			log.Warn("dropping event for slow connection", "connID", conn.id, "action", event.Action())
		}
	}

	if over, ok := event.(game.GameOverEvent); ok {
		go that.recordResult(over)
	}
}

func (that *Server) recordResult(event game.GameOverEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	that.stats.RecordResult(ctx, event.Seats, event.Winner)
}

func (that *Server) sendEvent(conn *connection, event game.Event) error {
	data, err := marshalMessage(event.Action(), event)
	if err != nil {
		return err
	}

	return that.send(conn, data)
}

func (that *Server) sendError(conn *connection, message string) error {
	data, err := marshalMessage("error", errorPayload{Message: message})
	if err != nil {
		return err
	}

	return that.send(conn, data)
}

func (that *Server) send(conn *connection, data []byte) error {
	select {
	case conn.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}
