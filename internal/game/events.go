package game

import (
	"time"

	"github.com/vasablaha/gomoku-tel/internal/entity"
)

const (
	ReasonWin     = "win"
	ReasonDraw    = "draw"
	ReasonTimeout = "timeout"
)

// Event is one outbound notification addressed to every participant of
// a session's room. Each kind is its own type so payloads are built at
// the source, not assembled ad hoc at the transport.
type Event interface {
	Action() string
}

// Broadcaster fans an event out to a session's room. Delivery is best
// effort and must never block session processing.
type Broadcaster interface {
	Broadcast(sessionID string, event Event)
}

type PlayerJoinedEvent struct {
	PlayerCount int    `json:"playerCount"`
	Status      string `json:"status"`
}

func (PlayerJoinedEvent) Action() string { return "playerJoined" }

type MoveAppliedEvent struct {
	Row           int          `json:"row"`
	Col           int          `json:"col"`
	Player        string       `json:"player"`
	CurrentPlayer string       `json:"currentPlayer"`
	Board         entity.Board `json:"board"`
	Status        string       `json:"status"`
	Winner        string       `json:"winner"`
	TurnDeadline  int64        `json:"turnDeadline"`
}

func (MoveAppliedEvent) Action() string { return "moveMade" }

type GameOverEvent struct {
	Winner string       `json:"winner"`
	Board  entity.Board `json:"board"`
	Reason string       `json:"reason"`

	// Seats lets the gateway settle per-player bookkeeping; it is not
	// part of the wire payload.
	Seats []entity.Seat `json:"-"`
}

func (GameOverEvent) Action() string { return "gameOver" }

type GameRestartedEvent struct {
	Board         entity.Board `json:"board"`
	CurrentPlayer string       `json:"currentPlayer"`
	Status        string       `json:"status"`
	TurnDeadline  int64        `json:"turnDeadline"`
}

func (GameRestartedEvent) Action() string { return "gameRestarted" }

type PlayerDisconnectedEvent struct {
	Symbol string `json:"symbol"`
}

func (PlayerDisconnectedEvent) Action() string { return "playerDisconnected" }

// Snapshot is the full read-only projection of a session. It doubles as
// the requester-only reply on join and as the polling response; the
// PlayerSymbol field is set only for a seated requester.
type Snapshot struct {
	ID            string       `json:"id"`
	Board         entity.Board `json:"board"`
	CurrentPlayer string       `json:"currentPlayer"`
	Status        string       `json:"status"`
	Winner        string       `json:"winner"`
	PlayerCount   int          `json:"playerCount"`
	PlayerSymbol  string       `json:"playerSymbol,omitempty"`
	TurnDeadline  int64        `json:"turnDeadline"`
}

func (Snapshot) Action() string { return "gameState" }

// Lobby is the discovery projection of a joinable session.
type Lobby struct {
	ID         string `json:"id"`
	PlayerName string `json:"playerName"`
	CreatedAt  int64  `json:"createdAt"`
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
