package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vasablaha/gomoku-tel/internal/apperror"
	"github.com/vasablaha/gomoku-tel/internal/entity"
)

const maxSeats = 2

// Session is the authoritative state of one game: board, seats, status,
// turn and the pending turn deadline. Every mutation — participant
// actions and clock firings alike — is serialized through the session
// mutex, so two mutations of the same session never interleave.
type Session struct {
	ID        string
	CreatedAt time.Time

	logger      *slog.Logger
	broadcaster Broadcaster

	mu     sync.Mutex
	board  entity.Board
	seats  []*entity.Seat
	status string
	turn   string
	winner string
	clock  *turnClock
}

func newSession(id string, logger *slog.Logger, broadcaster Broadcaster, clock clockwork.Clock, turnTimeout time.Duration) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   clock.Now(),
		logger:      logger.With("component", "session", "gameID", id),
		broadcaster: broadcaster,
		status:      entity.StatusWaiting,
		turn:        entity.PlayerX,
		clock:       newTurnClock(clock, turnTimeout),
	}
}

// Join seats a participant. A returning identity only rebinds its
// transport handle; a fresh identity takes the next free seat, and the
// second seat starts the game and arms the turn clock. Returns the
// joiner's snapshot.
func (that *Session) Join(identity, name, connID string) (Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, seat := range that.seats {
		if seat.Identity == identity {
			seat.ConnID = connID
			return that.snapshotLocked(seat.Mark), nil
		}
	}

	if len(that.seats) >= maxSeats {
		return Snapshot{}, fmt.Errorf("%w: game id %s", apperror.ErrGameFull, that.ID)
	}

	mark := entity.PlayerX
	if len(that.seats) == 1 {
		mark = entity.PlayerO
	}

	if name == "" {
		name = "Player " + mark
	}

	that.seats = append(that.seats, &entity.Seat{
		Identity: identity,
		Name:     name,
		Mark:     mark,
		ConnID:   connID,
	})

	if len(that.seats) == maxSeats {
		that.status = entity.StatusPlaying
		that.armClockLocked()
	}

	that.logger.Info("player joined", "mark", mark, "status", that.status)

	that.broadcast(PlayerJoinedEvent{
		PlayerCount: len(that.seats),
		Status:      that.status,
	})

	return that.snapshotLocked(mark), nil
}

// ApplyMove validates and applies a move by the seat currently bound to
// connID. On success the game either finishes (win or full board) or
// the turn flips and the clock is re-armed.
func (that *Session) ApplyMove(connID string, row, col int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != entity.StatusPlaying {
		return apperror.ErrNotPlaying
	}

	seat := that.seatByConnLocked(connID)
	if seat == nil || seat.Mark != that.turn {
		return apperror.ErrNotYourTurn
	}

	if err := that.board.Place(row, col, seat.Mark); err != nil {
		return err
	}

	switch {
	case that.board.HasWin(row, col, seat.Mark):
		that.finishLocked(seat.Mark, ReasonWin)
	case that.board.IsFull():
		that.finishLocked(entity.WinnerDraw, ReasonDraw)
	default:
		that.turn = entity.ToggleMark(seat.Mark)
		deadline := that.armClockLocked()

		that.broadcast(MoveAppliedEvent{
			Row:           row,
			Col:           col,
			Player:        seat.Mark,
			CurrentPlayer: that.turn,
			Board:         that.board,
			Status:        that.status,
			Winner:        that.winner,
			TurnDeadline:  unixMilli(deadline),
		})
	}

	that.logger.Debug("move applied", "mark", seat.Mark, "row", row, "col", col, "status", that.status)

	return nil
}

// Restart clears the board for a new round. Seats are kept, the first
// mark moves again, and the status is re-derived from the seat count.
func (that *Session) Restart() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clock.cancel()
	that.board = entity.Board{}
	that.turn = entity.PlayerX
	that.winner = ""

	var deadline time.Time
	if len(that.seats) == maxSeats {
		that.status = entity.StatusPlaying
		deadline = that.armClockLocked()
	} else {
		that.status = entity.StatusWaiting
	}

	that.logger.Info("game restarted", "status", that.status)

	that.broadcast(GameRestartedEvent{
		Board:         that.board,
		CurrentPlayer: that.turn,
		Status:        that.status,
		TurnDeadline:  unixMilli(deadline),
	})
}

// MarkDisconnected notifies the room that the seat bound to connID lost
// its transport. The seat survives so the same identity can rejoin; the
// game keeps running. Reports whether the handle belonged to a seat.
func (that *Session) MarkDisconnected(connID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	seat := that.seatByConnLocked(connID)
	if seat == nil {
		return false
	}

	seat.ConnID = ""

	that.logger.Info("player disconnected", "mark", seat.Mark)

	that.broadcast(PlayerDisconnectedEvent{Symbol: seat.Mark})

	return true
}

// Snapshot returns the session projection for status polling. It does
// not require membership.
func (that *Session) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked("")
}

// Seats returns a copy of the current seat assignments.
func (that *Session) Seats() []entity.Seat {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.seatsCopyLocked()
}

// handleTimeout is invoked by the turn clock. The generation check and
// the status guard make a firing that raced a resolving move a no-op.
func (that *Session) handleTimeout(gen uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.clock.isCurrent(gen) || that.status != entity.StatusPlaying {
		return
	}

	loser := that.turn
	winner := entity.ToggleMark(loser)

	that.logger.Info("turn timed out", "loser", loser)

	that.finishLocked(winner, ReasonTimeout)
}

// dispose cancels the pending clock before the registry drops the
// session, so no timer ever fires against an evicted session.
func (that *Session) dispose() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clock.cancel()
}

// lobbyInfo projects the session for the open-lobby listing: Waiting,
// exactly one seat and younger than the listing window.
func (that *Session) lobbyInfo(now time.Time, window time.Duration) (Lobby, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != entity.StatusWaiting || len(that.seats) != 1 {
		return Lobby{}, false
	}

	if now.Sub(that.CreatedAt) >= window {
		return Lobby{}, false
	}

	return Lobby{
		ID:         that.ID,
		PlayerName: that.seats[0].Name,
		CreatedAt:  unixMilli(that.CreatedAt),
	}, true
}

func (that *Session) finishLocked(winner, reason string) {
	that.status = entity.StatusFinished
	that.winner = winner
	that.clock.cancel()

	that.broadcast(GameOverEvent{
		Winner: winner,
		Board:  that.board,
		Reason: reason,
		Seats:  that.seatsCopyLocked(),
	})
}

func (that *Session) armClockLocked() time.Time {
	return that.clock.arm(that.handleTimeout)
}

func (that *Session) seatByConnLocked(connID string) *entity.Seat {
	for _, seat := range that.seats {
		if seat.ConnID == connID && connID != "" {
			return seat
		}
	}
	return nil
}

func (that *Session) seatsCopyLocked() []entity.Seat {
	seats := make([]entity.Seat, 0, len(that.seats))
	for _, seat := range that.seats {
		seats = append(seats, *seat)
	}
	return seats
}

func (that *Session) snapshotLocked(mark string) Snapshot {
	return Snapshot{
		ID:            that.ID,
		Board:         that.board,
		CurrentPlayer: that.turn,
		Status:        that.status,
		Winner:        that.winner,
		PlayerCount:   len(that.seats),
		PlayerSymbol:  mark,
		TurnDeadline:  unixMilli(that.clock.deadline),
	}
}

// broadcast hands the event to the gateway. The state mutation is
// already complete at this point; a failed delivery never rolls it back.
func (that *Session) broadcast(event Event) {
	if that.broadcaster == nil {
		return
	}
	that.broadcaster.Broadcast(that.ID, event)
}
