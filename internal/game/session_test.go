package game

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasablaha/gomoku-tel/internal/apperror"
	"github.com/vasablaha/gomoku-tel/internal/entity"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (that *eventRecorder) Broadcast(_ string, event Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, event)
}

func (that *eventRecorder) byAction(action string) []Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	var matched []Event
	for _, event := range that.events {
		if event.Action() == action {
			matched = append(matched, event)
		}
	}

	return matched
}

func (that *eventRecorder) lastGameOver() (GameOverEvent, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i := len(that.events) - 1; i >= 0; i-- {
		if event, ok := that.events[i].(GameOverEvent); ok {
			return event, true
		}
	}

	return GameOverEvent{}, false
}

func newTestSession(clock clockwork.Clock) (*Session, *eventRecorder) {
	recorder := &eventRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return newSession("test-game", logger, recorder, clock, 20*time.Second), recorder
}

// seatBoth joins two players and returns their conn ids.
func seatBoth(t *testing.T, session *Session) (string, string) {
	t.Helper()

	_, err := session.Join("alice", "Alice", "conn-a")
	require.NoError(t, err)

	_, err = session.Join("bob", "Bob", "conn-b")
	require.NoError(t, err)

	return "conn-a", "conn-b"
}

func TestSession_Join(t *testing.T) {
	t.Run("First seat gets X and the game stays waiting", func(t *testing.T) {
		// Given: a fresh session
		session, recorder := newTestSession(clockwork.NewFakeClock())

		// When: the first player joins
		snapshot, err := session.Join("alice", "Alice", "conn-a")

		// Then: the seat plays X and the game waits for an opponent
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, snapshot.PlayerSymbol)
		assert.Equal(t, entity.StatusWaiting, snapshot.Status)
		assert.Equal(t, 1, snapshot.PlayerCount)
		assert.Zero(t, snapshot.TurnDeadline)
		assert.Len(t, recorder.byAction("playerJoined"), 1)
	})

	t.Run("Second seat gets O and starts the game with a deadline", func(t *testing.T) {
		// Given: a session with one seat
		session, recorder := newTestSession(clockwork.NewFakeClock())
		_, err := session.Join("alice", "Alice", "conn-a")
		require.NoError(t, err)

		// When: the second player joins
		snapshot, err := session.Join("bob", "Bob", "conn-b")

		// Then: the game is playing, X to move, clock armed
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerO, snapshot.PlayerSymbol)
		assert.Equal(t, entity.StatusPlaying, snapshot.Status)
		assert.Equal(t, entity.PlayerX, snapshot.CurrentPlayer)
		assert.NotZero(t, snapshot.TurnDeadline)
		assert.Len(t, recorder.byAction("playerJoined"), 2)
	})

	t.Run("Returning identity keeps its seat and only rebinds the transport", func(t *testing.T) {
		// Given: a full session
		session, recorder := newTestSession(clockwork.NewFakeClock())
		seatBoth(t, session)

		// When: the first player reconnects on a new connection
		snapshot, err := session.Join("alice", "Alice", "conn-a2")

		// Then: same mark, same seat count, no extra join event
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, snapshot.PlayerSymbol)
		assert.Equal(t, 2, snapshot.PlayerCount)
		assert.Len(t, recorder.byAction("playerJoined"), 2)

		// And: the rebound connection can act for the seat
		require.NoError(t, session.ApplyMove("conn-a2", 7, 7))
	})

	t.Run("A third identity is rejected", func(t *testing.T) {
		// Given: a full session
		session, _ := newTestSession(clockwork.NewFakeClock())
		seatBoth(t, session)

		// When: a third, unrelated identity joins
		_, err := session.Join("carol", "Carol", "conn-c")

		// Then: ErrGameFull
		assert.ErrorIs(t, err, apperror.ErrGameFull)
	})
}

func TestSession_ApplyMove(t *testing.T) {
	t.Run("Rejects moves while the game is not playing", func(t *testing.T) {
		// Given: a session with a single seat
		session, _ := newTestSession(clockwork.NewFakeClock())
		_, err := session.Join("alice", "Alice", "conn-a")
		require.NoError(t, err)

		// When: the seated player moves anyway
		err = session.ApplyMove("conn-a", 7, 7)

		// Then: ErrNotPlaying
		assert.ErrorIs(t, err, apperror.ErrNotPlaying)
	})

	t.Run("Turn alternates on accepted moves and rejections keep it", func(t *testing.T) {
		// Given: a playing session, X to move
		session, _ := newTestSession(clockwork.NewFakeClock())
		connA, connB := seatBoth(t, session)

		// When: O tries to move out of turn
		err := session.ApplyMove(connB, 0, 0)

		// Then: rejected and it is still X's turn
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, entity.PlayerX, session.Snapshot().CurrentPlayer)

		// When: X moves, then O targets the occupied cell
		require.NoError(t, session.ApplyMove(connA, 7, 7))
		err = session.ApplyMove(connB, 7, 7)

		// Then: rejected and it is still O's turn
		assert.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, entity.PlayerO, session.Snapshot().CurrentPlayer)

		// When: O plays a free cell
		require.NoError(t, session.ApplyMove(connB, 8, 8))

		// Then: back to X
		assert.Equal(t, entity.PlayerX, session.Snapshot().CurrentPlayer)
	})

	t.Run("A connection without a seat cannot move", func(t *testing.T) {
		// Given: a playing session
		session, _ := newTestSession(clockwork.NewFakeClock())
		seatBoth(t, session)

		// When: an unknown connection moves
		err := session.ApplyMove("conn-x", 0, 0)

		// Then: ErrNotYourTurn
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("Out of bounds moves are rejected", func(t *testing.T) {
		session, _ := newTestSession(clockwork.NewFakeClock())
		connA, _ := seatBoth(t, session)

		err := session.ApplyMove(connA, entity.BoardSize, 0)

		assert.ErrorIs(t, err, apperror.ErrOutOfBounds)
	})

	t.Run("Five in a row finishes the game with a win", func(t *testing.T) {
		// Given: a playing session
		session, recorder := newTestSession(clockwork.NewFakeClock())
		connA, connB := seatBoth(t, session)

		// When: X builds (7,3)..(7,7) while O answers elsewhere
		for i := 0; i < 4; i++ {
			require.NoError(t, session.ApplyMove(connA, 7, 3+i))
			require.NoError(t, session.ApplyMove(connB, 1, 3+i))
		}
		require.NoError(t, session.ApplyMove(connA, 7, 7))

		// Then: X wins and the board is frozen
		snapshot := session.Snapshot()
		assert.Equal(t, entity.StatusFinished, snapshot.Status)
		assert.Equal(t, entity.PlayerX, snapshot.Winner)

		gameOver, ok := recorder.lastGameOver()
		require.True(t, ok)
		assert.Equal(t, entity.PlayerX, gameOver.Winner)
		assert.Equal(t, ReasonWin, gameOver.Reason)

		assert.ErrorIs(t, session.ApplyMove(connB, 0, 0), apperror.ErrNotPlaying)
	})

	t.Run("A full board without a run ends in a draw", func(t *testing.T) {
		// Given: a playing session whose board holds a dense non-winning
		// tiling everywhere but the last cell
		session, recorder := newTestSession(clockwork.NewFakeClock())
		_, connB := seatBoth(t, session)

		for row := 0; row < entity.BoardSize; row++ {
			for col := 0; col < entity.BoardSize; col++ {
				if row == 14 && col == 14 {
					continue
				}
				session.board[row][col] = drawMark(row, col)
			}
		}
		session.turn = entity.PlayerO

		// When: O fills the final cell
		require.NoError(t, session.ApplyMove(connB, 14, 14))

		// Then: the game finishes as a draw, not a win
		snapshot := session.Snapshot()
		assert.Equal(t, entity.StatusFinished, snapshot.Status)
		assert.Equal(t, entity.WinnerDraw, snapshot.Winner)

		gameOver, ok := recorder.lastGameOver()
		require.True(t, ok)
		assert.Equal(t, ReasonDraw, gameOver.Reason)
	})

	t.Run("Accepted moves carry board, turn and deadline", func(t *testing.T) {
		// Given: a playing session
		session, recorder := newTestSession(clockwork.NewFakeClock())
		connA, _ := seatBoth(t, session)

		// When: X moves
		require.NoError(t, session.ApplyMove(connA, 7, 7))

		// Then: the broadcast carries the new state
		moves := recorder.byAction("moveMade")
		require.Len(t, moves, 1)

		move, ok := moves[0].(MoveAppliedEvent)
		require.True(t, ok)
		assert.Equal(t, entity.PlayerX, move.Player)
		assert.Equal(t, entity.PlayerO, move.CurrentPlayer)
		assert.Equal(t, entity.PlayerX, move.Board[7][7])
		assert.NotZero(t, move.TurnDeadline)
	})
}

// drawMark tiles marks in 2x2-ish blocks shifted every other row; the
// longest run it produces on any axis is well under five.
func drawMark(row, col int) string {
	if (col+2*(row%2))%4 < 2 {
		return entity.PlayerX
	}
	return entity.PlayerO
}

func TestSession_Timeout(t *testing.T) {
	t.Run("An idle turn forfeits the player due to move", func(t *testing.T) {
		// Given: a playing session, X to move
		clock := clockwork.NewFakeClock()
		session, recorder := newTestSession(clock)
		seatBoth(t, session)

		// When: the full turn duration passes with no move
		clock.Advance(20 * time.Second)

		// Then: X loses by timeout
		require.Eventually(t, func() bool {
			return session.Snapshot().Status == entity.StatusFinished
		}, time.Second, 10*time.Millisecond)

		snapshot := session.Snapshot()
		assert.Equal(t, entity.PlayerO, snapshot.Winner)

		gameOver, ok := recorder.lastGameOver()
		require.True(t, ok)
		assert.Equal(t, ReasonTimeout, gameOver.Reason)
	})

	t.Run("A move just before the deadline cancels the pending timeout", func(t *testing.T) {
		// Given: a playing session with X almost out of time
		clock := clockwork.NewFakeClock()
		session, recorder := newTestSession(clock)
		connA, _ := seatBoth(t, session)

		clock.Advance(19 * time.Second)

		// When: X moves in time
		require.NoError(t, session.ApplyMove(connA, 7, 7))

		// And: the original deadline passes
		clock.Advance(19 * time.Second)

		// Then: no timeout fires; the clock restarted with the move
		require.Never(t, func() bool {
			return session.Snapshot().Status == entity.StatusFinished
		}, 100*time.Millisecond, 10*time.Millisecond)

		// When: O also runs out its fresh 20 seconds
		clock.Advance(time.Second)

		// Then: O loses, not X
		require.Eventually(t, func() bool {
			return session.Snapshot().Status == entity.StatusFinished
		}, time.Second, 10*time.Millisecond)

		gameOver, ok := recorder.lastGameOver()
		require.True(t, ok)
		assert.Equal(t, entity.PlayerX, gameOver.Winner)
		assert.Equal(t, ReasonTimeout, gameOver.Reason)
	})
}

func TestSession_Restart(t *testing.T) {
	t.Run("Restart after a finished game starts a fresh round", func(t *testing.T) {
		// Given: a finished session
		session, recorder := newTestSession(clockwork.NewFakeClock())
		connA, connB := seatBoth(t, session)

		for i := 0; i < 4; i++ {
			require.NoError(t, session.ApplyMove(connA, 7, 3+i))
			require.NoError(t, session.ApplyMove(connB, 1, 3+i))
		}
		require.NoError(t, session.ApplyMove(connA, 7, 7))
		require.Equal(t, entity.StatusFinished, session.Snapshot().Status)

		// When: the game is restarted
		session.Restart()

		// Then: empty board, X to move, playing again with a deadline
		snapshot := session.Snapshot()
		assert.Equal(t, entity.StatusPlaying, snapshot.Status)
		assert.Equal(t, entity.PlayerX, snapshot.CurrentPlayer)
		assert.Empty(t, snapshot.Winner)
		assert.Equal(t, entity.Board{}, snapshot.Board)
		assert.NotZero(t, snapshot.TurnDeadline)

		restarts := recorder.byAction("gameRestarted")
		require.Len(t, restarts, 1)

		// And: moves are accepted again
		require.NoError(t, session.ApplyMove(connA, 0, 0))
	})

	t.Run("Restart with a single seat goes back to waiting", func(t *testing.T) {
		// Given: a session with one seat
		session, _ := newTestSession(clockwork.NewFakeClock())
		_, err := session.Join("alice", "Alice", "conn-a")
		require.NoError(t, err)

		// When: restarted
		session.Restart()

		// Then: still waiting, no deadline
		snapshot := session.Snapshot()
		assert.Equal(t, entity.StatusWaiting, snapshot.Status)
		assert.Zero(t, snapshot.TurnDeadline)
	})
}

func TestSession_MarkDisconnected(t *testing.T) {
	t.Run("Disconnect notifies the room and keeps the seat", func(t *testing.T) {
		// Given: a playing session
		session, recorder := newTestSession(clockwork.NewFakeClock())
		connA, _ := seatBoth(t, session)

		// When: the X player's transport drops
		found := session.MarkDisconnected(connA)

		// Then: the room is told which mark went away
		assert.True(t, found)

		notices := recorder.byAction("playerDisconnected")
		require.Len(t, notices, 1)
		assert.Equal(t, entity.PlayerX, notices[0].(PlayerDisconnectedEvent).Symbol)

		// And: the game keeps running and the identity can rejoin
		assert.Equal(t, entity.StatusPlaying, session.Snapshot().Status)

		snapshot, err := session.Join("alice", "Alice", "conn-a2")
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, snapshot.PlayerSymbol)
	})

	t.Run("Unknown transport handles are ignored", func(t *testing.T) {
		session, recorder := newTestSession(clockwork.NewFakeClock())
		seatBoth(t, session)

		assert.False(t, session.MarkDisconnected("conn-x"))
		assert.Empty(t, recorder.byAction("playerDisconnected"))
	})
}
