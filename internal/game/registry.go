package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vasablaha/gomoku-tel/internal/apperror"
	"github.com/vasablaha/gomoku-tel/internal/pkg"
)

// Options carries the game timings the registry hands to its sessions.
type Options struct {
	TurnTimeout time.Duration
	LobbyWindow time.Duration
	Retention   time.Duration
}

// Registry owns every live session for the lifetime of the process.
// Sessions are created and evicted only through it.
type Registry struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	options Options

	broadcaster Broadcaster

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(logger *slog.Logger, clock clockwork.Clock, options Options) *Registry {
	return &Registry{
		logger:   logger.With("component", "registry"),
		clock:    clock,
		options:  options,
		sessions: make(map[string]*Session),
	}
}

// SetBroadcaster wires the event gateway in. Must be called before any
// session is created; the gateway itself needs the registry first, so
// the two are connected in two steps.
func (that *Registry) SetBroadcaster(broadcaster Broadcaster) {
	that.broadcaster = broadcaster
}

// Create inserts a fresh Waiting session under a short unguessable id
// and returns it.
func (that *Registry) Create() *Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	var id string
	for {
		id = pkg.GenerateGameID()
		if _, exists := that.sessions[id]; !exists && id != "" {
			break
		}
	}

	session := newSession(id, that.logger, that.broadcaster, that.clock, that.options.TurnTimeout)
	that.sessions[id] = session

	that.logger.Info("game created", "gameID", id)

	return session
}

// Get returns the session or ErrGameNotFound.
func (that *Registry) Get(id string) (*Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	session, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	return session, nil
}

// Count reports the number of live sessions.
func (that *Registry) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}

// ListOpenLobbies returns joinable sessions — Waiting, one seat, fresher
// than the lobby window — newest first. Stale lobbies drop out of the
// listing long before the session itself is evicted.
func (that *Registry) ListOpenLobbies() []Lobby {
	now := that.clock.Now()

	that.mu.RLock()
	defer that.mu.RUnlock()

	lobbies := make([]Lobby, 0)
	for _, session := range that.sessions {
		if lobby, ok := session.lobbyInfo(now, that.options.LobbyWindow); ok {
			lobbies = append(lobbies, lobby)
		}
	}

	sort.Slice(lobbies, func(i, j int) bool {
		return lobbies[i].CreatedAt > lobbies[j].CreatedAt
	})

	return lobbies
}

// SweepExpired evicts every session older than the retention window,
// whatever its status. The session's clock is cancelled before the
// entry is dropped so no stale timer outlives it.
func (that *Registry) SweepExpired() {
	now := that.clock.Now()

	that.mu.Lock()
	defer that.mu.Unlock()

	for id, session := range that.sessions {
		if now.Sub(session.CreatedAt) <= that.options.Retention {
			continue
		}

		session.dispose()
		delete(that.sessions, id)

		that.logger.Info("cleaned up old game", "gameID", id)
	}
}

// StartSweeper runs SweepExpired on the given interval until the
// context is cancelled.
func (that *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := that.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				that.SweepExpired()
			}
		}
	}()
}
