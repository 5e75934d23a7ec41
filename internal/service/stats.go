package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vasablaha/gomoku-tel/internal/entity"
	"github.com/vasablaha/gomoku-tel/internal/repository"
)

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

// StatsService keeps per-player win/loss/draw tallies up to date when
// games finish.
type StatsService struct {
	logger  *slog.Logger
	players playerRepo
}

func NewStatsService(logger *slog.Logger, players playerRepo) *StatsService {
	return &StatsService{
		logger:  logger,
		players: players,
	}
}

// RecordResult applies one finished game to both seats' profiles.
// Missing profiles are created on the fly.
func (that *StatsService) RecordResult(ctx context.Context, seats []entity.Seat, winner string) {
	log := that.logger.With("method", "RecordResult")

	for _, seat := range seats {
		if err := that.recordSeat(ctx, seat, winner); err != nil {
			log.Error("failed to record result", "playerID", seat.Identity, "error", err)
		}
	}
}

func (that *StatsService) recordSeat(ctx context.Context, seat entity.Seat, winner string) error {
	player, err := that.players.GetByID(ctx, seat.Identity)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		player = &entity.Player{ID: seat.Identity}
	} else if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}

	player.Name = seat.Name

	switch {
	case winner == entity.WinnerDraw:
		player.Draws++
	case winner == seat.Mark:
		player.Wins++
	default:
		player.Losses++
	}

	if err = that.players.CreateOrUpdate(ctx, player); err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	return nil
}
