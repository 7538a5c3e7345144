package service

import (
	"context"

	"qarena-service/internal/quantum"
	"qarena-service/internal/service/auth"
	"qarena-service/internal/service/game"
	"qarena-service/internal/service/matchmaking"
	"qarena-service/internal/service/room"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth        *auth.Service
	Game        *game.Service
	Room        *room.Service
	Matchmaking *matchmaking.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	sim := quantum.NewStatevectorSimulator()
	roomSvc := room.NewService(db, rdb, sim)
	return &Container{
		Auth:        auth.NewService(db),
		Game:        game.NewService(db),
		Room:        roomSvc,
		Matchmaking: matchmaking.NewService(db, rdb, roomSvc),
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Game.EnsureDefaultGames(ctx); err != nil {
		return err
	}
	return c.Matchmaking.Start(ctx)
}
