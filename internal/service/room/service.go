package room

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"qarena-service/internal/config"
	"qarena-service/internal/model"
	"qarena-service/internal/quantum"
	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const presenceTTL = 6 * time.Hour

type Options struct {
	TurnSeconds  int
	GraceSeconds int
}

func defaultOptions() Options {
	opts := Options{
		TurnSeconds:  60,
		GraceSeconds: 120,
	}
	if config.GlobalConfig != nil {
		if v := config.GlobalConfig.Room.TurnSeconds; v > 0 {
			opts.TurnSeconds = v
		}
		if v := config.GlobalConfig.Room.GraceSeconds; v > 0 {
			opts.GraceSeconds = v
		}
	}
	return opts
}

// Service owns every live room actor and the room/match persistence around
// them.
type Service struct {
	db   *gorm.DB
	rdb  *redis.Client
	sim  quantum.Simulator
	opts Options

	rooms sync.Map // roomID -> *Actor
}

func NewService(db *gorm.DB, rdb *redis.Client, sim quantum.Simulator) *Service {
	return &Service{
		db:   db,
		rdb:  rdb,
		sim:  sim,
		opts: defaultOptions(),
	}
}

// CreateRoom spawns a room actor for a matched pair and records the room and
// match rows in one transaction. Called from the matchmaking actor's own
// serialized execution, so entry ownership transfers atomically.
func (s *Service) CreateRoom(ctx context.Context, game model.Game, players []Participant) (string, error) {
	roomID := uuid.NewString()

	cfg, err := configFromGame(game, s.opts)
	if err != nil {
		return "", err
	}

	playerNames := make(map[string]string, len(players))
	for _, p := range players {
		playerNames[strconv.FormatInt(p.PlayerID, 10)] = p.DisplayName
	}
	playerBytes, err := json.Marshal(playerNames)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := model.RoomRecord{
			ID:          roomID,
			GameID:      game.ID,
			Status:      string(StatusWaiting),
			PlayersJSON: datatypes.JSON(playerBytes),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		match := model.MatchRecord{
			ID:     uuid.NewString(),
			RoomID: roomID,
			GameID: game.ID,
		}
		return tx.Create(&match).Error
	})
	if err != nil {
		return "", err
	}

	sess := newSession(roomID, cfg, players, s.sim)
	actor := newActor(roomID, sess, s.handleFinish, s.handleClose)
	s.rooms.Store(roomID, actor)
	go actor.run()

	if s.rdb != nil {
		s.rdb.Set(ctx, presenceKey(roomID), game.Slug, presenceTTL)
	}

	logger.Log.Info("room created",
		zap.String("roomID", roomID),
		zap.String("gameSlug", game.Slug),
		zap.Int("players", len(players)),
	)
	return roomID, nil
}

func configFromGame(game model.Game, opts Options) (Config, error) {
	cfg := Config{
		GameID:          game.ID,
		GameSlug:        game.Slug,
		Mode:            Mode(game.Mode),
		RequiredPlayers: game.RequiredPlayers,
		NumQubits:       game.NumQubits,
		TurnSeconds:     game.TurnSeconds,
		GraceSeconds:    opts.GraceSeconds,
		WinThreshold:    game.WinThreshold,
	}
	if cfg.Mode != ModeTurnBased && cfg.Mode != ModeSimultaneous {
		return cfg, fmt.Errorf("game %s has unsupported mode %q", game.Slug, game.Mode)
	}
	if cfg.RequiredPlayers <= 0 {
		cfg.RequiredPlayers = 2
	}
	if cfg.TurnSeconds <= 0 {
		cfg.TurnSeconds = opts.TurnSeconds
	}
	if len(game.TargetJSON) > 0 {
		if err := json.Unmarshal(game.TargetJSON, &cfg.Target); err != nil {
			return cfg, fmt.Errorf("game %s has invalid target: %w", game.Slug, err)
		}
	}
	return cfg, nil
}

// GetActor resolves a live room by identifier.
func (s *Service) GetActor(roomID string) (*Actor, error) {
	if v, ok := s.rooms.Load(roomID); ok {
		return v.(*Actor), nil
	}
	return nil, appErr.ErrRoomNotFound
}

func (s *Service) handleFinish(roomID string, snap Snapshot) {
	ctx := context.Background()

	scores := make(map[string]int, len(snap.Players))
	for _, p := range snap.Players {
		scores[strconv.FormatInt(p.PlayerID, 10)] = p.Score
	}
	result, err := json.Marshal(map[string]interface{}{
		"winnerId":   snap.WinnerID,
		"scores":     scores,
		"totalTurns": snap.TurnCount,
	})
	if err != nil {
		logger.Log.Error("failed to marshal match result", zap.String("roomID", roomID), zap.Error(err))
		return
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&model.MatchRecord{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"result_json": datatypes.JSON(result),
			"ended_at":    &now,
		}).Error; err != nil {
		logger.Log.Error("failed to persist match result", zap.String("roomID", roomID), zap.Error(err))
	}
	if err := s.db.WithContext(ctx).Model(&model.RoomRecord{}).
		Where("id = ?", roomID).
		Update("status", string(StatusFinished)).Error; err != nil {
		logger.Log.Error("failed to update room status", zap.String("roomID", roomID), zap.Error(err))
	}

	logger.Log.Info("room finished",
		zap.String("roomID", roomID),
		zap.String("winnerID", snap.WinnerID),
	)
}

func (s *Service) handleClose(roomID string) {
	s.rooms.Delete(roomID)
	if s.rdb != nil {
		s.rdb.Del(context.Background(), presenceKey(roomID))
	}
}

// Shutdown closes every live actor.
func (s *Service) Shutdown() {
	s.rooms.Range(func(_, v interface{}) bool {
		v.(*Actor).Close()
		return true
	})
}

func presenceKey(roomID string) string {
	return fmt.Sprintf("room:presence:%s", roomID)
}
