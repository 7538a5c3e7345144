package game

import (
	"context"
	"encoding/json"

	"qarena-service/internal/model"
	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service serves the playable game catalogue. Rooms are configured from
// these rows at match time.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type GameSummary struct {
	ID              int64  `json:"id,string"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Mode            string `json:"mode"`
	RequiredPlayers int    `json:"requiredPlayers"`
	NumQubits       int    `json:"numQubits"`
	TurnSeconds     int    `json:"turnSeconds"`
}

func (s *Service) ListGames(ctx context.Context) ([]GameSummary, error) {
	var games []model.Game
	if err := s.db.WithContext(ctx).Where("status = ?", "enabled").Order("id").Find(&games).Error; err != nil {
		return nil, err
	}
	items := make([]GameSummary, 0, len(games))
	for _, g := range games {
		items = append(items, GameSummary{
			ID:              g.ID,
			Slug:            g.Slug,
			Name:            g.Name,
			Mode:            g.Mode,
			RequiredPlayers: g.RequiredPlayers,
			NumQubits:       g.NumQubits,
			TurnSeconds:     g.TurnSeconds,
		})
	}
	return items, nil
}

func (s *Service) GetGame(ctx context.Context, gameID int64) (*model.Game, error) {
	var game model.Game
	if err := s.db.WithContext(ctx).First(&game, gameID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// EnsureDefaultGames seeds the catalogue on first boot.
func (s *Service) EnsureDefaultGames(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Game{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	bellTarget, err := json.Marshal(map[string]float64{"00": 0.5, "11": 0.5})
	if err != nil {
		return err
	}
	defaults := []model.Game{
		{
			Slug:            "circuit-duel",
			Name:            "Circuit Duel",
			Mode:            "simultaneous",
			RequiredPlayers: 2,
			NumQubits:       2,
			TurnSeconds:     60,
			WinThreshold:    80,
			TargetJSON:      datatypes.JSON(bellTarget),
			Status:          "enabled",
		},
		{
			Slug:            "gate-race",
			Name:            "Gate Race",
			Mode:            "turn_based",
			RequiredPlayers: 2,
			NumQubits:       2,
			TurnSeconds:     60,
			WinThreshold:    80,
			TargetJSON:      datatypes.JSON(bellTarget),
			Status:          "enabled",
		},
	}
	if err := s.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return err
	}
	logger.Log.Info("seeded default games", zap.Int("count", len(defaults)))
	return nil
}
