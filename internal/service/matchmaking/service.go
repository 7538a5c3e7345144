package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"qarena-service/internal/config"
	"qarena-service/internal/model"
	"qarena-service/internal/service/room"
	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	ScanInterval    time.Duration
	BaseWindow      int
	WindowGrowth    int
	WindowStep      time.Duration
	MaxWait         time.Duration
	NotifyTTL       time.Duration
	EstimateFloor   time.Duration
	EstimatePerSlot time.Duration
}

func defaultConfig() Config {
	cfg := Config{
		ScanInterval:    2 * time.Second,
		BaseWindow:      200,
		WindowGrowth:    50,
		WindowStep:      10 * time.Second,
		MaxWait:         30 * time.Second,
		NotifyTTL:       5 * time.Minute,
		EstimateFloor:   10 * time.Second,
		EstimatePerSlot: 5 * time.Second,
	}
	if config.GlobalConfig != nil {
		mm := config.GlobalConfig.Matchmaking
		if mm.ScanIntervalMs > 0 {
			cfg.ScanInterval = mm.ScanInterval()
		}
		if mm.BaseWindow > 0 {
			cfg.BaseWindow = mm.BaseWindow
		}
		if mm.WindowGrowth > 0 {
			cfg.WindowGrowth = mm.WindowGrowth
		}
		if mm.MaxWaitMs > 0 {
			cfg.MaxWait = mm.MaxWait()
		}
	}
	return cfg
}

type partition struct {
	game    model.Game
	entries []*entry // sorted by EnqueuedAt ascending
}

// Service is the matchmaking queue actor. Enqueue/dequeue calls and the
// periodic scan all execute on one goroutine, so queue state is never
// touched concurrently.
type Service struct {
	db    *gorm.DB
	rdb   *redis.Client
	rooms *room.Service
	cfg   Config

	cmds   chan func()
	done   chan struct{}
	queues map[int64]*partition

	startOnce sync.Once
}

func NewService(db *gorm.DB, rdb *redis.Client, rooms *room.Service) *Service {
	return &Service{
		db:     db,
		rdb:    rdb,
		rooms:  rooms,
		cfg:    defaultConfig(),
		cmds:   make(chan func()),
		done:   make(chan struct{}),
		queues: make(map[int64]*partition),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
	return nil
}

func (s *Service) run(ctx context.Context) {
	logger.Log.Info("matchmaking actor started",
		zap.Duration("scanInterval", s.cfg.ScanInterval),
	)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(s.done)
			logger.Log.Info("matchmaking actor stopped")
			return
		case fn := <-s.cmds:
			fn()
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Service) post(ctx context.Context, fn func()) error {
	select {
	case s.cmds <- fn:
		return nil
	case <-s.done:
		return appErr.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a player to a game's queue. A duplicate enqueue for the same
// player/game pair replaces the old entry but keeps its original queue time.
// notify may be nil; status is then available through the REST poll.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest, notify func(Notification)) (Ticket, error) {
	game, err := s.loadGame(ctx, req.GameID)
	if err != nil {
		return Ticket{}, err
	}

	reply := make(chan Ticket, 1)
	err = s.post(ctx, func() {
		part, ok := s.queues[game.ID]
		if !ok {
			part = &partition{game: *game}
			s.queues[game.ID] = part
		}

		e := &entry{
			PlayerID:       req.PlayerID,
			DisplayName:    req.DisplayName,
			GameID:         game.ID,
			EducationLevel: req.EducationLevel,
			SkillRating:    req.SkillRating,
			EnqueuedAt:     time.Now(),
			notify:         notify,
		}

		sizeBefore := len(part.entries)
		for i, existing := range part.entries {
			if existing.PlayerID == req.PlayerID {
				e.EnqueuedAt = existing.EnqueuedAt
				part.entries[i] = e
				reply <- s.ticketFor(part, e, sizeBefore-1)
				return
			}
		}

		part.entries = append(part.entries, e)
		sort.Slice(part.entries, func(i, j int) bool {
			return part.entries[i].EnqueuedAt.Before(part.entries[j].EnqueuedAt)
		})
		reply <- s.ticketFor(part, e, sizeBefore)

		logger.Log.Info("player joined queue",
			zap.Int64("playerID", req.PlayerID),
			zap.String("gameSlug", game.Slug),
			zap.Int("rating", req.SkillRating),
		)
	})
	if err != nil {
		return Ticket{}, err
	}
	return <-reply, nil
}

func (s *Service) ticketFor(part *partition, e *entry, sizeBefore int) Ticket {
	position := 1
	for _, other := range part.entries {
		if other.PlayerID == e.PlayerID {
			break
		}
		position++
	}

	missing := part.game.RequiredPlayers - sizeBefore
	estimate := time.Duration(missing) * s.cfg.EstimatePerSlot
	if estimate < s.cfg.EstimateFloor {
		estimate = s.cfg.EstimateFloor
	}
	return Ticket{Position: position, EstimatedWaitMs: estimate.Milliseconds()}
}

// Dequeue removes a player from every queue they occupy. Absent entries are
// not an error.
func (s *Service) Dequeue(ctx context.Context, playerID int64) error {
	err := s.post(ctx, func() {
		for _, part := range s.queues {
			for i, e := range part.entries {
				if e.PlayerID == playerID {
					part.entries = append(part.entries[:i], part.entries[i+1:]...)
					break
				}
			}
		}
	})
	if err != nil {
		return err
	}
	if s.rdb != nil {
		s.rdb.Del(ctx, buildMatchNotifyKey(playerID))
	}
	return nil
}

// Status serves the REST poll: matched (with the room id), queued, or idle.
func (s *Service) Status(ctx context.Context, playerID int64) (*StatusResult, error) {
	if s.rdb != nil {
		payloadStr, err := s.rdb.Get(ctx, buildMatchNotifyKey(playerID)).Result()
		if err == nil {
			var payload matchNotifyPayload
			if jsonErr := json.Unmarshal([]byte(payloadStr), &payload); jsonErr == nil {
				return &StatusResult{
					Status: QueueStatusMatched,
					GameID: payload.GameID,
					RoomID: payload.RoomID,
				}, nil
			}
		} else if err != redis.Nil {
			return nil, err
		}
	}

	reply := make(chan *StatusResult, 1)
	err := s.post(ctx, func() {
		for gameID, part := range s.queues {
			for _, e := range part.entries {
				if e.PlayerID == playerID {
					joined := e.EnqueuedAt
					reply <- &StatusResult{
						Status:   QueueStatusQueued,
						GameID:   gameID,
						JoinedAt: &joined,
					}
					return
				}
			}
		}
		reply <- &StatusResult{Status: QueueStatusIdle}
	})
	if err != nil {
		return nil, err
	}
	return <-reply, nil
}

// scan runs one pairing pass per game partition and spawns a room for every
// matched pair. Runs on the actor goroutine.
func (s *Service) scan(ctx context.Context) {
	now := time.Now()
	for _, part := range s.queues {
		if len(part.entries) < 2 {
			continue
		}
		pairs := pairEntries(part.entries, now, s.cfg)
		for _, pair := range pairs {
			s.removeEntries(part, pair)
			if err := s.spawnRoom(ctx, part.game, pair); err != nil {
				logger.Log.Warn("failed to spawn room for match",
					zap.String("gameSlug", part.game.Slug),
					zap.Error(err),
				)
				s.requeue(part, pair)
			}
		}
	}
}

func (s *Service) removeEntries(part *partition, pair [2]*entry) {
	kept := part.entries[:0]
	for _, e := range part.entries {
		if e != pair[0] && e != pair[1] {
			kept = append(kept, e)
		}
	}
	part.entries = kept
}

func (s *Service) requeue(part *partition, pair [2]*entry) {
	part.entries = append(part.entries, pair[0], pair[1])
	sort.Slice(part.entries, func(i, j int) bool {
		return part.entries[i].EnqueuedAt.Before(part.entries[j].EnqueuedAt)
	})
}

func (s *Service) spawnRoom(ctx context.Context, game model.Game, pair [2]*entry) error {
	participants := []room.Participant{
		{PlayerID: pair[0].PlayerID, DisplayName: pair[0].DisplayName, SkillRating: pair[0].SkillRating},
		{PlayerID: pair[1].PlayerID, DisplayName: pair[1].DisplayName, SkillRating: pair[1].SkillRating},
	}
	roomID, err := s.rooms.CreateRoom(ctx, game, participants)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(matchNotifyPayload{GameID: game.ID, RoomID: roomID})
	for i, e := range pair {
		if s.rdb != nil {
			s.rdb.Set(ctx, buildMatchNotifyKey(e.PlayerID), payload, s.cfg.NotifyTTL)
		}
		opponent := pair[1-i]
		if e.notify != nil {
			e.notify(Notification{Type: "match_found", Data: map[string]interface{}{
				"roomId": roomID,
				"gameId": game.ID,
				"opponents": []OpponentSummary{{
					PlayerID:    opponent.PlayerID,
					DisplayName: opponent.DisplayName,
					SkillRating: opponent.SkillRating,
				}},
			}})
		}
	}

	logger.Log.Info("match composed",
		zap.String("gameSlug", game.Slug),
		zap.String("roomID", roomID),
		zap.Int64("playerA", pair[0].PlayerID),
		zap.Int64("playerB", pair[1].PlayerID),
	)
	return nil
}

func (s *Service) loadGame(ctx context.Context, gameID int64) (*model.Game, error) {
	var game model.Game
	err := s.db.WithContext(ctx).First(&game, gameID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrGameNotFound
		}
		return nil, err
	}
	if game.Status != "enabled" {
		return nil, appErr.ErrGameNotFound
	}
	return &game, nil
}

func buildMatchNotifyKey(playerID int64) string {
	return fmt.Sprintf("match:pending:%d", playerID)
}
