package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qarena-service/internal/model"
	pkgAuth "qarena-service/pkg/auth"
	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/logger"
	"qarena-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service issues player sessions. The LMS token exchange lives in the
// platform bridge; this covers guest play.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type GuestLoginRequest struct {
	DisplayName    string
	EducationLevel string
}

type LoginResult struct {
	Token          string `json:"token"`
	PlayerID       int64  `json:"playerId,string"`
	DisplayName    string `json:"displayName"`
	EducationLevel string `json:"educationLevel"`
	SkillRating    int    `json:"skillRating"`
}

var validLevels = map[string]bool{
	"primary":    true,
	"secondary":  true,
	"university": true,
}

func (s *Service) GuestLogin(ctx context.Context, req GuestLoginRequest) (*LoginResult, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = fmt.Sprintf("Guest-%s", random.Code(6))
	}
	level := req.EducationLevel
	if !validLevels[level] {
		level = "secondary"
	}

	now := time.Now()
	user := model.User{
		DisplayName:    name,
		EducationLevel: level,
		SkillRating:    1000,
		LastSeenAt:     &now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	token, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("guest login",
		zap.Int64("playerID", user.ID),
		zap.String("displayName", user.DisplayName),
	)
	return &LoginResult{
		Token:          token,
		PlayerID:       user.ID,
		DisplayName:    user.DisplayName,
		EducationLevel: user.EducationLevel,
		SkillRating:    user.SkillRating,
	}, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	return &user, nil
}
