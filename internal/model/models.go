package model

import (
	"time"

	"gorm.io/datatypes"
)

// 2.1 User

type User struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	DisplayName    string `gorm:"not null"`
	EducationLevel string `gorm:"default:secondary;not null"` // primary/secondary/university
	SkillRating    int    `gorm:"default:1000;not null"`
	Status         string `gorm:"default:normal;not null"` // normal/banned
	LastSeenAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// 2.2 Game catalogue

type Game struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	Slug            string `gorm:"unique;not null"`
	Name            string
	Mode            string         `gorm:"not null"` // turn_based/simultaneous
	RequiredPlayers int            `gorm:"default:2"`
	NumQubits       int            `gorm:"default:2"`
	TurnSeconds     int            `gorm:"default:60"`
	WinThreshold    int            `gorm:"default:80"`
	TargetJSON      datatypes.JSON `gorm:"type:jsonb"`      // outcome label -> probability
	Status          string         `gorm:"default:enabled"` // enabled/disabled
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// 2.3 Room & Match

type RoomRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	GameID      int64
	Status      string         // waiting/playing/finished
	PlayersJSON datatypes.JSON `gorm:"type:jsonb"` // playerId -> displayName
	CreatedAt   time.Time
}

type MatchRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	RoomID     string
	GameID     int64
	ResultJSON datatypes.JSON `gorm:"type:jsonb"` // winner + per-player scores
	CreatedAt  time.Time
	EndedAt    *time.Time
}
