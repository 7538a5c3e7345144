package matchmaking

import "time"

type EnqueueRequest struct {
	PlayerID       int64
	DisplayName    string
	GameID         int64
	EducationLevel string
	SkillRating    int
}

// Ticket is returned to a newly queued player. EstimatedWaitMs is advisory
// only, not a contract.
type Ticket struct {
	Position        int   `json:"position"`
	EstimatedWaitMs int64 `json:"estimatedWaitMs"`
}

type QueueStatus string

const (
	QueueStatusIdle    QueueStatus = "idle"
	QueueStatusQueued  QueueStatus = "queued"
	QueueStatusMatched QueueStatus = "matched"
)

type StatusResult struct {
	Status   QueueStatus `json:"status"`
	GameID   int64       `json:"gameId,omitempty"`
	RoomID   string      `json:"roomId,omitempty"`
	JoinedAt *time.Time  `json:"joinedAt,omitempty"`
}

// Notification is pushed to a queued player's lobby socket, when one is
// attached.
type Notification struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type OpponentSummary struct {
	PlayerID    int64  `json:"playerId,string"`
	DisplayName string `json:"displayName"`
	SkillRating int    `json:"skillRating"`
}

type entry struct {
	PlayerID       int64
	DisplayName    string
	GameID         int64
	EducationLevel string
	SkillRating    int
	EnqueuedAt     time.Time

	notify func(Notification)
}

type matchNotifyPayload struct {
	GameID int64  `json:"gameId"`
	RoomID string `json:"roomId"`
}
