package errors

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")

	ErrGameNotFound = errors.New("game not found")
	ErrQueueClosed  = errors.New("queue closed")

	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomAccessDenied = errors.New("room access denied")
	ErrRoomClosed       = errors.New("room closed")

	ErrNotYourTurn   = errors.New("not your turn")
	ErrInvalidStatus = errors.New("invalid room status")
	ErrInvalidQubit  = errors.New("invalid qubit index")
	ErrInvalidMove   = errors.New("invalid move")

	ErrSimulationFailed = errors.New("simulation failed")
)
