package api

import (
	"errors"
	"net/http"

	"qarena-service/internal/middleware"
	"qarena-service/internal/service"
	authSvc "qarena-service/internal/service/auth"
	"qarena-service/internal/service/matchmaking"
	"qarena-service/internal/ws"
	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Auth, services.Matchmaking, services.Room)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/qarena/v1")
	{
		v1.POST("/auth/guest", handler.GuestLogin)
		v1.GET("/games", handler.ListGames)

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
		}

		matchGroup := v1.Group("/match")
		matchGroup.Use(middleware.AuthRequired())
		{
			matchGroup.POST("/join", handler.MatchJoin)
			matchGroup.POST("/cancel", handler.MatchCancel)
			matchGroup.GET("/status", handler.MatchStatus)
		}
	}

	r.GET("/ws/lobby", wsHandler.HandleLobbyWS)
	r.GET("/ws/rooms/:roomId", wsHandler.HandleRoomWS)
}

func (h *Handler) GuestLogin(c *gin.Context) {
	var req struct {
		DisplayName    string `json:"displayName"`
		EducationLevel string `json:"educationLevel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.services.Auth.GuestLogin(c.Request.Context(), authSvc.GuestLoginRequest{
		DisplayName:    req.DisplayName,
		EducationLevel: req.EducationLevel,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "login failed")
		return
	}
	response.Success(c, result)
}

func (h *Handler) ListGames(c *gin.Context) {
	games, err := h.services.Game.ListGames(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list games")
		return
	}
	response.Success(c, gin.H{"items": games})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserIDKey)
	user, err := h.services.Auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, appErr.ErrUnauthorized) {
			response.Error(c, http.StatusUnauthorized, "unknown player")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load profile")
		return
	}
	response.Success(c, gin.H{
		"playerId":       user.ID,
		"displayName":    user.DisplayName,
		"educationLevel": user.EducationLevel,
		"skillRating":    user.SkillRating,
	})
}

func (h *Handler) MatchJoin(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserIDKey)

	var req struct {
		GameID int64 `json:"gameId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.services.Auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "unknown player")
		return
	}

	ticket, err := h.services.Matchmaking.Enqueue(c.Request.Context(), matchmaking.EnqueueRequest{
		PlayerID:       userID,
		DisplayName:    user.DisplayName,
		GameID:         req.GameID,
		EducationLevel: user.EducationLevel,
		SkillRating:    user.SkillRating,
	}, nil)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrGameNotFound):
			response.Error(c, http.StatusNotFound, "game not found")
		case errors.Is(err, appErr.ErrQueueClosed):
			response.Error(c, http.StatusServiceUnavailable, "matchmaking unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to join queue")
		}
		return
	}
	response.Success(c, ticket)
}

func (h *Handler) MatchCancel(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserIDKey)
	if err := h.services.Matchmaking.Dequeue(c.Request.Context(), userID); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to cancel queue")
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "cancelled")
}

func (h *Handler) MatchStatus(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserIDKey)
	status, err := h.services.Matchmaking.Status(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load status")
		return
	}
	response.Success(c, status)
}
