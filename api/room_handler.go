// Package api is the thin HTTP boundary of the control plane: request
// parsing, status mapping, nothing else. All room semantics live in services.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "meethub/errors"
	"meethub/services"
)

type RoomHandler struct {
	service services.IRoomService
	log     *slog.Logger
}

func NewRoomHandler(service services.IRoomService, log *slog.Logger) *RoomHandler {
	return &RoomHandler{service: service, log: log}
}

type createRoomRequest struct {
	HostID          string  `json:"host_id" binding:"required"`
	RoomTitle       string  `json:"room_title"`
	RoomDescription string  `json:"room_description"`
	Password        *string `json:"password"`
	MaxParticipants int     `json:"max_participants" binding:"omitempty,gt=0"`
}

type joinRoomRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type leaveRoomRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

type roomInfoResponse struct {
	RoomID           string     `json:"room_id"`
	HostID           string     `json:"host_id"`
	RoomTitle        string     `json:"room_title"`
	RoomDescription  string     `json:"room_description"`
	Participants     []string   `json:"participants"`
	ParticipantCount int        `json:"participant_count"`
	MaxParticipants  int        `json:"max_participants"`
	IsActive         bool       `json:"is_active"`
	RequirePassword  bool       `json:"require_password"`
	CreatedAt        time.Time  `json:"created_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Create(services.CreateRoomCommand{
		HostID:      req.HostID,
		Title:       req.RoomTitle,
		Description: req.RoomDescription,
		Password:    req.Password,
		Capacity:    req.MaxParticipants,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.service.Get(c.Param("room_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The stored password never leaves the service boundary.
	c.JSON(http.StatusOK, roomInfoResponse{
		RoomID:           room.ID,
		HostID:           room.HostID,
		RoomTitle:        room.Title,
		RoomDescription:  room.Description,
		Participants:     room.Members,
		ParticipantCount: room.MemberCount(),
		MaxParticipants:  room.Capacity,
		IsActive:         room.Active,
		RequirePassword:  room.RequiresPassword(),
		CreatedAt:        room.CreatedAt,
		EndedAt:          room.EndedAt,
	})
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Join(services.JoinRoomCommand{
		RoomID:      c.Param("room_id"),
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req leaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Leave(c.Param("room_id"), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RoomHandler) EndRoom(c *gin.Context) {
	result, err := h.service.End(c.Param("room_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RoomHandler) ListActiveRooms(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	summaries, err := h.service.ListActive(c.Query("host_id"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries, "count": len(summaries)})
}

func (h *RoomHandler) VerifyPassword(c *gin.Context) {
	var req verifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.service.VerifyPassword(c.Param("room_id"), req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok})
}

func (h *RoomHandler) ListParticipants(c *gin.Context) {
	list, err := h.service.Participants(c.Param("room_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// respondError maps the service error taxonomy onto HTTP statuses. Business
// rejections keep their message; infrastructure failures are logged and
// hidden behind a generic 500.
func (h *RoomHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrBadPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrRoomEnded),
		errors.Is(err, apperrors.ErrRoomAlreadyEnded),
		errors.Is(err, apperrors.ErrRoomFull),
		errors.Is(err, apperrors.ErrNotInRoom):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
