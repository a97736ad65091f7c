package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/service"
)

// RoomHandler 处理房间生命周期相关的 HTTP 请求。
type RoomHandler struct {
	roomService *service.RoomService
	log         *logrus.Entry
}

// NewRoomHandler 创建 RoomHandler 实例。
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{
		roomService: roomService,
		log:         logrus.WithField("component", "room_handler"),
	}
}

// CreateRoomRequest 定义创建房间的请求体。
type CreateRoomRequest struct {
	HostName      string `json:"hostName" binding:"required"`
	HostAvatar    string `json:"hostAvatar"`
	Category      string `json:"category"`
	Language      string `json:"language"`
	QuestionCount int    `json:"questionCount"`
}

// CreateRoom 处理 POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		HostName:      req.HostName,
		HostAvatar:    req.HostAvatar,
		Category:      req.Category,
		Language:      req.Language,
		QuestionCount: req.QuestionCount,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, room)
}

// JoinRoomRequest 定义加入房间的请求体。
type JoinRoomRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name" binding:"required"`
	Avatar   string `json:"avatar"`
}

// JoinRoom 处理 POST /api/rooms/:code/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	code := c.Param("code")
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), code, req.PlayerID, req.Name, req.Avatar)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// LeaveRoomRequest 定义离开房间的请求体。
type LeaveRoomRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
}

// LeaveRoom 处理 POST /api/rooms/:code/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	code := c.Param("code")
	var req LeaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), code, req.PlayerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"left": true})
}

// GetRoom 处理 GET /api/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}
