package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/meldateksari/SpotTheOne/internal/service"
)

// GameHandler 处理回合与投票状态机的 HTTP 入口。
// 引擎本身不分辨调用方，主持人专属的操作在这一层校验。
type GameHandler struct {
	roomService *service.RoomService
	gameService *service.GameService
	log         *logrus.Entry
}

// NewGameHandler 创建 GameHandler 实例。
func NewGameHandler(roomService *service.RoomService, gameService *service.GameService) *GameHandler {
	return &GameHandler{
		roomService: roomService,
		gameService: gameService,
		log:         logrus.WithField("component", "game_handler"),
	}
}

// PlayerRequest 携带发起操作的玩家 ID。
type PlayerRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
}

// requireHost 校验请求者是房间主持人。
func (h *GameHandler) requireHost(c *gin.Context, code, playerID string) bool {
	room, err := h.roomService.GetRoom(c.Request.Context(), code)
	if err != nil {
		HandleServiceError(c, err)
		return false
	}
	if !room.IsHost(playerID) {
		HandleServiceError(c, service.ErrNotHost)
		return false
	}
	return true
}

// StartRoundRequest 携带发起者与本轮可选的投票时长（秒）。
type StartRoundRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	Duration int    `json:"duration"`
}

// StartRound 处理 POST /api/rooms/:code/start （仅主持人）
func (h *GameHandler) StartRound(c *gin.Context) {
	code := c.Param("code")
	var req StartRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.requireHost(c, code, req.PlayerID) {
		return
	}

	room, err := h.gameService.StartRound(c.Request.Context(), code, req.Duration)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// VoteRequest 定义投票请求体。
type VoteRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	TargetID string `json:"targetId" binding:"required"`
}

// CastVote 处理 POST /api/rooms/:code/vote
func (h *GameHandler) CastVote(c *gin.Context) {
	code := c.Param("code")
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.gameService.CastVote(c.Request.Context(), code, req.PlayerID, req.TargetID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"voted": true})
}

// ShowResults 处理 POST /api/rooms/:code/results （仅主持人）
// 引擎层的状态守卫保证并发触发也只结算一次。
func (h *GameHandler) ShowResults(c *gin.Context) {
	code := c.Param("code")
	var req PlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.requireHost(c, code, req.PlayerID) {
		return
	}

	room, err := h.gameService.ShowResults(c.Request.Context(), code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// EndGame 处理 POST /api/rooms/:code/end （仅主持人）
func (h *GameHandler) EndGame(c *gin.Context) {
	code := c.Param("code")
	var req PlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.requireHost(c, code, req.PlayerID) {
		return
	}

	room, err := h.gameService.EndGame(c.Request.Context(), code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}
