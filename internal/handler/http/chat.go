package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meldateksari/SpotTheOne/internal/domain"
	"github.com/meldateksari/SpotTheOne/internal/service"
)

// ChatHandler 处理聊天子集合的 HTTP 入口。
// 实时消息流走 WebSocket，这里只提供发送和历史查询。
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例。
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SendMessageRequest 定义发送消息的请求体。
type SendMessageRequest struct {
	PlayerID string           `json:"playerId" binding:"required"`
	Text     string           `json:"text" binding:"required"`
	ReplyTo  *domain.ReplyRef `json:"replyTo"`
}

// SendMessage 处理 POST /api/rooms/:code/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	code := c.Param("code")
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), code, req.PlayerID, req.Text, req.ReplyTo)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, msg)
}

// History 处理 GET /api/rooms/:code/messages?limit=50
func (h *ChatHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	messages, err := h.chatService.History(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"messages": messages})
}
