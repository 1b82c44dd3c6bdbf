package server

import (
	"net/http"
	"strconv"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/auth"

	"github.com/gin-gonic/gin"
)

// AccessChat 返回与指定用户的会话，不存在时创建。
func (h *Handler) AccessChat(c *gin.Context) {
	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	chat, err := h.chats.Access(c.Request.Context(), auth.GetUserID(c), req.UserID)
	if err != nil {
		fail(c, err, "access chat")
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		fail(c, err, "list chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// ListMessages 分页获取会话消息。
func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.chats.Messages(c.Request.Context(), auth.GetUserID(c), id, limit, queryUint(c, "before_id"))
	if err != nil {
		fail(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage 持久化消息，并推送到会话房间。temp_id 原样回传给发送方用于去重。
func (h *Handler) SendMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
		TempID  string `json:"temp_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	if len(req.Content) > 4000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}
	msg, err := h.chats.Send(c.Request.Context(), auth.GetUserID(c), id, req.Content, req.TempID)
	if err != nil {
		fail(c, err, "send message")
		return
	}
	c.JSON(http.StatusOK, msg)
}
