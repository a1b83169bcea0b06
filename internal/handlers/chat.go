package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/presence"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

// ChatHandler serves the direct-conversation REST endpoints.
type ChatHandler struct {
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	registry    presence.Registry
	audit       *telemetry.AuditEmitter
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, registry presence.Registry, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		registry:    registry,
		audit:       audit,
	}
}

// GetConversation handles GET /api/chat/:sender/:receiver. The caller must
// be one of the two participants.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	senderID, err := strconv.Atoi(c.Param("sender"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender id"})
		return
	}
	receiverID, err := strconv.Atoi(c.Param("receiver"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver id"})
		return
	}

	userID := c.GetInt("userID")
	if userID != senderID && userID != receiverID {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	msgs, err := h.messageRepo.ConversationMessages(c.Request.Context(), senderID, receiverID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	peerID := receiverID
	if userID == receiverID {
		peerID = senderID
	}
	peer, err := h.userRepo.GetUser(c.Request.Context(), peerID)
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "last_seen": peer.LastSeen})
}

// SendMessage handles POST /api/chat/send. Delivery state is left to the
// socket layer; messages stored here surface through the reconnect sweep.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		ReceiverID int    `json:"receiver_id" binding:"required"`
		Text       string `json:"text"`
		Image      string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" && req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content"})
		return
	}

	msg, err := h.messageRepo.CreateDirectMessage(c.Request.Context(), userID, req.ReceiverID, req.Text, req.Image, false)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.emitAudit(c, "INFO", "Direct message stored")
	c.JSON(http.StatusCreated, msg)
}

// OnlineUsers handles GET /api/online-users.
func (h *ChatHandler) OnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.registry.OnlineIDs()})
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
