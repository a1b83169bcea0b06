package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	audit       *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		audit:       audit,
	}
}

// CreateGroup handles POST /api/groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns the caller's groups with a last-message preview and
// their unread counter.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	summaries := make([]models.GroupSummary, 0, len(groups))
	for _, group := range groups {
		summary := models.GroupSummary{Group: group}

		last, err := h.messageRepo.LastGroupMessage(c.Request.Context(), group.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		if last != nil {
			summary.LastMessage = last.Text
			summary.LastMessageTime = &last.CreatedAt
		}

		counts, err := h.groupRepo.UnreadCounts(c.Request.Context(), group.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
			return
		}
		summary.UnreadCount = counts.Get(userID)

		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"groups": summaries})
}

// GetGroupMessages returns the group's messages with sender profiles
// attached.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	groupID, ok := h.memberGroupID(c)
	if !ok {
		return
	}

	msgs, err := h.messageRepo.GroupMessages(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profileByID := map[int]models.UserProfile{}
	if len(senderIDs) > 0 {
		profiles, err := h.userRepo.Profiles(c.Request.Context(), senderIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
			return
		}
		for _, p := range profiles {
			profileByID[p.ID] = p
		}
	}

	for i := range msgs {
		if profile, ok := profileByID[msgs[i].SenderID]; ok {
			p := profile
			msgs[i].Sender = &p
		}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// UpdateGroup renames the group or replaces its avatar. Creator only.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	groupID, _, ok := h.creatorGroup(c)
	if !ok {
		return
	}

	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" && req.Avatar == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if err := h.groupRepo.UpdateGroup(c.Request.Context(), groupID, req.Name, req.Avatar); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update group"})
		return
	}

	h.emitAudit(c, "INFO", "Group updated")
	c.Status(http.StatusNoContent)
}

// AddMembers handles POST /api/groups/:group_id/members. Any member may
// invite.
func (h *GroupHandler) AddMembers(c *gin.Context) {
	groupID, ok := h.memberGroupID(c)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []int `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.groupRepo.AddMembers(c.Request.Context(), groupID, req.MemberIDs); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add members"})
		return
	}

	h.emitAudit(c, "INFO", "Group members added")
	c.Status(http.StatusNoContent)
}

// RemoveMembers handles DELETE /api/groups/:group_id/members. Creator only;
// the creator cannot be removed.
func (h *GroupHandler) RemoveMembers(c *gin.Context) {
	groupID, group, ok := h.creatorGroup(c)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []int `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, id := range req.MemberIDs {
		if id == group.CreatorID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot remove creator"})
			return
		}
	}

	if err := h.groupRepo.RemoveMembers(c.Request.Context(), groupID, req.MemberIDs); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove members"})
		return
	}

	h.emitAudit(c, "INFO", "Group members removed")
	c.Status(http.StatusNoContent)
}

// DeleteGroup handles DELETE /api/groups/:group_id. Creator only; the
// group's messages go with it.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, _, ok := h.creatorGroup(c)
	if !ok {
		return
	}

	if err := h.messageRepo.DeleteByGroup(c.Request.Context(), groupID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete messages"})
		return
	}
	if err := h.groupRepo.DeleteGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete group"})
		return
	}

	h.emitAudit(c, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

// memberGroupID parses :group_id and enforces that the caller belongs to
// the group.
func (h *GroupHandler) memberGroupID(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}

	userID := c.GetInt("userID")
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return 0, false
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return 0, false
	}
	return groupID, true
}

// creatorGroup parses :group_id, loads the group and enforces that the
// caller created it.
func (h *GroupHandler) creatorGroup(c *gin.Context) (int, models.Group, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, models.Group{}, false
	}

	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return 0, models.Group{}, false
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return 0, models.Group{}, false
	}

	if c.GetInt("userID") != group.CreatorID {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "only creator may do this"})
		return 0, models.Group{}, false
	}
	return groupID, group, true
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
