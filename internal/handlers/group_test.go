package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/api/groups", handler.CreateGroup)
	r.GET("/api/groups", handler.ListGroups)
	r.GET("/api/groups/:group_id/messages", handler.GetGroupMessages)
	r.PATCH("/api/groups/:group_id", handler.UpdateGroup)
	r.POST("/api/groups/:group_id/members", handler.AddMembers)
	r.DELETE("/api/groups/:group_id/members", handler.RemoveMembers)
	r.DELETE("/api/groups/:group_id", handler.DeleteGroup)
	return r
}

func TestCreateGroupSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("CreateGroup", mock.Anything, 1, "team", []int{2, 3}).
		Return(models.Group{ID: 10, Name: "team", CreatorID: 1, Members: []int{1, 2, 3}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewBufferString(`{"name":"team","member_ids":[2,3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var group models.Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&group))
	assert.Equal(t, 10, group.ID)
	assert.Equal(t, []int{1, 2, 3}, group.Members)

	groupRepo.AssertExpectations(t)
}

func TestCreateGroupMissingName(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewBufferString(`{"member_ids":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groupRepo.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListGroupsWithPreviewAndUnread(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groups := []models.Group{{ID: 10, Name: "team", CreatorID: 1, Members: []int{1, 2}}}
	groupRepo.On("ListGroupsForUser", mock.Anything, 1).Return(groups, nil).Once()

	createdAt := time.Now().UTC()
	last := &models.Message{ID: 5, SenderID: 2, Text: "latest", CreatedAt: createdAt}
	messageRepo.On("LastGroupMessage", mock.Anything, 10).Return(last, nil).Once()
	groupRepo.On("UnreadCounts", mock.Anything, 10).Return(models.UnreadCounts{1: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Groups []models.GroupSummary `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "latest", resp.Groups[0].LastMessage)
	assert.Equal(t, 3, resp.Groups[0].UnreadCount)

	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestListGroupsEmptyGroupHasNoPreview(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groups := []models.Group{{ID: 10, Name: "team", CreatorID: 1}}
	groupRepo.On("ListGroupsForUser", mock.Anything, 1).Return(groups, nil).Once()
	messageRepo.On("LastGroupMessage", mock.Anything, 10).Return((*models.Message)(nil), nil).Once()
	groupRepo.On("UnreadCounts", mock.Anything, 10).Return(models.UnreadCounts{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Groups []models.GroupSummary `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Groups, 1)
	assert.Empty(t, resp.Groups[0].LastMessage)
	assert.Nil(t, resp.Groups[0].LastMessageTime)
	assert.Zero(t, resp.Groups[0].UnreadCount)
}

func TestGetGroupMessagesAttachesSenders(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, userRepo, nil)
	router := setupGroupRouter(handler)

	groupID := 10
	groupRepo.On("IsMember", mock.Anything, 10, 1).Return(true, nil).Once()
	messageRepo.On("GroupMessages", mock.Anything, 10).Return([]models.Message{
		{ID: 1, SenderID: 2, GroupID: &groupID, Text: "a"},
		{ID: 2, SenderID: 2, GroupID: &groupID, Text: "b"},
	}, nil).Once()
	userRepo.On("Profiles", mock.Anything, []int{2}).
		Return([]models.UserProfile{{ID: 2, Name: "bob", Avatar: "/uploads/u3.png"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/groups/10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	require.NotNil(t, resp.Messages[0].Sender)
	assert.Equal(t, "bob", resp.Messages[0].Sender.Name)

	userRepo.AssertExpectations(t)
}

func TestGetGroupMessagesNonMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 10, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/groups/10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "GroupMessages", mock.Anything, mock.Anything)
}

func TestUpdateGroupCreatorOnly(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 10).Return(models.Group{ID: 10, CreatorID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/groups/10", bytes.NewBufferString(`{"name":"renamed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertNotCalled(t, "UpdateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateGroupSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 10).Return(models.Group{ID: 10, CreatorID: 1}, nil).Once()
	groupRepo.On("UpdateGroup", mock.Anything, 10, "renamed", "").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/groups/10", bytes.NewBufferString(`{"name":"renamed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestAddMembersAsMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 10, 1).Return(true, nil).Once()
	groupRepo.On("AddMembers", mock.Anything, 10, []int{4, 5}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/groups/10/members", bytes.NewBufferString(`{"member_ids":[4,5]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestRemoveMembersRejectsCreator(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 10).Return(models.Group{ID: 10, CreatorID: 1, Members: []int{1, 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/groups/10/members", bytes.NewBufferString(`{"member_ids":[1]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groupRepo.AssertNotCalled(t, "RemoveMembers", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMembersSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 10).Return(models.Group{ID: 10, CreatorID: 1, Members: []int{1, 2, 3}}, nil).Once()
	groupRepo.On("RemoveMembers", mock.Anything, 10, []int{3}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/groups/10/members", bytes.NewBufferString(`{"member_ids":[3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestDeleteGroupSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 10).Return(models.Group{ID: 10, CreatorID: 1}, nil).Once()
	messageRepo.On("DeleteByGroup", mock.Anything, 10).Return(nil).Once()
	groupRepo.On("DeleteGroup", mock.Anything, 10).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/groups/10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestDeleteGroupNotFound(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 10).Return(models.Group{}, repositories.ErrGroupNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/groups/10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "DeleteByGroup", mock.Anything, mock.Anything)
}
