package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-backend/internal/models"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateDirectMessage(ctx context.Context, senderID, receiverID int, text, image string, delivered bool) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, text, image, delivered)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) CreateGroupMessage(ctx context.Context, senderID, groupID int, text, image string, delivered bool, readBy []int, read bool) (models.Message, error) {
	args := m.Called(ctx, senderID, groupID, text, image, delivered, readBy, read)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ConversationMessages(ctx context.Context, userA, userB int) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) LastGroupMessage(ctx context.Context, groupID int) (*models.Message, error) {
	args := m.Called(ctx, groupID)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UndeliveredForReceiver(ctx context.Context, receiverID int) ([]models.Message, error) {
	args := m.Called(ctx, receiverID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDeliveredForReceiver(ctx context.Context, receiverID int) error {
	args := m.Called(ctx, receiverID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UndeliveredGroupMessages(ctx context.Context, memberID int) ([]models.Message, error) {
	args := m.Called(ctx, memberID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, senderID, receiverID int) ([]int, error) {
	args := m.Called(ctx, senderID, receiverID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadGroupMessages(ctx context.Context, groupID, userID int) ([]models.Message, error) {
	args := m.Called(ctx, groupID, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) AddGroupRead(ctx context.Context, messageID, userID int, read bool) error {
	args := m.Called(ctx, messageID, userID, read)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteByGroup(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, memberIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID int, name, avatar string) error {
	args := m.Called(ctx, groupID, name, avatar)
	return args.Error(0)
}

func (m *GroupRepositoryMock) AddMembers(ctx context.Context, groupID int, memberIDs []int) error {
	args := m.Called(ctx, groupID, memberIDs)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMembers(ctx context.Context, groupID int, memberIDs []int) error {
	args := m.Called(ctx, groupID, memberIDs)
	return args.Error(0)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) IncrementUnread(ctx context.Context, groupID int, memberIDs []int) error {
	args := m.Called(ctx, groupID, memberIDs)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ResetUnread(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UnreadCounts(ctx context.Context, groupID int) (models.UnreadCounts, error) {
	args := m.Called(ctx, groupID)
	var counts models.UnreadCounts
	if val := args.Get(0); val != nil {
		counts = val.(models.UnreadCounts)
	}
	return counts, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Profile(ctx context.Context, userID int) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	var profile models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(models.UserProfile)
	}
	return profile, args.Error(1)
}

func (m *UserRepositoryMock) Profiles(ctx context.Context, userIDs []int) ([]models.UserProfile, error) {
	args := m.Called(ctx, userIDs)
	var profiles []models.UserProfile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.UserProfile)
	}
	return profiles, args.Error(1)
}

func (m *UserRepositoryMock) SetLastSeen(ctx context.Context, userID int, lastSeen time.Time) error {
	args := m.Called(ctx, userID, lastSeen)
	return args.Error(0)
}

func (m *UserRepositoryMock) ClearLastSeen(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
