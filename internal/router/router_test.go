package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/presence"
)

func newTestRouter() (*Router, *mocks.MessageRepositoryMock, *mocks.GroupRepositoryMock, *mocks.UserRepositoryMock, *presence.MemoryRegistry, *presence.MemoryViewers) {
	messageRepo := new(mocks.MessageRepositoryMock)
	groupRepo := new(mocks.GroupRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	registry := presence.NewRegistry()
	viewers := presence.NewViewers()
	rt := New(messageRepo, groupRepo, userRepo, registry, viewers)
	return rt, messageRepo, groupRepo, userRepo, registry, viewers
}

func eventNames(events []mocks.RecordedEvent) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	return names
}

func TestSendDirectToOnlineReceiver(t *testing.T) {
	rt, messageRepo, _, _, registry, _ := newTestRouter()

	sender := mocks.NewConnRecorder()
	receiver := mocks.NewConnRecorder()
	registry.Register(1, sender)
	registry.Register(2, receiver)

	receiverID := 2
	stored := models.Message{ID: 100, SenderID: 1, ReceiverID: &receiverID, Text: "hi", IsDelivered: true}
	messageRepo.On("CreateDirectMessage", mock.Anything, 1, 2, "hi", "", true).Return(stored, nil).Once()

	msg, err := rt.SendDirect(context.Background(), 1, 2, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, 100, msg.ID)

	assert.Equal(t, []string{models.EventReceiveMessage, models.EventNewMessage}, eventNames(receiver.Events()))
	assert.Equal(t, []string{models.EventReceiveMessage, models.EventNewMessage, models.EventMessageStatus}, eventNames(sender.Events()))

	status := sender.EventsNamed(models.EventMessageStatus)[0].Data.(models.MessageStatus)
	assert.Equal(t, 100, status.MessageID)
	assert.True(t, status.IsDelivered)
	assert.False(t, status.IsRead)

	messageRepo.AssertExpectations(t)
}

func TestSendDirectToOfflineReceiver(t *testing.T) {
	rt, messageRepo, _, _, registry, _ := newTestRouter()

	sender := mocks.NewConnRecorder()
	registry.Register(1, sender)

	receiverID := 2
	stored := models.Message{ID: 101, SenderID: 1, ReceiverID: &receiverID, Text: "hi"}
	messageRepo.On("CreateDirectMessage", mock.Anything, 1, 2, "hi", "", false).Return(stored, nil).Once()

	_, err := rt.SendDirect(context.Background(), 1, 2, "hi", "")
	require.NoError(t, err)

	status := sender.EventsNamed(models.EventMessageStatus)[0].Data.(models.MessageStatus)
	assert.False(t, status.IsDelivered)

	messageRepo.AssertExpectations(t)
}

func TestSendDirectRejectsEmptyMessage(t *testing.T) {
	rt, messageRepo, _, _, _, _ := newTestRouter()

	_, err := rt.SendDirect(context.Background(), 1, 2, "   ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	messageRepo.AssertNotCalled(t, "CreateDirectMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendDirectImageOnlyAllowed(t *testing.T) {
	rt, messageRepo, _, _, _, _ := newTestRouter()

	receiverID := 2
	stored := models.Message{ID: 102, SenderID: 1, ReceiverID: &receiverID, Image: "/uploads/x.png"}
	messageRepo.On("CreateDirectMessage", mock.Anything, 1, 2, "", "/uploads/x.png", false).Return(stored, nil).Once()

	_, err := rt.SendDirect(context.Background(), 1, 2, "", "/uploads/x.png")
	require.NoError(t, err)
	messageRepo.AssertExpectations(t)
}

func TestSendGroupUnknownGroup(t *testing.T) {
	rt, _, groupRepo, _, _, _ := newTestRouter()

	groupRepo.On("GetGroup", mock.Anything, 42).Return(models.Group{}, assert.AnError).Once()

	_, err := rt.SendGroup(context.Background(), 1, 42, "hi", "")
	assert.Error(t, err)
	groupRepo.AssertExpectations(t)
}

// Member 2 sends while member 3 has the conversation open and member 1 is
// offline: the message lands delivered with 3 in the read set, not yet fully
// read, and only 1 gains unread.
func TestSendGroupViewerAndOfflineMember(t *testing.T) {
	rt, messageRepo, groupRepo, userRepo, registry, viewers := newTestRouter()

	senderConn := mocks.NewConnRecorder()
	viewerConn := mocks.NewConnRecorder()
	registry.Register(2, senderConn)
	registry.Register(3, viewerConn)
	viewers.Join(10, 3)

	group := models.Group{ID: 10, CreatorID: 1, Members: []int{1, 2, 3}}
	groupRepo.On("GetGroup", mock.Anything, 10).Return(group, nil).Once()

	groupID := 10
	stored := models.Message{ID: 200, SenderID: 2, GroupID: &groupID, Text: "hi", IsDelivered: true, ReadBy: []int{3}}
	messageRepo.On("CreateGroupMessage", mock.Anything, 2, 10, "hi", "", true, []int{3}, false).Return(stored, nil).Once()

	userRepo.On("Profile", mock.Anything, 2).Return(models.UserProfile{ID: 2, Name: "bob"}, nil).Once()
	groupRepo.On("IncrementUnread", mock.Anything, 10, []int{1}).Return(nil).Once()
	groupRepo.On("UnreadCounts", mock.Anything, 10).Return(models.UnreadCounts{1: 4}, nil).Once()

	msg, err := rt.SendGroup(context.Background(), 2, 10, "hi", "")
	require.NoError(t, err)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "bob", msg.Sender.Name)

	for _, conn := range []*mocks.ConnRecorder{senderConn, viewerConn} {
		assert.Equal(t, []string{
			models.EventReceiveGroupMessage,
			models.EventGroupMessageStatus,
			models.EventGroupUnreadCount,
			models.EventNewGroupMessage,
		}, eventNames(conn.Events()))
	}

	status := viewerConn.EventsNamed(models.EventGroupMessageStatus)[0].Data.(models.GroupMessageStatus)
	assert.True(t, status.IsDelivered)
	assert.Equal(t, []int{3}, status.ReadBy)
	assert.False(t, status.IsRead)

	viewerUnread := viewerConn.EventsNamed(models.EventGroupUnreadCount)[0].Data.(models.GroupUnreadCountUpdate)
	assert.Equal(t, 3, viewerUnread.UserID)
	assert.Equal(t, 0, viewerUnread.UnreadCount)

	messageRepo.AssertExpectations(t)
	groupRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

// With every other member viewing, the message is born fully read.
func TestSendGroupAllViewersRead(t *testing.T) {
	rt, messageRepo, groupRepo, userRepo, registry, viewers := newTestRouter()

	registry.Register(1, mocks.NewConnRecorder())
	registry.Register(2, mocks.NewConnRecorder())
	viewers.Join(10, 1)
	viewers.Join(10, 2)

	group := models.Group{ID: 10, CreatorID: 1, Members: []int{1, 2}}
	groupRepo.On("GetGroup", mock.Anything, 10).Return(group, nil).Once()

	groupID := 10
	stored := models.Message{ID: 201, SenderID: 1, GroupID: &groupID, Text: "hi", IsDelivered: true, IsRead: true, ReadBy: []int{2}}
	messageRepo.On("CreateGroupMessage", mock.Anything, 1, 10, "hi", "", true, []int{2}, true).Return(stored, nil).Once()

	userRepo.On("Profile", mock.Anything, 1).Return(models.UserProfile{ID: 1}, nil).Once()
	groupRepo.On("IncrementUnread", mock.Anything, 10, []int{}).Return(nil).Once()
	groupRepo.On("UnreadCounts", mock.Anything, 10).Return(models.UnreadCounts{}, nil).Once()

	_, err := rt.SendGroup(context.Background(), 1, 10, "hi", "")
	require.NoError(t, err)

	messageRepo.AssertExpectations(t)
	groupRepo.AssertExpectations(t)
}

func TestConnectSweepsDirectBacklog(t *testing.T) {
	rt, messageRepo, _, userRepo, registry, _ := newTestRouter()

	senderConn := mocks.NewConnRecorder()
	registry.Register(5, senderConn)

	receiverID := 2
	backlog := []models.Message{
		{ID: 1, SenderID: 5, ReceiverID: &receiverID},
		{ID: 2, SenderID: 5, ReceiverID: &receiverID},
		{ID: 3, SenderID: 5, ReceiverID: &receiverID},
	}

	userRepo.On("ClearLastSeen", mock.Anything, 2).Return(nil).Once()
	messageRepo.On("UndeliveredForReceiver", mock.Anything, 2).Return(backlog, nil).Once()
	messageRepo.On("MarkDeliveredForReceiver", mock.Anything, 2).Return(nil).Once()
	messageRepo.On("UndeliveredGroupMessages", mock.Anything, 2).Return([]models.Message(nil), nil).Once()

	receiverConn := mocks.NewConnRecorder()
	rt.Connect(context.Background(), 2, receiverConn)

	statuses := senderConn.EventsNamed(models.EventMessageStatus)
	require.Len(t, statuses, 3)
	for i, status := range statuses {
		data := status.Data.(models.MessageStatus)
		assert.Equal(t, i+1, data.MessageID)
		assert.True(t, data.IsDelivered)
	}

	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestConnectSweepsGroupBacklog(t *testing.T) {
	rt, messageRepo, groupRepo, userRepo, registry, _ := newTestRouter()

	memberConn := mocks.NewConnRecorder()
	registry.Register(3, memberConn)

	groupID := 10
	backlog := []models.Message{{ID: 7, SenderID: 3, GroupID: &groupID, ReadBy: []int{}}}
	group := models.Group{ID: 10, Members: []int{2, 3}}

	userRepo.On("ClearLastSeen", mock.Anything, 2).Return(nil).Once()
	messageRepo.On("UndeliveredForReceiver", mock.Anything, 2).Return([]models.Message(nil), nil).Once()
	messageRepo.On("UndeliveredGroupMessages", mock.Anything, 2).Return(backlog, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 10).Return(group, nil).Once()
	messageRepo.On("MarkDelivered", mock.Anything, 7).Return(nil).Once()

	rt.Connect(context.Background(), 2, mocks.NewConnRecorder())

	statuses := memberConn.EventsNamed(models.EventGroupMessageStatus)
	require.Len(t, statuses, 1)
	data := statuses[0].Data.(models.GroupMessageStatus)
	assert.Equal(t, 7, data.MessageID)
	assert.True(t, data.IsDelivered)

	messageRepo.AssertExpectations(t)
	groupRepo.AssertExpectations(t)
}

// A group message whose only other member is still offline stays
// undelivered through the sweep.
func TestGroupSweepSkipsWhenNoOtherMemberOnline(t *testing.T) {
	rt, messageRepo, groupRepo, userRepo, _, _ := newTestRouter()

	groupID := 10
	backlog := []models.Message{{ID: 8, SenderID: 3, GroupID: &groupID}}
	group := models.Group{ID: 10, Members: []int{2, 3}}

	userRepo.On("ClearLastSeen", mock.Anything, 3).Return(nil).Once()
	messageRepo.On("UndeliveredForReceiver", mock.Anything, 3).Return([]models.Message(nil), nil).Once()
	messageRepo.On("UndeliveredGroupMessages", mock.Anything, 3).Return(backlog, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 10).Return(group, nil).Once()

	// Sender 3 reconnects alone; member 2 is offline.
	rt.Connect(context.Background(), 3, mocks.NewConnRecorder())

	messageRepo.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything)
}

func TestConnectReplacesStaleConnection(t *testing.T) {
	rt, messageRepo, _, userRepo, registry, _ := newTestRouter()

	userRepo.On("ClearLastSeen", mock.Anything, 2).Return(nil).Twice()
	messageRepo.On("UndeliveredForReceiver", mock.Anything, 2).Return([]models.Message(nil), nil).Twice()
	messageRepo.On("UndeliveredGroupMessages", mock.Anything, 2).Return([]models.Message(nil), nil).Twice()

	stale := mocks.NewConnRecorder()
	rt.Connect(context.Background(), 2, stale)

	fresh := mocks.NewConnRecorder()
	rt.Connect(context.Background(), 2, fresh)
	assert.True(t, stale.Closed())

	// Tearing down the stale handle must not evict the fresh registration.
	rt.Disconnect(context.Background(), stale)
	assert.True(t, registry.IsOnline(2))
	userRepo.AssertNotCalled(t, "SetLastSeen", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisconnectRecordsLastSeenAndPurgesViewers(t *testing.T) {
	rt, messageRepo, _, userRepo, registry, viewers := newTestRouter()

	conn := mocks.NewConnRecorder()
	watcher := mocks.NewConnRecorder()
	registry.Register(9, watcher)

	userRepo.On("ClearLastSeen", mock.Anything, 2).Return(nil).Once()
	messageRepo.On("UndeliveredForReceiver", mock.Anything, 2).Return([]models.Message(nil), nil).Once()
	messageRepo.On("UndeliveredGroupMessages", mock.Anything, 2).Return([]models.Message(nil), nil).Once()
	rt.Connect(context.Background(), 2, conn)
	viewers.Join(10, 2)

	userRepo.On("SetLastSeen", mock.Anything, 2, mock.AnythingOfType("time.Time")).Return(nil).Once()

	rt.Disconnect(context.Background(), conn)

	assert.False(t, registry.IsOnline(2))
	assert.Empty(t, viewers.Viewers(10))

	updates := watcher.EventsNamed(models.EventLastSeen)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1].Data.(models.LastSeenUpdate)
	assert.Equal(t, 2, last.UserID)
	require.NotNil(t, last.LastSeen)
	assert.WithinDuration(t, time.Now().UTC(), *last.LastSeen, time.Minute)

	userRepo.AssertExpectations(t)
}
