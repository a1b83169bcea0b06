package models

import (
	"encoding/json"
	"time"
)

// Wire event names. These are the client protocol and must not change.
const (
	// inbound
	EventRegisterUser     = "registerUser"
	EventJoinGroupChat    = "joinGroupChat"
	EventLeaveGroupChat   = "leaveGroupChat"
	EventSendMessage      = "sendMessage"
	EventSendGroupMessage = "sendGroupMessage"
	EventMarkRead         = "markMessagesAsRead"
	EventMarkGroupRead    = "markGroupMessagesAsRead"
	EventTyping           = "typing"
	EventStopTyping       = "stopTyping"

	// outbound
	EventReceiveMessage      = "receiveMessage"
	EventReceiveGroupMessage = "receiveGroupMessage"
	EventMessageStatus       = "updateMessageStatus"
	EventGroupMessageStatus  = "updateGroupMessageStatus"
	EventUserStatus          = "updateUserStatus"
	EventLastSeen            = "updateLastSeen"
	EventUnreadCount         = "updateUnreadCount"
	EventGroupUnreadCount    = "updateGroupUnreadCount"
	EventUserTyping          = "userTyping"
	EventUserStoppedTyping   = "userStoppedTyping"
	EventNewMessage          = "newMessage"
	EventNewGroupMessage     = "newGroupMessage"
)

// Event is the JSON envelope exchanged over a websocket connection.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// GroupRef identifies a group in join/leave/mark-read events.
type GroupRef struct {
	GroupID int `json:"group_id"`
}

// DirectSend is the sendMessage payload. The sender is the authenticated
// connection owner.
type DirectSend struct {
	ReceiverID int    `json:"receiver_id"`
	Text       string `json:"text"`
	Image      string `json:"image"`
}

// GroupSend is the sendGroupMessage payload.
type GroupSend struct {
	GroupID int    `json:"group_id"`
	Text    string `json:"text"`
	Image   string `json:"image"`
}

// MarkRead is the markMessagesAsRead payload; the reader is the
// authenticated connection owner.
type MarkRead struct {
	SenderID int `json:"sender_id"`
}

// TypingRef is the typing/stopTyping payload.
type TypingRef struct {
	ReceiverID int `json:"receiver_id"`
}

// MessageStatus is the updateMessageStatus payload.
type MessageStatus struct {
	MessageID   int  `json:"message_id"`
	IsDelivered bool `json:"is_delivered"`
	IsRead      bool `json:"is_read"`
}

// GroupMessageStatus is the updateGroupMessageStatus payload.
type GroupMessageStatus struct {
	MessageID   int   `json:"message_id"`
	IsDelivered bool  `json:"is_delivered"`
	ReadBy      []int `json:"read_by"`
	IsRead      bool  `json:"is_read"`
}

// LastSeenUpdate is the updateLastSeen payload. LastSeen is null while the
// user is online.
type LastSeenUpdate struct {
	UserID   int        `json:"user_id"`
	LastSeen *time.Time `json:"last_seen"`
}

// UnreadCountUpdate is the updateUnreadCount payload for a direct pair.
type UnreadCountUpdate struct {
	SenderID   int `json:"sender_id"`
	ReceiverID int `json:"receiver_id"`
	Modified   int `json:"modified"`
}

// GroupUnreadCountUpdate is the updateGroupUnreadCount payload; each member
// receives their own count.
type GroupUnreadCountUpdate struct {
	GroupID     int `json:"group_id"`
	UserID      int `json:"user_id"`
	UnreadCount int `json:"unread_count"`
}

// TypingNotice is the userTyping/userStoppedTyping payload.
type TypingNotice struct {
	SenderID int `json:"sender_id"`
}

// NewGroupMessage is the newGroupMessage payload.
type NewGroupMessage struct {
	GroupID int      `json:"group_id"`
	Message *Message `json:"message"`
}
