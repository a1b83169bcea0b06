package receipts

import (
	"context"
	"fmt"
	"log"

	"chat-backend/internal/models"
	"chat-backend/internal/presence"
	"chat-backend/internal/repositories"
)

// Reconciler applies client acknowledgements to delivery/read state and
// emits the corrected state to affected connections.
type Reconciler struct {
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
	registry presence.Registry
}

// New constructs a Reconciler.
func New(messages repositories.MessageRepository, groups repositories.GroupRepository, registry presence.Registry) *Reconciler {
	return &Reconciler{messages: messages, groups: groups, registry: registry}
}

// MarkDirectRead records that receiver has read everything sender sent
// them. Zero matched messages means no events at all.
func (rc *Reconciler) MarkDirectRead(ctx context.Context, senderID, receiverID int) error {
	ids, err := rc.messages.MarkConversationRead(ctx, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	if conn, ok := rc.registry.ConnFor(senderID); ok {
		for _, id := range ids {
			conn.Emit(models.EventMessageStatus, models.MessageStatus{MessageID: id, IsDelivered: true, IsRead: true})
		}
	}
	rc.registry.Broadcast(models.EventUnreadCount, models.UnreadCountUpdate{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Modified:   len(ids),
	})
	return nil
}

// MarkGroupRead appends the user to the read set of every group message
// they had not read, recomputing the aggregate read flag per message, and
// zeroes the user's unread counter. Idempotent: with nothing unread it
// emits nothing.
func (rc *Reconciler) MarkGroupRead(ctx context.Context, groupID, userID int) error {
	group, err := rc.groups.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	msgs, err := rc.messages.UnreadGroupMessages(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("load unread group messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	statuses := make([]models.GroupMessageStatus, 0, len(msgs))
	for _, msg := range msgs {
		readBy := append(msg.ReadBy, userID)
		read := len(readBy) == len(group.Members)-1
		if err := rc.messages.AddGroupRead(ctx, msg.ID, userID, read); err != nil {
			return fmt.Errorf("append read for message %d: %w", msg.ID, err)
		}
		statuses = append(statuses, models.GroupMessageStatus{
			MessageID:   msg.ID,
			IsDelivered: true,
			ReadBy:      readBy,
			IsRead:      read,
		})
	}

	if err := rc.groups.ResetUnread(ctx, groupID, userID); err != nil {
		log.Printf("reset unread for user %d in group %d: %v", userID, groupID, err)
	}
	counts, err := rc.groups.UnreadCounts(ctx, groupID)
	if err != nil {
		log.Printf("load unread counts for group %d: %v", groupID, err)
		counts = models.UnreadCounts{}
	}

	for _, member := range group.Members {
		conn, ok := rc.registry.ConnFor(member)
		if !ok {
			continue
		}
		for _, status := range statuses {
			conn.Emit(models.EventGroupMessageStatus, status)
		}
		conn.Emit(models.EventGroupUnreadCount, models.GroupUnreadCountUpdate{
			GroupID:     groupID,
			UserID:      member,
			UnreadCount: counts.Get(member),
		})
	}
	return nil
}

// Typing forwards a typing indicator to the receiver's connection; dropped
// silently when they are offline. Nothing is persisted.
func (rc *Reconciler) Typing(senderID, receiverID int) {
	if conn, ok := rc.registry.ConnFor(receiverID); ok {
		conn.Emit(models.EventUserTyping, models.TypingNotice{SenderID: senderID})
	}
}

// StopTyping forwards the end of a typing indicator.
func (rc *Reconciler) StopTyping(senderID, receiverID int) {
	if conn, ok := rc.registry.ConnFor(receiverID); ok {
		conn.Emit(models.EventUserStoppedTyping, models.TypingNotice{SenderID: senderID})
	}
}
