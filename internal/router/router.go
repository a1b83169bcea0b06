package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
	"chat-backend/internal/repositories"
)

// ErrEmptyMessage rejects a send whose text trims to nothing and carries no
// image.
var ErrEmptyMessage = errors.New("message has no content")

// Router is the orchestration core: it persists outbound messages, computes
// the fan-out set from presence and membership, maintains unread counters
// and emits status events to live connections.
type Router struct {
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	registry presence.Registry
	viewers  presence.ViewerTracker
}

// New constructs a Router.
func New(messages repositories.MessageRepository, groups repositories.GroupRepository, users repositories.UserRepository, registry presence.Registry, viewers presence.ViewerTracker) *Router {
	return &Router{
		messages: messages,
		groups:   groups,
		users:    users,
		registry: registry,
		viewers:  viewers,
	}
}

// Connect registers the user's connection, announces presence and runs the
// delivery sweep for messages that were waiting on this user.
func (rt *Router) Connect(ctx context.Context, userID int, conn presence.Conn) {
	if prev := rt.registry.Register(userID, conn); prev != nil {
		prev.Close()
	}
	if err := rt.users.ClearLastSeen(ctx, userID); err != nil {
		log.Printf("clear last seen for user %d: %v", userID, err)
	}

	rt.registry.Broadcast(models.EventUserStatus, rt.registry.OnlineIDs())
	rt.registry.Broadcast(models.EventLastSeen, models.LastSeenUpdate{UserID: userID})

	rt.sweepDirect(ctx, userID)
	rt.sweepGroups(ctx, userID)
}

// Disconnect tears down the connection's registration: reverse lookup, stale
// viewer purge, durable last-seen, presence broadcast. A handle already
// replaced by a newer registration is ignored.
func (rt *Router) Disconnect(ctx context.Context, conn presence.Conn) {
	userID, ok := rt.registry.Unregister(conn)
	if !ok {
		return
	}
	rt.viewers.PurgeUser(userID)

	lastSeen := time.Now().UTC()
	if err := rt.users.SetLastSeen(ctx, userID, lastSeen); err != nil {
		log.Printf("set last seen for user %d: %v", userID, err)
	}

	rt.registry.Broadcast(models.EventUserStatus, rt.registry.OnlineIDs())
	rt.registry.Broadcast(models.EventLastSeen, models.LastSeenUpdate{UserID: userID, LastSeen: &lastSeen})
}

// SendDirect persists and routes a direct message. The delivered flag is a
// point-in-time decision from the registry; persistence always precedes any
// status event referencing the message.
func (rt *Router) SendDirect(ctx context.Context, senderID, receiverID int, text, image string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return models.Message{}, ErrEmptyMessage
	}

	delivered := rt.registry.IsOnline(receiverID)
	msg, err := rt.messages.CreateDirectMessage(ctx, senderID, receiverID, text, image, delivered)
	if err != nil {
		return models.Message{}, fmt.Errorf("persist direct message: %w", err)
	}
	observability.IncMessageRouted("direct")

	if conn, ok := rt.registry.ConnFor(receiverID); ok {
		conn.Emit(models.EventReceiveMessage, msg)
		conn.Emit(models.EventNewMessage, msg)
	}
	if conn, ok := rt.registry.ConnFor(senderID); ok {
		conn.Emit(models.EventReceiveMessage, msg)
		conn.Emit(models.EventNewMessage, msg)
		conn.Emit(models.EventMessageStatus, models.MessageStatus{MessageID: msg.ID, IsDelivered: delivered})
	}
	return msg, nil
}

// SendGroup persists and routes a group message. Current viewers of the
// group (minus the sender) form the initial read set, so recipients with
// the conversation already open never owe a read round-trip.
func (rt *Router) SendGroup(ctx context.Context, senderID, groupID int, text, image string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return models.Message{}, ErrEmptyMessage
	}

	group, err := rt.groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.Message{}, err
	}

	viewing := map[int]bool{}
	readBy := make([]int, 0)
	for _, id := range rt.viewers.Viewers(groupID) {
		viewing[id] = true
		if id != senderID {
			readBy = append(readBy, id)
		}
	}

	delivered := false
	for _, member := range group.Members {
		if member != senderID && rt.registry.IsOnline(member) {
			delivered = true
			break
		}
	}

	read := len(readBy) == len(group.Members)-1
	msg, err := rt.messages.CreateGroupMessage(ctx, senderID, groupID, text, image, delivered, readBy, read)
	if err != nil {
		return models.Message{}, fmt.Errorf("persist group message: %w", err)
	}
	observability.IncMessageRouted("group")

	if profile, err := rt.users.Profile(ctx, senderID); err == nil {
		msg.Sender = &profile
	} else {
		log.Printf("load sender profile %d: %v", senderID, err)
	}

	toIncrement := make([]int, 0, len(group.Members))
	for _, member := range group.Members {
		if member != senderID && !viewing[member] {
			toIncrement = append(toIncrement, member)
		}
	}
	if err := rt.groups.IncrementUnread(ctx, groupID, toIncrement); err != nil {
		log.Printf("increment unread for group %d: %v", groupID, err)
	}
	counts, err := rt.groups.UnreadCounts(ctx, groupID)
	if err != nil {
		log.Printf("load unread counts for group %d: %v", groupID, err)
		counts = models.UnreadCounts{}
	}

	status := models.GroupMessageStatus{
		MessageID:   msg.ID,
		IsDelivered: delivered,
		ReadBy:      msg.ReadBy,
		IsRead:      len(msg.ReadBy) == len(group.Members)-1,
	}
	for _, member := range group.Members {
		conn, ok := rt.registry.ConnFor(member)
		if !ok {
			continue
		}
		conn.Emit(models.EventReceiveGroupMessage, msg)
		conn.Emit(models.EventGroupMessageStatus, status)
		conn.Emit(models.EventGroupUnreadCount, models.GroupUnreadCountUpdate{
			GroupID:     groupID,
			UserID:      member,
			UnreadCount: counts.Get(member),
		})
		conn.Emit(models.EventNewGroupMessage, models.NewGroupMessage{GroupID: groupID, Message: &msg})
	}
	return msg, nil
}

// sweepDirect marks the reconnecting user's pending direct messages
// delivered in bulk and notifies each sender who is still online.
func (rt *Router) sweepDirect(ctx context.Context, userID int) {
	msgs, err := rt.messages.UndeliveredForReceiver(ctx, userID)
	if err != nil {
		log.Printf("load undelivered messages for user %d: %v", userID, err)
		return
	}
	if len(msgs) == 0 {
		return
	}
	if err := rt.messages.MarkDeliveredForReceiver(ctx, userID); err != nil {
		log.Printf("mark delivered for user %d: %v", userID, err)
		return
	}
	observability.AddSweepMarked("direct", len(msgs))

	for _, msg := range msgs {
		if conn, ok := rt.registry.ConnFor(msg.SenderID); ok {
			conn.Emit(models.EventMessageStatus, models.MessageStatus{MessageID: msg.ID, IsDelivered: true, IsRead: msg.IsRead})
		}
	}
}

// sweepGroups marks undelivered group messages delivered once any online
// member besides the sender exists, fanning the status to all live members.
func (rt *Router) sweepGroups(ctx context.Context, userID int) {
	msgs, err := rt.messages.UndeliveredGroupMessages(ctx, userID)
	if err != nil {
		log.Printf("load undelivered group messages for user %d: %v", userID, err)
		return
	}

	groupCache := map[int]models.Group{}
	for _, msg := range msgs {
		if msg.GroupID == nil {
			continue
		}
		groupID := *msg.GroupID
		group, ok := groupCache[groupID]
		if !ok {
			group, err = rt.groups.GetGroup(ctx, groupID)
			if err != nil {
				log.Printf("load group %d during sweep: %v", groupID, err)
				continue
			}
			groupCache[groupID] = group
		}

		online := false
		for _, member := range group.Members {
			if member != msg.SenderID && rt.registry.IsOnline(member) {
				online = true
				break
			}
		}
		if !online {
			continue
		}

		if err := rt.messages.MarkDelivered(ctx, msg.ID); err != nil {
			log.Printf("mark group message %d delivered: %v", msg.ID, err)
			continue
		}
		observability.AddSweepMarked("group", 1)

		status := models.GroupMessageStatus{MessageID: msg.ID, IsDelivered: true, ReadBy: msg.ReadBy, IsRead: msg.IsRead}
		for _, member := range group.Members {
			if conn, ok := rt.registry.ConnFor(member); ok {
				conn.Emit(models.EventGroupMessageStatus, status)
			}
		}
	}
}
