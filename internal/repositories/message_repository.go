package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the message half of the conversation store.
type MessageRepository interface {
	CreateDirectMessage(ctx context.Context, senderID, receiverID int, text, image string, delivered bool) (models.Message, error)
	CreateGroupMessage(ctx context.Context, senderID, groupID int, text, image string, delivered bool, readBy []int, read bool) (models.Message, error)
	ConversationMessages(ctx context.Context, userA, userB int) ([]models.Message, error)
	GroupMessages(ctx context.Context, groupID int) ([]models.Message, error)
	LastGroupMessage(ctx context.Context, groupID int) (*models.Message, error)
	UndeliveredForReceiver(ctx context.Context, receiverID int) ([]models.Message, error)
	MarkDeliveredForReceiver(ctx context.Context, receiverID int) error
	UndeliveredGroupMessages(ctx context.Context, memberID int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int) error
	MarkConversationRead(ctx context.Context, senderID, receiverID int) ([]int, error)
	UnreadGroupMessages(ctx context.Context, groupID, userID int) ([]models.Message, error)
	AddGroupRead(ctx context.Context, messageID, userID int, read bool) error
	DeleteByGroup(ctx context.Context, groupID int) error
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageCols = `id, sender_id, receiver_id, group_id, text, image, is_delivered, is_read, created_at`

// CreateDirectMessage persists a direct message with its point-in-time
// delivered flag.
func (r *MessageRepo) CreateDirectMessage(ctx context.Context, senderID, receiverID int, text, image string, delivered bool) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, text, image, is_delivered)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageCols, senderID, receiverID, text, image, delivered).
		StructScan(&msg)
	return msg, err
}

// CreateGroupMessage persists a group message together with its initial
// read set.
func (r *MessageRepo) CreateGroupMessage(ctx context.Context, senderID, groupID int, text, image string, delivered bool, readBy []int, read bool) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, group_id, text, image, is_delivered, is_read)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageCols, senderID, groupID, text, image, delivered, read).
		StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	for _, userID := range readBy {
		if _, err = tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, msg.ID, userID); err != nil {
			return models.Message{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	msg.ReadBy = readBy
	return msg, nil
}

// ConversationMessages returns both directions of a direct pair in
// timestamp order.
func (r *MessageRepo) ConversationMessages(ctx context.Context, userA, userB int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageCols+` FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC`, userA, userB)
	return msgs, err
}

const groupMessageQuery = `SELECT m.id, m.sender_id, m.receiver_id, m.group_id, m.text, m.image, m.is_delivered, m.is_read, m.created_at,
        COALESCE(array_agg(mr.user_id) FILTER (WHERE mr.user_id IS NOT NULL), '{}') AS read_by
    FROM messages m
    LEFT JOIN message_reads mr ON mr.message_id = m.id`

// GroupMessages returns a group's messages with their read sets attached.
func (r *MessageRepo) GroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	rows, err := r.db.QueryxContext(ctx, groupMessageQuery+`
        WHERE m.group_id=$1
        GROUP BY m.id
        ORDER BY m.created_at ASC`, groupID)
	if err != nil {
		return nil, err
	}
	return scanGroupMessages(rows)
}

// LastGroupMessage returns the most recent message in the group, nil when
// the group has none.
func (r *MessageRepo) LastGroupMessage(ctx context.Context, groupID int) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageCols+` FROM messages WHERE group_id=$1 ORDER BY created_at DESC LIMIT 1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UndeliveredForReceiver lists direct messages waiting on the receiver's
// next registration.
func (r *MessageRepo) UndeliveredForReceiver(ctx context.Context, receiverID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageCols+` FROM messages
        WHERE receiver_id=$1 AND is_delivered = FALSE ORDER BY created_at ASC`, receiverID)
	return msgs, err
}

// MarkDeliveredForReceiver flips all pending direct messages for the
// receiver in one statement.
func (r *MessageRepo) MarkDeliveredForReceiver(ctx context.Context, receiverID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_delivered = TRUE WHERE receiver_id=$1 AND is_delivered = FALSE`, receiverID)
	return err
}

// UndeliveredGroupMessages lists undelivered messages in every group the
// member belongs to.
func (r *MessageRepo) UndeliveredGroupMessages(ctx context.Context, memberID int) ([]models.Message, error) {
	rows, err := r.db.QueryxContext(ctx, groupMessageQuery+`
        JOIN group_members gm ON gm.group_id = m.group_id AND gm.user_id = $1
        WHERE m.group_id IS NOT NULL AND m.is_delivered = FALSE
        GROUP BY m.id
        ORDER BY m.created_at ASC`, memberID)
	if err != nil {
		return nil, err
	}
	return scanGroupMessages(rows)
}

// MarkDelivered flips a single message's delivered flag.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET is_delivered = TRUE WHERE id=$1`, messageID)
	return err
}

// MarkConversationRead bulk-marks sender→receiver messages read and
// delivered, returning the affected ids.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, senderID, receiverID int) ([]int, error) {
	rows, err := r.db.QueryxContext(ctx, `UPDATE messages SET is_read = TRUE, is_delivered = TRUE
        WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE RETURNING id`, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnreadGroupMessages lists group messages the user has neither sent nor
// read yet.
func (r *MessageRepo) UnreadGroupMessages(ctx context.Context, groupID, userID int) ([]models.Message, error) {
	rows, err := r.db.QueryxContext(ctx, groupMessageQuery+`
        WHERE m.group_id=$1 AND m.sender_id<>$2
        AND NOT EXISTS (SELECT 1 FROM message_reads x WHERE x.message_id = m.id AND x.user_id = $2)
        GROUP BY m.id
        ORDER BY m.created_at ASC`, groupID, userID)
	if err != nil {
		return nil, err
	}
	return scanGroupMessages(rows)
}

// AddGroupRead appends a reader to a group message and stores the
// recomputed aggregate read flag; delivery is implied by a read.
func (r *MessageRepo) AddGroupRead(ctx context.Context, messageID, userID int, read bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, messageID, userID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE messages SET is_read=$2, is_delivered = TRUE WHERE id=$1`, messageID, read); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteByGroup removes every message owned by the group.
func (r *MessageRepo) DeleteByGroup(ctx context.Context, groupID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE group_id=$1`, groupID)
	return err
}

func scanGroupMessages(rows *sqlx.Rows) ([]models.Message, error) {
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		var readBy pq.Int64Array
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.GroupID, &msg.Text, &msg.Image,
			&msg.IsDelivered, &msg.IsRead, &msg.CreatedAt, &readBy); err != nil {
			return nil, err
		}
		msg.ReadBy = make([]int, 0, len(readBy))
		for _, id := range readBy {
			msg.ReadBy = append(msg.ReadBy, int(id))
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
