package models

import "time"

// Message is a persisted chat message. Exactly one of ReceiverID and GroupID
// is set: a message belongs either to a direct conversation or to a group,
// never both. At least one of Text and Image is non-empty at creation.
type Message struct {
	ID          int       `db:"id" json:"id"`
	SenderID    int       `db:"sender_id" json:"sender_id"`
	ReceiverID  *int      `db:"receiver_id" json:"receiver_id,omitempty"`
	GroupID     *int      `db:"group_id" json:"group_id,omitempty"`
	Text        string    `db:"text" json:"text"`
	Image       string    `db:"image" json:"image,omitempty"`
	IsDelivered bool      `db:"is_delivered" json:"is_delivered"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// ReadBy lists members who have read a group message. Loaded from the
	// message_reads table; empty for direct messages.
	ReadBy []int `json:"read_by,omitempty"`

	// Sender carries the sender profile when attached for group fan-out.
	Sender *UserProfile `json:"sender,omitempty"`
}
