package models

import "time"

// Group represents a chat group. CreatorID is immutable and the creator is
// always a member.
type Group struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatorID int       `db:"creator_id" json:"creator_id"`
	Avatar    string    `db:"avatar" json:"avatar"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Members holds the deduplicated member ids, loaded from group_members.
	Members []int `json:"members,omitempty"`
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID int) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupSummary is the per-user listing view of a group.
type GroupSummary struct {
	Group
	LastMessage     string     `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`
	UnreadCount     int        `json:"unread_count"`
}
