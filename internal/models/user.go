package models

import "time"

// User is the identity record referenced by the routing core. A nil
// LastSeen means the user is currently online.
type User struct {
	ID       int        `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	Avatar   string     `db:"avatar" json:"avatar"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen"`
}

// UserProfile is the subset attached to outgoing message payloads.
type UserProfile struct {
	ID     int    `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Avatar string `db:"avatar" json:"avatar"`
}
