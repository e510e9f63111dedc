package model

import "time"

// Group is a named chat room; the unit of message scoping and subscription.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one persisted chat line, owned by exactly one Group.
// ID is assigned by the store at commit time and is the authoritative
// order key within a group; wall-clock timestamps may collide.
type Message struct {
	ID          int64     `json:"id"`
	GroupID     string    `json:"group_id"`
	SenderName  string    `json:"sender_name"`
	Message     string    `json:"message"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnonymousSender is used when a sender supplies no display name.
const AnonymousSender = "Anonymous"
