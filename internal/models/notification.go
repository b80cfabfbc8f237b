package models

import "time"

// Notification is an entry in a user's message log.
type Notification struct {
	ID          int64     `db:"id" json:"id"`
	UserEmail   string    `db:"user_email" json:"user_email"`
	Message     string    `db:"notification" json:"notification"`
	GeneratedAt time.Time `db:"notification_generated_time" json:"notification_generated_time"`
}
