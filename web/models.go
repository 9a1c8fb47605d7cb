package web

import "time"

// A User is a registered account. LikesCount is the denormalized total of
// likes received across every message the user has authored.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	LikesCount   int
	CreatedAt    time.Time
}

// A Message is a post. A message with a nil ReplyTo is top-level; otherwise
// it is a reply in the thread rooted at *ReplyTo. LikesCount is the
// denormalized count of like rows referencing the message.
type Message struct {
	ID         int64
	UserID     int64
	Author     string
	Content    string
	ReplyTo    *int64
	LikesCount int
	CreatedAt  time.Time
}

// A Thread is a top-level message together with its direct replies, newest
// reply first.
type Thread struct {
	Message Message
	Replies []Message
}

// A Session identifies a logged-in user between requests.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
}
