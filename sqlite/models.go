package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"microblog/web"
)

// A user represents a row in the users table.
type user struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Name         string    `bun:"name,notnull,unique"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	LikesCount   int       `bun:"likes_count,notnull,default:0"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull"`
}

// A message represents a row in the messages table. ReplyTo is nil for
// top-level messages.
type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     int64     `bun:"user_id,notnull"`
	Content    string    `bun:"content,notnull"`
	ReplyTo    *int64    `bun:"reply_to"`
	LikesCount int       `bun:"likes_count,notnull,default:0"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull"`

	User *user `bun:"rel:belongs-to,join:user_id=id"`
}

// A like represents a row in the likes table. The (user_id, message_id)
// pair is unique.
type like struct {
	bun.BaseModel `bun:"table:likes,alias:l"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull,unique:likes_user_message"`
	MessageID int64     `bun:"message_id,notnull,unique:likes_user_message"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull"`
}

// A session represents a row in the sessions table.
type session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string    `bun:"id,pk"`
	UserID    int64     `bun:"user_id,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

func (u user) webUser() web.User {
	return web.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		LikesCount:   u.LikesCount,
		CreatedAt:    u.CreatedAt,
	}
}

func (m message) webMessage() web.Message {
	out := web.Message{
		ID:         m.ID,
		UserID:     m.UserID,
		Content:    m.Content,
		ReplyTo:    m.ReplyTo,
		LikesCount: m.LikesCount,
		CreatedAt:  m.CreatedAt,
	}
	if m.User != nil {
		out.Author = m.User.Name
	}
	return out
}

func (s session) webSession() web.Session {
	return web.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
	}
}
