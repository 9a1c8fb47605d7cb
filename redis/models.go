package redis

import (
	"time"

	"microblog/web"
)

// A session represents a login session stored as a Redis hash.
type session struct {
	ID        string `redis:"id"`
	UserID    int64  `redis:"user_id"`
	ExpiresAt int64  `redis:"expires_at"`
}

func (s session) webSession() web.Session {
	return web.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: time.Unix(s.ExpiresAt, 0),
	}
}
