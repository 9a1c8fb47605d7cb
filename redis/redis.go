// Package redis provides session storage in Redis. The relational data
// always lives in SQLite; Redis only holds login sessions, which lets
// several server processes share them.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"microblog/web"
)

// Sessions provides session storage in Redis.
type Sessions struct {
	cli      *redis.Client
	lifetime time.Duration
}

// Connect connects to the Redis server and pings it to ensure the
// connection is working.
func Connect(ctx context.Context, addr string, lifetime time.Duration) (*Sessions, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Sessions{
		cli:      cli,
		lifetime: lifetime,
	}, nil
}

const sessionPrefix = "sessions"

func sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", sessionPrefix, id)
}

func userKey(userID int64) string {
	return fmt.Sprintf("%s:user:%d", sessionPrefix, userID)
}

// Create stores the session as a hash under sessions:SESSION_ID and tracks
// the id in a per-user set so DeleteUser can find every session later. Both
// writes go through one transactional pipeline.
func (s *Sessions) Create(ctx context.Context, userID int64) (web.Session, error) {
	row := &session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.lifetime).Unix(),
	}

	err := s.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			key := sessionKey(row.ID)
			pipe.HSet(ctx, key, row)
			pipe.Expire(ctx, key, s.lifetime)
			pipe.SAdd(ctx, userKey(userID), row.ID)
			return nil
		})
		return err
	}, row.ID)
	if err != nil {
		return web.Session{}, fmt.Errorf("insert session: %w", err)
	}

	return row.webSession(), nil
}

// Get returns the session. A missing hash and an expired one both report
// web.ErrNoSession; expiry is enforced twice, by the key TTL and by the
// stored timestamp.
func (s *Sessions) Get(ctx context.Context, id string) (web.Session, error) {
	var row session
	if err := s.cli.HGetAll(ctx, sessionKey(id)).Scan(&row); err != nil {
		return web.Session{}, fmt.Errorf("hgetall: %w", err)
	}
	if row.ID == "" || time.Now().Unix() > row.ExpiresAt {
		return web.Session{}, web.ErrNoSession
	}
	return row.webSession(), nil
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	userID, err := s.cli.HGet(ctx, sessionKey(id), "user_id").Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("hget: %w", err)
	}
	if err := s.cli.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	if userID != 0 {
		if err := s.cli.SRem(ctx, userKey(userID), id).Err(); err != nil {
			return fmt.Errorf("srem: %w", err)
		}
	}
	return nil
}

// DeleteUser removes every session belonging to the user.
func (s *Sessions) DeleteUser(ctx context.Context, userID int64) error {
	ids, err := s.cli.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("smembers: %w", err)
	}
	for _, id := range ids {
		if err := s.cli.Del(ctx, sessionKey(id)).Err(); err != nil {
			return fmt.Errorf("del: %w", err)
		}
	}
	if err := s.cli.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("del user set: %w", err)
	}
	return nil
}
