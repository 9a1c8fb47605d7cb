package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"microblog/web"
)

// Sessions persists login sessions in the same database file as the rest
// of the data.
type Sessions struct {
	bun      *bun.DB
	lifetime time.Duration
}

// NewSessions returns a session store sharing the SQLite handle.
func NewSessions(db *SQLite, lifetime time.Duration) *Sessions {
	return &Sessions{bun: db.bun, lifetime: lifetime}
}

func (s *Sessions) Create(ctx context.Context, userID int64) (web.Session, error) {
	row := &session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.lifetime),
	}
	if _, err := s.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return web.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return row.webSession(), nil
}

// Get returns the session, treating expired rows the same as missing ones.
func (s *Sessions) Get(ctx context.Context, id string) (web.Session, error) {
	var row session
	err := s.bun.NewSelect().Model(&row).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return web.Session{}, web.ErrNoSession
	}
	if err != nil {
		return web.Session{}, fmt.Errorf("scan session: %w", err)
	}
	if time.Now().After(row.ExpiresAt) {
		_, _ = s.bun.NewDelete().Model((*session)(nil)).Where("id = ?", id).Exec(ctx)
		return web.Session{}, web.ErrNoSession
	}
	return row.webSession(), nil
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	if _, err := s.bun.NewDelete().
		Model((*session)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Sessions) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.bun.NewDelete().
		Model((*session)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}
