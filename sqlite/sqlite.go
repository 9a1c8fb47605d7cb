// Package sqlite provides storage in a single local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"microblog/web"
)

// SQLite persists users, messages and likes in a SQLite database.
type SQLite struct {
	bun *bun.DB
}

// Open opens (or creates) the database file, applies the pragmas the
// application relies on and creates any missing tables.
func Open(ctx context.Context, path string) (*SQLite, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps the pragmas applied to
	// every statement.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 3000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLite{bun: bun.NewDB(sqlDB, sqlitedialect.New())}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.bun.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.bun.NewCreateTable().
		Model((*user)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create users: %w", err)
	}
	if _, err := s.bun.NewCreateTable().
		Model((*message)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		ForeignKey(`("reply_to") REFERENCES "messages" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create messages: %w", err)
	}
	if _, err := s.bun.NewCreateTable().
		Model((*like)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		ForeignKey(`("message_id") REFERENCES "messages" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create likes: %w", err)
	}
	if _, err := s.bun.NewCreateTable().
		Model((*session)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create sessions: %w", err)
	}
	return nil
}

// ----------------------------
// Users
// ----------------------------

// CreateUser inserts a user. Uniqueness violations on name and email map to
// the typed duplicate errors, so concurrent registrations racing on the
// constraints resolve to the same outcome as the pre-checked path.
func (s *SQLite) CreateUser(ctx context.Context, name, email, passwordHash string) (web.User, error) {
	u := &user{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	if _, err := s.bun.NewInsert().Model(u).Exec(ctx); err != nil {
		switch {
		case isUniqueErr(err, "users.name"):
			return web.User{}, web.ErrDuplicateName
		case isUniqueErr(err, "users.email"):
			return web.User{}, web.ErrDuplicateEmail
		}
		return web.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u.webUser(), nil
}

func (s *SQLite) UserByID(ctx context.Context, id int64) (web.User, error) {
	var u user
	err := s.bun.NewSelect().Model(&u).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return web.User{}, web.ErrNotFound
	}
	if err != nil {
		return web.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u.webUser(), nil
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (web.User, error) {
	var u user
	err := s.bun.NewSelect().Model(&u).Where("u.email = ?", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return web.User{}, web.ErrNotFound
	}
	if err != nil {
		return web.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u.webUser(), nil
}

// DeleteUser removes the user and, through the cascades, their messages,
// replies to those messages and every like they made. A missing user is a
// no-op.
func (s *SQLite) DeleteUser(ctx context.Context, id int64) error {
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*user)(nil)).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return repairCounters(ctx, tx)
	})
}

// TopUsers returns up to limit users ordered by received likes.
func (s *SQLite) TopUsers(ctx context.Context, limit int) ([]web.User, error) {
	var users []user
	if err := s.bun.NewSelect().
		Model(&users).
		Order("u.likes_count DESC", "u.id ASC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	out := make([]web.User, len(users))
	for i, u := range users {
		out[i] = u.webUser()
	}
	return out, nil
}

// ----------------------------
// Messages
// ----------------------------

// CreateMessage inserts a message owned by userID. With a non-nil replyTo
// the message becomes a reply; a replyTo pointing at a missing message
// reports web.ErrNotFound via the foreign key.
func (s *SQLite) CreateMessage(ctx context.Context, userID int64, content string, replyTo *int64) (web.Message, error) {
	m := &message{
		UserID:    userID,
		Content:   content,
		ReplyTo:   replyTo,
		CreatedAt: time.Now(),
	}
	if _, err := s.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		if isForeignKeyErr(err) {
			return web.Message{}, web.ErrNotFound
		}
		return web.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m.webMessage(), nil
}

// DeleteMessage removes the message when requesterID owns it, cascading to
// replies and likes and repairing the surviving counters in the same
// transaction.
func (s *SQLite) DeleteMessage(ctx context.Context, messageID, requesterID int64) error {
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m message
		err := tx.NewSelect().Model(&m).Where("m.id = ?", messageID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return web.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if m.UserID != requesterID {
			return web.ErrUnauthorized
		}
		if _, err := tx.NewDelete().
			Model((*message)(nil)).
			Where("id = ?", messageID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		return repairCounters(ctx, tx)
	})
}

// ListMessages returns all top-level messages in the requested order,
// with the author name filled in.
func (s *SQLite) ListMessages(ctx context.Context, sort web.Sort) ([]web.Message, error) {
	var msgs []message
	q := s.bun.NewSelect().
		Model(&msgs).
		Relation("User").
		Where("m.reply_to IS NULL")
	if sort == web.SortMostLiked {
		q = q.Order("m.likes_count DESC", "m.created_at DESC")
	} else {
		q = q.Order("m.created_at DESC", "m.id DESC")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	out := make([]web.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.webMessage()
	}
	return out, nil
}

// Thread returns the message and its direct replies, newest reply first.
func (s *SQLite) Thread(ctx context.Context, messageID int64) (web.Thread, error) {
	var root message
	err := s.bun.NewSelect().
		Model(&root).
		Relation("User").
		Where("m.id = ?", messageID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return web.Thread{}, web.ErrNotFound
	}
	if err != nil {
		return web.Thread{}, fmt.Errorf("scan message: %w", err)
	}

	var replies []message
	if err := s.bun.NewSelect().
		Model(&replies).
		Relation("User").
		Where("m.reply_to = ?", messageID).
		Order("m.created_at DESC", "m.id DESC").
		Scan(ctx); err != nil {
		return web.Thread{}, fmt.Errorf("scan replies: %w", err)
	}

	th := web.Thread{
		Message: root.webMessage(),
		Replies: make([]web.Message, len(replies)),
	}
	for i, m := range replies {
		th.Replies[i] = m.webMessage()
	}
	return th, nil
}

// ----------------------------
// Likes
// ----------------------------

// LikeMessage records that userID likes messageID. The like row and both
// counter increments commit or roll back together.
func (s *SQLite) LikeMessage(ctx context.Context, userID, messageID int64) error {
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m message
		err := tx.NewSelect().Model(&m).Where("m.id = ?", messageID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return web.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("scan message: %w", err)
		}

		l := &like{UserID: userID, MessageID: messageID, CreatedAt: time.Now()}
		if _, err := tx.NewInsert().Model(l).Exec(ctx); err != nil {
			if isUniqueErr(err, "likes.") {
				return web.ErrAlreadyLiked
			}
			return fmt.Errorf("insert like: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*message)(nil)).
			Set("likes_count = likes_count + 1").
			Where("id = ?", messageID).
			Exec(ctx); err != nil {
			return fmt.Errorf("bump message counter: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*user)(nil)).
			Set("likes_count = likes_count + 1").
			Where("id = ?", m.UserID).
			Exec(ctx); err != nil {
			return fmt.Errorf("bump user counter: %w", err)
		}
		return nil
	})
}

// UnlikeMessage removes the like and decrements both counters in one
// transaction. A pair that was never liked reports web.ErrNotLiked and
// changes nothing.
func (s *SQLite) UnlikeMessage(ctx context.Context, userID, messageID int64) error {
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m message
		err := tx.NewSelect().Model(&m).Where("m.id = ?", messageID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return web.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("scan message: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*like)(nil)).
			Where("user_id = ? AND message_id = ?", userID, messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return web.ErrNotLiked
		}
		if _, err := tx.NewUpdate().
			Model((*message)(nil)).
			Set("likes_count = likes_count - 1").
			Where("id = ?", messageID).
			Exec(ctx); err != nil {
			return fmt.Errorf("drop message counter: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*user)(nil)).
			Set("likes_count = likes_count - 1").
			Where("id = ?", m.UserID).
			Exec(ctx); err != nil {
			return fmt.Errorf("drop user counter: %w", err)
		}
		return nil
	})
}

// LikedBy returns the set of message ids the user currently likes.
func (s *SQLite) LikedBy(ctx context.Context, userID int64) (map[int64]bool, error) {
	var ids []int64
	if err := s.bun.NewSelect().
		Model((*like)(nil)).
		Column("message_id").
		Where("user_id = ?", userID).
		Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("scan likes: %w", err)
	}
	liked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// ----------------------------
// Helpers
// ----------------------------

// repairCounters recomputes both denormalized counters from the surviving
// rows. Cascade deletes remove like rows behind the counters, so the two
// delete operations run this inside their transaction.
func repairCounters(ctx context.Context, tx bun.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET likes_count = (SELECT COUNT(*) FROM likes WHERE likes.message_id = messages.id)`,
	); err != nil {
		return fmt.Errorf("repair message counters: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET likes_count = (SELECT COALESCE(SUM(m.likes_count), 0) FROM messages AS m WHERE m.user_id = users.id)`,
	); err != nil {
		return fmt.Errorf("repair user counters: %w", err)
	}
	return nil
}

// The driver reports constraint violations by message, e.g.
// "constraint failed: UNIQUE constraint failed: users.name (2067)".
func isUniqueErr(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func isForeignKeyErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
