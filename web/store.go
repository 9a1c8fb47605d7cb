package web

import (
	"context"
	"errors"
)

// Sort orders for the top-level message listing.
type Sort string

const (
	// SortNewest orders by creation time descending, ties broken by id
	// descending.
	SortNewest Sort = "new"
	// SortMostLiked orders by like count descending, ties broken by newest
	// first.
	SortMostLiked Sort = "likes"
)

// Errors reported by Store and Sessions implementations. Handlers map these
// to flash notices; anything else is logged and surfaced generically.
var (
	ErrDuplicateName  = errors.New("name already taken")
	ErrDuplicateEmail = errors.New("email already taken")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrAlreadyLiked   = errors.New("already liked")
	ErrNotLiked       = errors.New("not liked")
	ErrNoSession      = errors.New("session not found")
)

// A Store provides the storage layer that persists users, messages and
// likes. Implementations must keep the two denormalized like counters in
// sync with the underlying like rows across every operation, including
// cascading deletes.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreateMessage(ctx context.Context, userID int64, content string, replyTo *int64) (Message, error)
	DeleteMessage(ctx context.Context, messageID, requesterID int64) error
	ListMessages(ctx context.Context, sort Sort) ([]Message, error)
	Thread(ctx context.Context, messageID int64) (Thread, error)
	TopUsers(ctx context.Context, limit int) ([]User, error)

	LikeMessage(ctx context.Context, userID, messageID int64) error
	UnlikeMessage(ctx context.Context, userID, messageID int64) error
	LikedBy(ctx context.Context, userID int64) (map[int64]bool, error)
}

// A Sessions store persists login sessions. Cookie handling stays in the
// web layer; implementations only deal in session records.
type Sessions interface {
	Create(ctx context.Context, userID int64) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, userID int64) error
}
