package session

import (
	"context"
	"errors"
)

var ErrVersionConflict = errors.New("session version conflict")

// Store persists sessions. Load returns a fresh MENU session with Version 0
// for unknown phones. Save succeeds only when the stored version still equals
// s.Version and returns the session with its new version.
type Store interface {
	Load(ctx context.Context, phone string) (Session, error)
	Save(ctx context.Context, phone string, s Session) (Session, error)
	List(ctx context.Context) ([]Session, error)
	Close() error
}
