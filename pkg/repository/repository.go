package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
)

var ErrSessionNotFound = goerr.New("session not found")

// Repository defines the interface for session persistence. One document
// per session; the session is always written whole at the end of a turn.
type Repository interface {
	// PutSession saves a session, overwriting any previous version.
	PutSession(ctx context.Context, sess *model.Session) error

	// GetSession retrieves a session by ID. Returns ErrSessionNotFound
	// when no such session exists.
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)

	// ListSessions retrieves sessions ordered by last update, newest
	// first.
	ListSessions(ctx context.Context, offset, limit int) ([]*model.Session, error)
}
