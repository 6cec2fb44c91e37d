package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
)

// memoryRepo is an in-memory Repository for tests and local runs without a
// Google Cloud project.
type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.Session
}

// NewMemory creates an in-memory repository.
func NewMemory() Repository {
	return &memoryRepo{
		sessions: make(map[model.SessionID]*model.Session),
	}
}

func (r *memoryRepo) PutSession(ctx context.Context, sess *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := sess.Clone()
	stored.UpdatedAt = time.Now()
	r.sessions[sess.ID] = stored
	return nil
}

func (r *memoryRepo) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	return sess.Clone(), nil
}

func (r *memoryRepo) ListSessions(ctx context.Context, offset, limit int) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*model.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
