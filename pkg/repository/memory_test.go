package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/repository"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	sess := model.NewSession()
	sess.Facts["child_name"] = "Mia"
	sess.MarkFired("offer_guidelines")
	gt.NoError(t, repo.PutSession(ctx, sess))

	got, err := repo.GetSession(ctx, sess.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.ID, sess.ID)
	gt.Equal(t, got.Facts.Scalar("child_name"), "Mia")
	gt.True(t, got.HasFired("offer_guidelines"))
}

func TestMemoryGetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	_, err := repo.GetSession(ctx, model.NewSessionID())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrSessionNotFound))
}

func TestMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	sess := model.NewSession()
	gt.NoError(t, repo.PutSession(ctx, sess))

	// Mutating the caller's copy after Put must not leak into the store.
	sess.Facts["child_name"] = "Mia"

	got, err := repo.GetSession(ctx, sess.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Facts.Scalar("child_name"), "")
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	for i := 0; i < 3; i++ {
		gt.NoError(t, repo.PutSession(ctx, model.NewSession()))
	}

	all, err := repo.ListSessions(ctx, 0, 0)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)

	page, err := repo.ListSessions(ctx, 1, 1)
	gt.NoError(t, err)
	gt.A(t, page).Length(1)

	empty, err := repo.ListSessions(ctx, 10, 5)
	gt.NoError(t, err)
	gt.A(t, empty).Length(0)
}
