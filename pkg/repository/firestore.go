package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const sessionCollection = "sessions"

// firestoreRepo implements Repository using Firestore, one document per
// session.
type firestoreRepo struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore-backed repository.
func NewFirestore(ctx context.Context, projectID, databaseID string) (Repository, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &firestoreRepo{client: client}, nil
}

// sessionDoc is the Firestore shape of a session. Firestore maps need
// string keys, so artifact records are keyed by plain strings here.
type sessionDoc struct {
	ID           string                     `firestore:"id"`
	CreatedAt    time.Time                  `firestore:"created_at"`
	UpdatedAt    time.Time                  `firestore:"updated_at"`
	Facts        map[string]any             `firestore:"facts"`
	FiredMoments []string                   `firestore:"fired_moments"`
	Artifacts    map[string]*model.Artifact `firestore:"artifacts"`
	Flags        map[string]any             `firestore:"flags"`
	Log          []*model.Entry             `firestore:"log"`
	Unlocked     []string                   `firestore:"unlocked"`
	Turn         int                        `firestore:"turn"`
}

func toDoc(sess *model.Session) *sessionDoc {
	doc := &sessionDoc{
		ID:        string(sess.ID),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		Facts:     map[string]any(sess.Facts),
		Artifacts: make(map[string]*model.Artifact, len(sess.Artifacts)),
		Flags:     sess.Flags,
		Log:       sess.Log,
		Turn:      sess.Turn,
	}
	for _, m := range sess.FiredMoments {
		doc.FiredMoments = append(doc.FiredMoments, string(m))
	}
	for id, a := range sess.Artifacts {
		doc.Artifacts[string(id)] = a
	}
	for _, a := range sess.Unlocked {
		doc.Unlocked = append(doc.Unlocked, string(a))
	}
	return doc
}

func fromDoc(doc *sessionDoc) *model.Session {
	sess := &model.Session{
		ID:        model.SessionID(doc.ID),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Facts:     model.Facts(doc.Facts),
		Artifacts: make(map[model.ArtifactID]*model.Artifact, len(doc.Artifacts)),
		Flags:     doc.Flags,
		Log:       doc.Log,
		Turn:      doc.Turn,
	}
	if sess.Facts == nil {
		sess.Facts = model.Facts{}
	}
	if sess.Flags == nil {
		sess.Flags = map[string]any{}
	}
	for _, m := range doc.FiredMoments {
		sess.FiredMoments = append(sess.FiredMoments, model.MomentID(m))
	}
	for id, a := range doc.Artifacts {
		sess.Artifacts[model.ArtifactID(id)] = a
	}
	for _, a := range doc.Unlocked {
		sess.Unlocked = append(sess.Unlocked, model.ActionID(a))
	}
	return sess
}

func (r *firestoreRepo) PutSession(ctx context.Context, sess *model.Session) error {
	sess.UpdatedAt = time.Now()
	doc := r.client.Collection(sessionCollection).Doc(string(sess.ID))
	if _, err := doc.Set(ctx, toDoc(sess)); err != nil {
		return goerr.Wrap(err, "failed to save session", goerr.V("session_id", sess.ID))
	}
	return nil
}

func (r *firestoreRepo) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	snap, err := r.client.Collection(sessionCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrSessionNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("session_id", id))
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session", goerr.V("session_id", id))
	}
	return fromDoc(&doc), nil
}

func (r *firestoreRepo) ListSessions(ctx context.Context, offset, limit int) ([]*model.Session, error) {
	query := r.client.Collection(sessionCollection).
		OrderBy("updated_at", firestore.Desc).
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var sessions []*model.Session
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sessions")
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode session", goerr.V("doc", snap.Ref.ID))
		}
		sessions = append(sessions, fromDoc(&doc))
	}

	return sessions, nil
}
