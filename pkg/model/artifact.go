package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidTransition = goerr.New("invalid artifact status transition")

type ArtifactID string

type ArtifactStatus string

const (
	StatusPending    ArtifactStatus = "pending"
	StatusGenerating ArtifactStatus = "generating"
	StatusReady      ArtifactStatus = "ready"
	StatusError      ArtifactStatus = "error"
)

// Artifact tracks one generated document. Status transitions are driven by
// the external generator; the engine only reads them.
//
// absent -> pending -> generating -> ready | error
type Artifact struct {
	ID        ArtifactID     `firestore:"id"`
	Status    ArtifactStatus `firestore:"status"`
	Version   int            `firestore:"version"`
	CreatedAt time.Time      `firestore:"created_at"`
	UpdatedAt time.Time      `firestore:"updated_at"`

	// StorageKey locates the generated content in blob storage once ready.
	StorageKey string `firestore:"storage_key"`
	// Error holds the generator failure message when Status is error.
	Error string `firestore:"error"`
}

// NewArtifact creates a pending artifact record.
func NewArtifact(id ArtifactID) *Artifact {
	now := time.Now()
	return &Artifact{
		ID:        id,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the artifact to the next status, rejecting moves the
// state machine does not allow.
func (a *Artifact) Transition(next ArtifactStatus) error {
	ok := false
	switch a.Status {
	case StatusPending:
		ok = next == StatusGenerating || next == StatusError
	case StatusGenerating:
		ok = next == StatusReady || next == StatusError
	case StatusError:
		// A failed artifact may be retried.
		ok = next == StatusPending || next == StatusGenerating
	case StatusReady:
		// Regeneration starts a new version.
		ok = next == StatusPending || next == StatusGenerating
	}
	if !ok {
		return goerr.Wrap(ErrInvalidTransition, "transition rejected",
			goerr.V("artifact", a.ID),
			goerr.V("from", a.Status),
			goerr.V("to", next))
	}
	if a.Status == StatusReady && (next == StatusPending || next == StatusGenerating) {
		a.Version++
	}
	a.Status = next
	a.UpdatedAt = time.Now()
	return nil
}

// ArtifactSpec is the declarative description of an artifact kind: what it
// is called and which actions its readiness unlocks.
type ArtifactSpec struct {
	ID      ArtifactID `yaml:"id"`
	Title   string     `yaml:"title"`
	Enables []ActionID `yaml:"enables"`
}

type ActionID string
