package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Role string

const (
	RoleParent    Role = "parent"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Entry is a single item of the conversation log. The log is append-only;
// nothing in the engine may truncate or rewrite it.
type Entry struct {
	Role      Role      `firestore:"role" json:"role"`
	Text      string    `firestore:"text" json:"text"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

// Session is the durable state of one parent/child interview. It is owned by
// a single serial turn queue: the merger mutates Facts, the moment engine
// mutates FiredMoments, and artifact callbacks mutate Artifacts. Nothing else
// writes to it.
type Session struct {
	ID        SessionID `firestore:"id"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`

	Facts        Facts                    `firestore:"facts"`
	FiredMoments []MomentID               `firestore:"fired_moments"`
	Artifacts    map[ArtifactID]*Artifact `firestore:"artifacts"`
	Flags        map[string]any           `firestore:"flags"`
	Log          []*Entry                 `firestore:"log"`

	// Unlocked holds actions granted by fired moment effects. Action
	// resolution unions this with the base set and ready artifact enables.
	Unlocked []ActionID `firestore:"unlocked"`

	// Turn counts completed turns, used for analytics rows and log entries.
	Turn int `firestore:"turn"`
}

// NewSession creates an empty session.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        NewSessionID(),
		CreatedAt: now,
		UpdatedAt: now,
		Facts:     Facts{},
		Artifacts: map[ArtifactID]*Artifact{},
		Flags:     map[string]any{},
	}
}

// HasFired reports whether a once-moment already fired in this session.
func (s *Session) HasFired(id MomentID) bool {
	for _, m := range s.FiredMoments {
		if m == id {
			return true
		}
	}
	return false
}

// MarkFired records a once-moment as fired. Recording is irreversible for
// the session.
func (s *Session) MarkFired(id MomentID) {
	if !s.HasFired(id) {
		s.FiredMoments = append(s.FiredMoments, id)
	}
}

// Append adds an entry to the conversation log.
func (s *Session) Append(role Role, text string) {
	s.Log = append(s.Log, &Entry{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// Clone returns a deep copy. A turn mutates the clone and persists it only
// when the whole turn succeeded, so a failed turn leaves the stored session
// untouched.
func (s *Session) Clone() *Session {
	c := *s
	c.Facts = s.Facts.Clone()
	c.FiredMoments = append([]MomentID(nil), s.FiredMoments...)
	c.Artifacts = make(map[ArtifactID]*Artifact, len(s.Artifacts))
	for id, a := range s.Artifacts {
		aa := *a
		c.Artifacts[id] = &aa
	}
	c.Flags = make(map[string]any, len(s.Flags))
	for k, v := range s.Flags {
		c.Flags[k] = v
	}
	c.Log = append([]*Entry(nil), s.Log...)
	c.Unlocked = append([]ActionID(nil), s.Unlocked...)
	return &c
}

// Unlock records actions granted by a moment effect, deduplicated.
func (s *Session) Unlock(actions []ActionID) {
	for _, a := range actions {
		found := false
		for _, u := range s.Unlocked {
			if u == a {
				found = true
				break
			}
		}
		if !found {
			s.Unlocked = append(s.Unlocked, a)
		}
	}
}
