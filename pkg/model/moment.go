package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidMoment = goerr.New("invalid moment")

type MomentID string

// FireMode declares how a moment's effects behave over the session
// lifetime.
type FireMode string

const (
	// FireOnce fires exactly the first time the condition becomes true and
	// never again, even if the condition turns false and true again.
	FireOnce FireMode = "once"
	// FirePersistent has no firing bookkeeping; its card is visible exactly
	// while the condition holds.
	FirePersistent FireMode = "persistent"
)

// Moment is one declarative prerequisite->effect rule. All moments are data
// loaded from the playbook; none are defined in code.
type Moment struct {
	ID       MomentID  `yaml:"id"`
	Priority int       `yaml:"priority"`
	FireMode FireMode  `yaml:"fire_mode"`
	When     Condition `yaml:"when"`
	Effects  Effects   `yaml:"effects"`
}

// Validate rejects structurally broken moments at load time.
func (m *Moment) Validate() error {
	if m.ID == "" {
		return goerr.Wrap(ErrInvalidMoment, "moment id is empty")
	}
	switch m.FireMode {
	case FireOnce, FirePersistent:
	default:
		return goerr.Wrap(ErrInvalidMoment, "unknown fire_mode",
			goerr.V("moment", m.ID), goerr.V("fire_mode", m.FireMode))
	}
	if m.FireMode == FirePersistent && (m.Effects.Message != "" || m.Effects.Artifact != "" || len(m.Effects.Unlocks) > 0) {
		return goerr.Wrap(ErrInvalidMoment, "persistent moments may only carry a card",
			goerr.V("moment", m.ID))
	}
	return nil
}

// Effects is what a moment does when it fires (once-mode) or while it holds
// (persistent-mode, card only).
type Effects struct {
	// Message is appended to the conversation log as a system entry.
	// Supports {field} substitution from the fact store.
	Message string `yaml:"message"`
	// Artifact requests generation of the named artifact.
	Artifact ArtifactID `yaml:"artifact"`
	// Unlocks makes the listed actions permanently available.
	Unlocks []ActionID `yaml:"unlocks"`
	// Card surfaces a UI card.
	Card *CardSpec `yaml:"card"`
}

// CardSpec is the declarative template of a UI card.
type CardSpec struct {
	Title    string     `yaml:"title"`
	Body     string     `yaml:"body"`
	Color    string     `yaml:"color"`
	Actions  []ActionID `yaml:"actions"`
	Priority int        `yaml:"priority"`

	// Artifact names the artifact this card opens. The card stays hidden
	// until that artifact is ready.
	Artifact ArtifactID `yaml:"artifact"`

	// DismissWhen hides the card even though the owning moment holds,
	// e.g. once the parent has viewed the artifact.
	DismissWhen *Condition `yaml:"dismiss_when"`
}

// Card is a resolved, display-only card. It has no lifecycle beyond being
// currently computed as visible.
type Card struct {
	Moment   MomentID   `json:"moment"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	Color    string     `json:"color"`
	Actions  []ActionID `json:"actions"`
	Priority int        `json:"priority"`
}

// TurnResult is the per-turn payload returned to the outer chat service.
type TurnResult struct {
	SessionID       SessionID  `json:"session_id"`
	ResponseText    string     `json:"response_text"`
	Completeness    float64    `json:"completeness"`
	Cards           []*Card    `json:"cards"`
	UnlockedActions []ActionID `json:"unlocked_actions"`
	FiredMoments    []MomentID `json:"fired_moments_this_turn"`
	SystemMessages  []string   `json:"system_messages,omitempty"`
}
