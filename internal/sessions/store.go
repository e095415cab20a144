// Package sessions implements the session authority of spec.md §6.2: the
// host-side collaborator that owns conversation history across runs. The
// core itself only ever calls Append and ReplaceMessages (via
// agent.SessionStore); Create, Get, and ArchiveIdle exist for the host
// that embeds the core, not for the agent loop.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

// ErrNotFound is returned by Get for an unknown session ID.
var ErrNotFound = errors.New("sessions: session not found")

// Store is the session authority interface spec.md §6.2 names: create,
// get, append, replace-messages, and archive-by-idle-timeout.
type Store interface {
	// Create starts a new session for the given agent/channel pair and
	// returns it with ID and StartedAt populated.
	Create(ctx context.Context, agentID, channel string) (*models.Session, error)

	// Get returns a session by ID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Append commits newly-produced messages to a session's history and
	// advances its LastActivity. Satisfies agent.SessionStore.
	Append(ctx context.Context, sessionID string, msgs ...*models.Message) error

	// ReplaceMessages swaps a session's entire history, e.g. after
	// compaction produces a new sequence. Satisfies agent.SessionStore.
	ReplaceMessages(ctx context.Context, sessionID string, msgs []*models.Message) error

	// ArchiveIdle returns the IDs of sessions whose LastActivity is older
	// than idleFor and marks them archived, so a host can run it on a
	// timer without tracking idle state itself.
	ArchiveIdle(ctx context.Context, idleFor time.Duration) ([]string, error)
}
