package agent

import (
	"context"

	"github.com/nexuscore/agentcore/pkg/models"
)

// SessionStore is the session authority collaborator of spec.md §6.2. The
// loop only ever calls the two methods the core requires: appending
// newly-committed messages, and replacing the whole history when
// compaction produces a new sequence. Create/get/archive-by-idle-timeout
// are a host concern and are not named here.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, msgs ...*models.Message) error
	ReplaceMessages(ctx context.Context, sessionID string, msgs []*models.Message) error
}

// noopStore is used when a Loop is built without a SessionStore: the run
// still produces correct events, it simply persists nothing.
type noopStore struct{}

func (noopStore) Append(context.Context, string, ...*models.Message) error     { return nil }
func (noopStore) ReplaceMessages(context.Context, string, []*models.Message) error { return nil }
