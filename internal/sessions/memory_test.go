package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	session, err := s.Create(context.Background(), "agent1", "cli")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.ID == "" || session.StartedAt.IsZero() {
		t.Fatalf("expected populated session, got %+v", session)
	}

	got, err := s.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AgentID != "agent1" || got.Channel != "cli" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreAppendAccumulates(t *testing.T) {
	s := NewMemoryStore()
	session, _ := s.Create(context.Background(), "a", "c")

	if err := s.Append(context.Background(), session.ID,
		&models.Message{Role: models.RoleUser, Content: "hi"},
		&models.Message{Role: models.RoleAssistant, Content: "hello"},
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, _ := s.Get(context.Background(), session.ID)
	if len(got.Messages) != 2 || got.Messages[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestMemoryStoreReplaceMessages(t *testing.T) {
	s := NewMemoryStore()
	session, _ := s.Create(context.Background(), "a", "c")
	_ = s.Append(context.Background(), session.ID, &models.Message{Role: models.RoleUser, Content: "one"})

	replacement := []*models.Message{{Role: models.RoleUser, Content: "summary"}}
	if err := s.ReplaceMessages(context.Background(), session.ID, replacement); err != nil {
		t.Fatalf("ReplaceMessages: %v", err)
	}

	got, _ := s.Get(context.Background(), session.ID)
	if len(got.Messages) != 1 || got.Messages[0].Content != "summary" {
		t.Fatalf("unexpected messages after replace: %+v", got.Messages)
	}
}

func TestMemoryStoreAppendLazilyCreatesSession(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Append(context.Background(), "unregistered", &models.Message{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.Get(context.Background(), "unregistered")
	if err != nil || len(got.Messages) != 1 {
		t.Fatalf("expected lazily-created session with one message, got %+v, err=%v", got, err)
	}
}

func TestMemoryStoreArchiveIdle(t *testing.T) {
	s := NewMemoryStore()
	session, _ := s.Create(context.Background(), "a", "c")

	s.mu.Lock()
	s.sessions[session.ID].LastActivity = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	archived, err := s.ArchiveIdle(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("ArchiveIdle: %v", err)
	}
	if len(archived) != 1 || archived[0] != session.ID {
		t.Fatalf("expected session archived, got %v", archived)
	}

	// a second call shouldn't re-report the same session.
	archived, _ = s.ArchiveIdle(context.Background(), 10*time.Minute)
	if len(archived) != 0 {
		t.Fatalf("expected no re-archival, got %v", archived)
	}
}

func TestMemoryStoreAppendClearsArchivedFlag(t *testing.T) {
	s := NewMemoryStore()
	session, _ := s.Create(context.Background(), "a", "c")
	s.mu.Lock()
	s.sessions[session.ID].LastActivity = time.Now().Add(-time.Hour)
	s.mu.Unlock()
	if _, err := s.ArchiveIdle(context.Background(), time.Minute); err != nil {
		t.Fatalf("ArchiveIdle: %v", err)
	}

	if err := s.Append(context.Background(), session.ID, &models.Message{Role: models.RoleUser, Content: "back"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s.mu.Lock()
	s.sessions[session.ID].LastActivity = time.Now().Add(-time.Hour)
	s.mu.Unlock()
	archived, _ := s.ArchiveIdle(context.Background(), time.Minute)
	if len(archived) != 1 {
		t.Fatalf("expected session archivable again after new activity, got %v", archived)
	}
}
