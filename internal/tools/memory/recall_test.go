package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeRecaller struct {
	snippets []string
	err      error
	lastQ    string
	lastN    int
}

func (f *fakeRecaller) Recall(ctx context.Context, query string, limit int) ([]string, error) {
	f.lastQ, f.lastN = query, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.snippets, nil
}

func TestRecallToolReturnsJoinedSnippets(t *testing.T) {
	rec := &fakeRecaller{snippets: []string{"a", "b"}}
	tool, err := New(rec, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, _ := json.Marshal(map[string]any{"query": "hello"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Result != "a\n---\nb" {
		t.Fatalf("unexpected result: %q", res.Result)
	}
	if rec.lastN != 10 {
		t.Fatalf("expected default limit 10, got %d", rec.lastN)
	}
}

func TestRecallToolRejectsMissingQuery(t *testing.T) {
	tool, err := New(&fakeRecaller{}, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, _ := json.Marshal(map[string]any{})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute should not return a Go error: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected a schema validation error for a missing query")
	}
}

func TestRecallToolSurfacesRecallerError(t *testing.T) {
	tool, err := New(&fakeRecaller{err: errors.New("backend down")}, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, _ := json.Marshal(map[string]any{"query": "q"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute should not return a Go error: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected an error result when the backend fails")
	}
}

func TestRecallToolRequiresConfiguredRecaller(t *testing.T) {
	tool, err := New(nil, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, _ := json.Marshal(map[string]any{"query": "q"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute should not return a Go error: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected an error when no recaller is configured")
	}
}

func TestRecallToolHonorsExplicitLimit(t *testing.T) {
	rec := &fakeRecaller{snippets: []string{"x"}}
	tool, err := New(rec, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, _ := json.Marshal(map[string]any{"query": "q", "limit": 3})
	if _, err := tool.Execute(context.Background(), params); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.lastN != 3 {
		t.Fatalf("expected explicit limit 3, got %d", rec.lastN)
	}
}
