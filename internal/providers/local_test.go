package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

func TestLocalProviderIsLocal(t *testing.T) {
	p := NewLocalProvider(LocalConfig{})
	if !p.IsLocal() {
		t.Fatal("expected local provider to report IsLocal() == true")
	}
}

func TestLocalProviderChatStreamsTextThenStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		lines := []string{
			`{"message":{"content":"hel"},"done":false}`,
			`{"message":{"content":"lo"},"done":false}`,
			`{"done":true}`,
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, DefaultModel: "llama3"})

	ch, err := p.Chat(context.Background(), CompletionRequest{
		Messages: []CompletionMessage{{Role: models.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	var text string
	var sawStop bool
	for chunk := range ch {
		switch chunk.Type {
		case models.ChunkTextDelta:
			text += chunk.Text
		case models.ChunkMessageStop:
			sawStop = true
			if chunk.Err != nil {
				t.Fatalf("unexpected error in terminal chunk: %v", chunk.Err)
			}
		}
	}

	if text != "hello" {
		t.Fatalf("expected accumulated text %q, got %q", "hello", text)
	}
	if !sawStop {
		t.Fatal("expected a message_stop chunk")
	}
}

func TestLocalProviderChatSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, DefaultModel: "missing-model"})

	ch, err := p.Chat(context.Background(), CompletionRequest{
		Messages: []CompletionMessage{{Role: models.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	var sawErr bool
	for chunk := range ch {
		if chunk.Type == models.ChunkMessageStop && chunk.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected a terminal chunk carrying the server-reported error")
	}
}

func TestLocalProviderIsAvailableChecksTagsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Timeout: time.Second})
	if !p.IsAvailable(context.Background()) {
		t.Fatal("expected IsAvailable to succeed against a 200 /api/tags")
	}
}

func TestLocalProviderIsAvailableFalseOnUnreachable(t *testing.T) {
	p := NewLocalProvider(LocalConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if p.IsAvailable(context.Background()) {
		t.Fatal("expected IsAvailable to fail against an unreachable endpoint")
	}
}
