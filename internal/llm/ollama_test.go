package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/codemate/internal/config"
	"github.com/ashureev/codemate/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func testConfig(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		BaseURL:       baseURL,
		Name:          "test-model",
		Temperature:   0.1,
		MaxTokens:     2000,
		TopP:          0.9,
		TopK:          40,
		Timeout:       2 * time.Second,
		VisionTimeout: 4 * time.Second,
	}
}

func TestChatSendsConversation(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hello back"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	reply, err := c.Chat(context.Background(), ChatRequest{Messages: []domain.Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply != "hello back" {
		t.Fatalf("Chat reply = %q", reply)
	}

	want := chatRequest{
		Model: "test-model",
		Messages: []wireMessage{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "hi"},
		},
		Options: wireOptions{Temperature: 0.1, NumPredict: 2000, TopP: 0.9, TopK: 40},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Request mismatch (-want +got):\n%s", diff)
	}
}

func TestChatAttachesImagesToLastMessage(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"content":"a cat"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	req := ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Analyze this image"}},
		Images:   []string{"aGVsbG8="},
		Model:    "llava:7b",
	}
	if _, err := c.Chat(context.Background(), req); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if got.Model != "llava:7b" {
		t.Errorf("Expected model override, got %q", got.Model)
	}
	if diff := cmp.Diff([]string{"aGVsbG8="}, got.Messages[0].Images); diff != "" {
		t.Errorf("Images mismatch (-want +got):\n%s", diff)
	}
	if c.timeoutFor(req) != 4*time.Second {
		t.Errorf("Expected vision timeout, got %v", c.timeoutFor(req))
	}
	if c.timeoutFor(ChatRequest{}) != 2*time.Second {
		t.Errorf("Expected chat timeout, got %v", c.timeoutFor(ChatRequest{}))
	}
}

func TestChatErrorClasses(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	cases := []struct {
		name    string
		baseURL string
		timeout time.Duration
		want    error
	}{
		{"timeout", slow.URL, 50 * time.Millisecond, ErrTimeout},
		{"status", failing.URL, time.Second, ErrStatus},
		{"refused", closedURL, time.Second, ErrUnavailable},
	}
	for _, c := range cases {
		cfg := testConfig(c.baseURL)
		cfg.Timeout = c.timeout
		client := NewClient(cfg, nil)

		_, err := client.Chat(context.Background(), ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}}})
		if !errors.Is(err, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, err)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"version":"0.5.0"}`))
	}))
	c := NewClient(testConfig(srv.URL), nil)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}

	srv.Close()
	if err := c.Health(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable after shutdown, got %v", err)
	}
}
