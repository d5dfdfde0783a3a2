package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestPublishSummary(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(srv.URL+"/", "tok", "42")
	if err := n.PublishSummary(context.Background(), "Procesados: 3/3"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "42" || gotText != "Procesados: 3/3" {
		t.Fatalf("unexpected form: chat=%s text=%s", gotChat, gotText)
	}
}

func TestPublishSummarySplitsLongText(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		texts = append(texts, r.PostForm.Get("text"))
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	line := strings.Repeat("x", 99) + "\n"
	text := strings.Repeat(line, 60)
	if err := NewNotifier(srv.URL, "tok", "1").PublishSummary(context.Background(), text); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(texts))
	}
	if strings.Join(texts, "") != text {
		t.Fatal("split lost content")
	}
	if !strings.HasSuffix(texts[0], "\n") || len(texts[0]) > maxMessage {
		t.Fatalf("first part not cut on a line boundary: %d bytes", len(texts[0]))
	}
}

func TestPublishSummaryErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "", "").PublishSummary(context.Background(), "x"); !errors.Is(err, errMisconfigured) {
		t.Fatalf("expected misconfiguration error, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	t.Cleanup(srv.Close)

	err := NewNotifier(srv.URL, "tok", "1").PublishSummary(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "bot was blocked") {
		t.Fatalf("expected API description in error, got %v", err)
	}
}

func TestChunks(t *testing.T) {
	t.Parallel()

	if got := chunks("", 10); len(got) != 1 || got[0] != "" {
		t.Fatalf("empty text: %q", got)
	}
	got := chunks("abcdefghijkl", 5)
	if strings.Join(got, "|") != "abcde|fghij|kl" {
		t.Fatalf("hard cut: %q", got)
	}
}
