package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"showseed/internal/config"
	"showseed/internal/notifications"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func enabledConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Started = true
	cfg.Notifications.PostProcessed = true
	cfg.Notifications.Removed = true
	cfg.Notifications.Errors = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobStarted, notifications.Payload{"name": "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "started",
			event:         notifications.EventJobStarted,
			payload:       notifications.Payload{"name": "Show.S01E01"},
			expectTitle:   "showseed - Download Started",
			expectMessage: "⬇️ Downloading: Show.S01E01",
			expectTags:    "showseed,download,started",
		},
		{
			name:           "post processed",
			event:          notifications.EventJobPostProcessed,
			payload:        notifications.Payload{"name": "Show.S01E01", "files": 2},
			expectTitle:    "showseed - Imported",
			expectMessage:  "✅ Imported: Show.S01E01 (2 files)",
			expectTags:     "showseed,library,imported",
			expectPriority: "high",
		},
		{
			name:          "removed falls back to key",
			event:         notifications.EventJobRemoved,
			payload:       notifications.Payload{"key": "abc", "ratio": 1.5},
			expectTitle:   "showseed - Seeding Complete",
			expectMessage: "Removed abc at ratio 1.50",
			expectTags:    "showseed,seed,removed",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "admission", "error": errors.New("boom")},
			expectTitle:    "showseed - Error",
			expectMessage:  "❌ Error with admission: boom",
			expectTags:     "showseed,error,alert",
			expectPriority: "high",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, requests := newCaptureServer(t)
			svc := notifications.NewService(enabledConfig(srv.URL))
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := requests()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			r := got[0]
			if r.title != tc.expectTitle || r.body != tc.expectMessage || r.tags != tc.expectTags || r.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", r)
			}
		})
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	srv, requests := newCaptureServer(t)
	cfg := enabledConfig(srv.URL)
	cfg.Notifications.Removed = false
	svc := notifications.NewService(cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobRemoved, notifications.Payload{"name": "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("Publish test: %v", err)
	}
	got := requests()
	if len(got) != 1 || got[0].title != "showseed - Test" {
		t.Fatalf("expected only the test notification, got %+v", got)
	}
}

func TestServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()
	svc := notifications.NewService(enabledConfig(srv.URL))
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
