package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"showseed/internal/config"
)

const userAgent = "showseed/0.1.0"

// Event names a lifecycle milestone.
type Event string

const (
	EventJobStarted       Event = "job_started"
	EventJobStartFailed   Event = "job_start_failed"
	EventJobPostProcessed Event = "job_post_processed"
	EventJobRemoved       Event = "job_removed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.allowed(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) allowed(event Event) bool {
	switch event {
	case EventJobStarted, EventJobStartFailed:
		return n.enabled.Started
	case EventJobPostProcessed:
		return n.enabled.PostProcessed
	case EventJobRemoved:
		return n.enabled.Removed
	case EventError:
		return n.enabled.Errors
	default:
		return true
	}
}

func format(event Event, payload Payload) (message, bool) {
	name := payloadString(payload, "name")
	if name == "" {
		name = payloadString(payload, "key")
	}
	switch event {
	case EventJobStarted:
		return message{
			title: "showseed - Download Started",
			body:  fmt.Sprintf("⬇️ Downloading: %s", name),
			tags:  []string{"showseed", "download", "started"},
		}, true
	case EventJobStartFailed:
		return message{
			title: "showseed - Download Failed",
			body:  fmt.Sprintf("Torrent failed to start: %s", name),
			tags:  []string{"showseed", "download", "failed"},
		}, true
	case EventJobPostProcessed:
		body := fmt.Sprintf("✅ Imported: %s", name)
		if files := payloadInt(payload, "files"); files > 0 {
			body = fmt.Sprintf("%s (%d files)", body, files)
		}
		return message{
			title:    "showseed - Imported",
			body:     body,
			tags:     []string{"showseed", "library", "imported"},
			priority: "high",
		}, true
	case EventJobRemoved:
		return message{
			title: "showseed - Seeding Complete",
			body:  fmt.Sprintf("Removed %s at ratio %.2f", name, payloadFloat(payload, "ratio")),
			tags:  []string{"showseed", "seed", "removed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			b.WriteString(strings.TrimSpace(err.Error()))
		} else if s := payloadString(payload, "error"); s != "" {
			b.WriteString(s)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "showseed - Error",
			body:     b.String(),
			tags:     []string{"showseed", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "showseed - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"showseed", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(p Payload, key string) string {
	if v, ok := p[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func payloadInt(p Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func payloadFloat(p Payload, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
