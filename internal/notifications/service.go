package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"srmsync/internal/config"
)

const userAgent = "srmsync/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventSyncCompleted  Event = "sync_completed"
	EventSyncFailed     Event = "sync_failed"
	EventInstallAborted Event = "install_aborted"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Known keys per event:
//
//	sync_completed:  libraries ([]string), games (int), duration (time.Duration)
//	sync_failed:     outcome (string), error (string)
//	install_aborted: game (string)
//	error:           context (string), error (string)
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
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
		enabled: map[Event]bool{
			EventSyncCompleted:  cfg.Notifications.Sync,
			EventSyncFailed:     cfg.Notifications.Sync,
			EventInstallAborted: cfg.Notifications.Lifecycle,
			EventError:          cfg.Notifications.Errors,
			EventTest:           true,
		},
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSyncCompleted:
		libs := payload.list("libraries")
		body := fmt.Sprintf("Synced %d games to Steam", payload.number("games"))
		if len(libs) > 0 {
			body += " from " + strings.Join(libs, ", ")
		}
		if d := payload.dur("duration"); d > 0 {
			body += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		return message{
			title: "srmsync - Sync Complete",
			body:  body,
			tags:  []string{"srmsync", "sync", "completed"},
		}, true
	case EventSyncFailed:
		outcome := payload.text("outcome")
		if outcome == "" {
			outcome = "failed"
		}
		body := fmt.Sprintf("Sync %s", strings.ReplaceAll(outcome, "_", " "))
		if errText := payload.text("error"); errText != "" {
			body += ": " + errText
		}
		return message{
			title:    "srmsync - Sync Failed",
			body:     body,
			tags:     []string{"srmsync", "sync", "failed"},
			priority: "high",
		}, true
	case EventInstallAborted:
		return message{
			title: "srmsync - Install Abandoned",
			body:  fmt.Sprintf("Install of %s stopped before it finished", payload.text("game")),
			tags:  []string{"srmsync", "install", "aborted"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.text("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := payload.text("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "srmsync - Error",
			body:     b.String(),
			tags:     []string{"srmsync", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "srmsync - Test",
			body:     "Notification system test",
			tags:     []string{"srmsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
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

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) dur(key string) time.Duration {
	if d, ok := p[key].(time.Duration); ok {
		return d
	}
	return 0
}

func (p Payload) list(key string) []string {
	if v, ok := p[key].([]string); ok {
		return v
	}
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
