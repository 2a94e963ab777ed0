package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"srmsync/internal/config"
	"srmsync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventSyncCompleted, notifications.Payload{"games": 3}); err != nil {
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
			name:  "sync completed",
			event: notifications.EventSyncCompleted,
			payload: notifications.Payload{
				"libraries": []string{"GOG", "Steam"},
				"games":     12,
				"duration":  95 * time.Second,
			},
			expectTitle:   "srmsync - Sync Complete",
			expectMessage: "Synced 12 games to Steam from GOG, Steam in 1m35s",
			expectTags:    "srmsync,sync,completed",
		},
		{
			name:  "sync failed",
			event: notifications.EventSyncFailed,
			payload: notifications.Payload{
				"outcome": "timed_out",
				"error":   errors.New("apply step timed out"),
			},
			expectTitle:    "srmsync - Sync Failed",
			expectMessage:  "Sync timed out: apply step timed out",
			expectTags:     "srmsync,sync,failed",
			expectPriority: "high",
		},
		{
			name:          "install aborted",
			event:         notifications.EventInstallAborted,
			payload:       notifications.Payload{"game": "Hades"},
			expectTitle:   "srmsync - Install Abandoned",
			expectMessage: "Install of Hades stopped before it finished",
			expectTags:    "srmsync,install,aborted",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "watcher",
				"error":   "library snapshot unreadable",
			},
			expectTitle:    "srmsync - Error",
			expectMessage:  "Error with watcher: library snapshot unreadable",
			expectTags:     "srmsync,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "srmsync - Test",
			expectMessage:  "Notification system test",
			expectTags:     "srmsync,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursEventToggles(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Sync = false
	cfg.Notifications.Lifecycle = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventSyncCompleted,
		notifications.EventSyncFailed,
		notifications.EventInstallAborted,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("suppressed events reached ntfy %d times", calls.Load())
	}
	if err := svc.Publish(context.Background(), notifications.EventError, notifications.Payload{"error": "x"}); err != nil {
		t.Fatalf("error event: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected error event to be delivered")
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
