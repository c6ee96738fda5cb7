package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicerack/internal/config"
)

const userAgent = "Voicerack-Go/0.1.0"

// Event identifies a notification-worthy moment in the install workflow.
type Event string

const (
	EventVoiceInstalled     Event = "voice_installed"
	EventVoiceInstallFailed Event = "voice_install_failed"
	EventVoiceRemoved       Event = "voice_removed"
	EventCatalogUnavailable Event = "catalog_unavailable"
	EventTest               Event = "test"
)

// Payload carries the event-specific fields used to render the message.
// Recognized keys: "voice", "provider", "error".
type Payload map[string]string

// Service delivers workflow notifications. Implementations must tolerate a
// nil or empty payload.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
			EventVoiceInstalled:     cfg.Notifications.Install,
			EventVoiceInstallFailed: cfg.Notifications.Errors,
			EventVoiceRemoved:       cfg.Notifications.Uninstall,
			EventCatalogUnavailable: cfg.Notifications.Errors,
			EventTest:               true,
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
	if !n.enabled[event] {
		return nil
	}

	voice := strings.TrimSpace(payload["voice"])
	provider := strings.TrimSpace(payload["provider"])
	reason := strings.TrimSpace(payload["error"])
	if voice == "" {
		voice = "unknown voice"
	}

	var data message
	switch event {
	case EventVoiceInstalled:
		data = message{
			title: "Voicerack - Voice Installed",
			body:  fmt.Sprintf("%s is ready to use", voice),
			tags:  []string{"voicerack", "install", "completed"},
		}
		if provider != "" {
			data.body = fmt.Sprintf("%s is ready to use (provider %s)", voice, provider)
		}
	case EventVoiceInstallFailed:
		data = message{
			title:    "Voicerack - Install Failed",
			body:     fmt.Sprintf("Installing %s failed", voice),
			tags:     []string{"voicerack", "install", "error"},
			priority: "high",
		}
		if reason != "" {
			data.body = fmt.Sprintf("Installing %s failed: %s", voice, reason)
		}
	case EventVoiceRemoved:
		data = message{
			title: "Voicerack - Voice Removed",
			body:  fmt.Sprintf("%s was uninstalled", voice),
			tags:  []string{"voicerack", "uninstall", "completed"},
		}
	case EventCatalogUnavailable:
		data = message{
			title:    "Voicerack - Catalog Unavailable",
			body:     "Voice catalog could not be fetched",
			tags:     []string{"voicerack", "catalog", "error"},
			priority: "high",
		}
		if reason != "" {
			data.body = fmt.Sprintf("Voice catalog could not be fetched: %s", reason)
		}
	case EventTest:
		data = message{
			title:    "Voicerack - Test",
			body:     "Notification system test",
			tags:     []string{"voicerack", "test"},
			priority: "low",
		}
	default:
		return fmt.Errorf("unknown notification event %q", event)
	}

	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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
