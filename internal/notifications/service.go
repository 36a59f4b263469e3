package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gatewarden/internal/access"
	"gatewarden/internal/config"
)

const userAgent = "gatewarden/0.1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyPendingApproval(ctx context.Context, pending access.PendingApproval) error
	NotifyBarrierChanged(ctx context.Context, status access.BarrierStatus) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotificationTimeout()},
		pending:  cfg.Notifications.Pending,
		barrier:  cfg.Notifications.Barrier,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	pending  bool
	barrier  bool
	errors   bool
}

func (n *ntfyService) NotifyPendingApproval(ctx context.Context, pending access.PendingApproval) error {
	if !n.pending {
		return nil
	}
	verb := "entry"
	if pending.Direction == access.DirectionExit {
		verb = "exit"
	}
	message := fmt.Sprintf("🚗 %s requests %s", pending.Plate, verb)
	if pending.CameraID != "" {
		message += fmt.Sprintf(" at %s", pending.CameraID)
	}
	data := payload{
		title:    "Gatewarden - Approval Needed",
		message:  message,
		tags:     []string{"gatewarden", "pending", strings.ToLower(string(pending.Direction))},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBarrierChanged(ctx context.Context, status access.BarrierStatus) error {
	if !n.barrier {
		return nil
	}
	var data payload
	switch status.State {
	case access.BarrierOpen:
		message := "🔓 Barrier opened"
		if status.OpenedFor != "" {
			message += " for " + status.OpenedFor
		}
		data = payload{title: "Gatewarden - Barrier Open", message: message, tags: []string{"gatewarden", "barrier", "open"}}
	default:
		data = payload{title: "Gatewarden - Barrier Closed", message: "🔒 Barrier closed", tags: []string{"gatewarden", "barrier", "closed"}}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Gatewarden - Error",
		message:  builder.String(),
		tags:     []string{"gatewarden", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Gatewarden - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"gatewarden", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyPendingApproval(context.Context, access.PendingApproval) error { return nil }
func (noopService) NotifyBarrierChanged(context.Context, access.BarrierStatus) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
