package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mikanarr/internal/config"
)

const (
	userAgent          = "mikanarr"
	maxListedResources = 10
)

// Service defines the notification surface used by the download pipeline.
type Service interface {
	NotifySubmitted(ctx context.Context, animeName string, titles []string) error
	NotifyDownloadCompleted(ctx context.Context, animeName, fileName string) error
	NotifyDownloadFailed(ctx context.Context, title, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When cfg is nil or no ntfy topic is configured, a noop implementation is
// returned.
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
}

func (n *ntfyService) NotifySubmitted(ctx context.Context, animeName string, titles []string) error {
	animeName = strings.TrimSpace(animeName)
	if len(titles) == 0 {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "📥 %d new release(s) for %s", len(titles), animeName)
	for i, title := range titles {
		if i == maxListedResources {
			fmt.Fprintf(&builder, "\n… and %d more", len(titles)-maxListedResources)
			break
		}
		builder.WriteString("\n• ")
		builder.WriteString(strings.TrimSpace(title))
	}
	data := payload{
		title:   "mikanarr - Download Started",
		message: builder.String(),
		tags:    []string{"mikanarr", "download", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, animeName, fileName string) error {
	animeName = strings.TrimSpace(animeName)
	fileName = strings.TrimSpace(fileName)
	message := fmt.Sprintf("✅ Ready to watch: %s", animeName)
	if fileName != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, fileName)
	}
	data := payload{
		title:    "mikanarr - Download Complete",
		message:  message,
		tags:     []string{"mikanarr", "download", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadFailed(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "mikanarr - Download Failed",
		message:  fmt.Sprintf("❌ Download failed: %s\nReason: %s", title, reason),
		tags:     []string{"mikanarr", "download", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
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
		title:    "mikanarr - Error",
		message:  builder.String(),
		tags:     []string{"mikanarr", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "mikanarr - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"mikanarr", "test"},
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

func (noopService) NotifySubmitted(context.Context, string, []string) error       { return nil }
func (noopService) NotifyDownloadCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyDownloadFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
