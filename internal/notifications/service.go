package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/users"
)

const userAgent = "dhis2dupes"

// Outcome describes a finished export for notification purposes.
type Outcome struct {
	BaseURL string
	OrgUnit string
	Summary users.Summary
	Outputs []string
	Took    time.Duration
}

// Service is the notification surface used by the export command.
type Service interface {
	NotifyExportCompleted(ctx context.Context, outcome Outcome) error
	NotifyExportFailed(ctx context.Context, baseURL string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		notifyClean: cfg.Notifications.NotifyClean,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	notifyClean bool
}

func (n *ntfyService) NotifyExportCompleted(ctx context.Context, outcome Outcome) error {
	s := outcome.Summary
	if s.Duplicates == 0 && !n.notifyClean {
		return nil
	}

	var b strings.Builder
	if s.Duplicates == 0 {
		fmt.Fprintf(&b, "No duplicate names among %d users", s.Total)
	} else {
		fmt.Fprintf(&b, "%d of %d users share %d names", s.Duplicates, s.Total, s.Groups)
	}
	if outcome.OrgUnit != "" {
		fmt.Fprintf(&b, " in %s", outcome.OrgUnit)
	}
	if host := hostOf(outcome.BaseURL); host != "" {
		fmt.Fprintf(&b, " on %s", host)
	}
	if outcome.Took > 0 {
		fmt.Fprintf(&b, " (%s)", outcome.Took.Round(time.Second))
	}
	for _, path := range outcome.Outputs {
		b.WriteString("\nFile: ")
		b.WriteString(path)
	}

	data := payload{
		title:   "dhis2dupes - Export Complete",
		message: b.String(),
		tags:    []string{"dhis2dupes", "export", "completed"},
	}
	if s.Duplicates > 0 {
		data.title = "dhis2dupes - Duplicate Users Found"
		data.tags = []string{"dhis2dupes", "export", "duplicates"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExportFailed(ctx context.Context, baseURL string, err error) error {
	var builder strings.Builder
	builder.WriteString("Export failed")
	if host := hostOf(baseURL); host != "" {
		builder.WriteString(" for ")
		builder.WriteString(host)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "dhis2dupes - Error",
		message:  builder.String(),
		tags:     []string{"dhis2dupes", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "dhis2dupes - Test",
		message:  "Notification system test",
		tags:     []string{"dhis2dupes", "test"},
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

func hostOf(baseURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}

type noopService struct{}

func (noopService) NotifyExportCompleted(context.Context, Outcome) error    { return nil }
func (noopService) NotifyExportFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
