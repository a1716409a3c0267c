// Package notify emits operational event notifications to a Discord webhook.
// Notifications are strictly best-effort: they are dispatched on a background
// goroutine and a failed or slow delivery never affects the request that
// produced the event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/inevitable-science/article-registry/internal/safego"
	"github.com/inevitable-science/article-registry/internal/telemetry"
)

// Discord embed colors for the two event classes
const (
	colorAction = 2236962
	colorError  = 12520460
)

const footerText = "Article API"

// EmbedField is one name/value pair inside an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Embed is the rendered notification card
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Notifier sends event notifications to a single webhook destination.
// A Notifier with an empty URL is valid and drops everything silently.
type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewNotifier builds a notifier. An empty webhookURL disables delivery.
func NewNotifier(webhookURL string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url:    webhookURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether a destination is configured
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Action dispatches an informational event embed in the background
func (n *Notifier) Action(title, description string, fields ...EmbedField) {
	n.dispatch(Embed{
		Title:       title,
		Description: description,
		Color:       colorAction,
		Fields:      fields,
	})
}

// Error dispatches an error event embed in the background
func (n *Notifier) Error(title, description string, fields ...EmbedField) {
	n.dispatch(Embed{
		Title:       title,
		Description: description,
		Color:       colorError,
		Fields:      fields,
	})
}

func (n *Notifier) dispatch(embed Embed) {
	if !n.Enabled() {
		return
	}
	embed.Footer = &embedFooter{Text: footerText}

	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		defer cancel()

		if err := n.send(ctx, webhookPayload{Embeds: []Embed{embed}}); err != nil {
			telemetry.NotificationFailuresTotal.Inc()
			if n.logger != nil {
				n.logger.Warn("notification delivery failed",
					"title", embed.Title, "error", err)
			}
		}
	})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}
