// Package notify delivers fire-and-forget trade alerts. Delivery failures
// are logged and swallowed; a lost notification never blocks or fails a
// decision cycle.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier receives one human-readable message per notable event.
type Notifier interface {
	Notify(message string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(message string) {
	n.Log.Info().Str("notify", message).Msg("notification")
}

// WebhookNotifier POSTs a JSON payload to a webhook URL.
type WebhookNotifier struct {
	URL  string
	Log  zerolog.Logger
	http *http.Client
}

func NewWebhook(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		URL:  url,
		Log:  log,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(message string) {
	payload, _ := json.Marshal(map[string]string{"text": message})
	resp, err := n.http.Post(n.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		n.Log.Warn().Err(err).Msg("webhook notification failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.Log.Warn().Int("status", resp.StatusCode).Msg("webhook notification refused")
	}
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(message string) {
	for _, n := range m {
		n.Notify(message)
	}
}

// Nop discards notifications; used in tests.
type Nop struct{}

func (Nop) Notify(string) {}
