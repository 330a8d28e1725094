package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Mailer hands assignment emails to an external endpoint as
// POST {"to": email, "task": {...}}
type Mailer struct {
	endpoint string
	client   *http.Client
}

// NewMailer creates a mailer. An empty endpoint disables sending.
func NewMailer(endpoint string) *Mailer {
	return &Mailer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured
func (m *Mailer) Enabled() bool {
	return m != nil && m.endpoint != ""
}

type mailPayload struct {
	To   string `json:"to"`
	Task any    `json:"task"`
}

// Send posts one email request. It is a no-op when the mailer is disabled.
func (m *Mailer) Send(ctx context.Context, to string, task any) error {
	if !m.Enabled() || to == "" {
		return nil
	}

	body, err := json.Marshal(mailPayload{To: to, Task: task})
	if err != nil {
		return fmt.Errorf("failed to encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
