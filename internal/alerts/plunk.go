package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sudo-init-do/govconnect/internal/config"
)

type plunkMailer struct {
	cfg     config.Plunk
	replyTo string
	client  *http.Client
}

func newPlunkMailer(cfg config.Plunk, replyTo string) (*plunkMailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.useplunk.com/v1/send"
	}
	return &plunkMailer{cfg: cfg, replyTo: replyTo, client: &http.Client{Timeout: 15 * time.Second}}, nil
}

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

// Send performs the HTTP request to the Plunk API
func (m *plunkMailer) Send(ctx context.Context, to, subject, body string) error {
	b, err := json.Marshal(plunkSendBody{
		To:      to,
		Subject: subject,
		Body:    body,
		From:    m.cfg.From,
		Reply:   m.replyTo,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil && len(msg) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, msg)
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
