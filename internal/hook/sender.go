package hook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender forwards raw hook payloads to a running relay.
type Sender struct {
	url    string
	client *http.Client
}

// NewSender returns a Sender posting to url, e.g. http://localhost:3141/event.
func NewSender(url string) *Sender {
	return &Sender{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Send POSTs payload unchanged. The relay decides whether it is worth showing.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
