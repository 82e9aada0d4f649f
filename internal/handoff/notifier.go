package handoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier delivers a payload to a facility intake endpoint.
type Notifier interface {
	Send(ctx context.Context, intakeURI string, payload Payload) error
}

// HTTPNotifier POSTs the payload as JSON to {intakeURI}{path}.
type HTTPNotifier struct {
	client *resty.Client
	path   string
}

// NewHTTPNotifier creates an HTTPNotifier. The client never retries; a
// failed delivery is recorded and left for operators.
func NewHTTPNotifier(path string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		path: path,
	}
}

// Send delivers payload. Any status of 300 or above is a failure.
func (n *HTTPNotifier) Send(ctx context.Context, intakeURI string, payload Payload) error {
	url := strings.TrimRight(intakeURI, "/") + n.path
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", url, err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("facility returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
