package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.NotificationSink = (*HTTPSink)(nil)

// HTTPSink posts notifications as JSON to the delivery service, which
// owns templating and the actual mail transport.
type HTTPSink struct {
	url    string
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPSink(cfg *config.NotifyConfig, logger *zerolog.Logger) *HTTPSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "HTTPSink").Logger()
	return &HTTPSink{
		url:    cfg.SinkURL,
		client: &http.Client{Timeout: timeout},
		log:    &l,
	}
}

func (s *HTTPSink) Send(ctx context.Context, n *adapter.Notification) error {
	if s.url == "" {
		// no sink configured; drop silently in dev setups
		s.log.Debug().Str("subject", n.Subject).Msg("notification dropped, no sink url")
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification sink returned %d", resp.StatusCode)
	}
	return nil
}
