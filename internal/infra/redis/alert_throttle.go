package redis

import (
	"context"
	"time"
)

// AlertThrottle suppresses repeat operational alerts for a window.
// The SetNX claim is atomic, so concurrent sweeps agree on a single
// sender for each alert key.
type AlertThrottle struct {
	client RedisClient
	window time.Duration
}

func NewAlertThrottle(client RedisClient, window time.Duration) *AlertThrottle {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &AlertThrottle{client: client, window: window}
}

// ShouldSend reports whether the alert for key is due; claiming the key
// starts a fresh suppression window.
func (t *AlertThrottle) ShouldSend(ctx context.Context, key string) (bool, error) {
	return t.client.SetNX(ctx, "alert:"+key, time.Now().UTC().Format(time.RFC3339), t.window)
}

// Reset clears the suppression window, re-arming the alert.
func (t *AlertThrottle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, "alert:"+key)
}
