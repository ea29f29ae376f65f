package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var defaultBackoff = backoff{base: time.Second, ceiling: 10 * time.Second}

// backoff doubles from base on each attempt and never exceeds ceiling.
type backoff struct {
	base    time.Duration
	ceiling time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	if b.base <= 0 {
		return 0
	}
	d := b.base
	for i := 1; i < attempt; i++ {
		if b.ceiling > 0 && d >= b.ceiling {
			break
		}
		d *= 2
	}
	return b.clamp(d)
}

func (b backoff) clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if b.ceiling > 0 && d > b.ceiling {
		return b.ceiling
	}
	return d
}

// retryDelay decides whether err deserves another attempt and how long to
// wait first. Server-provided Retry-After wins over the backoff schedule.
func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.attempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var status *statusError
	if errors.As(err, &status) {
		if !status.retryable() {
			return 0, false
		}
		if status.retryAfter > 0 {
			return c.backoff.clamp(status.retryAfter), true
		}
		return c.backoff.delay(attempt), true
	}

	var empty *emptyReplyError
	if errors.As(err, &empty) || isTimeout(err) {
		return c.backoff.delay(attempt), true
	}
	return 0, false
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil && when.After(now) {
		return when.Sub(now)
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
