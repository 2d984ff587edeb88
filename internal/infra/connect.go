package infra

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	connectAttempts = 5
	connectDelay    = 500 * time.Millisecond
)

// withStartupRetry retries fn while a dependency is still coming up, so the
// service tolerates containers that start in any order.
func withStartupRetry(ctx context.Context, attempts uint, fn func() error) error {
	if attempts == 0 {
		attempts = connectAttempts
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(connectDelay),
		retry.MaxDelay(5*time.Second),
		retry.LastErrorOnly(true),
	)
}
