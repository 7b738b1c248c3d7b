package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/models"
)

const maxAttempts = 3

var (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// withRetry runs fn with exponential backoff and jitter. Only transient
// upstream errors are retried; every other kind fails immediately.
func withRetry(ctx context.Context, logger arbor.ILogger, op string, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !models.IsRetryable(err) || attempt == maxAttempts {
			return err
		}

		// Full jitter: anywhere between half and the whole backoff window
		delay := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
		logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Str("delay", delay.String()).
			Err(err).
			Msg("Transient failure, backing off")

		select {
		case <-ctx.Done():
			return models.NewProcessError(models.ErrKindCancelled, op, ctx.Err())
		case <-time.After(delay):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}
