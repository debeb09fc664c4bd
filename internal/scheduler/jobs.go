package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const TokenSweepJob = "token-sweeper"

type ExpiredTokenClearer interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenSweeper clears verification and password reset hashes that have
// expired so stale tokens do not linger on user rows.
func TokenSweeper(users ExpiredTokenClearer, now func() time.Time) JobFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		cleared, err := users.ClearExpiredTokens(ctx, now())
		if err != nil {
			return err
		}
		if cleared > 0 {
			log.WithField("users", cleared).Info("cleared expired account tokens")
		}
		return nil
	}
}
