// Package readiness holds utilities that check whether the things a service
// depends on are ready, repeating the check until they are.
package readiness

import (
	"context"
	"errors"
	"time"

	"github.com/datatrails/go-wallpaper-mirror/logger"
)

// Check reports nil once its dependency is usable.
type Check func(ctx context.Context) error

// Repeat repeatedly calls check until it returns without a recoverable error,
// attempts are exhausted or ctx is done. attempts = -1 to try forever.
// interval is the delay between attempts.
func Repeat(ctx context.Context, log logger.Logger, attempts int, interval time.Duration, check Check) error {
	var err error

	for i := 0; ; i++ {
		err = check(ctx)
		if err == nil {
			return nil
		}

		// exit early if error is unrecoverable
		var e *UnrecoverableError
		if errors.As(err, &e) {
			return err
		}

		if attempts > -1 && i >= (attempts-1) {
			break
		}
		log.Debugf("retrying %d after %v: %v", i, interval, err)

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(interval):
		}
	}

	return err
}
