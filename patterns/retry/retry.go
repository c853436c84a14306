package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// iteration is called for each iteration of a loop, returning whether the error can be retried.
// When no error is returned, the loop will exit early with a nil error.
type iteration = func() (bool, error)

// Settings defines the backoff behavior for [Poll].
type Settings struct {
	TimeBetweenRetries time.Duration // This sets the initial delay between retries.
	MaxDelay           time.Duration // This caps the delay between retries after backoff, 0 means no cap.
	BackoffFactor      float64       // This value multiplies TimeBetweenRetries between loop iterations, and should be >= 1.
	MaxTries           int           // This defines the maximum number of tries. It should be > 1, or <= 0 for no limit.
}

// PollSettings are reasonable defaults for waiting on a condition that's expected to become true soon.
func PollSettings() Settings {
	return Settings{
		TimeBetweenRetries: 5 * time.Millisecond,
		MaxDelay:           100 * time.Millisecond,
		BackoffFactor:      2,
	}
}

var (
	ErrInvalidSettings = errors.New("invalid settings")
	ErrMaxRetries      = errors.New("max tries exceeded")
	errNotYet          = errors.New("condition not met")
)

type maxRetriesError struct {
	loopErr error
}

func (e *maxRetriesError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMaxRetries, e.loopErr)
}

func (e *maxRetriesError) Unwrap() []error {
	return []error{ErrMaxRetries, e.loopErr}
}

// Poll calls check with backoff until it returns true, ctx is done, or MaxTries is reached.
// The context's error is returned if ctx is done first, and an error wrapping [ErrMaxRetries] if tries run out.
func Poll(ctx context.Context, settings Settings, check func() bool) error {
	if settings.MaxTries == 1 {
		return fmt.Errorf("%w: max tries should be > 1 or unlimited", ErrInvalidSettings)
	}
	return loop(ctx, settings, func() (bool, error) {
		if check() {
			return false, nil
		}
		return true, errNotYet
	})
}

func loop(ctx context.Context, settings Settings, iter iteration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if settings.BackoffFactor < 1 {
		return fmt.Errorf("%w: backoff factor should be >= 1", ErrInvalidSettings)
	}
	if settings.TimeBetweenRetries < 0 || settings.MaxDelay < 0 {
		return fmt.Errorf("%w: delays should be >= 0", ErrInvalidSettings)
	}
	var (
		shouldRetry bool
		iterErr     error
		delay       = settings.TimeBetweenRetries
	)
	for i := 0; settings.MaxTries <= 0 || i < settings.MaxTries; i++ {
		// Delays and context checks
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * settings.BackoffFactor)
			if settings.MaxDelay > 0 && delay > settings.MaxDelay {
				delay = settings.MaxDelay
			}
		} else if isDone(ctx) {
			return ctx.Err()
		}

		// Try the loop
		shouldRetry, iterErr = iter()
		if iterErr != nil {
			if shouldRetry {
				continue
			}
		}
		return iterErr
	}
	if iterErr != nil {
		return &maxRetriesError{iterErr}
	}
	return nil
}

func isDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
