package processing

import (
	"context"
	"log/slog"
	"time"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
)

const recordFailureTimeout = 5 * time.Second

// FailureRecorder persists the terminal failure message of an exhausted
// event. Implemented by Processor.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, eventID, message string) error
}

// RetryController governs re-invocation of the single-event processor on
// retryable failure. Validation failures are final and never pass through
// here; only StatusFailed outcomes are retried.
//
// The schedule: at most maxAttempts attempts (including the first), with a
// delay of baseDelay*2^(n-1) before attempt n. The soft budget is a
// cooperative stop checked between attempts; the hard budget meters
// accumulated attempt execution time (backoff sleep does not consume it)
// and also bounds each in-flight attempt through its context deadline, so
// an aborted attempt either fully persisted or not at all.
type RetryController struct {
	maxAttempts int
	baseDelay   time.Duration
	softBudget  time.Duration
	hardBudget  time.Duration
	recorder    FailureRecorder

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// RetryOptions configures a RetryController. Zero values fall back to the
// deployment defaults (3 attempts, 60s unit, 25m soft / 30m hard budgets).
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	SoftBudget  time.Duration
	HardBudget  time.Duration
}

func (o RetryOptions) normalized() RetryOptions {
	n := o
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = 3
	}
	if n.BaseDelay <= 0 {
		n.BaseDelay = 60 * time.Second
	}
	if n.HardBudget <= 0 {
		n.HardBudget = 30 * time.Minute
	}
	if n.SoftBudget <= 0 || n.SoftBudget > n.HardBudget {
		n.SoftBudget = n.HardBudget
	}
	return n
}

// NewRetryController creates a controller recording exhausted failures
// through the given recorder.
func NewRetryController(opts RetryOptions, recorder FailureRecorder) *RetryController {
	opts = opts.normalized()
	return &RetryController{
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		softBudget:  opts.SoftBudget,
		hardBudget:  opts.HardBudget,
		recorder:    recorder,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

// Run drives attempts of one single-event invocation until it terminates:
// a non-retryable result returns immediately; a retryable failure is
// re-attempted per the schedule until attempts, the budgets or the context
// run out. On exhaustion the last failure is recorded on the event (best
// effort) and the result carries RetriesExhausted.
func (c *RetryController) Run(ctx context.Context, eventID string, attempt func(context.Context) v1.SingleResult) v1.SingleResult {
	var (
		last v1.SingleResult
		used time.Duration
	)

	for n := 1; n <= c.maxAttempts; n++ {
		if n > 1 {
			if used >= c.softBudget {
				slog.Warn("[Retry] Soft budget reached, stopping early",
					"event_id", eventID,
					"attempts", n-1,
					"execution_time", used,
				)
				break
			}

			delay := c.baseDelay << (n - 1)
			slog.Info("[Retry] Scheduling retry",
				"event_id", eventID,
				"attempt", n,
				"max_attempts", c.maxAttempts,
				"delay", delay,
			)
			if err := c.sleep(ctx, delay); err != nil {
				slog.Warn("[Retry] Backoff interrupted", "event_id", eventID, "error", err)
				break
			}
		}

		remaining := c.hardBudget - used
		if remaining <= 0 {
			slog.Warn("[Retry] Hard budget exhausted", "event_id", eventID, "attempts", n-1)
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, remaining)
		start := c.now()
		last = attempt(attemptCtx)
		cancel()
		used += c.now().Sub(start)

		if last.Status != v1.StatusFailed {
			return last
		}

		slog.Error("[Retry] Attempt failed",
			"event_id", eventID,
			"attempt", n,
			"max_attempts", c.maxAttempts,
			"error", last.Error,
		)
	}

	slog.Error("[Retry] Retries exhausted",
		"event_id", eventID,
		"max_attempts", c.maxAttempts,
		"execution_time", used,
	)

	c.recordExhausted(eventID, last.Error)

	last.Status = v1.StatusFailed
	last.EventID = eventID
	last.RetriesExhausted = true
	return last
}

// recordExhausted persists the final failure on the event. Uses a fresh
// context so recording still works when the run context is already dead.
func (c *RetryController) recordExhausted(eventID, message string) {
	if c.recorder == nil {
		return
	}
	if message == "" {
		message = "processing failed"
	}

	recordCtx, cancel := context.WithTimeout(context.Background(), recordFailureTimeout)
	defer cancel()

	if err := c.recorder.RecordFailure(recordCtx, eventID, message); err != nil {
		slog.Error("[Retry] Failed to record terminal failure", "event_id", eventID, "error", err)
	}
}

// sleepContext waits for the duration or the context, whichever ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
