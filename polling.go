package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

const transientFetchRetryBudget = 3

// Clock abstracts time so polling can be driven deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type statusReporter interface {
	GetStatus() JobStatus
}

// pollConfig controls one wait. Zero values fall back to the client defaults.
type pollConfig struct {
	interval time.Duration
	timeout  time.Duration
	terminal func(JobStatus) bool
	// tolerant returns ERROR jobs to the caller instead of failing.
	tolerant bool
}

// defaultPollConfig returns the client's polling defaults.
func (c *client) defaultPollConfig() pollConfig {
	return pollConfig{
		interval: c.pollInterval,
		timeout:  c.processingTimeout,
		terminal: c.terminal,
	}
}

// waitForJob fetches job status until a terminal status is reported, the
// timeout elapses on the client clock, or ctx ends.
func waitForJob[T statusReporter](ctx context.Context, c *client, operation Operation, jobID string, cfg pollConfig,
	fetch func(context.Context, string) (T, error),
) (T, error) {
	var zero T
	if jobID == "" {
		return zero, ErrEmptyJobID
	}
	if cfg.interval <= 0 {
		cfg.interval = DefaultPollInterval
	}
	if cfg.timeout <= 0 {
		cfg.timeout = ProcessingTimeout
	}
	if cfg.terminal == nil {
		cfg.terminal = IsTerminalStatus
	}

	logger := c.logger.With(zap.String("operation", string(operation)), zap.String("job_id", jobID))
	start := c.clock.Now()
	retriesLeft := transientFetchRetryBudget
	warnedUnknown := false
	var last JobStatus

	for {
		job, err := fetch(ctx, jobID)
		if err != nil {
			if retriesLeft > 0 && isTransientError(err) {
				retriesLeft--
				logger.Warn("transient status fetch failure", zap.Error(err), zap.Int("retries_left", retriesLeft))
				if err := waitForNextPoll(ctx, c.clock, cfg.interval, operation); err != nil {
					return zero, err
				}
				continue
			}
			return zero, err
		}

		retriesLeft = transientFetchRetryBudget
		last = job.GetStatus()

		if cfg.terminal(last) {
			logger.Debug("job finished", zap.String("status", string(last)),
				zap.Duration("elapsed", c.clock.Now().Sub(start)))
			if last == StatusError && !cfg.tolerant {
				return zero, &JobFailedError{Operation: operation, JobID: jobID, Status: last, Detail: jobDetail(job)}
			}
			return job, nil
		}

		if !last.Known() && !warnedUnknown {
			warnedUnknown = true
			logger.Warn("unknown job status, continuing to poll", zap.String("status", string(last)))
		}

		if elapsed := c.clock.Now().Sub(start); elapsed >= cfg.timeout {
			return zero, &TimeoutError{Operation: operation, JobID: jobID, Elapsed: elapsed, LastStatus: last}
		}

		if err := waitForNextPoll(ctx, c.clock, cfg.interval, operation); err != nil {
			return zero, err
		}
	}
}

// requireCompleted turns an ERROR or CANCELLED job into a JobFailedError.
// Callers use it once the job is terminal and its result is about to be fetched.
func requireCompleted[T statusReporter](operation Operation, jobID string, job T) error {
	switch status := job.GetStatus(); status {
	case StatusError, StatusCancelled:
		return &JobFailedError{Operation: operation, JobID: jobID, Status: status, Detail: jobDetail(job)}
	}
	return nil
}

// jobDetail pulls a human-readable failure reason out of known payloads.
func jobDetail(job any) string {
	switch j := job.(type) {
	case *ParseJob:
		if j.ErrorMessage != "" {
			return j.ErrorMessage
		}
		return j.ErrorCode
	case *ExtractJob:
		if j.Error != "" {
			return j.Error
		}
		return j.ErrorMessage
	case *ClassifyJob:
		return j.ErrorMessage
	case *SheetsJob:
		if len(j.Errors) > 0 {
			return j.Errors[0]
		}
		return j.ErrorMessage
	}
	return ""
}

// waitForNextPoll blocks for one interval on the clock or until ctx ends.
func waitForNextPoll(ctx context.Context, clock Clock, interval time.Duration, operation Operation) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s cancelled: %w", operation, ctx.Err())
	case <-clock.After(interval):
		return nil
	}
}

// isTransientError reports whether an error is temporary and merits a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	type temporary interface {
		Temporary() bool
	}

	var tempErr temporary
	return errors.As(err, &tempErr) && tempErr.Temporary()
}
