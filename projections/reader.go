package projections

import (
	"context"
	"errors"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
)

const (
	defaultFirstReadTimeout  = 5 * time.Second
	defaultSecondReadTimeout = 8 * time.Second
	defaultThirdReadTimeout  = 12 * time.Second
	defaultReadBaseDelay     = 500 * time.Millisecond
)

var ErrReadTimeout = errors.New("reading the projection document timed out")
var ErrReadFailed = errors.New("reading the projection document failed")
var ErrReadRetriesExhausted = errors.New("reading the projection document failed after all retries")

// RetryPolicy controls the read path.
//
// Every attempt gets its own timeout, so len(Timeouts) is the number of attempts.
// Between attempt k and k+1 (k starting at 1) the reader waits k × BaseDelay.
//
// Default Schedule: 5 s, 8 s, 12 s per attempt with 500 ms and 1 s pauses in between.
type RetryPolicy struct {
	Timeouts  []time.Duration
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns the default read policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeouts:  []time.Duration{defaultFirstReadTimeout, defaultSecondReadTimeout, defaultThirdReadTimeout},
		BaseDelay: defaultReadBaseDelay,
	}
}

// Validate checks that the policy can be executed.
func (p RetryPolicy) Validate() error {
	if len(p.Timeouts) == 0 {
		return ErrEmptyReadTimeouts
	}

	for _, timeout := range p.Timeouts {
		if timeout <= 0 {
			return ErrNonPositiveReadTimeout
		}
	}

	if p.BaseDelay < 0 {
		return ErrNegativeBackoff
	}

	return nil
}

// Reader loads projection documents with per-attempt timeouts, connection reset and linear backoff.
type Reader struct {
	engine *Engine
	policy RetryPolicy
}

// Read returns the snapshot at path.
//
// A timed out attempt makes the reader disconnect and reconnect the document store before the next
// attempt; failures of that reset are logged and otherwise ignored. Other failures are retried as they are.
// Cancelling ctx stops the retries and returns the context error.
func (r *Reader) Read(ctx context.Context, path string) (documentstore.Snapshot, error) {
	var lastErr error

	attempts := len(r.policy.Timeouts)
	for attempt, timeout := range r.policy.Timeouts {
		if attempt > 0 {
			backoffDelay := time.Duration(attempt) * r.policy.BaseDelay

			select {
			case <-time.After(backoffDelay):
				// next attempt
			case <-ctx.Done():
				return documentstore.Snapshot{}, ctx.Err()
			}
		}

		start := time.Now()
		snapshot, err := r.timedRead(ctx, path, timeout)
		if err == nil {
			r.engine.recordReadDuration(ctx, time.Since(start), statusSuccess)
			r.engine.logDebug(ctx, logMsgDocumentRead,
				logAttrPath, path,
				logAttrExists, snapshot.Exists(),
				logAttrAttempt, attempt+1,
			)

			return snapshot, nil
		}

		r.engine.recordReadDuration(ctx, time.Since(start), statusError)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return documentstore.Snapshot{}, ctxErr
		}

		lastErr = err

		if attempt == attempts-1 {
			break
		}

		r.engine.recordReadRetry(ctx, attempt+1, errorTypeOf(err))
		r.engine.logWarn(ctx, logMsgReadRetried, err,
			logAttrPath, path,
			logAttrAttempt, attempt+1,
		)

		if errors.Is(err, ErrReadTimeout) {
			r.resetConnection(ctx)
		}
	}

	return documentstore.Snapshot{}, errors.Join(ErrReadRetriesExhausted, lastErr)
}

// timedRead runs one Get bounded by timeout.
// The Get runs in its own goroutine so that a store that ignores the context cannot block the reader.
func (r *Reader) timedRead(ctx context.Context, path string, timeout time.Duration) (documentstore.Snapshot, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type readResult struct {
		snapshot documentstore.Snapshot
		err      error
	}

	done := make(chan readResult, 1)
	go func() {
		snapshot, err := r.engine.store.Get(readCtx, path)
		done <- readResult{snapshot: snapshot, err: err}
	}()

	select {
	case result := <-done:
		if result.err == nil {
			return result.snapshot, nil
		}

		if ctx.Err() == nil && errors.Is(readCtx.Err(), context.DeadlineExceeded) {
			return documentstore.Snapshot{}, ErrReadTimeout
		}

		return documentstore.Snapshot{}, errors.Join(ErrReadFailed, result.err)

	case <-readCtx.Done():
		if ctx.Err() != nil {
			return documentstore.Snapshot{}, ctx.Err()
		}

		return documentstore.Snapshot{}, ErrReadTimeout
	}
}

// resetConnection cycles the store connection. Reconnect runs even when Disconnect failed.
// Errors are logged and counted, never returned.
func (r *Reader) resetConnection(ctx context.Context) {
	status := statusSuccess

	if err := r.engine.store.Disconnect(ctx); err != nil {
		status = statusError
		r.engine.logWarn(ctx, logMsgDisconnectFailed, err)
	}

	if err := r.engine.store.Reconnect(ctx); err != nil {
		status = statusError
		r.engine.logWarn(ctx, logMsgReconnectFailed, err)
	}

	r.engine.recordReconnect(ctx, status)
	if status == statusSuccess {
		r.engine.logDebug(ctx, logMsgReconnected)
	}
}
