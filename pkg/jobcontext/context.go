// Package jobcontext carries per-processing-cycle metadata and deadlines on
// a context. One cycle covers upload, enqueue, and the progress stream for a
// single sermon.
package jobcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	keySermonID   contextKey = "sermon_id"
	keyAttempt    contextKey = "attempt"
	keyCycleStart contextKey = "cycle_start"
)

// CycleBegin derives a cancellable context bounded by the processing timeout
// and stamped with cycle metadata.
func CycleBegin(parent context.Context, sermonID uuid.UUID, attempt int, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	ctx = context.WithValue(ctx, keySermonID, sermonID)
	ctx = context.WithValue(ctx, keyAttempt, attempt)
	ctx = context.WithValue(ctx, keyCycleStart, time.Now())
	return ctx, cancel
}

// SermonID returns the sermon this cycle is processing, or uuid.Nil.
func SermonID(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keySermonID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// Attempt returns the user-initiated attempt number for the cycle, starting
// at 1. Retries from the error phase increment it.
func Attempt(ctx context.Context) int {
	if v, ok := ctx.Value(keyAttempt).(int); ok {
		return v
	}
	return 0
}

// Elapsed returns how long the cycle has been running.
func Elapsed(ctx context.Context) time.Duration {
	if v, ok := ctx.Value(keyCycleStart).(time.Time); ok {
		return time.Since(v)
	}
	return 0
}
