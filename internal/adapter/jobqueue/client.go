// Package jobqueue is the client side of the remote processing queue. The
// queue itself (transcription and study-guide workers) runs elsewhere; this
// client enqueues sermons and consumes the push-style progress stream.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

const (
	queueKey          = "sermon:jobs"
	enqueuedKeyPrefix = "sermon:jobs:enqueued:"
	statusKeyPrefix   = "sermon:jobs:status:"
	progressChPrefix  = "sermon:progress:"
)

// enqueueTTL bounds how long the idempotency guard outlives a job.
const enqueueTTL = 48 * time.Hour

// Update is one progress-stream message: a job snapshot plus the composite
// progress fraction.
type Update struct {
	Job      entities.ProcessingJob `json:"job"`
	Fraction float64                `json:"fraction"`
}

// Client talks to the remote processing queue over Redis.
type Client struct {
	logger *zap.Logger
	rdb    *redis.Client
}

// NewClient constructs a job queue client.
func NewClient(logger *zap.Logger, rdb *redis.Client) *Client {
	return &Client{logger: logger, rdb: rdb}
}

// Enqueue schedules transcription and study-guide generation for a sermon
// whose chunks are already uploaded. Enqueueing the same sermon twice is a
// no-op. Transient Redis failures are retried with exponential backoff.
func (c *Client) Enqueue(ctx context.Context, sermonID uuid.UUID, chunkTotal int) error {
	payload, err := json.Marshal(map[string]interface{}{
		"sermon_id":   sermonID.String(),
		"chunk_total": chunkTotal,
		"enqueued_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal enqueue payload: %w", err)
	}

	submit := func() error {
		// A sermon whose previous job already finished or failed may be
		// enqueued again (retry); drop the stale guard and snapshot first.
		if job, err := c.LoadJob(ctx, sermonID); err == nil && job != nil && job.IsTerminal() {
			c.rdb.Del(ctx, enqueuedKeyPrefix+sermonID.String(), statusKeyPrefix+sermonID.String())
		}
		ok, err := c.rdb.SetNX(ctx, enqueuedKeyPrefix+sermonID.String(), "1", enqueueTTL).Result()
		if err != nil {
			return fmt.Errorf("enqueue guard: %w", err)
		}
		if !ok {
			c.logger.Info("sermon already enqueued", zap.String("sermon_id", sermonID.String()))
			return nil
		}
		if err := c.rdb.LPush(ctx, queueKey, payload).Err(); err != nil {
			// Roll the guard back so a later attempt can enqueue.
			c.rdb.Del(ctx, enqueuedKeyPrefix+sermonID.String())
			return fmt.Errorf("push job: %w", err)
		}
		c.logger.Info("sermon enqueued",
			zap.String("sermon_id", sermonID.String()),
			zap.Int("chunk_total", chunkTotal),
		)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(submit, backoff.WithContext(bo, ctx))
}

// LoadJob fetches the current remote job snapshot, or nil when the queue has
// never seen this sermon.
func (c *Client) LoadJob(ctx context.Context, sermonID uuid.UUID) (*entities.ProcessingJob, error) {
	raw, err := c.rdb.Get(ctx, statusKeyPrefix+sermonID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job snapshot: %w", err)
	}
	var job entities.ProcessingJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job snapshot: %w", err)
	}
	return &job, nil
}

// ProgressStream subscribes to a sermon's progress channel. Updates arrive
// in emission order with a non-decreasing fraction; the returned channel is
// closed after a terminal update or when stop is called. The caller must
// call stop once done to release the server-side subscription.
func (c *Client) ProgressStream(ctx context.Context, sermonID uuid.UUID) (<-chan Update, func(), error) {
	sub := c.rdb.Subscribe(ctx, progressChPrefix+sermonID.String())
	// Force the subscription onto the wire before the caller proceeds, so no
	// updates published after this call are missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe progress stream: %w", err)
	}

	out := make(chan Update, 16)
	stop := func() { sub.Close() }

	go c.pump(ctx, sermonID, sub.Channel(), out)

	return out, stop, nil
}

// pump relays raw pub/sub messages to the consumer, enforcing the stream
// contract: emission order, non-decreasing fraction, close after terminal.
func (c *Client) pump(ctx context.Context, sermonID uuid.UUID, in <-chan *redis.Message, out chan<- Update) {
	defer close(out)
	var last float64
	for msg := range in {
		var u Update
		if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
			c.logger.Warn("dropping malformed progress update",
				zap.String("sermon_id", sermonID.String()),
				zap.Error(err),
			)
			continue
		}
		if u.Fraction < last {
			if !u.Job.IsTerminal() {
				// Out-of-order delivery; drop rather than walk progress back.
				continue
			}
			// A terminal update must reach the consumer no matter what
			// fraction it was published with; clamp instead of dropping.
			u.Fraction = last
		}
		last = u.Fraction
		select {
		case out <- u:
		case <-ctx.Done():
			return
		}
		if u.Job.IsTerminal() {
			return
		}
	}
}
