package jobqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

func publish(t *testing.T, in chan *redis.Message, u Update) {
	t.Helper()
	payload, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	in <- &redis.Message{Payload: string(payload)}
}

func collect(t *testing.T, out <-chan Update) []Update {
	t.Helper()
	var got []Update
	for {
		select {
		case u, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, u)
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not close")
		}
	}
}

func runningJob(id uuid.UUID) entities.ProcessingJob {
	return entities.ProcessingJob{
		SermonID:            id,
		TranscriptionStatus: entities.StageRunning,
		StudyGuideStatus:    entities.StagePending,
	}
}

func TestPumpDeliversInOrderAndStopsAtTerminal(t *testing.T) {
	c := NewClient(zap.NewNop(), nil)
	id := uuid.New()
	in := make(chan *redis.Message, 8)
	out := make(chan Update, 8)

	go c.pump(context.Background(), id, in, out)

	publish(t, in, Update{Job: runningJob(id), Fraction: 0.10})
	publish(t, in, Update{Job: runningJob(id), Fraction: 0.45})
	terminal := entities.ProcessingJob{
		SermonID:            id,
		TranscriptionStatus: entities.StageSucceeded,
		StudyGuideStatus:    entities.StageSucceeded,
		Complete:            true,
	}
	publish(t, in, Update{Job: terminal, Fraction: 1.0})
	// Anything after the terminal update must never reach the consumer.
	publish(t, in, Update{Job: terminal, Fraction: 1.0})
	close(in)

	got := collect(t, out)
	if len(got) != 3 {
		t.Fatalf("got %d updates, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Fraction < got[i-1].Fraction {
			t.Fatalf("fractions regressed: %v then %v", got[i-1].Fraction, got[i].Fraction)
		}
	}
	if !got[2].Job.IsTerminal() {
		t.Fatal("last update should be terminal")
	}
}

func TestPumpDropsRegressionsAndGarbage(t *testing.T) {
	c := NewClient(zap.NewNop(), nil)
	id := uuid.New()
	in := make(chan *redis.Message, 8)
	out := make(chan Update, 8)

	go c.pump(context.Background(), id, in, out)

	publish(t, in, Update{Job: runningJob(id), Fraction: 0.50})
	in <- &redis.Message{Payload: "not json"}
	publish(t, in, Update{Job: runningJob(id), Fraction: 0.30}) // regression, dropped
	publish(t, in, Update{Job: runningJob(id), Fraction: 0.60})
	close(in)

	got := collect(t, out)
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if got[0].Fraction != 0.50 || got[1].Fraction != 0.60 {
		t.Fatalf("unexpected fractions: %v", got)
	}
}

func TestPumpStopsWhenConsumerGone(t *testing.T) {
	c := NewClient(zap.NewNop(), nil)
	id := uuid.New()
	in := make(chan *redis.Message)
	out := make(chan Update) // unbuffered and never read

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.pump(ctx, id, in, out)
		close(done)
	}()

	payload, _ := json.Marshal(Update{Job: runningJob(id), Fraction: 0.2})
	in <- &redis.Message{Payload: string(payload)}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump leaked after consumer cancellation")
	}
}

func TestPumpDeliversRegressedTerminalUpdate(t *testing.T) {
	// A stage failure can be published with a lower fraction than the last
	// progress message; it must still reach the consumer (clamped) instead
	// of stalling the cycle into its timeout.
	c := NewClient(zap.NewNop(), nil)
	id := uuid.New()
	in := make(chan *redis.Message, 8)
	out := make(chan Update, 8)

	go c.pump(context.Background(), id, in, out)

	publish(t, in, Update{Job: runningJob(id), Fraction: 0.60})
	failed := entities.ProcessingJob{
		SermonID:            id,
		TranscriptionStatus: entities.StageFailed,
		StudyGuideStatus:    entities.StagePending,
		TranscriptionError:  "worker crashed",
	}
	publish(t, in, Update{Job: failed, Fraction: 0.25})
	close(in)

	got := collect(t, out)
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if !got[1].Job.IsTerminal() {
		t.Fatal("terminal update was dropped")
	}
	if got[1].Fraction != 0.60 {
		t.Fatalf("terminal fraction = %v, want clamped to 0.60", got[1].Fraction)
	}
}
