package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/usecase"
	"go.uber.org/zap"
)

func collectEvents(t *testing.T, ch <-chan entity.TaskEvent, want int) []entity.TaskEvent {
	t.Helper()
	var events []entity.TaskEvent
	deadline := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d of %d", len(events), want)
		}
	}
	return events
}

func loadTask(task *entity.Task) func(context.Context) (*entity.Task, error) {
	return func(context.Context) (*entity.Task, error) { return task.Clone(), nil }
}

func TestSubscribeDeliversInCommitOrder(t *testing.T) {
	publisher := usecase.NewPublisher(zap.NewNop())
	task := entity.NewTask(entity.ResearchRequest{Query: "q"})
	task.Status = entity.StatusRunning

	ch, err := publisher.Subscribe(context.Background(), task.ID, loadTask(task))
	require.NoError(t, err)

	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventStatus, Status: entity.StatusWriting})
	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventNotes, Notes: []string{"n1"}})
	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventCompleted, Status: entity.StatusCompleted})

	events := collectEvents(t, ch, 4)
	require.Len(t, events, 4)

	assert.Equal(t, entity.EventSnapshot, events[0].Kind)
	require.NotNil(t, events[0].Snapshot)
	assert.Equal(t, entity.StatusRunning, events[0].Snapshot.Status)

	assert.Equal(t, entity.EventStatus, events[1].Kind)
	assert.Equal(t, entity.EventNotes, events[2].Kind)
	assert.Equal(t, entity.EventCompleted, events[3].Kind)

	for i := 2; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq, "seq must be strictly increasing")
	}

	_, open := <-ch
	assert.False(t, open, "channel must close after the terminal event")
}

func TestSubscribersSeeIdenticalOrder(t *testing.T) {
	publisher := usecase.NewPublisher(zap.NewNop())
	task := entity.NewTask(entity.ResearchRequest{Query: "q"})
	task.Status = entity.StatusRunning

	first, err := publisher.Subscribe(context.Background(), task.ID, loadTask(task))
	require.NoError(t, err)
	second, err := publisher.Subscribe(context.Background(), task.ID, loadTask(task))
	require.NoError(t, err)

	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventNotes, Notes: []string{"a"}})
	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventNotes, Notes: []string{"b"}})
	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventCompleted, Status: entity.StatusCompleted})

	firstEvents := collectEvents(t, first, 4)
	secondEvents := collectEvents(t, second, 4)

	require.Equal(t, len(firstEvents), len(secondEvents))
	for i := range firstEvents {
		assert.Equal(t, firstEvents[i].Kind, secondEvents[i].Kind)
		assert.Equal(t, firstEvents[i].Seq, secondEvents[i].Seq)
	}
}

func TestSubscribeToTerminalTaskWithoutHistory(t *testing.T) {
	// After a restart the publisher has no history for stored tasks; the
	// stream must still end with a terminal event.
	publisher := usecase.NewPublisher(zap.NewNop())

	task := entity.NewTask(entity.ResearchRequest{Query: "q"})
	task.Status = entity.StatusFailedFinal
	task.Error = &entity.TaskError{Kind: "RESEARCH", Message: "boom"}

	ch, err := publisher.Subscribe(context.Background(), task.ID, loadTask(task))
	require.NoError(t, err)

	events := collectEvents(t, ch, 2)
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventSnapshot, events[0].Kind)
	assert.Equal(t, entity.EventFailed, events[1].Kind)
	require.NotNil(t, events[1].Error)
	assert.Equal(t, "RESEARCH", events[1].Error.Kind)

	_, open := <-ch
	assert.False(t, open)
}

func TestEventsAfterTerminalAreDropped(t *testing.T) {
	publisher := usecase.NewPublisher(zap.NewNop())
	task := entity.NewTask(entity.ResearchRequest{Query: "q"})
	task.Status = entity.StatusRunning

	ch, err := publisher.Subscribe(context.Background(), task.ID, loadTask(task))
	require.NoError(t, err)

	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventCompleted, Status: entity.StatusCompleted})
	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventNotes, Notes: []string{"late"}})
	publisher.Publish(entity.TaskEvent{TaskID: task.ID, Kind: entity.EventCompleted, Status: entity.StatusCompleted})

	events := collectEvents(t, ch, 2)
	require.Len(t, events, 2)

	terminal := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestSubscribeCancellation(t *testing.T) {
	publisher := usecase.NewPublisher(zap.NewNop())
	task := entity.NewTask(entity.ResearchRequest{Query: "q"})
	task.Status = entity.StatusRunning

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := publisher.Subscribe(ctx, task.ID, loadTask(task))
	require.NoError(t, err)

	// Drain the snapshot, then drop the subscription.
	<-ch
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "channel must close after cancellation")
}

func TestForgetEndsStreams(t *testing.T) {
	publisher := usecase.NewPublisher(zap.NewNop())
	task := entity.NewTask(entity.ResearchRequest{Query: "q"})
	task.Status = entity.StatusRunning

	ch, err := publisher.Subscribe(context.Background(), task.ID, loadTask(task))
	require.NoError(t, err)
	<-ch // snapshot

	publisher.Forget(task.ID)

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
