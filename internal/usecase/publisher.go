package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Publisher fans task progress events out to stream subscribers. It keeps
// the full ordered history per task so that a subscriber attaching mid-run
// replays everything it missed after its snapshot. The publisher never owns
// task state; the durable record in the store is always authoritative.
type Publisher struct {
	mu      sync.Mutex
	streams map[string]*taskStream
	logger  *zap.Logger
}

type taskStream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []entity.TaskEvent
	closed bool
}

// NewPublisher creates an event publisher.
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{
		streams: make(map[string]*taskStream),
		logger:  logger,
	}
}

func (p *Publisher) stream(taskID string) *taskStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[taskID]
	if !ok {
		s = &taskStream{}
		s.cond = sync.NewCond(&s.mu)
		p.streams[taskID] = s
	}
	return s
}

func (p *Publisher) lookup(taskID string) (*taskStream, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[taskID]
	return s, ok
}

// Publish appends an event to the task's history and wakes subscribers.
// Seq is assigned here, after the corresponding store write has committed,
// so subscribers never observe an event ahead of the durable record.
func (p *Publisher) Publish(ev entity.TaskEvent) {
	s := p.stream(ev.TaskID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		p.logger.Warn("event dropped after terminal",
			zap.String("task_id", ev.TaskID),
			zap.String("kind", string(ev.Kind)))
		return
	}
	ev.Seq = len(s.events) + 1
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.events = append(s.events, ev)
	if ev.Terminal() {
		s.closed = true
	}
	s.cond.Broadcast()
}

// Forget drops a task's stream history. Called when the task is deleted.
func (p *Publisher) Forget(taskID string) {
	p.mu.Lock()
	s, ok := p.streams[taskID]
	delete(p.streams, taskID)
	p.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// Subscribe attaches to a task's event stream. load reads the durable task;
// it runs after the replay cursor is captured, so the snapshot reflects every
// event the subscriber will not be replayed. The returned channel delivers
// a snapshot event first, then the task's events in commit order, and closes
// after exactly one terminal event (or when ctx is cancelled). Subscribing
// to an already-terminal task yields the snapshot and a terminal event.
func (p *Publisher) Subscribe(ctx context.Context, taskID string, load func(context.Context) (*entity.Task, error)) (<-chan entity.TaskEvent, error) {
	// Registering the stream waits until load succeeds so that a subscribe
	// to an unknown task id leaves nothing behind. Events published in the
	// meantime land at or after the zero cursor and are replayed.
	s, ok := p.lookup(taskID)
	cursor := 0
	if ok {
		s.mu.Lock()
		cursor = len(s.events)
		s.mu.Unlock()
	}

	task, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s = p.stream(taskID)
	}

	ch := make(chan entity.TaskEvent, subscriberBuffer)
	go s.deliver(ctx, ch, cursor, task.Clone())
	return ch, nil
}

func (s *taskStream) deliver(ctx context.Context, ch chan<- entity.TaskEvent, cursor int, snapshot *entity.Task) {
	defer close(ch)

	// cond.Wait cannot watch ctx; wake waiters when it fires.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	first := entity.TaskEvent{
		TaskID:   snapshot.ID,
		Seq:      cursor,
		Kind:     entity.EventSnapshot,
		Status:   snapshot.Status,
		Snapshot: snapshot,
		At:       time.Now().UTC(),
	}
	if !send(ctx, ch, first) {
		return
	}

	for {
		s.mu.Lock()
		for cursor >= len(s.events) && !s.closed && !snapshot.Terminal() && ctx.Err() == nil {
			s.cond.Wait()
		}
		pending := append([]entity.TaskEvent(nil), s.events[cursor:]...)
		cursor = len(s.events)
		closed := s.closed
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		for _, ev := range pending {
			if !send(ctx, ch, ev) {
				return
			}
			if ev.Terminal() {
				return
			}
		}

		// The durable status is terminal but no live event recorded it,
		// which happens after a restart. Close with a synthesized one.
		if len(pending) == 0 && snapshot.Terminal() {
			send(ctx, ch, terminalEventFor(snapshot, cursor+1))
			return
		}

		// Closed without a terminal event means the task was deleted.
		if closed {
			return
		}
	}
}

func terminalEventFor(task *entity.Task, seq int) entity.TaskEvent {
	ev := entity.TaskEvent{
		TaskID: task.ID,
		Seq:    seq,
		Kind:   entity.EventCompleted,
		Status: task.Status,
		At:     time.Now().UTC(),
	}
	if task.Status == entity.StatusFailedFinal {
		ev.Kind = entity.EventFailed
		ev.Error = task.Error
	}
	return ev
}

func send(ctx context.Context, ch chan<- entity.TaskEvent, ev entity.TaskEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
