package bot

import (
	"chat-bot/internal/platform"
	"context"
	"sync"
)

// Dispatcher runs message handling concurrently across chats while keeping
// delivery order within each chat. A chat's worker exits once its queue drains.
type Dispatcher struct {
	handle func(context.Context, platform.Message)

	mu     sync.Mutex
	queues map[int64][]platform.Message
	wg     sync.WaitGroup
}

func NewDispatcher(handle func(context.Context, platform.Message)) *Dispatcher {
	return &Dispatcher{
		handle: handle,
		queues: make(map[int64][]platform.Message),
	}
}

// Dispatch queues msg behind earlier messages of the same chat and returns immediately
func (d *Dispatcher) Dispatch(ctx context.Context, msg platform.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue, running := d.queues[msg.ChatID]
	d.queues[msg.ChatID] = append(queue, msg)
	if running {
		return
	}
	d.wg.Add(1)
	go d.drain(ctx, msg.ChatID)
}

func (d *Dispatcher) drain(ctx context.Context, chatID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[chatID]
		if len(queue) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		msg := queue[0]
		d.queues[chatID] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, msg)
	}
}

// Wait blocks until every queued message has been handled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
