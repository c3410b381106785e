package engine

import (
	"context"
	"log/slog"
	"sync"
)

// NotificationKind distinguishes host notifications.
type NotificationKind int

const (
	// NotifyAppSwitched: the foreground application changed.
	NotifyAppSwitched NotificationKind = iota + 1
	// NotifyTabChanged: the active browser tab's URL changed.
	NotifyTabChanged
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyAppSwitched:
		return "app_switched"
	case NotifyTabChanged:
		return "tab_changed"
	default:
		return "unknown"
	}
}

// Notification is one queued host notification.
type Notification struct {
	Kind NotificationKind

	// Update, when set, runs on the loop goroutine before handlers are
	// called. Hosts use it to apply provider state (new foreground app, new
	// tab URL) in the same order as the notifications themselves.
	Update func()
}

// notificationQueue is a thread-safe FIFO queue for notifications.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type notificationQueue struct {
	mu     sync.Mutex
	items  []Notification
	closed bool
	signal chan struct{} // buffered, size 1
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{
		items:  make([]Notification, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds n to the back of the queue.
// Returns false if the queue is closed.
func (q *notificationQueue) Enqueue(n Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, n)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front notification without blocking.
func (q *notificationQueue) TryDequeue() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Notification{}, false
	}

	n := q.items[0]
	// Release the Update closure for GC.
	q.items[0] = Notification{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return n, true
}

// Wait returns a channel that signals when notifications may be available.
func (q *notificationQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *notificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close signals that no more notifications will be enqueued.
func (q *notificationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Loop is a single-writer notification loop implementing Host.
//
// Thread-safety model:
//   - Post(), AppSwitched(), TabChanged(), Stop(): safe from any goroutine
//   - Run() and Drain(): must be called from the control goroutine
//   - Subscribe(): safe from any goroutine
//
// All handler calls happen on the goroutine running Run or Drain, so the
// engine behind a handler never sees concurrent calls.
type Loop struct {
	queue  *notificationQueue
	logger *slog.Logger

	mu       sync.Mutex
	handlers []subscription
	nextID   int
}

type subscription struct {
	id      int
	handler NotificationHandler
}

// NewLoop creates an empty loop. A nil logger uses slog.Default().
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  newNotificationQueue(),
		logger: logger,
	}
}

// Subscribe registers h. Handlers are called in subscription order.
func (l *Loop) Subscribe(h NotificationHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.handlers = append(l.handlers, subscription{id: id, handler: h})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.handlers {
			if s.id == id {
				l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
				return
			}
		}
	}
}

// Post queues n. Returns false if the loop has been stopped.
func (l *Loop) Post(n Notification) bool {
	return l.queue.Enqueue(n)
}

// AppSwitched queues an app-switch notification. update may be nil.
func (l *Loop) AppSwitched(update func()) bool {
	return l.Post(Notification{Kind: NotifyAppSwitched, Update: update})
}

// TabChanged queues a tab-change notification. update may be nil.
func (l *Loop) TabChanged(update func()) bool {
	return l.Post(Notification{Kind: NotifyTabChanged, Update: update})
}

// Pending returns the number of queued notifications.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// Run dispatches notifications until ctx is cancelled or Stop is called.
// Notifications queued before Stop are still dispatched.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")

	for {
		if n, ok := l.queue.TryDequeue(); ok {
			l.dispatch(ctx, n)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// case fires immediately once stopped.
			if l.queue.Len() == 0 && l.stopped() {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain dispatches every queued notification and returns how many ran.
// Used by one-shot commands and tests that do not run the loop.
func (l *Loop) Drain(ctx context.Context) int {
	count := 0
	for {
		n, ok := l.queue.TryDequeue()
		if !ok {
			return count
		}
		l.dispatch(ctx, n)
		count++
	}
}

// Stop closes the queue. Run returns once queued notifications are drained.
func (l *Loop) Stop() {
	l.queue.Close()
}

func (l *Loop) stopped() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}

func (l *Loop) dispatch(ctx context.Context, n Notification) {
	if n.Update != nil {
		n.Update()
	}

	l.mu.Lock()
	handlers := make([]NotificationHandler, len(l.handlers))
	for i, s := range l.handlers {
		handlers[i] = s.handler
	}
	l.mu.Unlock()

	l.logger.Debug("notification", "kind", n.Kind.String(), "handlers", len(handlers))

	for _, h := range handlers {
		switch n.Kind {
		case NotifyAppSwitched:
			h.HandleAppSwitched(ctx)
		case NotifyTabChanged:
			h.HandleTabChanged(ctx)
		default:
			l.logger.Warn("unknown notification kind", "kind", int(n.Kind))
		}
	}
}
