// Package events delivers progress, completion and connectivity events
// asynchronously to the presentation layer. Delivery is in-order for events
// belonging to the same request (each request publishes from a single
// worker); no ordering is guaranteed across unrelated requests.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/vfs"
)

// EventType defines the types of events that can be emitted.
type EventType string

const (
	EventProgress     EventType = "progress"     // per-chunk transfer progress
	EventItem         EventType = "item"         // per-item terminal outcome
	EventResult       EventType = "result"       // request finalized
	EventConnectivity EventType = "connectivity" // connection state transition
	EventPrompt       EventType = "prompt"       // collision decision request
)

// defaultBuffer is the per-subscriber channel capacity.
const defaultBuffer = 1000

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ProgressEvent reports chunk-level transfer progress for one item. Batch
// totals are included so a consumer can render both per-file and overall
// progress.
type ProgressEvent struct {
	BaseEvent
	RequestID  string
	ItemPath   string // source path of the item being transferred
	BytesSoFar int64  // bytes written for this item
	BytesTotal int64  // size of this item
	BatchSoFar int64  // bytes written across the whole request
	BatchTotal int64  // total bytes the request will move
}

// ItemEvent reports the terminal outcome of one batch item before the
// request finalizes.
type ItemEvent struct {
	BaseEvent
	RequestID string
	Outcome   models.ItemOutcome
}

// ResultEvent carries the single terminal result of a request.
type ResultEvent struct {
	BaseEvent
	Result *models.OperationResult
}

// ConnectivityEvent reports a connection state transition on a provider
// handle.
type ConnectivityEvent struct {
	BaseEvent
	Handle   vfs.Handle
	OldState string
	NewState string
	Err      error // cause of a degradation or disconnect, if any
}

// PromptAction is the presentation layer's answer to a collision prompt.
type PromptAction int

const (
	// PromptSkip declines the item; it is recorded as Skipped.
	PromptSkip PromptAction = iota
	// PromptReplace overwrites the existing destination.
	PromptReplace
	// PromptRename writes under a suffixed name.
	PromptRename
)

// PromptDecision answers one PromptEvent. ApplyToAll makes the decision
// stick for every remaining collision in the same request.
type PromptDecision struct {
	Action     PromptAction
	ApplyToAll bool
}

// PromptEvent asks the presentation layer how to resolve a name collision.
// Exactly one decision must be sent on Reply; the requesting item blocks
// until then while its sibling items continue.
type PromptEvent struct {
	BaseEvent
	RequestID string
	ItemPath  string    // source path of the colliding item
	Existing  vfs.Entry // destination entry that is in the way
	Reply     chan<- PromptDecision
}

// EventBus manages event subscriptions and publishing.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with the given per-subscriber buffer
// size; zero or negative selects the default.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = defaultBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Publishing never blocks a
// worker: a subscriber whose buffer is full loses the event, which is
// tracked in the dropped counter.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// HasSubscribers reports whether anyone is listening for the event type.
func (eb *EventBus) HasSubscribers(eventType EventType) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[eventType]) > 0 || len(eb.all) > 0
}

// RequestDecision publishes a collision prompt and blocks until the
// presentation layer answers or ctx is done. When nobody is subscribed to
// prompts the item is declined immediately (skip), so a headless caller
// never hangs. Catch-all subscribers do not count; only an explicit prompt
// subscriber is expected to reply.
func (eb *EventBus) RequestDecision(ctx context.Context, requestID, itemPath string, existing vfs.Entry) (PromptDecision, error) {
	eb.mu.RLock()
	answerable := len(eb.subscribers[EventPrompt]) > 0
	eb.mu.RUnlock()
	if !answerable {
		return PromptDecision{Action: PromptSkip}, nil
	}

	reply := make(chan PromptDecision, 1)
	eb.Publish(&PromptEvent{
		BaseEvent: BaseEvent{EventType: EventPrompt, Time: time.Now()},
		RequestID: requestID,
		ItemPath:  itemPath,
		Existing:  existing,
		Reply:     reply,
	})

	select {
	case d := <-reply:
		return d, nil
	case <-ctx.Done():
		return PromptDecision{}, ctx.Err()
	}
}

// Close shuts down the event bus and closes all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe removes a subscription channel from a specific event type.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// PublishConnectivity is a convenience method for state transition events.
func (eb *EventBus) PublishConnectivity(handle vfs.Handle, oldState, newState string, err error) {
	eb.Publish(&ConnectivityEvent{
		BaseEvent: BaseEvent{EventType: EventConnectivity, Time: time.Now()},
		Handle:    handle,
		OldState:  oldState,
		NewState:  newState,
		Err:       err,
	})
}

// DroppedEvents returns the number of events lost to full subscriber
// buffers.
func (eb *EventBus) DroppedEvents() int64 {
	return eb.droppedEvents.Load()
}
