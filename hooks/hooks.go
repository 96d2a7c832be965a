// Package hooks provides lifecycle event hooks for the append log. Embedders
// register listeners to observe or veto operations without modifying the
// store itself.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// EventType defines the type of a hook event.
type EventType string

const (
	// EventPreAppend fires before a payload is framed and written. A
	// listener error cancels the append.
	EventPreAppend EventType = "PreAppend"
	// EventPostAppend fires after an append has been published, carrying the
	// record's offset and the final error state.
	EventPostAppend EventType = "PostAppend"
	// EventPostRecovery fires once per Open, after the recovery scan has
	// established the logical length.
	EventPostRecovery EventType = "PostRecovery"
	// EventPostClose fires after the log has released its file handle.
	EventPostClose EventType = "PostClose"
)

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	// Type returns the type of the event.
	Type() EventType
	// Payload returns the data associated with the event.
	Payload() interface{}
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// PreAppendPayload contains the data for a PreAppend event. Data is a
// pointer so listeners can rewrite the payload before it is framed.
type PreAppendPayload struct {
	Data *[]byte
}

// NewPreAppendEvent creates a new event for before a record is appended.
func NewPreAppendEvent(payload PreAppendPayload) HookEvent {
	return &BaseEvent{eventType: EventPreAppend, payload: payload}
}

// PostAppendPayload contains the data for a PostAppend event.
type PostAppendPayload struct {
	Offset    uint64
	FrameSize uint64
	Error     error // The final error state of the Append operation.
}

// NewPostAppendEvent creates a new event for after a record is appended.
func NewPostAppendEvent(payload PostAppendPayload) HookEvent {
	return &BaseEvent{eventType: EventPostAppend, payload: payload}
}

// PostRecoveryPayload contains the data for a PostRecovery event.
type PostRecoveryPayload struct {
	Path           string
	LogicalLength  uint64
	Records        uint64
	TruncatedBytes uint64
}

// NewPostRecoveryEvent creates a new event for after the open-time recovery scan.
func NewPostRecoveryEvent(payload PostRecoveryPayload) HookEvent {
	return &BaseEvent{eventType: EventPostRecovery, payload: payload}
}

// PostClosePayload contains the data for a PostClose event.
type PostClosePayload struct {
	Path  string
	Error error
}

// NewPostCloseEvent creates a new event for after the log is closed.
func NewPostCloseEvent(payload PostClosePayload) HookEvent {
	return &BaseEvent{eventType: EventPostClose, payload: payload}
}

// HookListener defines the interface for components that want to listen to events.
type HookListener interface {
	// OnEvent is called by the HookManager when a registered event is triggered.
	// Returning an error from a "Pre" hook cancels the operation. Errors from
	// "Post" hooks are logged without affecting the main operation.
	OnEvent(ctx context.Context, event HookEvent) error

	// Priority returns the listener's priority. Lower numbers are executed first.
	Priority() int

	// IsAsync indicates if the listener should be called asynchronously for Post-events.
	IsAsync() bool
}

// HookManager defines the interface for managing and triggering hooks.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires all registered listeners for a given event.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for all asynchronous listeners to complete.
	Stop()
}

// listenerWithPriority wraps a listener with its priority.
type listenerWithPriority struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	// The map stores slices of listeners, kept sorted by priority.
	listeners map[EventType][]*listenerWithPriority
	mu        sync.RWMutex
	wg        sync.WaitGroup // For tracking async listeners
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) HookManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]*listenerWithPriority),
		logger:    logger,
	}
}

// Register adds a listener for a specific event type, maintaining priority order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &listenerWithPriority{
		listener: listener,
		priority: listener.Priority(),
	}

	l := m.listeners[eventType]
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].priority >= item.priority
	})
	l = append(l, nil)
	copy(l[idx+1:], l[idx:])
	l[idx] = item

	m.listeners[eventType] = l
}

// Trigger fires all registered listeners for a given event in priority order.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners, ok := m.listeners[event.Type()]
	m.mu.RUnlock()

	if !ok || len(listeners) == 0 {
		return nil
	}

	isPreHook := strings.HasPrefix(string(event.Type()), "Pre")

	for _, item := range listeners {
		isListenerAsync := item.listener.IsAsync()

		// Pre-hooks MUST be synchronous to allow for cancellation.
		if isPreHook || !isListenerAsync {
			if isPreHook && isListenerAsync {
				m.logger.Warn("Listener for Pre-hook requested async execution, but Pre-hooks are always synchronous.", "event", event.Type(), "priority", item.priority)
			}

			if err := item.listener.OnEvent(ctx, event); err != nil {
				if isPreHook {
					return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
				}
				m.logger.Error("Error from synchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
			}
		} else {
			m.wg.Add(1)
			go func(currentItem *listenerWithPriority) {
				defer m.wg.Done()
				if err := currentItem.listener.OnEvent(ctx, event); err != nil {
					m.logger.Error("Error from asynchronous post-hook listener", "event", event.Type(), "priority", currentItem.priority, "error", err)
				}
			}(item)
		}
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}
