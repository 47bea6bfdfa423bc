package router

import (
	"sync"

	"github.com/nerrad567/paramsync/internal/parameter"
)

// EventKind identifies what changed.
type EventKind int

// Event kinds.
const (
	EventStructureReplaced EventKind = iota + 1
	EventValueChanged
	EventColorChanged
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventStructureReplaced:
		return "structure_replaced"
	case EventValueChanged:
		return "value_changed"
	case EventColorChanged:
		return "color_changed"
	default:
		return "unknown"
	}
}

// Source identifies where a change came from.
type Source string

// Change sources.
const (
	SourcePeer   Source = "peer"
	SourceDevice Source = "device"
	SourceLocal  Source = "local"
)

// Event describes one registry change. Parameter is the state after the
// change; it is zero for EventStructureReplaced, where Count holds the new
// parameter count.
type Event struct {
	Kind      EventKind
	Source    Source
	Parameter parameter.Parameter
	Count     int
}

// fanout delivers events to subscribers without blocking the sender.
type fanout struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	dropped uint64
}

func (f *fanout) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[chan Event]struct{})
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (f *fanout) emit(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.dropped++
		}
	}
}

func (f *fanout) droppedCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
