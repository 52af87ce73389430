package tracker

import (
	"sync"

	"github.com/fera765/flui/pkg/models"
)

const subscriberBuffer = 64

type EventType string

const (
	EventLog    EventType = "log"
	EventStatus EventType = "status"
)

// Event is one message of a run's stream: a log entry, or the status that
// ends the stream.
type Event struct {
	Type   EventType        `json:"type"`
	Log    *models.LogEntry `json:"log,omitempty"`
	Status *Status          `json:"status,omitempty"`
}

// broadcast fans the events of one run out to its subscribers. Log events
// are dropped for subscribers whose buffer is full; the terminal status event
// is always delivered, after which every channel is closed.
type broadcast struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	next        int
	closed      bool
}

func newBroadcast() *broadcast {
	return &broadcast{subscribers: make(map[int]chan Event)}
}

// subscribe registers a channel pre-filled with backlog. It returns false
// when the broadcast already ended.
func (b *broadcast) subscribe(backlog []Event) (<-chan Event, func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, false
	}

	ch := make(chan Event, max(subscriberBuffer, len(backlog)+subscriberBuffer/2))
	for _, event := range backlog {
		ch <- event
	}

	id := b.next
	b.next++
	b.subscribers[id] = ch

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}

	return ch, cancel, true
}

func (b *broadcast) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// finish delivers the terminal event, evicting buffered log events if
// needed, and closes every subscriber.
func (b *broadcast) finish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, ch := range b.subscribers {
		for delivered := false; !delivered; {
			select {
			case ch <- event:
				delivered = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}

		close(ch)
		delete(b.subscribers, id)
	}
}
