package application

import (
	"log"
	"sync"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
)

// Broker fans committed events out to live subscribers. Delivery is best
// effort: a subscriber whose buffer is full misses the event and is expected
// to catch up from the event log.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Event
	next   int
	buffer int
}

func NewBroker(buffer int) *Broker {
	return &Broker{subs: make(map[int]chan domain.Event), buffer: buffer}
}

func (b *Broker) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan domain.Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Broker) Publish(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				log.Printf("event subscriber %d lagging, dropped seq %d (%s)", id, ev.Seq, ev.Kind)
			}
		}
	}
}
