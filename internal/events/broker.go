// pattern: Imperative Shell

package events

import "sync"

// Broker fans values out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the value.
type Broker[T any] struct {
	mu          sync.Mutex
	buffer      int
	subscribers map[<-chan T]chan T
	closed      bool
}

// NewBroker creates a broker whose subscriber channels buffer up to buffer values.
func NewBroker[T any](buffer int) *Broker[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker[T]{
		buffer:      buffer,
		subscribers: make(map[<-chan T]chan T),
	}
}

// Subscribe returns a channel receiving every value published from now on.
// The caller must call Unsubscribe when done. On a closed broker the
// returned channel is already closed.
func (b *Broker[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broker[T]) Unsubscribe(ch <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if send, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(send)
	}
}

// Publish delivers v to every subscriber with room in its buffer and
// returns how many subscribers missed it.
func (b *Broker[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribers returns the current subscriber count.
func (b *Broker[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later Publish calls are no-ops.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, ch := range b.subscribers {
		delete(b.subscribers, key)
		close(ch)
	}
}

// Bus is the broker for client-facing event envelopes.
type Bus struct {
	*Broker[Envelope]
}

// NewBus creates a Bus.
func NewBus(buffer int) *Bus {
	return &Bus{Broker: NewBroker[Envelope](buffer)}
}

// Emit implements Emitter.
func (b *Bus) Emit(e Envelope) {
	b.Publish(e)
}
