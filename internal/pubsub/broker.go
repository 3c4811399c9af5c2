// Package pubsub fans out the latest value of a topic to subscribers.
package pubsub

import "sync"

// Broker fans out the latest value of a topic to its subscribers.
// Each subscriber holds a one-slot buffer; a newer value replaces an
// undelivered older one, so slow readers always see the latest state.
type Broker[T any] struct {
	mu     sync.Mutex
	nextID int
	topics map[string]map[int]chan T
}

// NewBroker creates an empty Broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{topics: make(map[string]map[int]chan T)}
}

// Subscribe registers a subscriber and returns its id and channel.
func (b *Broker[T]) Subscribe(topic string) (int, <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan T, 1)
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[int]chan T)
		b.topics[topic] = subs
	}
	subs[b.nextID] = ch
	return b.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker[T]) Unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	ch, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	close(ch)
}

// Deliver sends value to one subscriber if it is still registered.
func (b *Broker[T]) Deliver(topic string, id int, value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.topics[topic][id]; ok {
		offer(ch, value)
	}
}

// Publish sends value to every subscriber of topic.
func (b *Broker[T]) Publish(topic string, value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.topics[topic] {
		offer(ch, value)
	}
}

// CloseTopic ends every subscription of a topic.
func (b *Broker[T]) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.topics[topic] {
		close(ch)
		delete(b.topics[topic], id)
	}
	delete(b.topics, topic)
}

// Subscribers counts the subscribers of topic.
func (b *Broker[T]) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- value:
	default:
	}
}
