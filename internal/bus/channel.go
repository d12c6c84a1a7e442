package bus

import "sync"

// Message is one published item, carried on a ChannelPublisher
// subscriber channel.
type Message struct {
	Topic   string
	Payload any
}

// ChannelPublisher fans out every published message to all currently
// subscribed channels, dropping the message for any subscriber whose
// channel is full rather than blocking the publisher.
type ChannelPublisher struct {
	mu          sync.Mutex
	subscribers map[chan Message]struct{}
}

// NewChannelPublisher constructs an empty ChannelPublisher.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{subscribers: make(map[chan Message]struct{})}
}

// Subscribe registers a new channel of the given buffer size and
// returns it. Call Unsubscribe when the consumer goes away.
func (p *ChannelPublisher) Subscribe(buffer int) chan Message {
	ch := make(chan Message, buffer)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (p *ChannelPublisher) Unsubscribe(ch chan Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[ch]; ok {
		delete(p.subscribers, ch)
		close(ch)
	}
}

// Publish fans payload out to every subscriber, non-blocking.
func (p *ChannelPublisher) Publish(topic string, payload any) error {
	msg := Message{Topic: topic, Payload: payload}

	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}
