// Package event provides a broadcast bus for download lifecycle events.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

type Event interface {
	Clone() Event
}

type CancelFunc func()

type PubSub struct {
	publisher       chan Event
	publisherClosed bool
	publisherLock   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	subscriber     map[string]chan Event
	subscriberLock sync.Mutex
}

func NewPubSub() *PubSub {
	p := &PubSub{
		publisher:  make(chan Event, 1024),
		subscriber: make(map[string]chan Event),
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	go p.broadcast()

	return p
}

func (p *PubSub) Publish(e Event) error {
	event := e.Clone()

	p.publisherLock.Lock()
	defer p.publisherLock.Unlock()

	if p.publisherClosed {
		return fmt.Errorf("pubsub is closed")
	}

	select {
	case p.publisher <- event:
	default:
		return fmt.Errorf("publisher queue full")
	}

	return nil
}

// Subscribe returns a channel of future events and a function to unsubscribe.
// A slow subscriber misses events instead of blocking the bus.
func (p *PubSub) Subscribe() (<-chan Event, CancelFunc) {
	c := make(chan Event, 1024)

	var id string

	p.subscriberLock.Lock()
	for {
		id = shortuuid.New()
		if _, ok := p.subscriber[id]; !ok {
			p.subscriber[id] = c
			break
		}
	}
	p.subscriberLock.Unlock()

	unsubscribe := func() {
		p.subscriberLock.Lock()
		delete(p.subscriber, id)
		p.subscriberLock.Unlock()
	}

	return c, unsubscribe
}

func (p *PubSub) Close() {
	p.cancel()

	p.publisherLock.Lock()
	if !p.publisherClosed {
		close(p.publisher)
		p.publisherClosed = true
	}
	p.publisherLock.Unlock()

	p.subscriberLock.Lock()
	for _, c := range p.subscriber {
		close(c)
	}
	p.subscriber = make(map[string]chan Event)
	p.subscriberLock.Unlock()
}

func (p *PubSub) broadcast() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case e, ok := <-p.publisher:
			if !ok {
				return
			}

			p.subscriberLock.Lock()
			for _, c := range p.subscriber {
				select {
				case c <- e.Clone():
				default:
				}
			}
			p.subscriberLock.Unlock()
		}
	}
}
