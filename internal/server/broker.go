package server

import "sync"

// Broker fans every published message out to the current subscribers.
// Slow subscribers miss messages rather than blocking the publisher.
type Broker struct {
	stopCh    chan struct{}
	stopOnce  sync.Once
	publishCh chan interface{}
	subCh     chan chan interface{}
	unsubCh   chan chan interface{}
}

func newBroker() *Broker {
	return &Broker{
		stopCh:    make(chan struct{}),
		publishCh: make(chan interface{}, 1),
		subCh:     make(chan chan interface{}, 1),
		unsubCh:   make(chan chan interface{}, 1),
	}
}

func (b *Broker) Start() {
	subs := map[chan interface{}]struct{}{}
	for {
		select {
		case <-b.stopCh:
			return
		case msgCh := <-b.subCh:
			subs[msgCh] = struct{}{}
		case msgCh := <-b.unsubCh:
			delete(subs, msgCh)
		case msg := <-b.publishCh:
			for msgCh := range subs {
				select {
				case msgCh <- msg:
				default:
				}
			}
		}
	}
}

func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *Broker) Subscribe() chan interface{} {
	msgCh := make(chan interface{}, 1)
	select {
	case b.subCh <- msgCh:
	case <-b.stopCh:
	}
	return msgCh
}

func (b *Broker) Unsubscribe(msgCh chan interface{}) {
	select {
	case b.unsubCh <- msgCh:
	case <-b.stopCh:
	}
}

func (b *Broker) Publish(msg interface{}) {
	select {
	case b.publishCh <- msg:
	case <-b.stopCh:
	}
}
