package orchestrator

import (
	"sync"

	"cryptosignal-engine/internal/signal"
)

// SignalEvent is delivered to asynchronous signal subscribers.
type SignalEvent struct {
	Signal signal.EnrichedSignal
	Symbol string
}

// signalChannelCapacity / updateChannelCapacity are spec §4.K's
// default backlog limits for the two independently-bounded subscriber
// kinds.
const (
	signalChannelCapacity = 64
	updateChannelCapacity = 256
)

// signalBox is a bounded, drop-oldest mailbox for one asynchronous
// signal subscriber. Synchronous subscribers (plain func callbacks)
// bypass this entirely and are invoked inline on the ingestion thread.
type signalBox struct {
	mu   sync.Mutex
	ch   chan SignalEvent
	drop func()
}

func newSignalBox(drop func()) *signalBox {
	return &signalBox{ch: make(chan SignalEvent, signalChannelCapacity), drop: drop}
}

// send applies drop-oldest backpressure: if the channel is full, the
// oldest buffered event is discarded (never the newest) before the new
// one is enqueued, per spec §4.K.
func (b *signalBox) send(ev SignalEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case b.ch <- ev:
		return
	default:
	}
	select {
	case <-b.ch:
		b.drop()
	default:
	}
	select {
	case b.ch <- ev:
	default:
	}
}

type updateBox struct {
	mu   sync.Mutex
	ch   chan struct{}
	drop func()
}

func newUpdateBox(drop func()) *updateBox {
	return &updateBox{ch: make(chan struct{}, updateChannelCapacity), drop: drop}
}

func (b *updateBox) send() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case b.ch <- struct{}{}:
		return
	default:
	}
	select {
	case <-b.ch:
		b.drop()
	default:
	}
	select {
	case b.ch <- struct{}{}:
	default:
	}
}

// SignalListener is a synchronous signal subscriber, invoked inline on
// the ingestion thread (spec §4.J).
type SignalListener func(signal.EnrichedSignal, string)

// UpdateListener is a synchronous update subscriber.
type UpdateListener func()

// subscriberRegistry holds both the synchronous callback lists and the
// asynchronous bounded mailboxes.
type subscriberRegistry struct {
	mu              sync.Mutex
	signalListeners []SignalListener
	updateListeners []UpdateListener
	signalBoxes     []*signalBox
	updateBoxes     []*updateBox
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{}
}

func (r *subscriberRegistry) SubscribeSignal(l SignalListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signalListeners = append(r.signalListeners, l)
}

func (r *subscriberRegistry) SubscribeUpdate(l UpdateListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateListeners = append(r.updateListeners, l)
}

// SubscribeSignalAsync registers a bounded-channel signal subscriber
// and returns the receive-only channel to read from.
func (r *subscriberRegistry) SubscribeSignalAsync(onDrop func()) <-chan SignalEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := newSignalBox(onDrop)
	r.signalBoxes = append(r.signalBoxes, b)
	return b.ch
}

// SubscribeUpdateAsync registers a bounded-channel update subscriber.
func (r *subscriberRegistry) SubscribeUpdateAsync(onDrop func()) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := newUpdateBox(onDrop)
	r.updateBoxes = append(r.updateBoxes, b)
	return b.ch
}

func (r *subscriberRegistry) publishSignal(sig signal.EnrichedSignal, symbol string) {
	r.mu.Lock()
	listeners := append([]SignalListener(nil), r.signalListeners...)
	boxes := append([]*signalBox(nil), r.signalBoxes...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(sig, symbol)
	}
	ev := SignalEvent{Signal: sig, Symbol: symbol}
	for _, b := range boxes {
		b.send(ev)
	}
}

func (r *subscriberRegistry) publishUpdate() {
	r.mu.Lock()
	listeners := append([]UpdateListener(nil), r.updateListeners...)
	boxes := append([]*updateBox(nil), r.updateBoxes...)
	r.mu.Unlock()

	for _, l := range listeners {
		l()
	}
	for _, b := range boxes {
		b.send()
	}
}
