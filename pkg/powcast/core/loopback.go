package core

import (
	"sync"
)

// LoopbackBus is an in-process broker. Every transport joined to the
// bus receives every publish, the publisher included, mirroring how
// a real broker echoes messages back to a subscribed publisher.
// Used for local simulation and by the cluster tests.
type LoopbackBus struct {
	mutex   sync.Mutex
	members []*loopbackTransport
}

func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{}
}

// Join attaches a new transport to the bus.
func (b *LoopbackBus) Join() Transport {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	t := &loopbackTransport{
		bus:      b,
		producer: make(chan Inbound, 1024),
	}
	b.members = append(b.members, t)
	return t
}

func (b *LoopbackBus) broadcast(in Inbound) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, member := range b.members {
		if member.closed {
			continue
		}
		select {
		case member.producer <- in:
		default:
			// A lagging member loses the message, like it would
			// on a saturated broker session.
		}
	}
}

type loopbackTransport struct {
	bus      *LoopbackBus
	producer chan Inbound
	closed   bool
}

// loopbackTransport implements Transport interface.
func (t *loopbackTransport) Publish(topic string, payload []byte) error {
	duplicate := make([]byte, len(payload))
	copy(duplicate, payload)
	t.bus.broadcast(Inbound{Topic: topic, Payload: duplicate})
	return nil
}

// loopbackTransport implements Transport interface.
func (t *loopbackTransport) Listen() <-chan Inbound {
	return t.producer
}

// loopbackTransport implements Transport interface.
func (t *loopbackTransport) Close() {
	t.bus.mutex.Lock()
	defer t.bus.mutex.Unlock()
	t.closed = true
}
