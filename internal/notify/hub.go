// Package notify carries operator-facing fleet signals that the core does
// not act on itself: missing passwords, reset requests, authentication
// outcomes, and onboarding results. Subscribers that stop draining are
// dropped rather than allowed to block event dispatch.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindDeviceOnboarded Kind = "device.onboarded"
	KindPasswordMissing Kind = "device.password_missing"
	KindResetRequired   Kind = "device.reset_required"
	KindAuthResult      Kind = "device.auth_result"
	KindTransmitterErr  Kind = "transmitter.error"
)

type Notification struct {
	Seq       int64
	Kind      Kind
	Payload   any
	Timestamp time.Time
}

// Hub is a bounded-history publish/subscribe fan-out. A nil Hub discards
// publishes, so the fleet core can run without one.
type Hub struct {
	mu      sync.Mutex
	nextSeq int64
	limit   int
	history []Notification
	subs    map[int]chan Notification
	nextSub int
}

func NewHub(historyLimit int) *Hub {
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Hub{
		limit: historyLimit,
		subs:  make(map[int]chan Notification),
	}
}

func (h *Hub) Publish(kind Kind, payload any) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	n := Notification{
		Seq:       h.nextSeq,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	h.history = append(h.history, n)
	if len(h.history) > h.limit {
		h.history = append([]Notification(nil), h.history[len(h.history)-h.limit:]...)
	}

	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Subscribe returns buffered history from fromSeq onward, a live channel,
// and a cancel func. The channel is closed if the subscriber falls behind.
func (h *Hub) Subscribe(fromSeq int64) ([]Notification, <-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var backlog []Notification
	for _, n := range h.history {
		if n.Seq > fromSeq {
			backlog = append(backlog, n)
		}
	}

	ch := make(chan Notification, 64)
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return backlog, ch, cancel
}
