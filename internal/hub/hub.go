// Package hub fans command lifecycle events out to connected internal
// observers. Subscribers attach to a topic; dead connections are dropped
// on the first failed write.
package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Subscriber struct {
	Topic  string
	Writer Writer
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
}

func New() *Hub {
	return &Hub{subscribers: make(map[string]map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[sub.Topic] == nil {
		h.subscribers[sub.Topic] = make(map[*Subscriber]struct{})
	}
	h.subscribers[sub.Topic][sub] = struct{}{}
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subscribers[sub.Topic]
	if set == nil {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, sub.Topic)
	}
}

func (h *Hub) Publish(topic string, message []byte) {
	h.mu.RLock()
	set := h.subscribers[topic]
	subs := make([]*Subscriber, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	var failed []*Subscriber
	for _, s := range subs {
		if err := s.Writer.Write(message); err != nil {
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		_ = s.Writer.Close()
		h.Unsubscribe(s)
	}
}
