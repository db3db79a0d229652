// Package changebus announces collection changes to every open view.
//
// Services publish a topic after each committed mutation; subscribers (SSE
// streams, the field client, tests) re-read the collection they care about.
// Events carry a per-process sequence number and are kept in a bounded log so
// pollers can ask for everything after the last sequence they saw.
package changebus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Topic names a changed collection.
type Topic string

const (
	TopicLots          Topic = "lots.updated"
	TopicStock         Topic = "stock.updated"
	TopicTransfers     Topic = "transfers.updated"
	TopicRequests      Topic = "requests.updated"
	TopicTags          Topic = "tags.updated"
	TopicJobOrders     Topic = "job_orders.updated"
	TopicPayments      Topic = "payments.updated"
	TopicCertificates  Topic = "certificates.updated"
	TopicDelegations   Topic = "delegations.updated"
	TopicOfflineQueue  Topic = "offline_queue.updated"
	TopicNotifications Topic = "notifications.updated"
	// TopicRefresh is the periodic "re-read everything" tick. It is not logged.
	TopicRefresh Topic = "refresh"
)

// Event is one change announcement.
type Event struct {
	Seq      uint64    `json:"seq"`
	Topic    Topic     `json:"topic"`
	EntityID string    `json:"entity_id,omitempty"`
	Action   string    `json:"action,omitempty"`
	At       time.Time `json:"at"`
	// Origin identifies the process that produced the event.
	Origin string `json:"origin"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(topic Topic, entityID, action string)
}

// Subscriber receives events on Events until unsubscribed.
type Subscriber struct {
	ID     string
	Events chan Event
	topics map[Topic]bool
}

func (s *Subscriber) wants(t Topic) bool {
	return len(s.topics) == 0 || s.topics[t] || t == TopicRefresh
}

// Hub fans events out to subscribers without blocking: a subscriber whose
// buffer is full misses the event and catches up through Since.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	seq    uint64
	ring   []Event
	next   int
	full   bool
	origin string
	relay  func(Event)
	now    func() time.Time
}

// NewHub creates a hub that retains the last logSize events.
func NewHub(origin string, logSize int) *Hub {
	if logSize <= 0 {
		logSize = 1024
	}
	return &Hub{
		subs:   make(map[string]*Subscriber),
		ring:   make([]Event, logSize),
		origin: origin,
		now:    time.Now,
	}
}

// Origin returns the id stamped on locally produced events.
func (h *Hub) Origin() string { return h.origin }

// SetRelay installs a hook called for every locally published event, used by
// the cross-process bridge. fn must not block.
func (h *Hub) SetRelay(fn func(Event)) {
	h.mu.Lock()
	h.relay = fn
	h.mu.Unlock()
}

// Publish records and fans out a local event.
func (h *Hub) Publish(topic Topic, entityID, action string) {
	e := h.append(Event{Topic: topic, EntityID: entityID, Action: action, At: h.now(), Origin: h.origin})
	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil && topic != TopicRefresh {
		relay(e)
	}
}

// Deliver injects an event produced by another process. Events from this
// hub's own origin are ignored so a bridge never echoes.
func (h *Hub) Deliver(e Event) {
	if e.Origin == h.origin {
		return
	}
	h.append(e)
}

func (h *Hub) append(e Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.Topic == TopicRefresh {
		e.Seq = h.seq
	} else {
		h.seq++
		e.Seq = h.seq
		h.ring[h.next] = e
		h.next = (h.next + 1) % len(h.ring)
		if h.next == 0 {
			h.full = true
		}
	}
	for _, s := range h.subs {
		if !s.wants(e.Topic) {
			continue
		}
		select {
		case s.Events <- e:
		default:
			log.Debug().Str("subscriber", s.ID).Str("topic", string(e.Topic)).Msg("changebus: buffer full, dropping event")
		}
	}
	return e
}

// Subscribe registers a subscriber. No topics means all topics; the refresh
// tick is always delivered.
func (h *Hub) Subscribe(id string, buffer int, topics ...Topic) *Subscriber {
	if buffer <= 0 {
		buffer = 32
	}
	s := &Subscriber{ID: id, Events: make(chan Event, buffer), topics: make(map[Topic]bool, len(topics))}
	for _, t := range topics {
		s.topics[t] = true
	}
	h.mu.Lock()
	if old, ok := h.subs[id]; ok {
		close(old.Events)
	}
	h.subs[id] = s
	n := len(h.subs)
	h.mu.Unlock()
	log.Debug().Str("subscriber", id).Int("total", n).Msg("changebus: subscribed")
	return s
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		close(s.Events)
		delete(h.subs, id)
	}
}

// Latest returns the highest sequence number issued.
func (h *Hub) Latest() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Since returns retained events with Seq > since, oldest first, optionally
// filtered by topic. reset is true when events after since were already
// evicted from the log and the caller must reload from scratch.
func (h *Hub) Since(since uint64, topic Topic) (events []Event, latest uint64, reset bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	retained := h.retained()
	latest = h.seq
	if len(retained) > 0 && since+1 < retained[0].Seq {
		reset = true
	}
	for _, e := range retained {
		if e.Seq <= since {
			continue
		}
		if topic != "" && e.Topic != topic {
			continue
		}
		events = append(events, e)
	}
	return events, latest, reset
}

// retained returns the ring contents in sequence order. Must be called under lock.
func (h *Hub) retained() []Event {
	if !h.full {
		return h.ring[:h.next]
	}
	out := make([]Event, 0, len(h.ring))
	out = append(out, h.ring[h.next:]...)
	return append(out, h.ring[:h.next]...)
}

// Nop discards every event. Useful for tools that run services without views.
type Nop struct{}

func (Nop) Publish(Topic, string, string) {}
