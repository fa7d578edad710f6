// Package progress carries human-readable progress lines for one request to
// the caller and to any observer subscribed under the same session id.
package progress

import (
	"sync"
	"time"
)

const subscriberBuffer = 64

type Event struct {
	SessionId string    `json:"sessionId"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

type Publisher interface {
	Publish(ev Event)
}

func NewHub() *Hub {
	return &Hub{
		subs: map[string]map[int]chan Event{},
	}
}

// Hub fans events out to the subscribers attached to a session at the
// moment the event is published. Nothing is buffered for late joiners.
type Hub struct {
	mu     sync.Mutex
	nextId int
	subs   map[string]map[int]chan Event
}

// Subscribe attaches to sessionId. cancel must be called to detach; it
// closes the channel.
func (h *Hub) Subscribe(sessionId string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextId
	h.nextId++
	ch := make(chan Event, subscriberBuffer)
	if h.subs[sessionId] == nil {
		h.subs[sessionId] = map[int]chan Event{}
	}
	h.subs[sessionId][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionId]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(h.subs, sessionId)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[ev.SessionId] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribers(sessionId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionId])
}

// Log is the append-only transcript of one request.
type Log struct {
	mu        sync.Mutex
	sessionId string
	lines     []string
	publisher Publisher
}

// NewLog returns a transcript for sessionId. publisher may be nil.
func NewLog(sessionId string, publisher Publisher) *Log {
	return &Log{sessionId: sessionId, publisher: publisher}
}

func (l *Log) SessionId() string {
	return l.sessionId
}

func (l *Log) Add(message string) {
	l.mu.Lock()
	l.lines = append(l.lines, message)
	l.mu.Unlock()

	if l.publisher != nil && l.sessionId != "" {
		l.publisher.Publish(Event{SessionId: l.sessionId, Message: message, Time: time.Now()})
	}
}

func (l *Log) Warn(message string) {
	l.Add("Warning: " + message)
}

// Lines returns a copy of the transcript so far.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.lines...)
}
