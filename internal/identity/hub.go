package identity

import (
	"sync"

	"github.com/terraconstructs/classgrid/internal/session"
)

// hub fans provider events out to subscribers. The subscribe-time event is
// delivered synchronously. After that each subscriber has its own queue and
// goroutine, so events reach it one at a time in emission order and a slow
// subscriber never blocks the provider.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	fn   func(session.Event)
	wake chan struct{}
	stop chan struct{}
	once sync.Once

	mu    sync.Mutex
	queue []session.Event
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

// subscribe hands initial to fn before returning and then registers fn for
// later events. Callers hold their provider lock, so no event emitted after
// initial can reach fn ahead of it.
func (h *hub) subscribe(fn func(session.Event), initial session.Event) func() {
	fn(initial)

	s := &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.run()

	return func() {
		h.mu.Lock()
		delete(h.subs, s)
		h.mu.Unlock()
		s.once.Do(func() { close(s.stop) })
	}
}

// emit queues ev for every current subscriber. Callers that derive ev from
// provider state should hold their own lock across the state change and
// emit, so that subscribers observe changes in order.
func (h *hub) emit(ev session.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		s.push(ev)
	}
}

func (s *subscriber) push(ev session.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (session.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	ev := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return ev, true
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			select {
			case <-s.stop:
				return
			default:
			}
			s.fn(ev)
		}
	}
}
