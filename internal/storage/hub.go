package storage

import "sync"

// hub fans one collection feed out to any number of observers. At most
// one upstream feed is live at a time; it is started by the first
// subscriber and torn down when the last one leaves. Rebinding swaps
// the upstream without disturbing the observer set, which is how a
// project switch moves every board feed to the new project.
type hub[T any] struct {
	mu        sync.Mutex
	nextID    int
	observers map[int]func([]T)
	cancel    func()

	last    []T
	hasLast bool
}

func newHub[T any]() *hub[T] {
	return &hub[T]{observers: make(map[int]func([]T))}
}

// subscribe registers fn and reports whether it is the first observer,
// in which case the caller is expected to bind an upstream. The
// returned function unregisters fn and tears the upstream down when no
// observers remain.
func (h *hub[T]) subscribe(fn func([]T)) (unsubscribe func(), first bool) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	first = len(h.observers) == 1
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.observers, id)
		var cancel func()
		if len(h.observers) == 0 {
			cancel = h.cancel
			h.cancel = nil
		}
		h.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}, first
}

// bind installs the upstream cancel for the currently live feed,
// replacing and tearing down any previous one.
func (h *hub[T]) bind(cancel func()) {
	h.mu.Lock()
	prev := h.cancel
	h.cancel = cancel
	h.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// unbind tears down the upstream feed, keeping observers registered.
func (h *hub[T]) unbind() {
	h.bind(nil)
}

// active reports whether any observer is registered.
func (h *hub[T]) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers) > 0
}

// publish stores items as the latest state and delivers it to every
// observer synchronously.
func (h *hub[T]) publish(items []T) {
	h.mu.Lock()
	h.last = items
	h.hasLast = true
	fns := make([]func([]T), 0, len(h.observers))
	for _, fn := range h.observers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

// clear drops the cached state so the next subscriber reads fresh data
// instead of another project's leftovers.
func (h *hub[T]) clear() {
	h.mu.Lock()
	h.last = nil
	h.hasLast = false
	h.mu.Unlock()
}

// latest returns the most recently published state, if any.
func (h *hub[T]) latest() ([]T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

// signal is a plain observer set for single-value notifications such as
// the active project changing.
type signal[T any] struct {
	mu        sync.Mutex
	nextID    int
	observers map[int]func(T)
}

func newSignal[T any]() *signal[T] {
	return &signal[T]{observers: make(map[int]func(T))}
}

func (s *signal[T]) subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *signal[T]) emit(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}
