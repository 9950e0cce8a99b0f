package storage

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// modeController tracks whether the session operates against the remote
// backend. A session starts in whichever mode the caller dialed into
// and can only move from online to offline; the way back is wiring up a
// fresh remote connection, not flipping the flag.
type modeController struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	observers map[int]func(bool)
	log       zerolog.Logger
}

func newModeController(online bool, log zerolog.Logger) *modeController {
	return &modeController{
		online:    online,
		observers: make(map[int]func(bool)),
		log:       log,
	}
}

func (m *modeController) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// demote switches to offline operation. Repeated demotions are no-ops;
// observers hear about the first one only. Notification is synchronous
// so that callers observe the new mode before their next operation.
func (m *modeController) demote(reason error) {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	m.online = false
	fns := m.observerList()
	m.mu.Unlock()

	m.log.Warn().Err(reason).Msg("remote backend unusable, continuing offline")
	for _, fn := range fns {
		fn(false)
	}
}

// promote re-arms online operation after a new remote connection has
// been installed.
func (m *modeController) promote() {
	m.mu.Lock()
	if m.online {
		m.mu.Unlock()
		return
	}
	m.online = true
	fns := m.observerList()
	m.mu.Unlock()

	m.log.Info().Msg("remote backend connected")
	for _, fn := range fns {
		fn(true)
	}
}

// subscribe registers fn and immediately reports the current mode. The
// returned function unregisters it.
func (m *modeController) subscribe(fn func(bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	online := m.online
	m.mu.Unlock()

	fn(online)
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// observerList snapshots observers in registration order under mu.
func (m *modeController) observerList() []func(bool) {
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.observers[id])
	}
	return fns
}
