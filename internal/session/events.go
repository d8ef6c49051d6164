package session

import (
	"sync"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

// Reason tells listeners why the session changed.
type Reason string

// Change reasons
const (
	ReasonRestore Reason = "restore"
	ReasonSignIn  Reason = "sign_in"
	ReasonSignOut Reason = "user"
	ReasonExpired Reason = "expired"
	ReasonProfile Reason = "profile"
	ReasonRefresh Reason = "refresh"
)

// Event is delivered to listeners after every state change.
type Event struct {
	Session auth.Snapshot
	Reason  Reason
}

// Listener observes session changes. Listeners run on the goroutine that
// changed the session, after the manager lock is released.
type Listener func(Event)

type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]Listener)
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) notify(e Event) {
	l.mu.Lock()
	fns := make([]Listener, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
