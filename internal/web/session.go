package web

import (
	"net/url"
	"sync"
	"time"

	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/JonMunkholm/viewkit/internal/view"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxSessions bounds the number of live view and form sessions.
const maxSessions = 1024

// session is the server-side state behind one open table view or form.
// Engines are not safe for concurrent use, so handlers hold mu for the
// whole request.
type session struct {
	mu sync.Mutex

	id  uuid.UUID
	def catalog.Definition

	// Table views
	grid   *grid.Grid
	events view.Events

	// Forms
	engine *validate.Engine
	loader *view.Loader
	values url.Values
}

// sessionStore keeps sessions for SessionTTL after their last use.
type sessionStore struct {
	lru *expirable.LRU[uuid.UUID, *session]
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{lru: expirable.NewLRU[uuid.UUID, *session](maxSessions, nil, ttl)}
}

func (st *sessionStore) add(s *session) {
	st.lru.Add(s.id, s)
}

// get returns the session for a raw ID and renews its expiry.
func (st *sessionStore) get(raw string) (*session, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errSessionNotFound
	}
	s, ok := st.lru.Get(id)
	if !ok {
		return nil, errSessionNotFound
	}
	st.lru.Add(id, s)
	return s, nil
}

func (st *sessionStore) remove(raw string) {
	if id, err := uuid.Parse(raw); err == nil {
		st.lru.Remove(id)
	}
}

func (st *sessionStore) len() int {
	return st.lru.Len()
}
