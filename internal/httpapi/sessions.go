// Package httpapi is the reference HTTP host: it loads a project per
// session, keeps one engine.Runtime per session behind a mutex, and exposes
// the cursor API as JSON endpoints over gin.
package httpapi

import (
	"fmt"
	"sync"

	"github.com/storyflowrt/engine/internal/engine"
)

// session pairs a Runtime with the mutex guarding it — one story advances
// at a time per session, but independent sessions run concurrently.
type session struct {
	mu sync.Mutex
	rt *engine.Runtime
}

// sessionStore is the process-wide session registry keyed by the uuid
// minted for each POST /sessions call.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) put(id string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("httpapi: session %q not found", id)
	}
	return sess, nil
}
