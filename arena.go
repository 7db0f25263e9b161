package atelier

import (
	"sync"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Arena holds every session created during the process lifetime, in
// creation order, plus a pointer to the most recently created one.
//
// Reads hand out copies and writes swap in fresh copies, so a snapshot
// taken by one goroutine is never mutated underneath it. Starting a new
// session does not cancel tasks still writing into an older one; those
// tasks keep updating their own session, which stays addressable here
// after it stops being active.
type Arena struct {
	mu       sync.RWMutex
	sessions *orderedmap.OrderedMap[string, Session]
	activeID string
}

func NewArena() *Arena {
	return &Arena{sessions: orderedmap.New[string, Session]()}
}

// Append stores a new session and makes it the active one.
func (a *Arena) Append(session Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions.Set(session.ID.String(), session.clone())
	a.activeID = session.ID.String()
}

// Get returns a copy of the session with the given id.
func (a *Arena) Get(id uuid.UUID) (Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	session, ok := a.sessions.Get(id.String())
	if !ok {
		return Session{}, false
	}
	return session.clone(), true
}

// Active returns a copy of the most recently created session.
func (a *Arena) Active() (Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	session, ok := a.sessions.Get(a.activeID)
	if !ok {
		return Session{}, false
	}
	return session.clone(), true
}

// Sessions returns copies of every session in creation order.
func (a *Arena) Sessions() []Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Session, 0, a.sessions.Len())
	for pair := a.sessions.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.clone())
	}
	return out
}

// FindArtifact locates an artifact by id across all sessions.
func (a *Arena) FindArtifact(artifactID string) (Session, Artifact, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for pair := a.sessions.Oldest(); pair != nil; pair = pair.Next() {
		if artifact, ok := pair.Value.Artifact(artifactID); ok {
			return pair.Value.clone(), artifact, true
		}
	}
	return Session{}, Artifact{}, false
}

// replaceArtifact swaps one artifact into a fresh copy of its session.
// The write is keyed by session and artifact id; a session that has
// since been superseded still accepts it.
func (a *Arena) replaceArtifact(sessionID uuid.UUID, artifact Artifact) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.sessions.Get(sessionID.String())
	if !ok {
		return false
	}
	next := session.clone()
	for i := range next.Artifacts {
		if next.Artifacts[i].ID == artifact.ID {
			next.Artifacts[i] = artifact
			a.sessions.Set(sessionID.String(), next)
			return true
		}
	}
	return false
}
