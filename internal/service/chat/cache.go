package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edustack/coursechat/backend/internal/model/chat"
)

// ChatLister fetches the authoritative session list from the backend.
type ChatLister interface {
	ListChats(ctx context.Context, userID, courseID string) ([]chat.Session, error)
}

// SessionCache keeps the recency-ordered chat list for one (user, course)
// pair. It is the single structure mutated by both the controller and the
// title reconciler, so every update runs under the mutex and applies
// completely or not at all.
type SessionCache struct {
	lister ChatLister

	mu       sync.RWMutex
	userID   string
	courseID string
	sessions []chat.Session
}

// NewSessionCache builds an empty cache refreshed through lister.
func NewSessionCache(lister ChatLister) *SessionCache {
	return &SessionCache{lister: lister}
}

// ReplaceAll refetches the authoritative list for a (user, course) pair
// and swaps it in. On failure the previous contents stand; a list refresh
// is a non-critical path and stale data beats an empty sidebar.
func (c *SessionCache) ReplaceAll(ctx context.Context, userID, courseID string) error {
	sessions, err := c.lister.ListChats(ctx, userID, courseID)
	if err != nil {
		return err
	}
	sortByRecency(sessions)

	c.mu.Lock()
	c.userID = userID
	c.courseID = courseID
	c.sessions = sessions
	c.mu.Unlock()
	return nil
}

// Sessions returns a copy of the cached list, most recent first.
func (c *SessionCache) Sessions() []chat.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]chat.Session(nil), c.sessions...)
}

// Get looks up one cached session by id.
func (c *SessionCache) Get(sessionID string) (chat.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, session := range c.sessions {
		if session.ID == sessionID {
			return session, true
		}
	}
	return chat.Session{}, false
}

// Insert adds a freshly created session, replacing any stale entry with
// the same id, and resorts by recency.
func (c *SessionCache) Insert(session chat.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.sessions[:0]
	for _, existing := range c.sessions {
		if existing.ID != session.ID {
			kept = append(kept, existing)
		}
	}
	c.sessions = append(kept, session)
	sortByRecency(c.sessions)
}

// Touch bumps a session's last-message timestamp and resorts.
func (c *SessionCache) Touch(sessionID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sessions {
		if c.sessions[i].ID != sessionID {
			continue
		}
		if at.After(c.sessions[i].LastMessageAt) {
			c.sessions[i].LastMessageAt = at
			sortByRecency(c.sessions)
		}
		return
	}
}

// UpsertTitle applies a title update to the matching entry. A finalized
// update sets the final title and marks the session finalized; a
// provisional update only lands while the session is not yet finalized,
// so a late provisional event can never overwrite a finalized title.
// Reports whether the cache changed.
func (c *SessionCache) UpsertTitle(sessionID, title string, finalized bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sessions {
		if c.sessions[i].ID != sessionID {
			continue
		}
		if finalized {
			c.sessions[i].FinalTitle = title
			c.sessions[i].TitleFinalized = true
			return true
		}
		if c.sessions[i].TitleFinalized {
			return false
		}
		c.sessions[i].ProvisionalTitle = title
		return true
	}
	return false
}

func sortByRecency(sessions []chat.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})
}
