package course

import (
	"context"
	"sync"

	"github.com/edustack/coursechat/backend/internal/model/course"
)

// Backend is the slice of the remote API the course provider needs.
type Backend interface {
	UserCourses(ctx context.Context, userID string) ([]course.Course, error)
}

// Service is a read-mostly cache of each user's assigned courses with a
// single refresh operation. It is injected where course data is needed
// instead of being looked up ambiently, so consumers stay testable in
// isolation.
type Service struct {
	backend Backend

	mu     sync.RWMutex
	byUser map[string][]course.Course
}

// NewService builds an empty course provider.
func NewService(b Backend) *Service {
	return &Service{
		backend: b,
		byUser:  make(map[string][]course.Course),
	}
}

// Refresh refetches a user's courses and caches them. On failure the
// cached copy stands.
func (s *Service) Refresh(ctx context.Context, userID string) ([]course.Course, error) {
	courses, err := s.backend.UserCourses(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byUser[userID] = courses
	s.mu.Unlock()
	return append([]course.Course(nil), courses...), nil
}

// Courses returns the cached list for a user, which may be empty until
// the first Refresh.
func (s *Service) Courses(userID string) []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]course.Course(nil), s.byUser[userID]...)
}

// Find looks a course up by id in a user's cached list.
func (s *Service) Find(userID, courseID string) (course.Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byUser[userID] {
		if c.ID == courseID {
			return c, true
		}
	}
	return course.Course{}, false
}
