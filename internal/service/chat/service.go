package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edustack/coursechat/backend/internal/backend"
	"github.com/edustack/coursechat/backend/internal/metrics"
	"github.com/edustack/coursechat/backend/internal/model/chat"
)

var (
	ErrCourseRequired   = errors.New("course id is required")
	ErrQuestionRequired = errors.New("question must not be blank")
	ErrStartInFlight    = errors.New("a session start is already in flight")
	ErrSessionNotFound  = errors.New("session not found")
	ErrStaleResponse    = errors.New("stale response discarded")
)

// errReplyContent is what the transcript shows when a submission's reply
// fails; the user's own message is never dropped.
const errReplyContent = "An error occurred. Please try again."

// Backend is the slice of the remote API the controller needs.
type Backend interface {
	StartChat(ctx context.Context, req backend.StartChatRequest) (backend.StartChatResult, error)
	AskQuestion(ctx context.Context, sessionID, text string) (string, error)
	ChatHistory(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Finalizer runs the asynchronous title workflow for a session.
type Finalizer interface {
	Begin(session chat.Session, taskID string)
	Cancel(sessionID string)
}

// Service is the session controller: it owns session identity, message
// history, and question submission, and hands title finalization off to
// the reconciler. One Service instance models one UI client's chat state,
// including its active-session pointer.
type Service struct {
	backend      Backend
	titles       Finalizer
	cache        *SessionCache
	startTimeout time.Duration

	mu          sync.Mutex
	history     map[string][]chat.Message
	active      string
	epoch       uint64
	starting    bool
	submitLocks map[string]*sync.Mutex
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithStartTimeout overrides the start-session abort deadline.
func WithStartTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.startTimeout = d }
}

// NewService wires the controller to its backend, title reconciler, and
// session list cache.
func NewService(b Backend, titles Finalizer, cache *SessionCache, opts ...ServiceOption) *Service {
	s := &Service{
		backend:      b,
		titles:       titles,
		cache:        cache,
		startTimeout: 30 * time.Second,
		history:      make(map[string][]chat.Message),
		submitLocks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a new session around the user's initial question.
// Atomic from the caller's perspective: on failure no session, history, or
// cache entry exists. A second call while one is in flight is refused, and
// a resolution that lands after the user navigated away is discarded.
func (s *Service) StartSession(ctx context.Context, userID, courseID, question string) (chat.Session, []chat.Message, error) {
	if strings.TrimSpace(courseID) == "" {
		return chat.Session{}, nil, ErrCourseRequired
	}
	if strings.TrimSpace(question) == "" {
		return chat.Session{}, nil, ErrQuestionRequired
	}

	s.mu.Lock()
	if s.starting {
		s.mu.Unlock()
		return chat.Session{}, nil, ErrStartInFlight
	}
	s.starting = true
	epoch := s.epoch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.startTimeout)
	defer cancel()

	result, err := s.backend.StartChat(ctx, backend.StartChatRequest{
		UserID:          userID,
		CourseID:        courseID,
		InitialQuestion: question,
	})
	if err != nil {
		return chat.Session{}, nil, err
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:               result.SessionID,
		TopicID:          result.TopicID,
		UserID:           userID,
		CourseID:         courseID,
		ProvisionalTitle: result.ProvisionalTitle,
		LastMessageAt:    now,
	}
	transcript := []chat.Message{
		{ID: uuid.NewString(), SessionID: session.ID, Role: chat.RoleUser, Content: question, CreatedAt: now},
		{ID: uuid.NewString(), SessionID: session.ID, Role: chat.RoleAssistant, Content: result.Answer, CreatedAt: now},
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return chat.Session{}, nil, ErrStaleResponse
	}
	previous := s.active
	s.history[session.ID] = transcript
	s.active = session.ID
	s.mu.Unlock()

	if previous != "" {
		// Starting a chat switches away from whichever session was open.
		s.titles.Cancel(previous)
	}
	s.cache.Insert(session)
	metrics.SessionsStarted.Inc()

	if result.TitleTaskID != "" {
		s.titles.Begin(session, result.TitleTaskID)
	}
	return session, append([]chat.Message(nil), transcript...), nil
}

// SubmitQuestion appends the user's message before the network call
// resolves and never rolls it back; on failure only the reply slot gets an
// error-tagged message. Submissions against one session are serialized so
// completions land in request order. The returned message is the reply
// (assistant or error-tagged).
func (s *Service) SubmitQuestion(ctx context.Context, sessionID, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrQuestionRequired
	}

	s.mu.Lock()
	if _, ok := s.history[sessionID]; !ok {
		s.mu.Unlock()
		return chat.Message{}, ErrSessionNotFound
	}
	lock := s.submitLocks[sessionID]
	if lock == nil {
		lock = &sync.Mutex{}
		s.submitLocks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	s.append(chat.Message{
		ID: uuid.NewString(), SessionID: sessionID,
		Role: chat.RoleUser, Content: text, CreatedAt: now,
	})
	s.cache.Touch(sessionID, now)
	metrics.QuestionsAsked.Inc()

	answer, err := s.backend.AskQuestion(ctx, sessionID, text)

	reply := chat.Message{
		ID: uuid.NewString(), SessionID: sessionID,
		Role: chat.RoleAssistant, Content: answer, CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		reply.Role = chat.RoleError
		reply.Content = errReplyContent
		metrics.QuestionFailures.Inc()
	}

	if !s.isActive(sessionID) {
		// The session was left while the call was in flight. The user
		// message is already committed; the reply must not leak into
		// state the UI no longer watches.
		return reply, nil
	}

	s.append(reply)
	if err == nil {
		s.cache.Touch(sessionID, reply.CreatedAt)
	}
	return reply, nil
}

// LoadHistory replaces the in-memory transcript with the backend's
// authoritative one. On failure the local history is emptied rather than
// left possibly stale.
func (s *Service) LoadHistory(ctx context.Context, sessionID string) ([]chat.Message, error) {
	messages, err := s.backend.ChatHistory(ctx, sessionID)
	if err != nil {
		s.mu.Lock()
		s.history[sessionID] = nil
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.history[sessionID] = messages
	s.mu.Unlock()
	return append([]chat.Message(nil), messages...), nil
}

// SelectSession makes sessionID the active session, tears down the
// previous session's reconciliation watchers, and loads the transcript.
func (s *Service) SelectSession(ctx context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.Lock()
	previous := s.active
	s.active = sessionID
	s.epoch++
	s.mu.Unlock()

	if previous != "" && previous != sessionID {
		s.titles.Cancel(previous)
	}
	return s.LoadHistory(ctx, sessionID)
}

// Deselect clears the active session, e.g. when the user returns to the
// chat list, cancelling that session's timers and subscriptions.
func (s *Service) Deselect() {
	s.mu.Lock()
	previous := s.active
	s.active = ""
	s.epoch++
	s.mu.Unlock()

	if previous != "" {
		s.titles.Cancel(previous)
	}
}

// History returns a copy of the in-memory transcript for a session.
func (s *Service) History(sessionID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.history[sessionID]...)
}

// ActiveSession reports the currently selected session id, if any.
func (s *Service) ActiveSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Service) append(message chat.Message) {
	s.mu.Lock()
	s.history[message.SessionID] = append(s.history[message.SessionID], message)
	s.mu.Unlock()
}

func (s *Service) isActive(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == sessionID
}
