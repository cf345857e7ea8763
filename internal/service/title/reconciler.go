// Package title reconciles the two-phase session title: a provisional
// title available at session start, then a finalized title delivered by
// whichever of two channels resolves first — a per-topic push stream or a
// polled background task. The race is modeled as a terminal-state machine
// so correctness never depends on which channel wins.
package title

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/edustack/coursechat/backend/internal/backend"
	"github.com/edustack/coursechat/backend/internal/metrics"
	"github.com/edustack/coursechat/backend/internal/model/chat"
)

// State of one session's title reconciliation.
type State int

const (
	StateProvisional State = iota
	StateFinalizing
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateProvisional:
		return "provisional"
	case StateFinalizing:
		return "finalizing"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

// Backend is the slice of the remote API the reconciler needs.
type Backend interface {
	TaskStatus(ctx context.Context, taskID string) (backend.TaskStatus, error)
	SubscribeTopicTitles(ctx context.Context, topicID string) (<-chan backend.TitleEvent, error)
}

// Sink receives reconciled title updates, typically the session list
// cache. Implementations must apply each update completely or not at all.
type Sink interface {
	UpsertTitle(sessionID, title string, finalized bool) bool
}

// Update is fanned out to watchers of a session's title.
type Update struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
	Finalized bool   `json:"finalized"`
}

// Reconciler drives the per-session title state machine. At most one poll
// loop and one push subscription exist per session; Finalized and Failed
// are absorbing, so a session that already terminated is never restarted
// even if revisited.
type Reconciler struct {
	backend Backend
	sink    Sink
	poll    time.Duration

	mu       sync.Mutex
	active   map[string]*reconciliation
	terminal map[string]State
	watchers map[string]map[chan Update]struct{}
}

type reconciliation struct {
	sessionID string
	topicID   string
	taskID    string
	title     string
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithPollInterval overrides the task poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.poll = d }
}

// NewReconciler wires the reconciler to the backend and the title sink.
func NewReconciler(b Backend, sink Sink, opts ...Option) *Reconciler {
	r := &Reconciler{
		backend:  b,
		sink:     sink,
		poll:     5 * time.Second,
		active:   make(map[string]*reconciliation),
		terminal: make(map[string]State),
		watchers: make(map[string]map[chan Update]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin starts reconciliation for a freshly started session. Without a
// task id there is nothing to finalize and the provisional title stands.
// Calling Begin again for an active or already-terminated session is a
// no-op.
func (r *Reconciler) Begin(session chat.Session, taskID string) {
	if taskID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.terminal[session.ID]; done {
		return
	}
	if _, running := r.active[session.ID]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec := &reconciliation{
		sessionID: session.ID,
		topicID:   session.TopicID,
		taskID:    taskID,
		title:     session.ProvisionalTitle,
		state:     StateFinalizing,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.active[session.ID] = rec
	go r.run(ctx, rec)
}

// State reports where a session's reconciliation stands.
func (r *Reconciler) State(sessionID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.terminal[sessionID]; ok {
		return state
	}
	if rec, ok := r.active[sessionID]; ok {
		return rec.state
	}
	return StateProvisional
}

// Cancel tears down a session's subscription and poll timer. It blocks
// until the loop has exited, so once it returns no update for that
// session can fire.
func (r *Reconciler) Cancel(sessionID string) {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if ok {
		delete(r.active, sessionID)
		rec.cancel()
	}
	r.mu.Unlock()

	if ok {
		<-rec.done
	}
}

// Close cancels every outstanding reconciliation, for shutdown.
func (r *Reconciler) Close() {
	r.mu.Lock()
	recs := make([]*reconciliation, 0, len(r.active))
	for id, rec := range r.active {
		delete(r.active, id)
		rec.cancel()
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		<-rec.done
	}
}

// Watch subscribes to a session's title updates, for re-streaming to the
// browser. The returned cancel is idempotent and closes the channel.
func (r *Reconciler) Watch(sessionID string) (<-chan Update, func()) {
	ch := make(chan Update, 8)

	r.mu.Lock()
	set := r.watchers[sessionID]
	if set == nil {
		set = make(map[chan Update]struct{})
		r.watchers[sessionID] = set
	}
	set[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers[sessionID], ch)
			if len(r.watchers[sessionID]) == 0 {
				delete(r.watchers, sessionID)
			}
			r.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// run is the single loop multiplexing both finalization channels. The
// push stream may be absent (subscription refused) or close early
// (malformed frame, connection error); the poll path is the fallback
// either way.
func (r *Reconciler) run(ctx context.Context, rec *reconciliation) {
	defer close(rec.done)

	var events <-chan backend.TitleEvent
	if rec.topicID != "" {
		var err error
		events, err = r.backend.SubscribeTopicTitles(ctx, rec.topicID)
		if err != nil {
			log.Printf("[title] push subscription unavailable for session=%s: %v", rec.sessionID, err)
			events = nil
		}
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				// Closed stream: no retry, keep polling.
				events = nil
				continue
			}
			r.applyPush(rec, event.Title)
		case <-ticker.C:
			if r.applyPoll(ctx, rec) {
				return
			}
		}
	}
}

// applyPush lands a provisional title update. Push events never finalize
// by themselves, and they become no-ops once a terminal state is reached.
func (r *Reconciler) applyPush(rec *reconciliation, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.state.Terminal() {
		return
	}
	if title == "" || title == rec.title {
		return
	}
	rec.title = title
	r.sink.UpsertTitle(rec.sessionID, title, false)
	r.notifyLocked(Update{SessionID: rec.sessionID, Title: title, Finalized: false})
}

// applyPoll queries the task once and reports whether the loop is done.
// A transport error is a fatal stop for this reconciliation: no retry,
// the provisional title stands.
func (r *Reconciler) applyPoll(ctx context.Context, rec *reconciliation) bool {
	status, err := r.backend.TaskStatus(ctx, rec.taskID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		log.Printf("[title] task poll failed for session=%s: %v", rec.sessionID, err)
		r.finish(rec, StateFailed, "")
		return true
	}

	switch status.State {
	case chat.TaskSuccess:
		if status.Result == nil || status.Result.NewTitle == "" {
			// Success without a title carries nothing to apply.
			return false
		}
		r.finish(rec, StateFinalized, status.Result.NewTitle)
		return true
	case chat.TaskFailure:
		r.finish(rec, StateFailed, "")
		return true
	default:
		return false
	}
}

// finish moves the reconciliation into a terminal state exactly once and
// stops both channels. The first channel to get here wins; anything that
// arrives later is a no-op.
func (r *Reconciler) finish(rec *reconciliation, terminal State, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.state.Terminal() {
		return
	}
	rec.state = terminal
	r.terminal[rec.sessionID] = terminal
	delete(r.active, rec.sessionID)
	rec.cancel()

	if terminal == StateFinalized {
		rec.title = title
		r.sink.UpsertTitle(rec.sessionID, title, true)
		r.notifyLocked(Update{SessionID: rec.sessionID, Title: title, Finalized: true})
		metrics.TitlesFinalized.Inc()
		return
	}
	metrics.TitleFailures.Inc()
}

func (r *Reconciler) notifyLocked(update Update) {
	for ch := range r.watchers[update.SessionID] {
		select {
		case ch <- update:
		default:
			// A stalled watcher must not block reconciliation.
		}
	}
}
