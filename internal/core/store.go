// Package core implements the state store that owns the task list, garden
// economy, mode and registered locations. Mutations apply to memory first and
// are then persisted in commit order through the active backend. Inbound
// backend snapshots replace memory through a single reducer that re-applies
// the patches the backend has not acknowledged yet.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"twido/internal/rewards"
	"twido/pkg/domain"
)

// BackendFactory opens the backend for an identity. An empty userID selects
// the guest (local) backend.
type BackendFactory func(ctx context.Context, userID string) (domain.Backend, error)

type session struct {
	gen     uint64
	userID  string
	backend domain.Backend
	queue   *writeQueue
	unsub   domain.Unsubscribe
	ctx     context.Context
	cancel  context.CancelFunc

	// pending holds committed patches whose write has not returned, in
	// commit order. Guarded by Store.mu.
	pending []*pendingWrite
}

// pendingWrite is a committed patch awaiting its backend write.
type pendingWrite struct {
	op    string
	patch domain.Patch
}

// rebase returns doc with every unacknowledged patch applied on top.
func (sess *session) rebase(doc domain.Document) domain.Document {
	for _, pw := range sess.pending {
		doc = doc.Apply(pw.patch)
	}
	return doc
}

// acknowledge drops pw from the pending list.
func (sess *session) acknowledge(pw *pendingWrite) {
	for i, p := range sess.pending {
		if p == pw {
			sess.pending = append(sess.pending[:i], sess.pending[i+1:]...)
			return
		}
	}
}

// Store is the single owner of application state. It is safe for concurrent use.
type Store struct {
	factory BackendFactory

	mu        sync.Mutex
	doc       domain.Document
	hydrated  bool
	gen       uint64
	session   *session
	attaching chan struct{} // closed when the switch in progress settles
	lastErr   error
	observers map[uint64]func(domain.Document)
	nextObs   uint64
	closed    bool

	rewards  *rewards.Engine
	notifier domain.Notifier
	geo      domain.Geolocator
	logger   Logger
	metrics  MetricsRecorder
	clock    Clock
	location *time.Location
	newID    func(time.Time) string
}

// New constructs a store with an empty document. No backend is attached
// until SwitchIdentity is called.
func New(factory BackendFactory, opts ...Option) *Store {
	s := &Store{
		factory:   factory,
		doc:       domain.EmptyDocument(),
		observers: make(map[uint64]func(domain.Document)),
		rewards:   rewards.NewEngine(rewards.DefaultConfig(), nil),
		notifier:  noopNotifier{},
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		clock:     ClockFunc(nil),
		location:  time.Local,
		newID:     newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// SwitchIdentity detaches the current backend, opens the backend for userID
// and rehydrates from it. Snapshots still in flight from the previous backend
// are discarded. Pending writes of the previous session are drained first.
// Mutations issued while the switch is in progress wait until the new backend
// has hydrated or the switch has failed, so they never build on the empty
// placeholder state.
func (s *Store) SwitchIdentity(ctx context.Context, userID string) error {
	if s.factory == nil {
		return domain.ErrNoBackend
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("store closed")
	}
	s.gen++
	gen := s.gen
	old := s.session
	s.session = nil
	if s.attaching != nil {
		close(s.attaching)
	}
	s.attaching = make(chan struct{})
	s.doc = domain.EmptyDocument()
	s.hydrated = false
	s.mu.Unlock()

	if old != nil {
		s.endSession(old)
	}
	s.publish()

	start := time.Now()
	backend, err := s.factory(ctx, userID)
	if err != nil {
		s.mu.Lock()
		s.settle(gen)
		s.mu.Unlock()
		perr := &domain.PersistenceError{Op: "open", Backend: "factory", Err: err}
		s.metrics.Observe(ctx, "switch_identity", false, time.Since(start))
		s.reportPersistence(perr)
		return perr
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		gen:     gen,
		userID:  userID,
		backend: backend,
		queue:   newWriteQueue(),
		ctx:     sessCtx,
		cancel:  cancel,
	}
	go sess.queue.run(func(job writeJob) { s.persist(sess, job) })

	// installed before Subscribe so the first snapshot finds its session
	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		s.endSession(sess)
		return nil
	}
	s.session = sess
	s.mu.Unlock()

	unsub, err := backend.Subscribe(ctx, func(doc domain.Document) { s.applySnapshot(gen, doc) })
	if err != nil {
		s.mu.Lock()
		if s.session == sess {
			s.session = nil
		}
		s.settle(gen)
		s.mu.Unlock()
		s.endSession(sess)
		perr := asPersistenceError("subscribe", backend.Name(), err)
		s.metrics.Observe(ctx, "switch_identity", false, time.Since(start))
		s.reportPersistence(perr)
		return perr
	}

	s.mu.Lock()
	if s.session != sess {
		// superseded or closed while subscribing; the session was ended already
		s.mu.Unlock()
		unsub()
		return nil
	}
	sess.unsub = unsub
	s.settle(gen)
	s.mu.Unlock()

	s.logger.Info("backend attached", "backend", backend.Name(), "kind", string(backend.Kind()), "guest", userID == "")
	s.metrics.Observe(ctx, "switch_identity", true, time.Since(start))
	return nil
}

// settle wakes mutations waiting on the switch of generation gen. It is a
// no-op once a newer switch has started. Callers hold s.mu.
func (s *Store) settle(gen uint64) {
	if s.gen != gen || s.attaching == nil {
		return
	}
	close(s.attaching)
	s.attaching = nil
}

// endSession unsubscribes, drains queued writes and closes the backend.
func (s *Store) endSession(sess *session) {
	s.mu.Lock()
	unsub := sess.unsub
	sess.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	sess.queue.close()
	<-sess.queue.done
	sess.cancel()
	if err := sess.backend.Close(); err != nil {
		s.logger.Warn("backend close failed", "backend", sess.backend.Name(), "error", err)
	}
}

// Close detaches the active backend after draining pending writes.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	sess := s.session
	s.session = nil
	if s.attaching != nil {
		close(s.attaching)
		s.attaching = nil
	}
	s.mu.Unlock()
	if sess != nil {
		s.endSession(sess)
	}
	return nil
}

// Flush blocks until every write committed before the call has been handed to
// the backend, then returns and clears the last persistence error.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess != nil {
		barrier := make(chan struct{})
		if sess.queue.push(writeJob{flushed: barrier}) {
			select {
			case <-barrier:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	s.mu.Lock()
	err := s.lastErr
	s.lastErr = nil
	s.mu.Unlock()
	return err
}

// Hydrated reports whether the active backend has delivered a snapshot.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Backend returns the name of the attached backend, or "" when detached.
func (s *Store) Backend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.backend.Name()
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Observe registers fn to receive a snapshot after every committed mutation
// and every applied inbound snapshot. The returned func unregisters it.
func (s *Store) Observe(fn func(domain.Document)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// ImportDocument replaces the whole state with doc and persists every field.
func (s *Store) ImportDocument(doc domain.Document) {
	doc = doc.Normalize()
	s.mutate("import_document", func(d *domain.Document) []domain.Field {
		*d = doc.Clone()
		return domain.AllFields
	})
}

// applySnapshot is the reducer for inbound backend snapshots. Memory becomes
// the snapshot with every unacknowledged local patch re-applied on top, so an
// echo of an older write never hides a newer local change. Snapshots of a
// superseded session are dropped.
func (s *Store) applySnapshot(gen uint64, doc domain.Document) {
	s.mu.Lock()
	sess := s.session
	if gen != s.gen || sess == nil || sess.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("stale snapshot dropped", "generation", gen)
		return
	}
	s.doc = sess.rebase(doc.Normalize())
	s.hydrated = true
	s.settle(gen)
	s.mu.Unlock()
	s.publish()
}

// mutate applies fn to a copy of the document. fn returns the top-level
// fields it changed; an empty result is a no-op. It waits while an identity
// switch is in progress. The committed document is
// queued for persistence and published to observers.
func (s *Store) mutate(op string, fn func(doc *domain.Document) []domain.Field) (domain.Document, bool) {
	start := time.Now()
	s.mu.Lock()
	for s.attaching != nil {
		wait := s.attaching
		s.mu.Unlock()
		<-wait
		s.mu.Lock()
	}
	work := s.doc.Clone()
	fields := fn(&work)
	if len(fields) == 0 {
		s.mu.Unlock()
		s.logger.Debug("mutation was a no-op", "op", op)
		return work, false
	}
	s.doc = work
	sess := s.session
	if sess != nil {
		pw := &pendingWrite{op: op, patch: domain.NewPatch(work, fields...)}
		sess.pending = append(sess.pending, pw)
		sess.queue.push(writeJob{op: op, base: work.Clone(), patch: pw.patch, pending: pw})
	}
	s.mu.Unlock()

	if sess == nil {
		s.logger.Debug("no backend attached; change kept in memory", "op", op)
	}
	s.metrics.Observe(context.Background(), op, true, time.Since(start))
	s.publish()
	return work.Clone(), true
}

// persist runs on the session writer goroutine.
func (s *Store) persist(sess *session, job writeJob) {
	start := time.Now()
	err := sess.backend.Write(sess.ctx, job.base, job.patch)
	if job.pending != nil {
		s.mu.Lock()
		sess.acknowledge(job.pending)
		s.mu.Unlock()
	}
	s.metrics.Observe(sess.ctx, "persist", err == nil, time.Since(start))
	if err != nil {
		s.reportPersistence(asPersistenceError(job.op, sess.backend.Name(), err))
	}
}

func asPersistenceError(op, backend string, err error) *domain.PersistenceError {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	return &domain.PersistenceError{Op: op, Backend: backend, Err: err}
}

func (s *Store) reportPersistence(err *domain.PersistenceError) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Warn("persistence failed", "op", err.Op, "backend", err.Backend, "error", err.Err)
	s.notifier.Notify(domain.Notification{
		Kind:    domain.AlertPersistence,
		Title:   "Sync error",
		Message: "Your latest change could not be saved.",
	})
}

func (s *Store) publish() {
	s.mu.Lock()
	if len(s.observers) == 0 {
		s.mu.Unlock()
		return
	}
	doc := s.doc.Clone()
	fns := make([]func(domain.Document), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(doc.Clone())
	}
}

func (s *Store) now() time.Time { return s.clock.Now() }

func (s *Store) today() string { return s.now().In(s.location).Format("2006-01-02") }
