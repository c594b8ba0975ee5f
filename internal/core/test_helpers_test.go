package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"twido/internal/rewards"
	"twido/pkg/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

type captureNotifier struct {
	mu   sync.Mutex
	seen []domain.Notification
}

func (c *captureNotifier) Notify(n domain.Notification) {
	c.mu.Lock()
	c.seen = append(c.seen, n)
	c.mu.Unlock()
}

func (c *captureNotifier) kinds() []domain.NotificationKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(c.seen))
	for _, n := range c.seen {
		out = append(out, n.Kind)
	}
	return out
}

func (c *captureNotifier) has(kind domain.NotificationKind) bool {
	for _, k := range c.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("e:" + msg) }

type fakeGeo struct {
	coord domain.Coordinate
	err   error
}

func (f fakeGeo) CurrentCoordinate(context.Context) (domain.Coordinate, error) {
	return f.coord, f.err
}

// fakeBackend is an in-test backend. Remote fakes echo every write back to
// subscribers; local fakes deliver the stored blob once on Subscribe.
type fakeBackend struct {
	name string
	kind domain.BackendKind

	mu           sync.Mutex
	doc          domain.Document
	writes       []domain.Patch
	writeErr     error
	subscribeErr error
	subs         map[int]domain.SnapshotFunc
	nextSub      int
	closed       bool

	// gate and written are set by newGatedBackend only.
	gate    chan struct{}
	written chan struct{}
	// beforeDeliver runs inside Subscribe ahead of the first snapshot.
	beforeDeliver func()
}

func newFakeBackend(kind domain.BackendKind, doc domain.Document) *fakeBackend {
	return &fakeBackend{name: "fake-" + string(kind), kind: kind, doc: doc.Clone(), subs: map[int]domain.SnapshotFunc{}}
}

func (f *fakeBackend) Name() string             { return f.name }
func (f *fakeBackend) Kind() domain.BackendKind { return f.kind }

func (f *fakeBackend) Subscribe(_ context.Context, fn domain.SnapshotFunc) (domain.Unsubscribe, error) {
	f.mu.Lock()
	if f.subscribeErr != nil {
		f.mu.Unlock()
		return nil, f.subscribeErr
	}
	doc := f.doc.Clone()
	id := f.nextSub
	if f.kind == domain.BackendRemote {
		f.subs[id] = fn
		f.nextSub++
	}
	f.mu.Unlock()
	if f.beforeDeliver != nil {
		f.beforeDeliver()
	}
	fn(doc)
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}, nil
}

// newGatedBackend returns a remote fake whose writes each wait for release.
func newGatedBackend(doc domain.Document) *fakeBackend {
	f := newFakeBackend(domain.BackendRemote, doc)
	f.gate = make(chan struct{})
	f.written = make(chan struct{})
	return f
}

// release lets the oldest waiting write through and blocks until its echo
// has been delivered.
func (f *fakeBackend) release(t *testing.T) {
	t.Helper()
	select {
	case f.gate <- struct{}{}:
	case <-time.After(time.Second):
		t.Fatalf("no write waiting")
	}
	select {
	case <-f.written:
	case <-time.After(time.Second):
		t.Fatalf("write did not finish")
	}
}

func (f *fakeBackend) Write(_ context.Context, base domain.Document, patch domain.Patch) error {
	if f.gate != nil {
		<-f.gate
		defer func() { f.written <- struct{}{} }()
	}
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	f.writes = append(f.writes, patch)
	if f.kind == domain.BackendLocal {
		f.doc = base.Apply(patch)
		f.mu.Unlock()
		return nil
	}
	f.doc = f.doc.Apply(patch)
	f.mu.Unlock()
	f.push(f.snapshot())
	return nil
}

func (f *fakeBackend) push(doc domain.Document) {
	f.mu.Lock()
	subs := make([]domain.SnapshotFunc, 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(doc.Clone())
	}
}

func (f *fakeBackend) snapshot() domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Clone()
}

func (f *fakeBackend) patches() []domain.Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Patch(nil), f.writes...)
}

func (f *fakeBackend) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	f.closed = true
	f.subs = map[int]domain.SnapshotFunc{}
	f.mu.Unlock()
	return nil
}

func singleBackend(b domain.Backend) BackendFactory {
	return func(context.Context, string) (domain.Backend, error) { return b, nil }
}

var testStart = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *Store
	backend  *fakeBackend
	clock    *fakeClock
	notifier *captureNotifier
}

func newFixture(t *testing.T, kind domain.BackendKind, doc domain.Document, rng rewards.RandSource, opts ...Option) *fixture {
	t.Helper()
	backend := newFakeBackend(kind, doc)
	clock := newFakeClock(testStart)
	notifier := &captureNotifier{}
	if rng == nil {
		rng = constSource(0.99)
	}
	all := append([]Option{
		WithClock(clock),
		WithLocation(time.UTC),
		WithNotifier(notifier),
		WithRewards(rewards.NewEngine(rewards.DefaultConfig(), rng)),
	}, opts...)
	store := New(singleBackend(backend), all...)
	if err := store.SwitchIdentity(context.Background(), "user-1"); err != nil {
		t.Fatalf("switch identity: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &fixture{store: store, backend: backend, clock: clock, notifier: notifier}
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	if err := f.store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

var errBoom = errors.New("boom")
