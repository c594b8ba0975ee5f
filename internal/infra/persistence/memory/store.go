// Package memory provides in-process backends: a Server that mimics a remote
// per-user document store with live subscriptions, and a Local blob backend.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"twido/pkg/domain"
)

var (
	_ domain.Backend = (*Remote)(nil)
	_ domain.Backend = (*Local)(nil)
)

// ErrClosed is returned by writes to a closed backend.
var ErrClosed = errors.New("backend closed")

// Server holds one raw JSON document per user and fans out changes to
// subscribers. Writes merge top-level keys, mirroring a document database.
type Server struct {
	mu       sync.Mutex
	docs     map[string][]byte
	subs     map[string]map[int]domain.SnapshotFunc
	nextSub  int
	writeErr error
}

// NewServer returns an empty document server.
func NewServer() *Server {
	return &Server{
		docs: make(map[string][]byte),
		subs: make(map[string]map[int]domain.SnapshotFunc),
	}
}

// FailWrites makes every subsequent write return err. Nil restores writes.
func (s *Server) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// Raw returns the stored document of userID.
func (s *Server) Raw(userID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.docs[userID]...)
}

// Put replaces the document of userID and notifies its subscribers, as an
// edit from another device would.
func (s *Server) Put(userID string, doc domain.Document) error {
	raw, err := domain.MarshalDocument(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[userID] = raw
	s.mu.Unlock()
	return s.notify(userID)
}

// Backend returns a remote backend bound to userID.
func (s *Server) Backend(userID string) *Remote {
	return &Remote{server: s, userID: userID}
}

func (s *Server) load(userID string) (domain.Document, error) {
	s.mu.Lock()
	raw := append([]byte(nil), s.docs[userID]...)
	s.mu.Unlock()
	return domain.UnmarshalDocument(raw)
}

func (s *Server) merge(userID string, patch map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	merged, err := domain.MergeRaw(s.docs[userID], patch)
	if err != nil {
		return err
	}
	s.docs[userID] = merged
	return nil
}

func (s *Server) subscribe(userID string, fn domain.SnapshotFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[int]domain.SnapshotFunc)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[userID][id] = fn
	return id
}

func (s *Server) unsubscribe(userID string, id int) {
	s.mu.Lock()
	delete(s.subs[userID], id)
	s.mu.Unlock()
}

// notify delivers the current document to every subscriber of userID.
func (s *Server) notify(userID string) error {
	doc, err := s.load(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	fns := make([]domain.SnapshotFunc, 0, len(s.subs[userID]))
	for _, fn := range s.subs[userID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(doc.Clone())
	}
	return nil
}

// Remote is a per-user view of a Server.
type Remote struct {
	server *Server
	userID string

	mu     sync.Mutex
	subs   []int
	closed bool
}

// Name implements domain.Backend.
func (r *Remote) Name() string { return "memory-remote" }

// Kind implements domain.Backend.
func (r *Remote) Kind() domain.BackendKind { return domain.BackendRemote }

// Subscribe delivers the current document and then every change.
func (r *Remote) Subscribe(_ context.Context, fn domain.SnapshotFunc) (domain.Unsubscribe, error) {
	doc, err := r.server.load(r.userID)
	if err != nil {
		return nil, err
	}
	id := r.server.subscribe(r.userID, fn)
	r.mu.Lock()
	r.subs = append(r.subs, id)
	r.mu.Unlock()
	fn(doc)
	var once sync.Once
	return func() { once.Do(func() { r.server.unsubscribe(r.userID, id) }) }, nil
}

// Write merges only the patched top-level keys and echoes the result to
// subscribers before returning.
func (r *Remote) Write(_ context.Context, _ domain.Document, patch domain.Patch) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	encoded, err := patch.Encode()
	if err != nil {
		return err
	}
	if err := r.server.merge(r.userID, encoded); err != nil {
		return err
	}
	return r.server.notify(r.userID)
}

// Close drops every subscription opened through this backend.
func (r *Remote) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.closed = true
	r.mu.Unlock()
	for _, id := range subs {
		r.server.unsubscribe(r.userID, id)
	}
	return nil
}

// Local keeps the guest blob in memory. A Local may be reopened by several
// stores in turn; the blob survives Close.
type Local struct {
	mu       sync.Mutex
	blob     []byte
	writeErr error
}

// NewLocal returns an empty local backend.
func NewLocal() *Local { return &Local{} }

// FailWrites makes every subsequent write return err.
func (l *Local) FailWrites(err error) {
	l.mu.Lock()
	l.writeErr = err
	l.mu.Unlock()
}

// Blob returns the stored payload.
func (l *Local) Blob() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.blob...)
}

// Name implements domain.Backend.
func (l *Local) Name() string { return "memory-local" }

// Kind implements domain.Backend.
func (l *Local) Kind() domain.BackendKind { return domain.BackendLocal }

// Subscribe hands the stored blob to fn once.
func (l *Local) Subscribe(_ context.Context, fn domain.SnapshotFunc) (domain.Unsubscribe, error) {
	doc, err := domain.UnmarshalDocument(l.Blob())
	if err != nil {
		return nil, err
	}
	fn(doc)
	return func() {}, nil
}

// Write merges patch into base and stores the whole blob.
func (l *Local) Write(_ context.Context, base domain.Document, patch domain.Patch) error {
	data, err := domain.MarshalDocument(base.Apply(patch))
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.blob = data
	return nil
}

// Close implements domain.Backend.
func (l *Local) Close() error { return nil }
