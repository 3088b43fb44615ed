package docstore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store used by tests and as the reference
// implementation of the merge semantics. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document

	subMu   sync.Mutex
	nextSub int
	subs    map[string]map[int]func(Event) // collection path -> sub id -> fn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		subs: make(map[string]map[int]func(Event)),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, doc Document, merge bool) error {
	s.mu.Lock()
	existing, ok := s.docs[path]
	if merge && ok {
		merged := existing.Clone()
		merged.Merge(doc.Clone())
		s.docs[path] = merged
	} else {
		s.docs[path] = doc.Clone()
	}
	stored := s.docs[path].Clone()
	s.mu.Unlock()

	s.notify(Event{Path: path, Doc: stored})
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collectionPath string) (map[string]Document, error) {
	prefix := collectionPath + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Document)
	for path, doc := range s.docs {
		if !isChild(path, prefix) {
			continue
		}
		out[ID(path)] = doc.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()

	if existed {
		s.notify(Event{Path: path, Deleted: true})
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collectionPath string, fn func(Event)) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	id := s.nextSub
	if s.subs[collectionPath] == nil {
		s.subs[collectionPath] = make(map[int]func(Event))
	}
	s.subs[collectionPath][id] = fn

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[collectionPath], id)
	}
	return unsubscribe, nil
}

func (s *MemoryStore) notify(ev Event) {
	parent := Parent(ev.Path)

	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs[parent]))
	for _, fn := range s.subs[parent] {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// isChild reports whether path is an immediate child of the collection
// prefix (no deeper nesting).
func isChild(path, prefix string) bool {
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return false
	}
	rest := path[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return false
		}
	}
	return true
}
