// Package docstore is the hierarchical document store the scoring core
// persists through. Documents are addressed by slash-separated paths
// (contests/{id}, contests/{id}/contestants/{id}/scores/{userId},
// users/{id}) and a merge write replaces only the fields it carries, never
// the whole document. Backends: Postgres for deployment, an in-memory store
// for tests and as the reference for merge semantics.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("document not found")

	// ErrSubscribeUnsupported is returned by backends that cannot push
	// change notifications. Live updates are optional; callers must treat
	// this as "poll instead", not as a failure.
	ErrSubscribeUnsupported = errors.New("subscribe not supported by this store")
)

// Document is a JSON-shaped document. Values round-trip through
// encoding/json, so numbers read back as float64.
type Document map[string]any

// Event describes one document change under a subscribed collection.
type Event struct {
	Path    string
	Doc     Document
	Deleted bool
}

// Store is the abstract key-path document store.
type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)

	// Set writes doc at path. With merge true, fields present in doc are
	// merged into the existing document; absent fields are left untouched.
	// With merge false the document is replaced wholesale.
	Set(ctx context.Context, path string, doc Document, merge bool) error

	// List returns the immediate child documents of a collection path,
	// keyed by their id (the last path segment).
	List(ctx context.Context, collectionPath string) (map[string]Document, error)

	// Delete removes the document at path. Deleting an absent document is
	// not an error.
	Delete(ctx context.Context, path string) error

	// Subscribe registers fn for changes to immediate children of
	// collectionPath and returns an unsubscribe func. Delivery is
	// best-effort with no ordering guarantee beyond eventually reflecting
	// the latest write.
	Subscribe(ctx context.Context, collectionPath string, fn func(Event)) (func(), error)
}

// Clone deep-copies a document one level down, which covers every shape the
// core stores (flat score docs, contest/user metadata).
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		if m, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(m))
			for ik, iv := range m {
				inner[ik] = iv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}

// Merge overlays src onto d, field by field.
func (d Document) Merge(src Document) {
	for k, v := range src {
		d[k] = v
	}
}

// Path helpers. The core never builds raw paths by hand.

func UsersCollection() string { return "users" }

func UserPath(userID string) string {
	return fmt.Sprintf("users/%s", userID)
}

func ContestsCollection() string { return "contests" }

func ContestPath(contestID string) string {
	return fmt.Sprintf("contests/%s", contestID)
}

func ContestantsCollection(contestID string) string {
	return fmt.Sprintf("contests/%s/contestants", contestID)
}

func ContestantPath(contestID, contestantID string) string {
	return fmt.Sprintf("contests/%s/contestants/%s", contestID, contestantID)
}

func ScoresCollection(contestID, contestantID string) string {
	return fmt.Sprintf("contests/%s/contestants/%s/scores", contestID, contestantID)
}

func ScorePath(contestID, contestantID, userID string) string {
	return fmt.Sprintf("contests/%s/contestants/%s/scores/%s", contestID, contestantID, userID)
}

// Parent returns the collection path a document path belongs to.
func Parent(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// ID returns the last segment of a path.
func ID(path string) string {
	idx := strings.LastIndexByte(path, '/')
	return path[idx+1:]
}
