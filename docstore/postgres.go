package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	notifyChannel      = "docstore_events"
	listenMinReconnect = 2 * time.Second
	listenMaxReconnect = 30 * time.Second
)

// PostgresStore keeps every document in a single JSONB table keyed by path.
// Merge writes use the JSONB concatenation operator, which replaces exactly
// the top-level fields present in the incoming document. Change
// notifications ride on LISTEN/NOTIFY via a trigger installed by
// CreateSchema.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger

	mu       sync.Mutex
	listener *pq.Listener
	nextSub  int
	subs     map[string]map[int]func(Event)
}

func NewPostgresStore(db *sql.DB, dsn string, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		dsn:    dsn,
		logger: logger,
		subs:   make(map[string]map[int]func(Event)),
	}
}

// CreateSchema installs the documents table and the change-notification
// trigger. Safe to call on every startup.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
    path       TEXT PRIMARY KEY,
    parent     TEXT NOT NULL,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent);

CREATE OR REPLACE FUNCTION documents_notify() RETURNS trigger AS $$
BEGIN
    IF TG_OP = 'DELETE' THEN
        PERFORM pg_notify('docstore_events',
            json_build_object('path', OLD.path, 'deleted', true)::text);
        RETURN OLD;
    END IF;
    PERFORM pg_notify('docstore_events',
        json_build_object('path', NEW.path, 'deleted', false)::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_documents_notify ON documents;
CREATE TRIGGER trg_documents_notify
    AFTER INSERT OR UPDATE OR DELETE ON documents
    FOR EACH ROW EXECUTE FUNCTION documents_notify();
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create docstore schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE path = $1`, path,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", path, err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, doc Document, merge bool) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", path, err)
	}

	var query string
	if merge {
		query = `
			INSERT INTO documents (path, parent, doc, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (path) DO UPDATE
			SET doc = documents.doc || EXCLUDED.doc, updated_at = now()`
	} else {
		query = `
			INSERT INTO documents (path, parent, doc, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (path) DO UPDATE
			SET doc = EXCLUDED.doc, updated_at = now()`
	}

	if _, err := s.db.ExecContext(ctx, query, path, Parent(path), raw); err != nil {
		return fmt.Errorf("failed to write document %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collectionPath string) (map[string]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, doc FROM documents WHERE parent = $1`, collectionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collectionPath, err)
	}
	defer rows.Close()

	out := make(map[string]Document)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", path, err)
		}
		out[ID(path)] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, collectionPath string, fn func(Event)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		listener := pq.NewListener(s.dsn, listenMinReconnect, listenMaxReconnect,
			func(ev pq.ListenerEventType, err error) {
				if err != nil {
					s.logger.Error("docstore listener event", slog.Int("event", int(ev)), slog.Any("error", err))
				}
			})
		if err := listener.Listen(notifyChannel); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("failed to LISTEN on %s: %w", notifyChannel, err)
		}
		s.listener = listener
		go s.dispatch(listener)
	}

	s.nextSub++
	id := s.nextSub
	if s.subs[collectionPath] == nil {
		s.subs[collectionPath] = make(map[int]func(Event))
	}
	s.subs[collectionPath][id] = fn

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[collectionPath], id)
	}
	return unsubscribe, nil
}

func (s *PostgresStore) dispatch(listener *pq.Listener) {
	for n := range listener.Notify {
		if n == nil {
			// Reconnect marker: state may have been missed, nothing to replay.
			continue
		}

		var payload struct {
			Path    string `json:"path"`
			Deleted bool   `json:"deleted"`
		}
		if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
			s.logger.Error("docstore notification decode failed", slog.Any("error", err))
			continue
		}

		parent := Parent(payload.Path)

		s.mu.Lock()
		fns := make([]func(Event), 0, len(s.subs[parent]))
		for _, fn := range s.subs[parent] {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		if len(fns) == 0 {
			continue
		}

		ev := Event{Path: payload.Path, Deleted: payload.Deleted}
		if !payload.Deleted {
			doc, err := s.Get(context.Background(), payload.Path)
			if err == nil {
				ev.Doc = doc
			}
		}
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// Close shuts down the notification listener, if one was started.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil
		return err
	}
	return nil
}
