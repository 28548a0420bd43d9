package store

import (
	"context"
	"errors"
	"log"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("store: document not found")

// Filter is a Mongo-shaped query document. Values are either literals
// (equality match) or operator maps supporting $exists, $gt, $gte, $lte
// and $ne.
type Filter map[string]any

// Update is a Mongo-shaped update document with $set and $inc sections.
type Update map[string]any

// Collection is the minimal query surface shared by the MongoDB backend
// and the local JSON-file backend. Callers cannot tell which one they got.
type Collection interface {
	FindOne(ctx context.Context, filter Filter, out any) error
	Find(ctx context.Context, filter Filter, out any) error
	InsertOne(ctx context.Context, doc any) error
	UpdateOne(ctx context.Context, filter Filter, update Update, upsert bool) error
	UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	CountDocuments(ctx context.Context, filter Filter) (int64, error)
}

const (
	BackendMongo = "mongo"
	BackendJSON  = "json"
)

// Store bundles the application collections over whichever backend is live.
type Store struct {
	Users      Collection
	Students   Collection
	Attendance Collection
	Sessions   Collection
	Links      Collection

	Backend string

	close func(context.Context) error
}

// Open connects to MongoDB at uri, and when the server is unreachable
// falls back to JSON files under dataDir. The fallback emulates the same
// query surface so the rest of the application is backend-agnostic.
func Open(ctx context.Context, uri, dbName, dataDir string) (*Store, error) {
	st, err := openMongo(ctx, uri, dbName)
	if err == nil {
		return st, nil
	}
	log.Printf("mongodb not reachable (%v), falling back to JSON files in %s", err, dataDir)
	return openJSON(dataDir)
}

// OpenJSON opens the JSON-file backend directly, skipping the MongoDB
// probe. Used by tests and offline tooling.
func OpenJSON(dataDir string) (*Store, error) {
	return openJSON(dataDir)
}

// Close releases backend resources. A no-op for the JSON backend.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func (s *Store) collections() []Collection {
	return []Collection{s.Students, s.Attendance, s.Sessions, s.Links}
}
