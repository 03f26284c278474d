package article

import (
	"context"
	"errors"
)

var (
	// ErrStorage marks failures reported by the Store. Lookups that find
	// nothing are not failures.
	ErrStorage = errors.New("storage failure")
	// ErrEmptyKey is returned when a record would be created without a key.
	ErrEmptyKey = errors.New("empty article key")
)

// Field names an indexed article column a Predicate can match on.
type Field string

const (
	FieldKey        Field = "key"
	FieldWikidataID Field = "wikidata_id"
)

// Predicate selects articles whose Field equals Value. Limit <= 0 means no limit.
type Predicate struct {
	Field Field
	Value string
	Limit int
}

func ByKey(key string) Predicate {
	return Predicate{Field: FieldKey, Value: key}
}

func ByWikidataID(id string) Predicate {
	return Predicate{Field: FieldWikidataID, Value: id}
}

// First narrows the predicate to its first match.
func (p Predicate) First() Predicate {
	p.Limit = 1
	return p
}

// Store is the persistence the Index is built on.
//
// Query returns matches in insertion order. Insert creates a record with
// default field values and never checks for an existing key.
type Store interface {
	Insert(ctx context.Context, key string) (*Article, error)
	Query(ctx context.Context, predicate Predicate) ([]*Article, error)
	Save(ctx context.Context, article *Article) error
	Count(ctx context.Context) (int, error)
}

// Normalizer derives article keys from URLs. It reports false when the
// URL cannot be turned into a key.
type Normalizer interface {
	Normalize(rawURL string) (string, bool)
}
