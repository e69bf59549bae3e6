package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// table is the typed view a repository has over one engine table
type table[T any] struct {
	engine Engine
	name   string
}

func (t table[T]) find(ctx context.Context, filter Filter) ([]T, error) {
	docs, err := t.engine.Select(ctx, t.name, filter)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.name, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := fromDocument(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t.name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t table[T]) get(ctx context.Context, id string) (*T, error) {
	recs, err := t.find(ctx, Filter{"_id": id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", t.name, id, ErrNotFound)
	}
	return &recs[0], nil
}

func (t table[T]) insert(ctx context.Context, rec *T) error {
	doc, err := toDocument(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.name, err)
	}
	stored, err := t.engine.Insert(ctx, t.name, doc)
	if err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return fromDocument(stored, rec)
}

func (t table[T]) save(ctx context.Context, id string, rec *T) error {
	existing, err := t.engine.Select(ctx, t.name, Filter{"_id": id})
	if err != nil {
		return fmt.Errorf("select %s: %w", t.name, err)
	}
	if len(existing) == 0 {
		return fmt.Errorf("%s %s: %w", t.name, id, ErrNotFound)
	}
	doc, err := toDocument(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.name, err)
	}
	if err := t.engine.Update(ctx, t.name, Filter{"_id": id}, doc); err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	return nil
}

func (t table[T]) delete(ctx context.Context, id string) (bool, error) {
	ok, err := t.engine.Delete(ctx, t.name, Filter{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", t.name, err)
	}
	return ok, nil
}

// Now is the timestamp repositories stamp on records. Stored times keep
// millisecond precision in UTC, so records read back compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
