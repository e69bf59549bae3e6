package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// MemoryEngine keeps tables in process memory. Values are normalized through
// bson on the way in so filters compare the way they would against Mongo.
type MemoryEngine struct {
	mu     sync.RWMutex
	tables map[string][]Document
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{tables: make(map[string][]Document)}
}

func (m *MemoryEngine) Select(ctx context.Context, table string, filter Filter) ([]Document, error) {
	want, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Document{}
	for _, doc := range m.tables[table] {
		if matches(doc, want) {
			clone, err := toDocument(doc)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	return out, nil
}

func (m *MemoryEngine) Insert(ctx context.Context, table string, doc Document) (Document, error) {
	stored, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	if id, ok := stored["_id"].(string); !ok || id == "" {
		stored["_id"] = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.tables[table] {
		if existing["_id"] == stored["_id"] {
			return nil, fmt.Errorf("duplicate _id %v in %s", stored["_id"], table)
		}
	}
	m.tables[table] = append(m.tables[table], stored)
	return toDocument(stored)
}

func (m *MemoryEngine) Update(ctx context.Context, table string, filter Filter, patch Document) error {
	want, err := normalizeFilter(filter)
	if err != nil {
		return err
	}
	set, err := toDocument(patch)
	if err != nil {
		return err
	}
	delete(set, "_id")

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range m.tables[table] {
		if matches(doc, want) {
			for k, v := range set {
				doc[k] = v
			}
		}
	}
	return nil
}

func (m *MemoryEngine) Delete(ctx context.Context, table string, filter Filter) (bool, error) {
	want, err := normalizeFilter(filter)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.tables[table]
	kept := docs[:0]
	deleted := false
	for _, doc := range docs {
		if matches(doc, want) {
			deleted = true
			continue
		}
		kept = append(kept, doc)
	}
	m.tables[table] = kept
	return deleted, nil
}

func normalizeFilter(filter Filter) (Document, error) {
	if len(filter) == 0 {
		return Document{}, nil
	}
	return toDocument(map[string]any(filter))
}

func matches(doc, want Document) bool {
	for k, v := range want {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
