// Package store persists records in named tables behind a small CRUD engine.
// Callers use the typed repositories; the engine itself stays untyped.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// Table names
const (
	TablePosts     = "posts"
	TableCampaigns = "campaigns"
	TableContent   = "content"
	TableTemplates = "templates"
	TableAnalytics = "post_analytics"
	TableAlerts    = "system_alerts"
)

// ErrNotFound is returned when no record matches an id. ErrInvalidRecord
// rejects a record before it is written.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// Document is one stored record
type Document = bson.M

// Filter selects documents whose fields equal every given value
type Filter map[string]any

// Engine is the generic table store. Filters are exact-match only.
type Engine interface {
	Select(ctx context.Context, table string, filter Filter) ([]Document, error)
	Insert(ctx context.Context, table string, doc Document) (Document, error)
	Update(ctx context.Context, table string, filter Filter, patch Document) error
	Delete(ctx context.Context, table string, filter Filter) (bool, error)
}

// toDocument converts a bson-tagged struct (or map) into a Document
func toDocument(v any) (Document, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// fromDocument decodes a Document into a bson-tagged struct
func fromDocument(doc Document, out any) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, out)
}
