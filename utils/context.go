package utils

import (
	"context"
	"time"
)

const (
	// StoreTimeout bounds a handler's reads and writes against the store
	StoreTimeout = 10 * time.Second

	// ExternalTimeout bounds calls that leave the process: scraping, generation, publishing
	ExternalTimeout = 90 * time.Second

	// ProbeTimeout is for health and auth checks
	ProbeTimeout = 5 * time.Second
)

// WithStoreTimeout creates a context bounded by StoreTimeout
func WithStoreTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, StoreTimeout)
}

// WithExternalTimeout creates a context bounded by ExternalTimeout
func WithExternalTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ExternalTimeout)
}

// WithProbeTimeout creates a context bounded by ProbeTimeout
func WithProbeTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ProbeTimeout)
}
