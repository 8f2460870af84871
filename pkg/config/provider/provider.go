// Package provider defines the config source abstraction.
//
// A Provider loads raw configuration bytes and can optionally watch the
// source for changes. The file provider is the only implementation; the
// interface keeps the loader testable with in-memory sources.
package provider

import "context"

// Type identifies the config source type.
type Type string

const (
	TypeFile   Type = "file"
	TypeStatic Type = "static"
)

// Provider abstracts config sources. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Type names the source kind for logs.
	Type() Type

	// Load returns the raw config bytes.
	Load(ctx context.Context) ([]byte, error)

	// Watch returns a channel that receives a value on every change to
	// the source, until ctx is cancelled. Sources that cannot watch
	// return a nil channel and no error.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases anything the provider holds open.
	Close() error
}

// StaticProvider serves a fixed byte slice. It exists for tests and for
// embedding a default configuration.
type StaticProvider struct {
	Data []byte
}

// Type returns TypeStatic.
func (p *StaticProvider) Type() Type { return TypeStatic }

// Load returns the static bytes.
func (p *StaticProvider) Load(ctx context.Context) ([]byte, error) { return p.Data, nil }

// Watch is not supported for static sources.
func (p *StaticProvider) Watch(ctx context.Context) (<-chan struct{}, error) { return nil, nil }

// Close is a no-op.
func (p *StaticProvider) Close() error { return nil }

var _ Provider = (*StaticProvider)(nil)
