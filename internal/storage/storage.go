// Package storage provides the key-value slots the storefront persists
// client state in: the cart and the auth credential. A Backend holds many
// visitors' slots; Scope narrows it to one visitor.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: key not found")

// Backend stores opaque values under (namespace, key). Delete of a missing
// key is not an error.
type Backend interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

// Storage is a single visitor's view of a Backend.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

type scoped struct {
	backend   Backend
	namespace string
}

func Scope(b Backend, namespace string) Storage {
	return &scoped{backend: b, namespace: namespace}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.backend.Get(ctx, s.namespace, key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.backend.Put(ctx, s.namespace, key, value)
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, s.namespace, key)
}
