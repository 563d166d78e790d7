package feeds

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind names a family of feeds.
type Kind string

const (
	KindOHLCV      Kind = "ohlcv"
	KindOverview   Kind = "overview"
	KindPrediction Kind = "prediction"
)

// Key identifies one cache slot: a feed kind plus its request parameters.
type Key struct {
	Kind   Kind
	Params string
}

func (k Key) String() string { return string(k.Kind) + ":" + k.Params }

// Source fetches one feed. Decode rebuilds a value from its JSON snapshot.
type Source interface {
	Key() Key
	Fetch(ctx context.Context) (any, error)
	Decode(data []byte) (any, error)
}

type source[T any] struct {
	key   Key
	fetch func(ctx context.Context) (T, error)
}

// NewSource adapts a typed fetch function into a Source.
func NewSource[T any](kind Kind, params string, fetch func(ctx context.Context) (T, error)) Source {
	return &source[T]{key: Key{Kind: kind, Params: params}, fetch: fetch}
}

func (s *source[T]) Key() Key { return s.key }

func (s *source[T]) Fetch(ctx context.Context) (any, error) {
	v, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *source[T]) Decode(data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", s.key, err)
	}
	return v, nil
}

// Value extracts a typed value from an entry.
func Value[T any](e Entry) (T, bool) {
	v, ok := e.Value.(T)
	return v, ok
}
