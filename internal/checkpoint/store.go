// Package checkpoint holds the keyed stores every stage works against. A store
// is a single JSON document loaded in full at startup, mutated in memory, and
// rewritten in full on each flush. Keys already present are never replaced,
// which is what lets an interrupted run resume from its last flush.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/storage"
)

const contentType = "application/json"

// Store is an insertion-ordered map from article key to record, bound to an
// object path in an ObjectStore.
type Store[V any] struct {
	objects storage.ObjectStore
	name    string
	keys    []corpus.Key
	values  map[corpus.Key]V
}

// NewStore returns an empty store bound to name.
func NewStore[V any](objects storage.ObjectStore, name string) *Store[V] {
	return &Store[V]{
		objects: objects,
		name:    name,
		values:  make(map[corpus.Key]V),
	}
}

// Load reads the document at name. A missing document yields an empty store.
func Load[V any](ctx context.Context, objects storage.ObjectStore, name string) (*Store[V], error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	s := NewStore[V](objects, name)
	data, err := objects.GetObject(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("load store %s: %w", name, err)
	}
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", name, err)
	}
	return s, nil
}

// Name is the object path the store flushes to.
func (s *Store[V]) Name() string {
	return s.name
}

// Len returns the number of records.
func (s *Store[V]) Len() int {
	return len(s.keys)
}

// Has reports whether key is present.
func (s *Store[V]) Has(key corpus.Key) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the record for key.
func (s *Store[V]) Get(key corpus.Key) (V, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Put stores value under key unless the key already exists. It reports whether
// the value was added.
func (s *Store[V]) Put(key corpus.Key, value V) bool {
	if _, ok := s.values[key]; ok {
		return false
	}
	s.values[key] = value
	s.keys = append(s.keys, key)
	return true
}

// Keys returns the keys in insertion order.
func (s *Store[V]) Keys() []corpus.Key {
	return append([]corpus.Key(nil), s.keys...)
}

// Each visits records in insertion order until fn returns false.
func (s *Store[V]) Each(fn func(key corpus.Key, value V) bool) {
	for _, k := range s.keys {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

// Flush writes the whole store to its object path and returns the object URI.
func (s *Store[V]) Flush(ctx context.Context) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("flush %s: object store is required", s.name)
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode store %s: %w", s.name, err)
	}
	uri, err := s.objects.PutObject(ctx, s.name, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("flush %s: %w", s.name, err)
	}
	return uri, nil
}

// MarshalJSON encodes the store as one JSON object keyed by decimal key
// strings, preserving insertion order.
func (s *Store[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('"')
		buf.WriteString(k.String())
		buf.WriteString(`": `)
		raw, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode key %s: %w", k, err)
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON merges a JSON object into the store, keeping the document's
// key order. Keys already present keep their existing value.
func (s *Store[V]) UnmarshalJSON(data []byte) error {
	if s.values == nil {
		s.values = make(map[corpus.Key]V)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		rawKey, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		key, err := corpus.ParseKey(rawKey)
		if err != nil {
			return fmt.Errorf("parse key %q: %w", rawKey, err)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode value for key %s: %w", rawKey, err)
		}
		s.Put(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read closing token: %w", err)
	}
	return nil
}
