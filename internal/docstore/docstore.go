// Package docstore is a keyed collection store: documents are JSON objects
// grouped in named collections and addressed by string id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("document not found")

// Fields is a shallow, top-level merge patch.
type Fields map[string]any

// Store is the document store boundary. Scan returns documents in insertion
// order. Insert generates the key and writes it into the document's "id"
// field. Put writes a whole document under a caller-chosen key.
type Store interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Scan(ctx context.Context, collection string) ([]json.RawMessage, error)
	Insert(ctx context.Context, collection string, doc any) (string, error)
	Put(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// Index maps an index key to an insertion-ordered set of document ids.
type Index interface {
	AddToIndex(ctx context.Context, name, id string) error
	RemoveFromIndex(ctx context.Context, name, id string) error
	IndexMembers(ctx context.Context, name string) ([]string, error)
}

func GetAs[T any](ctx context.Context, s Store, collection, id string) (*T, error) {
	raw, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &out, nil
}

func ScanAs[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	raws, err := s.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func encode(doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// mergeFields applies fields on top of doc. Only top-level keys are replaced.
func mergeFields(doc []byte, fields Fields) ([]byte, error) {
	obj := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		obj[k] = data
	}
	return json.Marshal(obj)
}

func withID(doc any, id string) ([]byte, error) {
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}
	return mergeFields(data, Fields{"id": id})
}
