package docstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

type memCollection struct {
	docs  map[string][]byte
	order []string
}

func (c *memCollection) remove(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Memory is an embedded Store and Index. It is safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	indexes     map[string]*memCollection
	newID       func() string
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		indexes:     make(map[string]*memCollection),
		newID:       uuid.NewString,
	}
}

func (m *Memory) collection(name string, create bool) *memCollection {
	c, ok := m.collections[name]
	if !ok && create {
		c = &memCollection{docs: make(map[string][]byte)}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collection(collection, false)
	if c == nil {
		return nil, ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), doc...), nil
}

func (m *Memory) Scan(ctx context.Context, collection string) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collection(collection, false)
	if c == nil {
		return []json.RawMessage{}, nil
	}
	out := make([]json.RawMessage, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, append(json.RawMessage(nil), c.docs[id]...))
	}
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id := m.newID()
	data, err := withID(doc, id)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection, true)
	c.docs[id] = data
	c.order = append(c.order, id)
	return id, nil
}

func (m *Memory) Put(ctx context.Context, collection, id string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection, true)
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = data
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection, false)
	if c == nil {
		return ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeFields(doc, fields)
	if err != nil {
		return err
	}
	c.docs[id] = merged
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection, false)
	if c == nil {
		return ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	c.remove(id)
	return nil
}

func (m *Memory) AddToIndex(ctx context.Context, name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[name]
	if !ok {
		idx = &memCollection{docs: make(map[string][]byte)}
		m.indexes[name] = idx
	}
	if _, ok := idx.docs[id]; ok {
		return nil
	}
	idx.docs[id] = nil
	idx.order = append(idx.order, id)
	return nil
}

func (m *Memory) RemoveFromIndex(ctx context.Context, name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[name]
	if !ok {
		return nil
	}
	if _, ok := idx.docs[id]; !ok {
		return nil
	}
	delete(idx.docs, id)
	idx.remove(id)
	return nil
}

func (m *Memory) IndexMembers(ctx context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[name]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, idx.order...), nil
}
