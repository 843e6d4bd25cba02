package docstore

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Documents are deep-copied on the way in and
// out so callers never share maps with the store.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

type memCollection struct {
	docs  map[string]Document
	order []string
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]Document)}
		m.collections[name] = c
	}
	return c
}

func (c *memCollection) put(id string, doc Document) {
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
}

func (c *memCollection) remove(id string) {
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collection(collection).docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return withID(doc, id)
}

func (m *Memory) Create(ctx context.Context, collection string, data Document) (string, error) {
	doc, err := normalize(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	delete(doc, "id")
	m.collection(collection).put(id, doc)
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data Document) error {
	doc, err := normalize(data)
	if err != nil {
		return err
	}
	delete(doc, "id")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection(collection).put(id, doc)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Document) error {
	p, err := normalize(patch)
	if err != nil {
		return err
	}
	delete(p, "id")

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	c.put(id, merge(doc, p))
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	c.remove(id)
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, where ...Condition) ([]Document, error) {
	conds := make([]Condition, 0, len(where))
	for _, w := range where {
		v, err := normalizeValue(w.Value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, Condition{Field: w.Field, Op: w.Op, Value: v})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	out := []Document{}
	for _, id := range c.order {
		doc := c.docs[id]
		if !matches(doc, conds) {
			continue
		}
		d, err := withID(doc, id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) Transact(ctx context.Context, collection, id string, fn TransactFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	var current Document
	if doc, ok := c.docs[id]; ok {
		d, err := withID(doc, id)
		if err != nil {
			return err
		}
		current = d
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	doc, err := normalize(next)
	if err != nil {
		return err
	}
	delete(doc, "id")
	c.put(id, doc)
	return nil
}

func (m *Memory) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	next, err := increment(doc, field, delta)
	if err != nil {
		return err
	}
	c.put(id, next)
	return nil
}

func matches(doc Document, conds []Condition) bool {
	for _, c := range conds {
		v := doc[c.Field]
		switch c.Op {
		case OpEq:
			if !reflect.DeepEqual(v, c.Value) {
				return false
			}
		case OpContains:
			arr, ok := v.([]any)
			if !ok {
				return false
			}
			if !slices.ContainsFunc(arr, func(e any) bool { return reflect.DeepEqual(e, c.Value) }) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// normalize deep-copies data through JSON so stored values have the same
// shapes a remote store would return (numbers as float64, arrays as []any).
func normalize(data Document) (Document, error) {
	if data == nil {
		return Document{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func withID(doc Document, id string) (Document, error) {
	d, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	d["id"] = id
	return d, nil
}
