// Package docstore is a schemaless document store addressed by collection
// and id. Documents are JSON objects; typed records go through Encode and
// Decode.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable marks transport failures: the store could not be reached.
	ErrUnavailable = errors.New("document store unavailable")
)

const (
	CollectionStories      = "stories"
	CollectionUsers        = "users"
	CollectionWallets      = "wallets"
	CollectionTransactions = "transactions"
	// CollectionEmails maps a lowercased email to its user id.
	CollectionEmails       = "emails"
)

type Document map[string]any

type Op string

const (
	OpEq       Op = "=="
	OpContains Op = "array-contains"
)

type Condition struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func Contains(field string, value any) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// TransactFunc receives the current document (nil when absent) and returns
// the document to store. Returning nil leaves the document untouched.
type TransactFunc func(current Document) (Document, error)

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create stores data under a new id and returns it.
	Create(ctx context.Context, collection string, data Document) (string, error)
	// Set writes the full document, creating it when absent.
	Set(ctx context.Context, collection, id string, data Document) error
	// Update merges patch into an existing document.
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, where ...Condition) ([]Document, error)
	// Transact runs a read-modify-write on one document with no other writer
	// interleaving between the read and the write.
	Transact(ctx context.Context, collection, id string, fn TransactFunc) error
	// Increment adds delta to a numeric field of an existing document.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}

// Encode turns a JSON-tagged value into a Document.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

// Decode fills dest from doc.
func Decode(doc Document, dest any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// merge copies patch over doc, returning a new Document.
func merge(doc, patch Document) Document {
	out := make(Document, len(doc)+len(patch))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func increment(doc Document, field string, delta int64) (Document, error) {
	out := merge(doc, nil)
	switch v := out[field].(type) {
	case nil:
		out[field] = float64(delta)
	case float64:
		out[field] = v + float64(delta)
	case int64:
		out[field] = float64(v + delta)
	case int:
		out[field] = float64(int64(v) + delta)
	default:
		return nil, fmt.Errorf("field %q is not numeric", field)
	}
	return out, nil
}
