package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"veiled-verse/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Postgres keeps every collection in one JSONB table (see db.InitSchema).
type Postgres struct {
	db *db.DB
}

func NewPostgres(database *db.DB) *Postgres {
	return &Postgres{db: database}
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("get", err)
	}
	return decodeRow(raw, id)
}

func (p *Postgres) Create(ctx context.Context, collection string, data Document) (string, error) {
	id := uuid.NewString()
	raw, err := encodeRow(data)
	if err != nil {
		return "", err
	}

	_, err = p.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)",
		collection, id, raw,
	)
	if err != nil {
		return "", classify("create", err)
	}
	return id, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data Document) error {
	raw, err := encodeRow(data)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, collection, id, raw)
	if err != nil {
		return classify("set", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch Document) error {
	raw, err := encodeRow(patch)
	if err != nil {
		return err
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`, collection, id, raw)
	if err != nil {
		return classify("update", err)
	}
	return requireRow(result)
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	result, err := p.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	)
	if err != nil {
		return classify("delete", err)
	}
	return requireRow(result)
}

func (p *Postgres) Query(ctx context.Context, collection string, where ...Condition) ([]Document, error) {
	query := "SELECT id, data FROM documents WHERE collection = $1"
	args := []any{collection}

	for _, w := range where {
		var probe Document
		switch w.Op {
		case OpEq:
			probe = Document{w.Field: w.Value}
		case OpContains:
			probe = Document{w.Field: []any{w.Value}}
		default:
			return nil, fmt.Errorf("unsupported query operator %q", w.Op)
		}
		raw, err := json.Marshal(probe)
		if err != nil {
			return nil, fmt.Errorf("failed to encode condition: %w", err)
		}
		args = append(args, raw)
		query += fmt.Sprintf(" AND data @> $%d::jsonb", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classify("scan", err)
		}
		doc, err := decodeRow(raw, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err)
	}
	return docs, nil
}

// Transact locks the row with SELECT ... FOR UPDATE for the duration of fn.
// Two transactions racing to create the same absent document resolve as
// last write wins.
func (p *Postgres) Transact(ctx context.Context, collection, id string, fn TransactFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback()

	var current Document
	var raw []byte
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE",
		collection, id,
	).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return classify("lock document", err)
	default:
		current, err = decodeRow(raw, id)
		if err != nil {
			return err
		}
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	out, err := encodeRow(next)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, collection, id, out)
	if err != nil {
		return classify("write document", err)
	}

	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

func (p *Postgres) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3)::numeric, 0) + $4)),
		    updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`, collection, id, field, delta)
	if err != nil {
		return classify("increment", err)
	}
	return requireRow(result)
}

func encodeRow(doc Document) ([]byte, error) {
	clean := merge(doc, nil)
	delete(clean, "id")
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return raw, nil
}

func decodeRow(raw []byte, id string) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	if doc == nil {
		doc = Document{}
	}
	doc["id"] = id
	return doc, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// classify wraps connection-level failures with ErrUnavailable so callers can
// tell "could not reach the store" apart from a rejected write.
func classify(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("failed to %s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception, 57P: operator intervention
		return pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P")
	}
	return false
}
