package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/safar/sellanything/internal/database"
)

// Postgres keeps every collection in the documents table (see migrations).
// Keys are generated by the database, so Insert is the two-step
// insert-then-patch-id write, run in one transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (p *Postgres) Scan(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 ORDER BY seq`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		out = append(out, data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func (p *Postgres) Insert(ctx context.Context, collection string, doc any) (string, error) {
	data, err := encode(doc)
	if err != nil {
		return "", err
	}

	var id string
	err = database.WithTransaction(ctx, p.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO documents (collection, data, created_at, updated_at)
			 VALUES ($1, $2::jsonb, NOW(), NOW())
			 RETURNING id`,
			collection, string(data)).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert %s: %w", collection, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE documents
			 SET data = jsonb_set(data, '{id}', to_jsonb(id))
			 WHERE collection = $1 AND id = $2`,
			collection, id)
		if err != nil {
			return fmt.Errorf("patch %s/%s id: %w", collection, id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

func (p *Postgres) Put(ctx context.Context, collection, id string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, NOW(), NOW())
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields Fields) error {
	patch, err := encode(fields)
	if err != nil {
		return err
	}

	result, err := p.db.ExecContext(ctx,
		`UPDATE documents
		 SET data = data || $3::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *Postgres) AddToIndex(ctx context.Context, name, id string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO document_index (name, doc_id) VALUES ($1, $2)
		 ON CONFLICT (name, doc_id) DO NOTHING`,
		name, id)
	if err != nil {
		return fmt.Errorf("index %s add %s: %w", name, id, err)
	}
	return nil
}

func (p *Postgres) RemoveFromIndex(ctx context.Context, name, id string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM document_index WHERE name = $1 AND doc_id = $2`,
		name, id)
	if err != nil {
		return fmt.Errorf("index %s remove %s: %w", name, id, err)
	}
	return nil
}

func (p *Postgres) IndexMembers(ctx context.Context, name string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT doc_id FROM document_index WHERE name = $1 ORDER BY seq`,
		name)
	if err != nil {
		return nil, fmt.Errorf("index %s members: %w", name, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan index member: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}
