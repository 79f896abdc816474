package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/localrag/localrag/internal/index"
)

// IndexRepo persists the live index entries so a restart can warm-load
// the in-memory index instead of re-embedding every document.
type IndexRepo struct {
	db *sql.DB
}

func NewIndexRepo(db *sql.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

var indexEntryFields = []string{"chunk_id", "document_id", "seq", "text", "start_off", "end_off", "embedding"}

// SaveDocumentEntries replaces the persisted rows of one document in a
// single transaction, matching the index's all-or-nothing insert.
func (r *IndexRepo) SaveDocumentEntries(ctx context.Context, documentID string, entries []*index.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	delSQL, delArgs, err := builder.BuildDelete("index_entries", map[string]interface{}{"document_id": documentID})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, delSQL, delArgs...); err != nil {
		return err
	}
	if len(entries) > 0 {
		rows := make([]map[string]interface{}, 0, len(entries))
		for _, e := range entries {
			blob, err := json.Marshal(e.Vector)
			if err != nil {
				return err
			}
			rows = append(rows, map[string]interface{}{
				"chunk_id":    e.ChunkID,
				"document_id": e.DocumentID,
				"seq":         e.Seq,
				"text":        e.Text,
				"start_off":   e.Start,
				"end_off":     e.End,
				"embedding":   blob,
			})
		}
		insSQL, insArgs, err := builder.BuildInsert("index_entries", rows)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insSQL, insArgs...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *IndexRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	sqlStr, args, err := builder.BuildDelete("index_entries", map[string]interface{}{"document_id": documentID})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *IndexRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM index_entries")
	return err
}

// LoadAll returns persisted entries ordered the way they were indexed,
// so insertion-order tie-breaking survives a restart.
func (r *IndexRepo) LoadAll(ctx context.Context) ([]*index.Entry, error) {
	where := map[string]interface{}{
		"_orderby": "rowid asc",
	}
	sqlStr, args, err := builder.BuildSelect("index_entries", where, indexEntryFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*index.Entry
	for rows.Next() {
		var e index.Entry
		var blob []byte
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &e.Seq, &e.Text, &e.Start, &e.End, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &e.Vector); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
