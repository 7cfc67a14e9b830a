package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// HistoryRepo reads the append-only ledger. Writes happen inside
// SyncRepo.PushBatch so entries commit atomically with their changes.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs a history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

const (
	selHistoryPage = `
SELECT id, op_type, source, message, added, modified, deleted, actor, actor_id, created_at, status
FROM history_entries
WHERE project_id=$1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	countHistory = `SELECT COUNT(*) FROM history_entries WHERE project_id=$1`

	selHistoryOne = `
SELECT id, op_type, source, message, added, modified, deleted, diff, actor, actor_id, created_at, status
FROM history_entries
WHERE project_id=$1 AND id=$2`
)

// List returns a page of entries newest first, diff payloads omitted.
func (r *HistoryRepo) List(ctx context.Context, projectID uuid.UUID, page, pageSize int) ([]model.HistoryEntry, int, error) {
	if err := checkProject(ctx, r.db.Pool, projectID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, countHistory, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	rows, err := r.db.Pool.Query(ctx, selHistoryPage, projectID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		e.ProjectID = projectID
		if err = rows.Scan(&e.ID, &e.Op, &e.Source, &e.Message, &e.Added, &e.Modified, &e.Deleted, &e.Actor, &e.ActorID, &e.CreatedAt, &e.Status); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Get returns one entry with its full diff.
func (r *HistoryRepo) Get(ctx context.Context, projectID uuid.UUID, historyID string) (*model.HistoryEntry, error) {
	row := r.db.Pool.QueryRow(ctx, selHistoryOne, projectID, historyID)

	var (
		e   model.HistoryEntry
		raw []byte
	)
	e.ProjectID = projectID
	if err := row.Scan(&e.ID, &e.Op, &e.Source, &e.Message, &e.Added, &e.Modified, &e.Deleted, &raw, &e.Actor, &e.ActorID, &e.CreatedAt, &e.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrHistoryNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &e.Diff); err != nil {
		return nil, err
	}
	return &e, nil
}

var _ repository.HistoryRepository = (*HistoryRepo)(nil)
