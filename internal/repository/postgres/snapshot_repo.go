package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/merge"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// SnapshotRepo stores full point-in-time project copies in PostgreSQL.
type SnapshotRepo struct{ db *DB }

// NewSnapshotRepo constructs a snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

const (
	selProjectState = `
SELECT k.name, k.is_plural, k.comment, t.language, t.value, t.status
FROM resource_keys k
LEFT JOIN translations t ON t.key_id = k.id
WHERE k.project_id=$1
ORDER BY k.name, t.language`

	insSnapshot = `INSERT INTO snapshots (id, project_id, description, type, key_count, translation_count, created_by, data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	selSnapshotPage = `
SELECT id, description, type, key_count, translation_count, created_by, created_at
FROM snapshots
WHERE project_id=$1
ORDER BY created_at DESC`

	selSnapshotOne = `
SELECT id, description, type, key_count, translation_count, created_by, created_at, data
FROM snapshots
WHERE project_id=$1 AND id=$2`

	delSnapshot = `DELETE FROM snapshots WHERE project_id=$1 AND id=$2`

	delScheduledBeyond = `
DELETE FROM snapshots
WHERE project_id=$1 AND type='scheduled' AND id NOT IN (
    SELECT id FROM snapshots
    WHERE project_id=$1 AND type='scheduled'
    ORDER BY created_at DESC
    LIMIT $2
)`

	delAllProjectKeys = `DELETE FROM resource_keys WHERE project_id=$1`

	insKeyWithComment = `INSERT INTO resource_keys (id, project_id, name, is_plural, comment) VALUES ($1,$2,$3,$4,$5)`
)

// readProjectState reads every key with its translations, ordered for a
// stable serialized form.
func readProjectState(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, projectID uuid.UUID) ([]model.SnapshotKey, int, error) {
	rows, err := q.Query(ctx, selProjectState, projectID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		data       []model.SnapshotKey
		nTr        int
		currentKey *model.SnapshotKey
	)
	for rows.Next() {
		var (
			name, comment string
			isPlural      bool
			lang, status  *string
			raw           []byte
		)
		if err = rows.Scan(&name, &isPlural, &comment, &lang, &raw, &status); err != nil {
			return nil, 0, err
		}
		if currentKey == nil || currentKey.Name != name {
			data = append(data, model.SnapshotKey{Name: name, IsPlural: isPlural, Comment: comment})
			currentKey = &data[len(data)-1]
		}
		if lang == nil {
			continue // key without translations yet
		}
		var v model.Value
		if err = scanValue(raw, &v); err != nil {
			return nil, 0, err
		}
		currentKey.Translations = append(currentKey.Translations, model.SnapshotTranslation{
			Language: *lang,
			Value:    v,
			Status:   model.Status(*status),
		})
		nTr++
	}
	return data, nTr, rows.Err()
}

// Create captures current project state under the given metadata.
func (r *SnapshotRepo) Create(ctx context.Context, projectID uuid.UUID, snap model.Snapshot) (out *model.Snapshot, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if err = checkProject(ctx, tx, projectID); err != nil {
		return nil, err
	}

	data, nTr, err := readProjectState(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	snap.ProjectID = projectID
	snap.Data = data
	snap.KeyCount = len(data)
	snap.TranslationCount = nTr
	if _, err = tx.Exec(ctx, insSnapshot,
		snap.ID, projectID, snap.Description, snap.Type,
		snap.KeyCount, snap.TranslationCount, snap.CreatedBy, raw,
	); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns snapshot metadata newest first, without captured data.
func (r *SnapshotRepo) List(ctx context.Context, projectID uuid.UUID) ([]model.Snapshot, error) {
	if err := checkProject(ctx, r.db.Pool, projectID); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, selSnapshotPage, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Snapshot{}
	for rows.Next() {
		var s model.Snapshot
		s.ProjectID = projectID
		if err = rows.Scan(&s.ID, &s.Description, &s.Type, &s.KeyCount, &s.TranslationCount, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns one snapshot including its captured data.
func (r *SnapshotRepo) Get(ctx context.Context, projectID uuid.UUID, snapshotID string) (*model.Snapshot, error) {
	row := r.db.Pool.QueryRow(ctx, selSnapshotOne, projectID, snapshotID)

	var (
		s   model.Snapshot
		raw []byte
	)
	s.ProjectID = projectID
	if err := row.Scan(&s.ID, &s.Description, &s.Type, &s.KeyCount, &s.TranslationCount, &s.CreatedBy, &s.CreatedAt, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrSnapshotNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.Data); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a snapshot.
func (r *SnapshotRepo) Delete(ctx context.Context, projectID uuid.UUID, snapshotID string) error {
	tag, err := r.db.Pool.Exec(ctx, delSnapshot, projectID, snapshotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrSnapshotNotFound
	}
	return nil
}

// Restore overwrites project state to match the snapshot. One transaction:
// current state is read and diffed against the captured state for the
// ledger entry, every key row is replaced, and the restore entry is
// appended. Row versions restart at 1 because the rows are new.
func (r *SnapshotRepo) Restore(ctx context.Context, projectID uuid.UUID, snap *model.Snapshot, actor model.AuthenticatedActor, message, historyID string) (sum *model.RestoreSummary, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	current, _, err := readProjectState(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	diff := merge.StateDiff(current, snap.Data)
	added, modified, deleted := merge.DiffCounts(diff)

	if _, err = tx.Exec(ctx, delAllProjectKeys, projectID); err != nil {
		return nil, err
	}
	for _, k := range snap.Data {
		keyID := uuid.Must(uuid.NewV4())
		if _, err = tx.Exec(ctx, insKeyWithComment, keyID, projectID, k.Name, k.IsPlural, k.Comment); err != nil {
			return nil, err
		}
		for _, tr := range k.Translations {
			raw, mErr := marshalValue(tr.Value)
			if mErr != nil {
				return nil, mErr
			}
			if _, err = tx.Exec(ctx, insTranslation,
				keyID, tr.Language, raw, fingerprint.Fingerprint(tr.Value), tr.Status, actor.Name,
			); err != nil {
				return nil, err
			}
		}
	}

	rawDiff, err := json.Marshal(diff)
	if err != nil {
		return nil, err
	}
	if _, err = tx.Exec(ctx, insHistory,
		historyID, projectID, model.OpRestore, actor.Source, message,
		added, modified, deleted, rawDiff, actor.Name, actor.ID,
	); err != nil {
		return nil, err
	}

	return &model.RestoreSummary{HistoryID: historyID, Added: added, Modified: modified, Deleted: deleted}, nil
}

// DeleteScheduledBeyond removes scheduled snapshots beyond the newest keep.
func (r *SnapshotRepo) DeleteScheduledBeyond(ctx context.Context, projectID uuid.UUID, keep int) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, delScheduledBeyond, projectID, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var _ repository.SnapshotRepository = (*SnapshotRepo)(nil)
