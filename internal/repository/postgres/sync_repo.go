package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/merge"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// SyncRepo implements SyncRepository using PostgreSQL. The whole merge pass
// of a push runs inside one transaction: row locks on touched keys, value
// writes, and the ledger append commit together or not at all.
type SyncRepo struct{ db *DB }

// NewSyncRepo constructs a sync repository.
func NewSyncRepo(db *DB) *SyncRepo { return &SyncRepo{db: db} }

const (
	selProject = `SELECT 1 FROM projects WHERE id=$1`
	selKey     = `SELECT id, is_plural, version FROM resource_keys WHERE project_id=$1 AND name=$2 FOR UPDATE`
	insKey     = `INSERT INTO resource_keys (id, project_id, name, is_plural) VALUES ($1,$2,$3,$4)`
	updKey     = `UPDATE resource_keys SET is_plural=$2, version=version+1, updated_at=now() WHERE id=$1`
	delKey     = `DELETE FROM resource_keys WHERE id=$1`

	selTranslation = `SELECT value, hash, status, version FROM translations WHERE key_id=$1 AND language=$2 FOR UPDATE`
	insTranslation = `INSERT INTO translations (key_id, language, value, hash, status, updated_by) VALUES ($1,$2,$3,$4,$5,$6)`
	updTranslation = `UPDATE translations SET value=$3, hash=$4, status=$5, version=version+1, updated_at=now(), updated_by=$6 WHERE key_id=$1 AND language=$2`
	delTranslation = `DELETE FROM translations WHERE key_id=$1 AND language=$2`

	selKeyTranslations = `SELECT language, value FROM translations WHERE key_id=$1 FOR UPDATE`

	insHistory = `INSERT INTO history_entries (id, project_id, op_type, source, message, added, modified, deleted, diff, actor, actor_id, status) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'applied')`

	markReverted = `UPDATE history_entries SET status='reverted' WHERE project_id=$1 AND id=$2 AND status='applied'`

	selRecentDiffs = `SELECT diff FROM history_entries WHERE project_id=$1 ORDER BY created_at DESC LIMIT 100`

	selOneTranslation = `
SELECT t.value, t.hash, t.status, t.version, t.updated_at, t.updated_by, k.id
FROM translations t
JOIN resource_keys k ON k.id = t.key_id
WHERE k.project_id=$1 AND k.name=$2 AND t.language=$3`
)

func checkProject(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, projectID uuid.UUID) error {
	var one int
	if err := q.QueryRow(ctx, selProject, projectID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrProjectNotFound
		}
		return err
	}
	return nil
}

func marshalValue(v model.Value) ([]byte, error) { return json.Marshal(v) }

func scanValue(raw []byte, v *model.Value) error {
	if len(raw) == 0 {
		*v = model.Value{}
		return nil
	}
	return json.Unmarshal(raw, v)
}

// PushBatch merges proposals and deletions against current state. Per
// proposal the client's baseline hash is compared to the stored hash;
// equal baselines apply, convergent values no-op, everything else conflicts.
func (r *SyncRepo) PushBatch(ctx context.Context, req repository.PushRequest) (res *model.PushResult, err error) {
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

	if err = checkProject(ctx, tx, req.ProjectID); err != nil {
		return nil, err
	}

	res = &model.PushResult{NewHashes: map[string]map[string]model.Hash{}}
	diff := append([]model.DiffEntry(nil), req.AuditDiff...)
	actorName := req.Actor.Name

	for _, p := range req.Proposals {
		proposedHash := fingerprint.Fingerprint(p.Value)

		keyID, keyPlural, keyExists, keyErr := lockKey(ctx, tx, req.ProjectID, p.Key)
		if keyErr != nil {
			return nil, keyErr
		}

		currentValue := model.Value{}
		currentHash := fingerprint.Empty
		currentStatus := model.StatusTranslated
		trExists := false
		if keyExists {
			var raw []byte
			var ver int64
			scanErr := tx.QueryRow(ctx, selTranslation, keyID, p.Language).Scan(&raw, &currentHash, &currentStatus, &ver)
			switch {
			case scanErr == nil:
				if err = scanValue(raw, &currentValue); err != nil {
					return nil, err
				}
				trExists = true
			case errors.Is(scanErr, pgx.ErrNoRows):
				currentHash = fingerprint.Empty
			default:
				return nil, scanErr
			}
		}

		switch merge.Decide(p.BaselineHash, currentHash, proposedHash) {
		case merge.NoOp:
			setHash(res.NewHashes, p.Key, p.Language, currentHash)
			if req.Op == model.OpRevert {
				// A convergent revert (the old value is already back) still
				// documents the pair it checked, so the revert entry is
				// never empty.
				diff = append(diff, model.DiffEntry{
					Key:      p.Key,
					Language: p.Language,
					Old:      currentValue,
					New:      currentValue,
					OldHash:  currentHash,
					NewHash:  currentHash,
				})
			}

		case merge.Conflicted:
			if req.Strict {
				return nil, fmt.Errorf("%s/%s: %w", p.Key, p.Language, errs.ErrRevertConflict)
			}
			res.Conflicts = append(res.Conflicts, model.Conflict{
				Key:          p.Key,
				Language:     p.Language,
				Current:      currentValue,
				Proposed:     p.Value,
				BaselineHash: p.BaselineHash,
				CurrentHash:  currentHash,
			})

		case merge.Apply:
			status := p.Status
			if !status.Valid() {
				status = currentStatus
			}
			if !keyExists {
				// A key recreated here (including by revert of a deletion)
				// starts with an empty comment; diffs carry values only.
				keyID = uuid.Must(uuid.NewV4())
				if _, err = tx.Exec(ctx, insKey, keyID, req.ProjectID, p.Key, p.Value.IsPlural()); err != nil {
					return nil, err
				}
			} else {
				if _, err = tx.Exec(ctx, updKey, keyID, keyPlural || p.Value.IsPlural()); err != nil {
					return nil, err
				}
			}
			switch {
			case p.Value.IsEmpty() && trExists:
				// Reverting an addition clears the stored value.
				if _, err = tx.Exec(ctx, delTranslation, keyID, p.Language); err != nil {
					return nil, err
				}
			case trExists:
				raw, mErr := marshalValue(p.Value)
				if mErr != nil {
					return nil, mErr
				}
				if _, err = tx.Exec(ctx, updTranslation, keyID, p.Language, raw, proposedHash, status, actorName); err != nil {
					return nil, err
				}
			case !p.Value.IsEmpty():
				raw, mErr := marshalValue(p.Value)
				if mErr != nil {
					return nil, mErr
				}
				if _, err = tx.Exec(ctx, insTranslation, keyID, p.Language, raw, proposedHash, status, actorName); err != nil {
					return nil, err
				}
			}
			res.Applied++
			setHash(res.NewHashes, p.Key, p.Language, proposedHash)
			diff = append(diff, model.DiffEntry{
				Key:      p.Key,
				Language: p.Language,
				Old:      currentValue,
				New:      p.Value,
				OldHash:  currentHash,
				NewHash:  proposedHash,
			})
		}
	}

	for _, d := range req.Deletions {
		keyID, _, keyExists, keyErr := lockKey(ctx, tx, req.ProjectID, d.Key)
		if keyErr != nil {
			return nil, keyErr
		}
		if !keyExists {
			continue // already gone; deletion retries stay idempotent
		}

		values, readErr := readKeyTranslations(ctx, tx, keyID)
		if readErr != nil {
			return nil, readErr
		}
		aggregate := fingerprint.Aggregate(values)
		if d.BaselineHash != aggregate {
			if req.Strict {
				return nil, fmt.Errorf("%s: %w", d.Key, errs.ErrRevertConflict)
			}
			res.Conflicts = append(res.Conflicts, model.Conflict{
				Key:          d.Key,
				BaselineHash: d.BaselineHash,
				CurrentHash:  aggregate,
			})
			continue
		}
		if _, err = tx.Exec(ctx, delKey, keyID); err != nil {
			return nil, err
		}
		res.Deleted++
		for lang, v := range values {
			diff = append(diff, model.DiffEntry{
				Key:      d.Key,
				Language: lang,
				Old:      v,
				OldHash:  fingerprint.Fingerprint(v),
				NewHash:  fingerprint.Empty,
			})
		}
	}

	if err = fillConflictBases(ctx, tx, req.ProjectID, res.Conflicts); err != nil {
		return nil, err
	}

	// A revert always gets its own ledger entry, even when every inverse
	// proposal no-ops: flipping the target to reverted without recording
	// who did it would break the ledger's audit trail.
	if res.Applied+res.Deleted > 0 || len(req.AuditDiff) > 0 || req.RevertOf != "" {
		rawDiff, mErr := json.Marshal(diff)
		if mErr != nil {
			return nil, mErr
		}
		added, modified, deleted := merge.DiffCounts(diff)
		if _, err = tx.Exec(ctx, insHistory,
			req.HistoryID, req.ProjectID, req.Op, req.Source, req.Message,
			added, modified, deleted, rawDiff, actorName, req.Actor.ID,
		); err != nil {
			return nil, err
		}
		res.HistoryID = req.HistoryID
	}

	if req.RevertOf != "" {
		tag, execErr := tx.Exec(ctx, markReverted, req.ProjectID, req.RevertOf)
		if execErr != nil {
			return nil, execErr
		}
		if tag.RowsAffected() == 0 {
			return nil, errs.ErrAlreadyReverted
		}
	}

	return res, nil
}

func lockKey(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, name string) (keyID uuid.UUID, isPlural, exists bool, err error) {
	var ver int64
	err = tx.QueryRow(ctx, selKey, projectID, name).Scan(&keyID, &isPlural, &ver)
	switch {
	case err == nil:
		return keyID, isPlural, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return uuid.Nil, false, false, nil
	default:
		return uuid.Nil, false, false, err
	}
}

func readKeyTranslations(ctx context.Context, tx pgx.Tx, keyID uuid.UUID) (map[string]model.Value, error) {
	rows, err := tx.Query(ctx, selKeyTranslations, keyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.Value{}
	for rows.Next() {
		var (
			lang string
			raw  []byte
			v    model.Value
		)
		if err = rows.Scan(&lang, &raw); err != nil {
			return nil, err
		}
		if err = scanValue(raw, &v); err != nil {
			return nil, err
		}
		out[lang] = v
	}
	return out, rows.Err()
}

// fillConflictBases recovers each conflict's base value from recent ledger
// diffs: the ledger is the only place where a value matching the client's
// stale baseline hash still exists.
func fillConflictBases(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, conflicts []model.Conflict) error {
	pending := 0
	for i := range conflicts {
		if conflicts[i].BaselineHash != fingerprint.Empty && conflicts[i].Language != "" {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}

	rows, err := tx.Query(ctx, selRecentDiffs, projectID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() && pending > 0 {
		var raw []byte
		if err = rows.Scan(&raw); err != nil {
			return err
		}
		var diff []model.DiffEntry
		if err = json.Unmarshal(raw, &diff); err != nil {
			return err
		}
		for _, d := range diff {
			for i := range conflicts {
				c := &conflicts[i]
				if !c.Base.IsEmpty() || c.Key != d.Key || c.Language != d.Language {
					continue
				}
				switch c.BaselineHash {
				case d.NewHash:
					c.Base = d.New
					pending--
				case d.OldHash:
					c.Base = d.Old
					pending--
				}
			}
		}
	}
	return rows.Err()
}

func setHash(m map[string]map[string]model.Hash, key, lang string, h model.Hash) {
	if m[key] == nil {
		m[key] = map[string]model.Hash{}
	}
	m[key][lang] = h
}

// Pull exports translations matching the query, each row carrying the hash
// the client must remember as its next baseline. Read-only; runs outside
// any explicit transaction.
func (r *SyncRepo) Pull(ctx context.Context, projectID uuid.UUID, q model.PullQuery) (*model.PullResult, error) {
	if err := checkProject(ctx, r.db.Pool, projectID); err != nil {
		return nil, err
	}

	b := sq.Select(
		"k.name", "k.is_plural", "k.comment",
		"t.language", "t.value", "t.hash", "t.status", "t.version", "t.updated_at",
	).
		From("translations t").
		Join("resource_keys k ON k.id = t.key_id").
		Where(sq.Eq{"k.project_id": projectID}).
		OrderBy("k.name", "t.language").
		PlaceholderFormat(sq.Dollar)

	if q.Since != nil {
		b = b.Where(sq.Gt{"t.updated_at": *q.Since})
	}
	if q.Language != "" {
		b = b.Where(sq.Eq{"t.language": q.Language})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &model.PullResult{IsIncremental: q.Since != nil, Entries: []model.PullEntry{}}
	for rows.Next() {
		var (
			e   model.PullEntry
			raw []byte
		)
		if err = rows.Scan(&e.Key, &e.IsPlural, &e.Comment, &e.Language, &raw, &e.Hash, &e.Status, &e.Version, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err = scanValue(raw, &e.Value); err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, e)
	}
	return res, rows.Err()
}

// GetTranslation returns the current value of one key+language pair.
func (r *SyncRepo) GetTranslation(ctx context.Context, projectID uuid.UUID, key, language string) (*model.Translation, error) {
	row := r.db.Pool.QueryRow(ctx, selOneTranslation, projectID, key, language)
	var (
		t   model.Translation
		raw []byte
	)
	t.Language = language
	if err := row.Scan(&raw, &t.Hash, &t.Status, &t.Version, &t.UpdatedAt, &t.UpdatedBy, &t.KeyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := scanValue(raw, &t.Value); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ repository.SyncRepository = (*SyncRepo)(nil)
