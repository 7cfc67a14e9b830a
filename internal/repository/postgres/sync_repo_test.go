package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func testActor() model.AuthenticatedActor {
	return model.AuthenticatedActor{
		ID:     uuid.Must(uuid.FromString("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
		Name:   "alice",
		Source: model.SourceCLI,
	}
}

func rawValue(t *testing.T, v model.Value) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func expectProject(mock pgxmock.PgxPoolIface, projectID uuid.UUID) {
	mock.ExpectQuery(`SELECT 1 FROM projects WHERE id=\$1`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
}

func TestSyncRepo_PushBatch_ApplyUpdate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	oldVal := model.PlainValue("Hello")
	newVal := model.PlainValue("Hi")
	oldHash := fingerprint.Fingerprint(oldVal)
	newHash := fingerprint.Fingerprint(newVal)

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys WHERE project_id=\$1 AND name=\$2 FOR UPDATE`).
		WithArgs(projectID, "Greeting").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(3)))
	mock.ExpectQuery(`SELECT value, hash, status, version FROM translations WHERE key_id=\$1 AND language=\$2 FOR UPDATE`).
		WithArgs(keyID, "en").
		WillReturnRows(pgxmock.NewRows([]string{"value", "hash", "status", "version"}).
			AddRow(rawValue(t, oldVal), oldHash, model.StatusTranslated, int64(2)))
	mock.ExpectExec(`UPDATE resource_keys SET is_plural=\$2, version=version\+1, updated_at=now\(\) WHERE id=\$1`).
		WithArgs(keyID, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE translations SET value=\$3, hash=\$4, status=\$5, version=version\+1, updated_at=now\(\), updated_by=\$6 WHERE key_id=\$1 AND language=\$2`).
		WithArgs(keyID, "en", rawValue(t, newVal), newHash, model.StatusTranslated, "alice").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs("ab12cd34", projectID, model.OpPush, model.SourceCLI, "update greeting",
			0, 1, 0, pgxmock.AnyArg(), "alice", testActor().ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		Message:   "update greeting",
		HistoryID: "ab12cd34",
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: newVal, BaselineHash: oldHash},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	require.Empty(t, res.Conflicts)
	require.Equal(t, newHash, res.NewHashes["Greeting"]["en"])
	require.Equal(t, "ab12cd34", res.HistoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_CreateKey(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	val := model.PlainValue("Hello")
	hash := fingerprint.Fingerprint(val)

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Greeting").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO resource_keys \(id, project_id, name, is_plural\) VALUES \(\$1,\$2,\$3,\$4\)`).
		WithArgs(pgxmock.AnyArg(), projectID, "Greeting", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO translations \(key_id, language, value, hash, status, updated_by\)`).
		WithArgs(pgxmock.AnyArg(), "en", rawValue(t, val), hash, model.StatusTranslated, "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs("11112222", projectID, model.OpPush, model.SourceCLI, "",
			1, 0, 0, pgxmock.AnyArg(), "alice", testActor().ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		HistoryID: "11112222",
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: val, BaselineHash: fingerprint.Empty},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_Conflict_StoreUntouched(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	baseVal := model.PlainValue("Hello")
	curVal := model.PlainValue("Hi")
	baseHash := fingerprint.Fingerprint(baseVal)
	curHash := fingerprint.Fingerprint(curVal)

	oldDiff := []model.DiffEntry{{
		Key: "Greeting", Language: "en",
		Old: model.Value{}, New: baseVal,
		OldHash: fingerprint.Empty, NewHash: baseHash,
	}}
	rawDiff, err := json.Marshal(oldDiff)
	require.NoError(t, err)

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Greeting").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(2)))
	mock.ExpectQuery(`SELECT value, hash, status, version FROM translations`).
		WithArgs(keyID, "en").
		WillReturnRows(pgxmock.NewRows([]string{"value", "hash", "status", "version"}).
			AddRow(rawValue(t, curVal), curHash, model.StatusTranslated, int64(2)))
	// Base value recovery from the ledger; no history insert, nothing applied.
	mock.ExpectQuery(`SELECT diff FROM history_entries WHERE project_id=\$1 ORDER BY created_at DESC LIMIT 100`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"diff"}).AddRow(rawDiff))
	mock.ExpectCommit()

	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		HistoryID: "33334444",
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: model.PlainValue("Hey"), BaselineHash: baseHash},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Applied)
	require.Len(t, res.Conflicts, 1)

	c := res.Conflicts[0]
	require.Equal(t, baseVal, c.Base)
	require.Equal(t, curVal, c.Current)
	require.Equal(t, model.PlainValue("Hey"), c.Proposed)
	require.Equal(t, curHash, c.CurrentHash)
	require.Empty(t, res.HistoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_ConvergentNoOp(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	curVal := model.PlainValue("Hi")
	curHash := fingerprint.Fingerprint(curVal)
	staleHash := fingerprint.Fingerprint(model.PlainValue("Hello"))

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Greeting").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(2)))
	mock.ExpectQuery(`SELECT value, hash, status, version FROM translations`).
		WithArgs(keyID, "en").
		WillReturnRows(pgxmock.NewRows([]string{"value", "hash", "status", "version"}).
			AddRow(rawValue(t, curVal), curHash, model.StatusTranslated, int64(2)))
	mock.ExpectCommit()

	// Same value pushed from a stale baseline: no conflict, no write.
	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		HistoryID: "55556666",
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: curVal, BaselineHash: staleHash},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Applied)
	require.Empty(t, res.Conflicts)
	require.Equal(t, curHash, res.NewHashes["Greeting"]["en"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_DeleteKey(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	val := model.PlainValue("Hello")
	aggregate := fingerprint.Aggregate(map[string]model.Value{"en": val})

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Obsolete").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(1)))
	mock.ExpectQuery(`SELECT language, value FROM translations WHERE key_id=\$1 FOR UPDATE`).
		WithArgs(keyID).
		WillReturnRows(pgxmock.NewRows([]string{"language", "value"}).AddRow("en", rawValue(t, val)))
	mock.ExpectExec(`DELETE FROM resource_keys WHERE id=\$1`).
		WithArgs(keyID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs("77778888", projectID, model.OpPush, model.SourceCLI, "",
			0, 0, 1, pgxmock.AnyArg(), "alice", testActor().ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		HistoryID: "77778888",
		Deletions: []model.Deletion{{Key: "Obsolete", BaselineHash: aggregate}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)
	require.Empty(t, res.Conflicts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_DeleteMissingKeyIsNoOp(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Gone").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		HistoryID: "9999aaaa",
		Deletions: []model.Deletion{{Key: "Gone", BaselineHash: fingerprint.EmptyAggregate}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Deleted)
	require.Empty(t, res.Conflicts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_StrictConflictRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	curVal := model.PlainValue("newer still")
	curHash := fingerprint.Fingerprint(curVal)

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Greeting").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(3)))
	mock.ExpectQuery(`SELECT value, hash, status, version FROM translations`).
		WithArgs(keyID, "en").
		WillReturnRows(pgxmock.NewRows([]string{"value", "hash", "status", "version"}).
			AddRow(rawValue(t, curVal), curHash, model.StatusTranslated, int64(3)))
	mock.ExpectRollback()

	_, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpRevert,
		Source:    model.SourceCLI,
		HistoryID: "bbbbcccc",
		Strict:    true,
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: model.PlainValue("Hello"),
				BaselineHash: fingerprint.Fingerprint(model.PlainValue("Hi"))},
		},
	})
	require.ErrorIs(t, err, errs.ErrRevertConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_RevertOfAlreadyReverted(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	curVal := model.PlainValue("Hi")
	curHash := fingerprint.Fingerprint(curVal)
	oldVal := model.PlainValue("Hello")

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Greeting").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(2)))
	mock.ExpectQuery(`SELECT value, hash, status, version FROM translations`).
		WithArgs(keyID, "en").
		WillReturnRows(pgxmock.NewRows([]string{"value", "hash", "status", "version"}).
			AddRow(rawValue(t, curVal), curHash, model.StatusTranslated, int64(2)))
	mock.ExpectExec(`UPDATE resource_keys SET is_plural=\$2`).
		WithArgs(keyID, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE translations SET`).
		WithArgs(keyID, "en", rawValue(t, oldVal), fingerprint.Fingerprint(oldVal), model.StatusTranslated, "alice").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs("ddddeeee", projectID, model.OpRevert, model.SourceCLI, "revert",
			0, 1, 0, pgxmock.AnyArg(), "alice", testActor().ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE history_entries SET status='reverted' WHERE project_id=\$1 AND id=\$2 AND status='applied'`).
		WithArgs(projectID, "ab12cd34").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpRevert,
		Source:    model.SourceCLI,
		Message:   "revert",
		HistoryID: "ddddeeee",
		Strict:    true,
		RevertOf:  "ab12cd34",
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: oldVal, BaselineHash: curHash},
		},
	})
	require.ErrorIs(t, err, errs.ErrAlreadyReverted)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A convergent revert (the old values are already back in the store, e.g.
// someone pushed them manually first) writes no translation rows, but the
// revert entry is appended and the target flipped in the same transaction.
func TestSyncRepo_PushBatch_ConvergentRevertStillLogged(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keyID := uuid.Must(uuid.NewV4())

	oldVal := model.PlainValue("Hello")
	oldHash := fingerprint.Fingerprint(oldVal)
	newHash := fingerprint.Fingerprint(model.PlainValue("Hi"))

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT id, is_plural, version FROM resource_keys`).
		WithArgs(projectID, "Greeting").
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_plural", "version"}).AddRow(keyID, false, int64(3)))
	// store already holds the old value again
	mock.ExpectQuery(`SELECT value, hash, status, version FROM translations`).
		WithArgs(keyID, "en").
		WillReturnRows(pgxmock.NewRows([]string{"value", "hash", "status", "version"}).
			AddRow(rawValue(t, oldVal), oldHash, model.StatusTranslated, int64(3)))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs("ddddeeee", projectID, model.OpRevert, model.SourceCLI, "revert",
			0, 0, 0, pgxmock.AnyArg(), "alice", testActor().ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE history_entries SET status='reverted' WHERE project_id=\$1 AND id=\$2 AND status='applied'`).
		WithArgs(projectID, "ab12cd34").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := r.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpRevert,
		Source:    model.SourceCLI,
		Message:   "revert",
		HistoryID: "ddddeeee",
		Strict:    true,
		RevertOf:  "ab12cd34",
		Proposals: []model.ChangeProposal{
			{Key: "Greeting", Language: "en", Value: oldVal, BaselineHash: newHash},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Applied)
	require.Empty(t, res.Conflicts)
	require.Equal(t, "ddddeeee", res.HistoryID)
	require.Equal(t, oldHash, res.NewHashes["Greeting"]["en"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_PushBatch_ProjectNotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM projects WHERE id=\$1`).
		WithArgs(projectID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.PushBatch(context.Background(), repository.PushRequest{
		ProjectID: projectID,
		Actor:     testActor(),
		Op:        model.OpPush,
		Source:    model.SourceCLI,
		HistoryID: "ffff0000",
	})
	require.ErrorIs(t, err, errs.ErrProjectNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_Pull_Incremental(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	val := model.PlainValue("Hi")
	hash := fingerprint.Fingerprint(val)
	updated := since.Add(time.Minute)

	expectProject(mock, projectID)
	mock.ExpectQuery(`SELECT k.name, k.is_plural, k.comment, t.language, t.value, t.hash, t.status, t.version, t.updated_at FROM translations t JOIN resource_keys k ON k.id = t.key_id WHERE k.project_id = \$1 AND t.updated_at > \$2 ORDER BY k.name, t.language`).
		WithArgs(projectID, since).
		WillReturnRows(pgxmock.NewRows([]string{"name", "is_plural", "comment", "language", "value", "hash", "status", "version", "updated_at"}).
			AddRow("Greeting", false, "", "en", rawValue(t, val), hash, model.StatusTranslated, int64(2), updated))

	res, err := r.Pull(ctx, projectID, model.PullQuery{Since: &since})
	require.NoError(t, err)
	require.True(t, res.IsIncremental)
	require.Len(t, res.Entries, 1)
	require.Equal(t, "Greeting", res.Entries[0].Key)
	require.Equal(t, hash, res.Entries[0].Hash)
	require.Equal(t, val, res.Entries[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_Pull_FullExport(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	expectProject(mock, projectID)
	mock.ExpectQuery(`FROM translations t JOIN resource_keys k ON k.id = t.key_id WHERE k.project_id = \$1 ORDER BY k.name, t.language`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "is_plural", "comment", "language", "value", "hash", "status", "version", "updated_at"}))

	res, err := r.Pull(context.Background(), projectID, model.PullQuery{})
	require.NoError(t, err)
	require.False(t, res.IsIncremental)
	require.Empty(t, res.Entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRepo_GetTranslation_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSyncRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`JOIN resource_keys k ON k.id = t.key_id WHERE k.project_id=\$1 AND k.name=\$2 AND t.language=\$3`).
		WithArgs(projectID, "Missing", "en").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetTranslation(context.Background(), projectID, "Missing", "en")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
