package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/model"
)

func TestSnapshotRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSnapshotRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	expectProject(mock, projectID)
	mock.ExpectQuery(`LEFT JOIN translations t ON t.key_id = k.id WHERE k.project_id=\$1 ORDER BY k.name, t.language`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "is_plural", "comment", "language", "value", "status"}).
			AddRow("Farewell", false, "", strPtr("en"), rawValue(t, model.PlainValue("Bye")), strPtr("translated")).
			AddRow("Greeting", false, "says hi", strPtr("de"), rawValue(t, model.PlainValue("Hallo")), strPtr("reviewed")).
			AddRow("Greeting", false, "says hi", strPtr("en"), rawValue(t, model.PlainValue("Hello")), strPtr("translated")))
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs("ab12cd34", projectID, "before release", model.SnapshotManual, 2, 3, "alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	snap, err := r.Create(context.Background(), projectID, model.Snapshot{
		ID:          "ab12cd34",
		Description: "before release",
		Type:        model.SnapshotManual,
		CreatedBy:   "alice",
	})
	require.NoError(t, err)
	require.Equal(t, 2, snap.KeyCount)
	require.Equal(t, 3, snap.TranslationCount)
	require.Len(t, snap.Data, 2)
	require.Equal(t, "Greeting", snap.Data[1].Name)
	require.Len(t, snap.Data[1].Translations, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSnapshotRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM snapshots WHERE project_id=\$1 AND id=\$2`).
		WithArgs(projectID, "deadbeef").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), projectID, "deadbeef")
	require.ErrorIs(t, err, errs.ErrSnapshotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_Delete_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSnapshotRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM snapshots WHERE project_id=\$1 AND id=\$2`).
		WithArgs(projectID, "deadbeef").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := r.Delete(context.Background(), projectID, "deadbeef")
	require.ErrorIs(t, err, errs.ErrSnapshotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_Restore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSnapshotRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	// Current state: Greeting en=Hi. Snapshot state: Greeting en=Hello.
	snap := &model.Snapshot{
		ID:        "ab12cd34",
		ProjectID: projectID,
		Type:      model.SnapshotManual,
		Data: []model.SnapshotKey{{
			Name: "Greeting",
			Translations: []model.SnapshotTranslation{
				{Language: "en", Value: model.PlainValue("Hello"), Status: model.StatusTranslated},
			},
		}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`LEFT JOIN translations t ON t.key_id = k.id WHERE k.project_id=\$1`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"name", "is_plural", "comment", "language", "value", "status"}).
			AddRow("Greeting", false, "", strPtr("en"), rawValue(t, model.PlainValue("Hi")), strPtr("translated")))
	mock.ExpectExec(`DELETE FROM resource_keys WHERE project_id=\$1`).
		WithArgs(projectID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO resource_keys`).
		WithArgs(pgxmock.AnyArg(), projectID, "Greeting", false, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO translations`).
		WithArgs(pgxmock.AnyArg(), "en", rawValue(t, model.PlainValue("Hello")),
			fingerprint.Fingerprint(model.PlainValue("Hello")), model.StatusTranslated, "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO history_entries`).
		WithArgs("eeee1111", projectID, model.OpRestore, model.SourceWeb, "rollback",
			0, 1, 0, pgxmock.AnyArg(), "alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	actor := testActor()
	actor.Source = model.SourceWeb
	sum, err := r.Restore(context.Background(), projectID, snap, actor, "rollback", "eeee1111")
	require.NoError(t, err)
	require.Equal(t, "eeee1111", sum.HistoryID)
	require.Equal(t, 1, sum.Modified)
	require.Equal(t, 0, sum.Added)
	require.Equal(t, 0, sum.Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_DeleteScheduledBeyond(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSnapshotRepo(db)

	projectID := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM snapshots WHERE project_id=\$1 AND type='scheduled'`).
		WithArgs(projectID, 5).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := r.DeleteScheduledBeyond(context.Background(), projectID, 5)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSnapshotRepo(db)

	projectID := uuid.Must(uuid.NewV4())
	created := time.Now().UTC()

	expectProject(mock, projectID)
	mock.ExpectQuery(`FROM snapshots WHERE project_id=\$1 ORDER BY created_at DESC`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "description", "type", "key_count", "translation_count", "created_by", "created_at"}).
			AddRow("ab12cd34", "nightly", model.SnapshotScheduled, 10, 30, "scheduler", created))

	snaps, err := r.List(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Nil(t, snaps[0].Data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
