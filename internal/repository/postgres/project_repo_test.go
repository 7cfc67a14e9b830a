package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/lingosync/lingosync/internal/errs"
)

func TestProjectRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProjectRepo(db)

	mock.ExpectExec(`INSERT INTO projects`).
		WithArgs(pgxmock.AnyArg(), "webapp").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p, err := r.Create(context.Background(), "webapp")
	require.NoError(t, err)
	require.Equal(t, "webapp", p.Name)
	require.NotEqual(t, uuid.Nil, p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProjectRepo(db)

	id := uuid.Must(uuid.NewV4())
	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, created_at FROM projects WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).AddRow(id, "webapp", created))

	p, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "webapp", p.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProjectRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT id, name, created_at FROM projects WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}))

	_, err := r.Get(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrProjectNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
