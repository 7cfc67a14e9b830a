package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// ProjectRepo is the minimal project bootstrap surface.
type ProjectRepo struct{ db *DB }

// NewProjectRepo constructs a project repository.
func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

const (
	insProject    = `INSERT INTO projects (id, name) VALUES ($1,$2)`
	selProjectOne = `SELECT id, name, created_at FROM projects WHERE id=$1`
)

// Create inserts a project row.
func (r *ProjectRepo) Create(ctx context.Context, name string) (*model.Project, error) {
	id := uuid.Must(uuid.NewV4())
	if _, err := r.db.Pool.Exec(ctx, insProject, id, name); err != nil {
		return nil, err
	}
	return &model.Project{ID: id, Name: name}, nil
}

// Get returns a project by ID.
func (r *ProjectRepo) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	if err := r.db.Pool.QueryRow(ctx, selProjectOne, id).Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

var _ repository.ProjectRepository = (*ProjectRepo)(nil)
