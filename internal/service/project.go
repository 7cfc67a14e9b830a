package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// ProjectService is the minimal project bootstrap surface; full project
// CRUD lives outside this core.
type ProjectService interface {
	Create(ctx context.Context, name string) (*model.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
}

type ProjectServiceImpl struct {
	repo repository.ProjectRepository
}

// NewProjectService constructs ProjectService.
func NewProjectService(repo repository.ProjectRepository) *ProjectServiceImpl {
	return &ProjectServiceImpl{repo: repo}
}

// Create inserts a project with a non-empty name.
func (s *ProjectServiceImpl) Create(ctx context.Context, name string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty project name", errs.ErrValidation)
	}
	return s.repo.Create(ctx, name)
}

// Get returns a project by ID.
func (s *ProjectServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

var _ ProjectService = (*ProjectServiceImpl)(nil)
