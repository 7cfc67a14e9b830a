package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/merge"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// SnapshotService manages full point-in-time project copies: the
// disaster-recovery complement to the per-key ledger.
type SnapshotService interface {
	Create(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, typ model.SnapshotType, description string) (*model.Snapshot, error)
	List(ctx context.Context, projectID uuid.UUID) ([]model.Snapshot, error)
	Get(ctx context.Context, projectID uuid.UUID, snapshotID string) (*model.Snapshot, error)
	Delete(ctx context.Context, projectID uuid.UUID, snapshotID string) error

	// Restore bulk-overwrites the store to the snapshot's captured state,
	// optionally taking a safety snapshot of current state first. The
	// overwrite is recorded as one restore ledger entry.
	Restore(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, snapshotID string, createBackupBefore bool, message string) (*model.RestoreSummary, *model.Snapshot, error)

	// Diff compares two snapshots without mutating anything.
	Diff(ctx context.Context, projectID uuid.UUID, fromID, toID string) ([]model.SnapshotDiffEntry, error)

	// Sweep drops scheduled snapshots beyond the retention count.
	Sweep(ctx context.Context, projectID uuid.UUID) (int, error)
}

type SnapshotServiceImpl struct {
	repo      repository.SnapshotRepository
	retention int
}

// NewSnapshotService constructs SnapshotService with a scheduled-snapshot
// retention count.
func NewSnapshotService(repo repository.SnapshotRepository, retention int) *SnapshotServiceImpl {
	if retention <= 0 {
		retention = 30
	}
	return &SnapshotServiceImpl{repo: repo, retention: retention}
}

// Create captures current project state.
func (s *SnapshotServiceImpl) Create(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, typ model.SnapshotType, description string) (*model.Snapshot, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	if typ != model.SnapshotManual && typ != model.SnapshotScheduled {
		return nil, fmt.Errorf("%w: unknown snapshot type %q", errs.ErrValidation, typ)
	}
	return s.repo.Create(ctx, projectID, model.Snapshot{
		ID:          model.NewShortID(),
		Description: description,
		Type:        typ,
		CreatedBy:   actor.Name,
	})
}

// List returns snapshot metadata newest first.
func (s *SnapshotServiceImpl) List(ctx context.Context, projectID uuid.UUID) ([]model.Snapshot, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	return s.repo.List(ctx, projectID)
}

// Get returns one snapshot with captured data.
func (s *SnapshotServiceImpl) Get(ctx context.Context, projectID uuid.UUID, snapshotID string) (*model.Snapshot, error) {
	if projectID == uuid.Nil || snapshotID == "" {
		return nil, fmt.Errorf("%w: empty project/snapshot id", errs.ErrValidation)
	}
	return s.repo.Get(ctx, projectID, snapshotID)
}

// Delete removes a snapshot.
func (s *SnapshotServiceImpl) Delete(ctx context.Context, projectID uuid.UUID, snapshotID string) error {
	if projectID == uuid.Nil || snapshotID == "" {
		return fmt.Errorf("%w: empty project/snapshot id", errs.ErrValidation)
	}
	return s.repo.Delete(ctx, projectID, snapshotID)
}

// Restore overwrites the store with the snapshot's state. The optional
// safety snapshot is taken first so a bad restore is itself restorable.
func (s *SnapshotServiceImpl) Restore(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, snapshotID string, createBackupBefore bool, message string) (*model.RestoreSummary, *model.Snapshot, error) {
	if projectID == uuid.Nil || snapshotID == "" {
		return nil, nil, fmt.Errorf("%w: empty project/snapshot id", errs.ErrValidation)
	}

	snap, err := s.repo.Get(ctx, projectID, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	var backup *model.Snapshot
	if createBackupBefore {
		backup, err = s.repo.Create(ctx, projectID, model.Snapshot{
			ID:          model.NewShortID(),
			Description: fmt.Sprintf("Backup before restoring %s", snapshotID),
			Type:        model.SnapshotManual,
			CreatedBy:   actor.Name,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	if message == "" {
		message = fmt.Sprintf("Restore snapshot %s", snapshotID)
	}
	sum, err := s.repo.Restore(ctx, projectID, snap, actor, message, model.NewShortID())
	if err != nil {
		return nil, nil, err
	}
	return sum, backup, nil
}

// Diff compares two snapshots' captured states.
func (s *SnapshotServiceImpl) Diff(ctx context.Context, projectID uuid.UUID, fromID, toID string) ([]model.SnapshotDiffEntry, error) {
	if projectID == uuid.Nil || fromID == "" || toID == "" {
		return nil, fmt.Errorf("%w: empty project/snapshot id", errs.ErrValidation)
	}

	from, err := s.repo.Get(ctx, projectID, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.repo.Get(ctx, projectID, toID)
	if err != nil {
		return nil, err
	}

	diff := merge.StateDiff(from.Data, to.Data)
	out := make([]model.SnapshotDiffEntry, 0, len(diff))
	for _, d := range diff {
		change := "modified"
		switch {
		case d.Old.IsEmpty() && !d.New.IsEmpty():
			change = "added"
		case !d.Old.IsEmpty() && d.New.IsEmpty():
			change = "deleted"
		}
		out = append(out, model.SnapshotDiffEntry{
			Key:      d.Key,
			Language: d.Language,
			From:     d.Old,
			To:       d.New,
			Change:   change,
		})
	}
	return out, nil
}

// Sweep enforces the scheduled-snapshot retention policy.
func (s *SnapshotServiceImpl) Sweep(ctx context.Context, projectID uuid.UUID) (int, error) {
	if projectID == uuid.Nil {
		return 0, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	return s.repo.DeleteScheduledBeyond(ctx, projectID, s.retention)
}

var _ SnapshotService = (*SnapshotServiceImpl)(nil)
