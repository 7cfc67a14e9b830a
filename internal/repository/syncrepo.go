// Package repository declares storage interfaces consumed by the services.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/lingosync/lingosync/internal/model"
)

// PushRequest carries one merge pass through the store. Proposals and
// deletions are merged against current state inside a single transaction;
// when anything applies, the ledger entry is appended in that same
// transaction.
type PushRequest struct {
	ProjectID uuid.UUID
	Actor     model.AuthenticatedActor
	Op        model.OpType
	Source    model.Source
	Message   string
	Proposals []model.ChangeProposal
	Deletions []model.Deletion

	// Strict rolls the whole transaction back on the first conflict
	// (ErrRevertConflict) instead of applying the clean parts. Used by revert.
	Strict bool

	// RevertOf names a history entry flipped from applied to reverted in the
	// same transaction. Empty for ordinary pushes.
	RevertOf string

	// AuditDiff is recorded in the ledger entry's diff without touching the
	// store (keep-remote resolutions; old equals new).
	AuditDiff []model.DiffEntry

	// HistoryID is the pre-assigned ledger entry ID.
	HistoryID string
}

// SyncRepository is the merge engine's storage side: transactional merge
// application and consistent reads for pull.
type SyncRepository interface {
	// PushBatch merges proposals and deletions against current state in one
	// transaction and appends the ledger entry when anything applied.
	// Conflicts are data, not errors, except in strict mode.
	PushBatch(ctx context.Context, req PushRequest) (*model.PushResult, error)

	// Pull exports translations matching the query. Read-only.
	Pull(ctx context.Context, projectID uuid.UUID, q model.PullQuery) (*model.PullResult, error)

	// GetTranslation returns the current value for one key+language, or
	// errs.ErrNotFound if the pair does not exist.
	GetTranslation(ctx context.Context, projectID uuid.UUID, key, language string) (*model.Translation, error)
}

// HistoryRepository reads the append-only ledger. Appending happens inside
// SyncRepository.PushBatch so entries commit atomically with their changes.
type HistoryRepository interface {
	// List returns a page of entries newest first (diff omitted) plus the
	// total entry count.
	List(ctx context.Context, projectID uuid.UUID, page, pageSize int) ([]model.HistoryEntry, int, error)

	// Get returns one entry with its full diff.
	Get(ctx context.Context, projectID uuid.UUID, historyID string) (*model.HistoryEntry, error)
}

// SnapshotRepository stores full point-in-time project copies.
type SnapshotRepository interface {
	// Create captures current project state under the given metadata.
	Create(ctx context.Context, projectID uuid.UUID, snap model.Snapshot) (*model.Snapshot, error)

	// List returns snapshot metadata newest first, without captured data.
	List(ctx context.Context, projectID uuid.UUID) ([]model.Snapshot, error)

	// Get returns one snapshot including its captured data.
	Get(ctx context.Context, projectID uuid.UUID, snapshotID string) (*model.Snapshot, error)

	// Delete removes a snapshot.
	Delete(ctx context.Context, projectID uuid.UUID, snapshotID string) error

	// Restore overwrites project state to match the snapshot and appends one
	// restore ledger entry, all in one transaction.
	Restore(ctx context.Context, projectID uuid.UUID, snap *model.Snapshot, actor model.AuthenticatedActor, message, historyID string) (*model.RestoreSummary, error)

	// DeleteScheduledBeyond removes scheduled snapshots beyond the newest
	// keep, returning how many were dropped. Manual snapshots are never swept.
	DeleteScheduledBeyond(ctx context.Context, projectID uuid.UUID, keep int) (int, error)
}

// ProjectRepository is the minimal project bootstrap surface.
type ProjectRepository interface {
	// Create inserts a project row.
	Create(ctx context.Context, name string) (*model.Project, error)

	// Get returns a project or errs.ErrProjectNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
}
