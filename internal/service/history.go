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

// HistoryService reads the ledger and reverts entries.
type HistoryService interface {
	// List returns a page of entries newest first plus the total count.
	List(ctx context.Context, projectID uuid.UUID, page, pageSize int) ([]model.HistoryEntry, int, error)

	// Get returns one entry with its full diff.
	Get(ctx context.Context, projectID uuid.UUID, historyID string) (*model.HistoryEntry, error)

	// Revert applies the inverse of an entry's diff through the merge engine.
	// All-or-nothing: any conflict aborts with ErrRevertConflict and the
	// store is left untouched. A successful revert appends a new entry and
	// flips the target to reverted.
	Revert(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, historyID, message string) (*model.PushResult, error)
}

type HistoryServiceImpl struct {
	history repository.HistoryRepository
	sync    repository.SyncRepository
	maxPage int
}

// NewHistoryService constructs HistoryService with a page size cap.
func NewHistoryService(history repository.HistoryRepository, sync repository.SyncRepository, maxPage int) *HistoryServiceImpl {
	if maxPage <= 0 {
		maxPage = 100
	}
	return &HistoryServiceImpl{history: history, sync: sync, maxPage: maxPage}
}

// List clamps pagination and reads a ledger page.
func (s *HistoryServiceImpl) List(ctx context.Context, projectID uuid.UUID, page, pageSize int) ([]model.HistoryEntry, int, error) {
	if projectID == uuid.Nil {
		return nil, 0, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > s.maxPage {
		pageSize = s.maxPage
	}
	return s.history.List(ctx, projectID, page, pageSize)
}

// Get returns one entry with its full diff.
func (s *HistoryServiceImpl) Get(ctx context.Context, projectID uuid.UUID, historyID string) (*model.HistoryEntry, error) {
	if projectID == uuid.Nil || historyID == "" {
		return nil, fmt.Errorf("%w: empty project/history id", errs.ErrValidation)
	}
	return s.history.Get(ctx, projectID, historyID)
}

// Revert computes the inverse diff and submits it as a strict merge pass.
func (s *HistoryServiceImpl) Revert(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, historyID, message string) (*model.PushResult, error) {
	if projectID == uuid.Nil || historyID == "" {
		return nil, fmt.Errorf("%w: empty project/history id", errs.ErrValidation)
	}

	entry, err := s.history.Get(ctx, projectID, historyID)
	if err != nil {
		return nil, err
	}
	if entry.Status == model.EntryReverted {
		return nil, errs.ErrAlreadyReverted
	}
	if len(entry.Diff) == 0 {
		return nil, fmt.Errorf("%w: entry %s has no changes to revert", errs.ErrValidation, historyID)
	}

	if message == "" {
		message = fmt.Sprintf("Revert %s", historyID)
	}

	// Proposals are baselined on the entry's recorded new values: if any
	// intervening change touched the same keys, the strict pass conflicts
	// and nothing is written.
	proposals := merge.Inverse(entry.Diff)

	return s.sync.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     actor,
		Op:        model.OpRevert,
		Source:    actor.Source,
		Message:   message,
		Proposals: proposals,
		Strict:    true,
		RevertOf:  entry.ID,
		HistoryID: model.NewShortID(),
	})
}

var _ HistoryService = (*HistoryServiceImpl)(nil)
