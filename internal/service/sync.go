// Package service implements the core operations over the repositories:
// push merge, pull export, conflict resolution, history and snapshots.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/repository"
)

// SyncService defines the push/pull/resolve surface of the sync engine.
type SyncService interface {
	// Push merges a batch of proposals and deletions, returning what applied
	// and what conflicted. Conflicts are data, never errors.
	Push(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, proposals []model.ChangeProposal, deletions []model.Deletion, message string) (*model.PushResult, error)

	// Pull exports current state, full or incremental.
	Pull(ctx context.Context, projectID uuid.UUID, q model.PullQuery) (*model.PullResult, error)

	// Resolve settles previously returned conflicts with per-conflict decisions.
	Resolve(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, decisions []model.ResolutionDecision) (*model.PushResult, error)
}

type SyncServiceImpl struct {
	repo     repository.SyncRepository
	maxBatch int
}

// NewSyncService constructs SyncService with batch limits.
func NewSyncService(repo repository.SyncRepository, maxBatch int) *SyncServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	return &SyncServiceImpl{repo: repo, maxBatch: maxBatch}
}

// Push validates input and delegates the atomic merge pass to the repository.
// Validation rules:
// - at least one proposal or deletion
// - every proposal has a key and a language
// - every deletion has a key
func (s *SyncServiceImpl) Push(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, proposals []model.ChangeProposal, deletions []model.Deletion, message string) (*model.PushResult, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	if len(proposals) == 0 && len(deletions) == 0 {
		return nil, fmt.Errorf("%w: empty push", errs.ErrValidation)
	}
	if len(proposals)+len(deletions) > s.maxBatch {
		return nil, fmt.Errorf("%w: batch too large (%d > %d)", errs.ErrValidation, len(proposals)+len(deletions), s.maxBatch)
	}
	for i, p := range proposals {
		if p.Key == "" {
			return nil, fmt.Errorf("%w: entry[%d] empty key", errs.ErrValidation, i)
		}
		if p.Language == "" {
			return nil, fmt.Errorf("%w: entry[%d] empty language", errs.ErrValidation, i)
		}
	}
	for i, d := range deletions {
		if d.Key == "" {
			return nil, fmt.Errorf("%w: deletion[%d] empty key", errs.ErrValidation, i)
		}
	}

	return s.repo.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     actor,
		Op:        model.OpPush,
		Source:    actor.Source,
		Message:   message,
		Proposals: proposals,
		Deletions: deletions,
		HistoryID: model.NewShortID(),
	})
}

// Pull validates the query and reads current state. Read-only.
func (s *SyncServiceImpl) Pull(ctx context.Context, projectID uuid.UUID, q model.PullQuery) (*model.PullResult, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit/offset", errs.ErrValidation)
	}
	return s.repo.Pull(ctx, projectID, q)
}

// Resolve turns decisions into a merge pass made with full knowledge of
// current state: keep-local and override proposals are baselined on the
// hash stored right now, so they apply unless a third, even newer change
// races in between (which correctly surfaces a fresh conflict). keep-remote
// decisions mutate nothing but are recorded in the resolve entry's diff.
func (s *SyncServiceImpl) Resolve(ctx context.Context, projectID uuid.UUID, actor model.AuthenticatedActor, decisions []model.ResolutionDecision) (*model.PushResult, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty project id", errs.ErrValidation)
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("%w: no decisions", errs.ErrValidation)
	}

	var (
		proposals []model.ChangeProposal
		audit     []model.DiffEntry
	)
	for i, d := range decisions {
		if d.Key == "" || d.Language == "" {
			return nil, fmt.Errorf("%w: decision[%d] empty key/language", errs.ErrValidation, i)
		}

		current := model.Value{}
		currentHash := fingerprint.Empty
		tr, err := s.repo.GetTranslation(ctx, projectID, d.Key, d.Language)
		switch {
		case err == nil:
			current = tr.Value
			currentHash = tr.Hash
		case isNotFound(err):
			// resolving against a value deleted in the meantime
		default:
			return nil, err
		}

		switch d.Resolution {
		case model.ResolutionKeepRemote:
			audit = append(audit, model.DiffEntry{
				Key: d.Key, Language: d.Language,
				Old: current, New: current,
				OldHash: currentHash, NewHash: currentHash,
			})
		case model.ResolutionKeepLocal, model.ResolutionOverride:
			if d.Value == nil {
				return nil, fmt.Errorf("%w: decision[%d] %s requires a value", errs.ErrValidation, i, d.Resolution)
			}
			proposals = append(proposals, model.ChangeProposal{
				Key:          d.Key,
				Language:     d.Language,
				Value:        *d.Value,
				BaselineHash: currentHash,
			})
		default:
			return nil, fmt.Errorf("%w: decision[%d] unknown resolution %q", errs.ErrValidation, i, d.Resolution)
		}
	}

	if len(proposals) == 0 && len(audit) == 0 {
		return &model.PushResult{NewHashes: map[string]map[string]model.Hash{}}, nil
	}

	return s.repo.PushBatch(ctx, repository.PushRequest{
		ProjectID: projectID,
		Actor:     actor,
		Op:        model.OpResolve,
		Source:    actor.Source,
		Message:   "resolve conflicts",
		Proposals: proposals,
		AuditDiff: audit,
		HistoryID: model.NewShortID(),
	})
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }

var _ SyncService = (*SyncServiceImpl)(nil)
