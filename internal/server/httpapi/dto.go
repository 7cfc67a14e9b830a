package httpapi

import (
	"time"

	"github.com/lingosync/lingosync/internal/model"
)

// Wire DTOs for the JSON API. Values serialize as strings or plural-form
// objects (model.Value handles both).

type pushEntryDTO struct {
	Key          string       `json:"key"`
	Language     string       `json:"language"`
	Value        model.Value  `json:"value"`
	Status       model.Status `json:"status,omitempty"`
	BaselineHash model.Hash   `json:"baseline_hash"`
}

type deletionDTO struct {
	Key          string     `json:"key"`
	BaselineHash model.Hash `json:"baseline_hash"`
}

type pushRequestDTO struct {
	Entries   []pushEntryDTO `json:"entries"`
	Deletions []deletionDTO  `json:"deletions"`
	Message   string         `json:"message"`
}

type conflictDTO struct {
	Key          string      `json:"key"`
	Language     string      `json:"language,omitempty"`
	Base         model.Value `json:"base"`
	Current      model.Value `json:"current"`
	Proposed     model.Value `json:"proposed"`
	BaselineHash model.Hash  `json:"baseline_hash"`
	CurrentHash  model.Hash  `json:"current_hash"`
}

type pushResponseDTO struct {
	Applied   int                              `json:"applied"`
	Deleted   int                              `json:"deleted"`
	Conflicts []conflictDTO                    `json:"conflicts"`
	NewHashes map[string]map[string]model.Hash `json:"new_hashes"`
	HistoryID string                           `json:"history_id,omitempty"`
}

func toPushResponse(res *model.PushResult) pushResponseDTO {
	out := pushResponseDTO{
		Applied:   res.Applied,
		Deleted:   res.Deleted,
		Conflicts: []conflictDTO{},
		NewHashes: res.NewHashes,
		HistoryID: res.HistoryID,
	}
	for _, c := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, conflictDTO{
			Key:          c.Key,
			Language:     c.Language,
			Base:         c.Base,
			Current:      c.Current,
			Proposed:     c.Proposed,
			BaselineHash: c.BaselineHash,
			CurrentHash:  c.CurrentHash,
		})
	}
	return out
}

type pullEntryDTO struct {
	Key       string       `json:"key"`
	Language  string       `json:"language"`
	Value     model.Value  `json:"value"`
	Hash      model.Hash   `json:"hash"`
	Status    model.Status `json:"status"`
	IsPlural  bool         `json:"is_plural"`
	Comment   string       `json:"comment,omitempty"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type pullResponseDTO struct {
	Entries       []pullEntryDTO `json:"entries"`
	IsIncremental bool           `json:"is_incremental"`
}

func toPullResponse(res *model.PullResult) pullResponseDTO {
	out := pullResponseDTO{Entries: []pullEntryDTO{}, IsIncremental: res.IsIncremental}
	for _, e := range res.Entries {
		out.Entries = append(out.Entries, pullEntryDTO{
			Key:       e.Key,
			Language:  e.Language,
			Value:     e.Value,
			Hash:      e.Hash,
			Status:    e.Status,
			IsPlural:  e.IsPlural,
			Comment:   e.Comment,
			Version:   e.Version,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return out
}

type resolveDecisionDTO struct {
	Key        string       `json:"key"`
	Language   string       `json:"language"`
	Resolution string       `json:"resolution"`
	Value      *model.Value `json:"value,omitempty"`
}

type resolveRequestDTO struct {
	Decisions []resolveDecisionDTO `json:"decisions"`
}

type historyEntryDTO struct {
	ID        string            `json:"id"`
	Op        model.OpType      `json:"op"`
	Source    model.Source      `json:"source"`
	Message   string            `json:"message"`
	Added     int               `json:"added"`
	Modified  int               `json:"modified"`
	Deleted   int               `json:"deleted"`
	Actor     string            `json:"actor"`
	CreatedAt time.Time         `json:"created_at"`
	Status    model.EntryStatus `json:"status"`
	Diff      []model.DiffEntry `json:"diff,omitempty"`
}

func toHistoryEntry(e model.HistoryEntry, withDiff bool) historyEntryDTO {
	dto := historyEntryDTO{
		ID:        e.ID,
		Op:        e.Op,
		Source:    e.Source,
		Message:   e.Message,
		Added:     e.Added,
		Modified:  e.Modified,
		Deleted:   e.Deleted,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
		Status:    e.Status,
	}
	if withDiff {
		dto.Diff = e.Diff
	}
	return dto
}

type historyListDTO struct {
	Entries  []historyEntryDTO `json:"entries"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type revertRequestDTO struct {
	Message string `json:"message"`
}

type snapshotDTO struct {
	ID               string             `json:"id"`
	Description      string             `json:"description"`
	Type             model.SnapshotType `json:"type"`
	KeyCount         int                `json:"key_count"`
	TranslationCount int                `json:"translation_count"`
	CreatedBy        string             `json:"created_by"`
	CreatedAt        time.Time          `json:"created_at"`
}

func toSnapshotDTO(s model.Snapshot) snapshotDTO {
	return snapshotDTO{
		ID:               s.ID,
		Description:      s.Description,
		Type:             s.Type,
		KeyCount:         s.KeyCount,
		TranslationCount: s.TranslationCount,
		CreatedBy:        s.CreatedBy,
		CreatedAt:        s.CreatedAt,
	}
}

type createSnapshotDTO struct {
	Type        model.SnapshotType `json:"type"`
	Description string             `json:"description"`
}

type restoreRequestDTO struct {
	CreateBackupBefore bool   `json:"create_backup_before"`
	Message            string `json:"message"`
}

type restoreResponseDTO struct {
	HistoryID string       `json:"history_id"`
	Added     int          `json:"added"`
	Modified  int          `json:"modified"`
	Deleted   int          `json:"deleted"`
	Backup    *snapshotDTO `json:"backup,omitempty"`
}

type snapshotDiffEntryDTO struct {
	Key      string      `json:"key"`
	Language string      `json:"language"`
	From     model.Value `json:"from"`
	To       model.Value `json:"to"`
	Change   string      `json:"change"`
}

type createProjectDTO struct {
	Name string `json:"name"`
}

type projectDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
