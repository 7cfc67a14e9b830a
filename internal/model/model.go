// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Hash is a hex-encoded content fingerprint of a translation value.
type Hash string

// Status is the review state of a translation value.
type Status string

const (
	StatusUntranslated Status = "untranslated"
	StatusTranslated   Status = "translated"
	StatusReviewed     Status = "reviewed"
	StatusApproved     Status = "approved"
)

// Valid reports whether s is a known translation status.
func (s Status) Valid() bool {
	switch s {
	case StatusUntranslated, StatusTranslated, StatusReviewed, StatusApproved:
		return true
	}
	return false
}

// OpType names the operation that produced a history entry.
type OpType string

const (
	OpPush    OpType = "push"
	OpImport  OpType = "import"
	OpResolve OpType = "resolve"
	OpRevert  OpType = "revert"
	OpRestore OpType = "restore"
)

// Source names the client class that submitted a change.
type Source string

const (
	SourceCLI    Source = "cli"
	SourceWeb    Source = "web"
	SourceGitHub Source = "github"
)

// EntryStatus is the lifecycle state of a history entry.
// The only transition is applied -> reverted.
type EntryStatus string

const (
	EntryApplied  EntryStatus = "applied"
	EntryReverted EntryStatus = "reverted"
)

// SnapshotType distinguishes user-initiated snapshots from scheduled ones.
type SnapshotType string

const (
	SnapshotManual    SnapshotType = "manual"
	SnapshotScheduled SnapshotType = "scheduled"
)

// Value is a translation value: either a plain string or a set of plural
// forms keyed by form name (one, few, many, other, ...). Forms==nil means
// plain. On the wire it serializes as a JSON string or a JSON object.
type Value struct {
	Text  string
	Forms map[string]string
}

// IsPlural reports whether the value carries plural forms.
func (v Value) IsPlural() bool { return v.Forms != nil }

// IsEmpty reports whether the value holds no content at all.
func (v Value) IsEmpty() bool { return v.Text == "" && len(v.Forms) == 0 }

// MarshalJSON encodes plain values as strings and plural values as objects.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Forms != nil {
		return json.Marshal(v.Forms)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts either a JSON string or a JSON object of plural forms.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		forms := map[string]string{}
		if err := json.Unmarshal(data, &forms); err != nil {
			return err
		}
		v.Text, v.Forms = "", forms
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value must be a string or an object of plural forms: %w", err)
	}
	v.Text, v.Forms = s, nil
	return nil
}

// PlainValue is a convenience constructor for non-plural values.
func PlainValue(s string) Value { return Value{Text: s} }

// PluralValue is a convenience constructor for plural values.
func PluralValue(forms map[string]string) Value { return Value{Forms: forms} }

// Project is the owner of keys, history and snapshots.
type Project struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ResourceKey identifies a translatable string within a project.
// Name is case-sensitive and unique per project.
type ResourceKey struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	IsPlural  bool
	Comment   string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Translation is the stored value of one key in one language.
// Invariant: Hash always equals the fingerprint of Value.
type Translation struct {
	KeyID     uuid.UUID
	Language  string
	Value     Value
	Hash      Hash
	Status    Status
	Version   int64
	UpdatedAt time.Time
	UpdatedBy string
}

// AuthenticatedActor is the caller identity resolved once at the request
// boundary and passed explicitly into every core operation.
type AuthenticatedActor struct {
	ID       uuid.UUID
	Name     string
	Source   Source
	Projects []uuid.UUID // editable projects; nil means unrestricted
}

// ChangeProposal is a client-submitted change intent. BaselineHash is the
// fingerprint of the value the client last observed (fingerprint.Empty for
// translations the client believes do not exist).
type ChangeProposal struct {
	Key          string
	Language     string
	Value        Value
	Status       Status // optional; empty keeps/derives the stored status
	BaselineHash Hash
}

// Deletion asks for a key to be removed. BaselineHash is the aggregate
// fingerprint of the key's translations as last observed by the client.
type Deletion struct {
	Key          string
	BaselineHash Hash
}

// Conflict reports a concurrent edit surfaced by the merge engine.
// Language is empty for key-level deletion conflicts.
type Conflict struct {
	Key          string
	Language     string
	Base         Value // value the client started from, recovered from the ledger
	Current      Value // value stored on the server right now
	Proposed     Value // value the client tried to push
	BaselineHash Hash
	CurrentHash  Hash
}

// PushResult is the outcome of one push, resolve or revert pass.
type PushResult struct {
	Applied   int
	Deleted   int
	Conflicts []Conflict
	NewHashes map[string]map[string]Hash // key -> language -> hash
	HistoryID string                     // empty when nothing was recorded
}

// PullQuery filters a pull export.
type PullQuery struct {
	Since    *time.Time
	Language string
	Limit    int
	Offset   int
}

// PullEntry is one key+language pair exported to a client, carrying the
// hash the client must remember as its next baseline.
type PullEntry struct {
	Key       string
	Language  string
	Value     Value
	Hash      Hash
	Status    Status
	IsPlural  bool
	Comment   string
	Version   int64
	UpdatedAt time.Time
}

// PullResult is a full or incremental export of a project's translations.
type PullResult struct {
	Entries       []PullEntry
	IsIncremental bool
}

// DiffEntry records one value change inside a history entry. Values are
// denormalized so the diff stays valid after keys are deleted. Diffs track
// values only: a key recreated by reverting its deletion starts with an
// empty comment, since comments are metadata outside the merge protocol.
type DiffEntry struct {
	Key      string `json:"key"`
	Language string `json:"language"`
	Old      Value  `json:"old"`
	New      Value  `json:"new"`
	OldHash  Hash   `json:"old_hash"`
	NewHash  Hash   `json:"new_hash"`
}

// HistoryEntry is one immutable ledger record. The diff payload never
// changes after creation; only Status may flip from applied to reverted.
type HistoryEntry struct {
	ID        string
	ProjectID uuid.UUID
	Op        OpType
	Source    Source
	Message   string
	Added     int
	Modified  int
	Deleted   int
	Diff      []DiffEntry
	Actor     string
	ActorID   uuid.UUID
	CreatedAt time.Time
	Status    EntryStatus
}

// ResolutionKind is the caller's decision for one conflict.
type ResolutionKind string

const (
	ResolutionKeepLocal  ResolutionKind = "keep-local"
	ResolutionKeepRemote ResolutionKind = "keep-remote"
	ResolutionOverride   ResolutionKind = "override"
)

// ResolutionDecision settles one conflict. Value carries the client's local
// value for keep-local and the explicit value for override; it is ignored
// for keep-remote.
type ResolutionDecision struct {
	Key        string
	Language   string
	Resolution ResolutionKind
	Value      *Value
}

// SnapshotTranslation is one captured translation inside a snapshot.
type SnapshotTranslation struct {
	Language string `json:"language"`
	Value    Value  `json:"value"`
	Status   Status `json:"status"`
}

// SnapshotKey is one captured key with all its translations.
type SnapshotKey struct {
	Name         string                `json:"name"`
	IsPlural     bool                  `json:"is_plural"`
	Comment      string                `json:"comment,omitempty"`
	Translations []SnapshotTranslation `json:"translations"`
}

// Snapshot is a full point-in-time copy of a project's keys and
// translations, independent of the history ledger.
type Snapshot struct {
	ID               string
	ProjectID        uuid.UUID
	Description      string
	Type             SnapshotType
	KeyCount         int
	TranslationCount int
	CreatedBy        string
	CreatedAt        time.Time
	Data             []SnapshotKey // nil in listings; loaded on Get/Restore/Diff
}

// SnapshotDiffEntry is one per-key/language change between two snapshots.
type SnapshotDiffEntry struct {
	Key      string
	Language string
	From     Value
	To       Value
	Change   string // added, modified or deleted
}

// RestoreSummary reports the outcome of a snapshot restore.
type RestoreSummary struct {
	HistoryID string
	Added     int
	Modified  int
	Deleted   int
}

// NewShortID returns the 8-char opaque ID used for ledger entries and
// snapshots: the leading hex of a random UUID.
func NewShortID() string {
	id := uuid.Must(uuid.NewV4())
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
