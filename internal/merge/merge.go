// Package merge holds the pure decision logic of the sync engine: the
// three-way hash comparison behind every push, the inverse-diff computation
// behind revert, and the state diff behind snapshot restore. Everything in
// this package is side-effect free so the protocol is testable without a
// store.
package merge

import (
	"sort"

	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/model"
)

// Action is the merge engine's verdict for one proposal.
type Action int

const (
	// Apply writes the proposed value; the client's baseline matches the
	// stored value, nobody changed it in between.
	Apply Action = iota
	// NoOp leaves the store untouched; the proposed value is already the
	// stored value (idempotent retry or convergent edit).
	NoOp
	// Conflicted surfaces a conflict; the store changed under the client
	// and the proposal differs from what is stored now.
	Conflicted
)

// Decide implements the three-way comparison of base (the client's
// remembered hash), ours (the stored hash) and theirs (the proposal's own
// fingerprint). A proposal whose fingerprint already matches the store is
// never a conflict, whatever baseline it came from.
func Decide(baseline, current, proposed model.Hash) Action {
	if proposed == current {
		return NoOp
	}
	if baseline == current {
		return Apply
	}
	return Conflicted
}

// Inverse turns a history diff into the proposals that undo it: every
// old->new pair becomes a proposal of the old value with the new value's
// fingerprint as baseline. The baseline makes revert safe: if anything
// touched the key since the entry was recorded, the inverse proposal
// conflicts instead of clobbering the newer change.
func Inverse(diff []model.DiffEntry) []model.ChangeProposal {
	out := make([]model.ChangeProposal, 0, len(diff))
	for _, d := range diff {
		out = append(out, model.ChangeProposal{
			Key:          d.Key,
			Language:     d.Language,
			Value:        d.Old,
			BaselineHash: d.NewHash,
		})
	}
	return out
}

// InvertDiff is the exact mirror of a diff, used to record what a revert
// did without re-reading the store.
func InvertDiff(diff []model.DiffEntry) []model.DiffEntry {
	out := make([]model.DiffEntry, 0, len(diff))
	for _, d := range diff {
		out = append(out, model.DiffEntry{
			Key:      d.Key,
			Language: d.Language,
			Old:      d.New,
			New:      d.Old,
			OldHash:  d.NewHash,
			NewHash:  d.OldHash,
		})
	}
	return out
}

type stateKey struct {
	key  string
	lang string
}

func flatten(data []model.SnapshotKey) map[stateKey]model.Value {
	out := make(map[stateKey]model.Value)
	for _, k := range data {
		for _, tr := range k.Translations {
			out[stateKey{k.Name, tr.Language}] = tr.Value
		}
	}
	return out
}

// StateDiff compares two full project states and returns the per-entry
// changes that turn from into to, ordered by key then language. It backs
// both snapshot diffing and the history entry written by a restore.
func StateDiff(from, to []model.SnapshotKey) []model.DiffEntry {
	fromFlat, toFlat := flatten(from), flatten(to)

	keys := make([]stateKey, 0, len(fromFlat)+len(toFlat))
	for k := range fromFlat {
		keys = append(keys, k)
	}
	for k := range toFlat {
		if _, ok := fromFlat[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].lang < keys[j].lang
	})

	var out []model.DiffEntry
	for _, k := range keys {
		oldV, hadOld := fromFlat[k]
		newV, hasNew := toFlat[k]
		if hadOld && hasNew && fingerprint.Fingerprint(oldV) == fingerprint.Fingerprint(newV) {
			continue
		}
		out = append(out, model.DiffEntry{
			Key:      k.key,
			Language: k.lang,
			Old:      oldV,
			New:      newV,
			OldHash:  fingerprint.Fingerprint(oldV),
			NewHash:  fingerprint.Fingerprint(newV),
		})
	}
	return out
}

// DiffCounts aggregates a diff into added/modified/deleted totals: an entry
// with an empty old side is an addition, an empty new side a deletion.
// Audit-only entries (old equals new, recorded by keep-remote resolutions
// and convergent reverts) count as nothing.
func DiffCounts(diff []model.DiffEntry) (added, modified, deleted int) {
	for _, d := range diff {
		switch {
		case d.OldHash == d.NewHash:
			// audit-only, no mutation
		case d.Old.IsEmpty() && !d.New.IsEmpty():
			added++
		case !d.Old.IsEmpty() && d.New.IsEmpty():
			deleted++
		default:
			modified++
		}
	}
	return added, modified, deleted
}
