package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/lingosync/lingosync/internal/fingerprint"
	"github.com/lingosync/lingosync/internal/model"
)

// stateEntry is one synced translation with the baseline hash to send on
// the next push of that key+language.
type stateEntry struct {
	Value     model.Value  `json:"value"`
	Hash      model.Hash   `json:"hash"`
	Status    model.Status `json:"status,omitempty"`
	Version   int64        `json:"version,omitempty"`
	UpdatedAt time.Time    `json:"updated_at,omitempty"`
}

// workState is the local sync state, stored next to the translation files.
// Entries are keyed by key name, then language.
type workState struct {
	Project  string                           `json:"project"`
	Server   string                           `json:"server,omitempty"`
	PulledAt *time.Time                       `json:"pulled_at,omitempty"`
	Entries  map[string]map[string]stateEntry `json:"entries"`
}

func newWorkState(project, server string) *workState {
	return &workState{Project: project, Server: server, Entries: map[string]map[string]stateEntry{}}
}

func loadState(path string) (*workState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st workState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	if st.Project == "" {
		return nil, errors.New("state file has no project (run init)")
	}
	if st.Entries == nil {
		st.Entries = map[string]map[string]stateEntry{}
	}
	return &st, nil
}

func saveState(path string, st *workState) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// baseline returns the hash to claim as the last known server state for one
// key+language. Unknown entries claim the empty hash, which the server
// treats as "I believe this does not exist yet".
func (st *workState) baseline(key, lang string) model.Hash {
	if langs, ok := st.Entries[key]; ok {
		if e, ok := langs[lang]; ok {
			return e.Hash
		}
	}
	return fingerprint.Empty
}

// keyBaseline returns the aggregate hash over every language of a key,
// claimed when deleting the whole key.
func (st *workState) keyBaseline(key string) model.Hash {
	langs, ok := st.Entries[key]
	if !ok {
		return fingerprint.EmptyAggregate
	}
	values := make(map[string]model.Value, len(langs))
	for lang, e := range langs {
		values[lang] = e.Value
	}
	return fingerprint.Aggregate(values)
}

func (st *workState) put(key, lang string, e stateEntry) {
	if st.Entries[key] == nil {
		st.Entries[key] = map[string]stateEntry{}
	}
	st.Entries[key][lang] = e
}

func (st *workState) drop(key string) { delete(st.Entries, key) }

// applyHashes records the server-confirmed hashes after a successful push
// so the next push baselines on them.
func (st *workState) applyHashes(hashes map[string]map[string]model.Hash, values map[string]map[string]model.Value) {
	for key, langs := range hashes {
		for lang, h := range langs {
			e := stateEntry{Hash: h, UpdatedAt: time.Now().UTC()}
			if v, ok := values[key][lang]; ok {
				e.Value = v
			}
			if h == fingerprint.Empty || h == "" {
				if m, ok := st.Entries[key]; ok {
					delete(m, lang)
					if len(m) == 0 {
						delete(st.Entries, key)
					}
				}
				continue
			}
			st.put(key, lang, e)
		}
	}
}
