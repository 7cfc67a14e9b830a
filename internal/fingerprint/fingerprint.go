// Package fingerprint computes stable content hashes for translation values.
//
// The fingerprint is the sole basis for "has this value changed" decisions
// in the merge protocol. Values are normalized (line endings) and plural
// forms are serialized canonically (sorted form keys) before hashing, so
// byte-identical content always produces the same hash regardless of the
// platform or the order forms were entered in.
package fingerprint

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/lingosync/lingosync/internal/model"
)

// Canonical serialization markers. Form keys and language codes never
// contain control characters, so the separators cannot be forged.
const (
	plainTag  = "s\x00"
	pluralTag = "p\x00"
	fieldSep  = "\x1f"
	entrySep  = "\x1e"
)

// Empty is the fingerprint of the empty value, the implicit baseline for
// translations that do not exist yet.
var Empty = Fingerprint(model.Value{})

// EmptyAggregate is the aggregate fingerprint of a key with no surviving
// translations.
var EmptyAggregate = Aggregate(nil)

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func canonical(v model.Value) string {
	if !v.IsPlural() {
		return plainTag + normalize(v.Text)
	}
	forms := make([]string, 0, len(v.Forms))
	for f := range v.Forms {
		forms = append(forms, f)
	}
	sort.Strings(forms)
	var b strings.Builder
	b.WriteString(pluralTag)
	for _, f := range forms {
		b.WriteString(f)
		b.WriteString(fieldSep)
		b.WriteString(normalize(v.Forms[f]))
		b.WriteString(entrySep)
	}
	return b.String()
}

// Fingerprint returns the BLAKE2b-256 hex digest of the value's canonical form.
func Fingerprint(v model.Value) model.Hash {
	sum := blake2b.Sum256([]byte(canonical(v)))
	return model.Hash(hex.EncodeToString(sum[:]))
}

// Aggregate fingerprints a key's surviving non-empty translations as a
// whole, sorted by language. It is the baseline for key deletions: a client
// may only delete a key whose full translation set it has seen.
func Aggregate(values map[string]model.Value) model.Hash {
	langs := make([]string, 0, len(values))
	for l, v := range values {
		if v.IsEmpty() {
			continue
		}
		langs = append(langs, l)
	}
	sort.Strings(langs)
	var b strings.Builder
	for _, l := range langs {
		b.WriteString(l)
		b.WriteString(fieldSep)
		b.WriteString(canonical(values[l]))
		b.WriteString(entrySep)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return model.Hash(hex.EncodeToString(sum[:]))
}
