package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lingosync/lingosync/internal/model"
)

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()
	a := Fingerprint(model.PlainValue("Hello"))
	b := Fingerprint(model.PlainValue("Hello"))
	require.Equal(t, a, b)
	require.Len(t, string(a), 64)
	require.NotEqual(t, a, Fingerprint(model.PlainValue("hello")))
}

func TestFingerprint_NormalizesLineEndings(t *testing.T) {
	t.Parallel()
	lf := Fingerprint(model.PlainValue("line one\nline two"))
	crlf := Fingerprint(model.PlainValue("line one\r\nline two"))
	cr := Fingerprint(model.PlainValue("line one\rline two"))
	require.Equal(t, lf, crlf)
	require.Equal(t, lf, cr)
}

func TestFingerprint_PluralOrderIndependent(t *testing.T) {
	t.Parallel()
	a := Fingerprint(model.PluralValue(map[string]string{"one": "1 item", "other": "%d items"}))
	b := Fingerprint(model.PluralValue(map[string]string{"other": "%d items", "one": "1 item"}))
	require.Equal(t, a, b)
}

func TestFingerprint_PlainAndPluralNeverCollide(t *testing.T) {
	t.Parallel()
	plain := Fingerprint(model.PlainValue("one"))
	plural := Fingerprint(model.PluralValue(map[string]string{"one": ""}))
	require.NotEqual(t, plain, plural)
}

func TestFingerprint_Empty(t *testing.T) {
	t.Parallel()
	require.Equal(t, Empty, Fingerprint(model.Value{}))
	require.NotEqual(t, Empty, Fingerprint(model.PlainValue(" ")))
}

func TestAggregate_SortedByLanguage(t *testing.T) {
	t.Parallel()
	a := Aggregate(map[string]model.Value{
		"en": model.PlainValue("Hello"),
		"de": model.PlainValue("Hallo"),
	})
	b := Aggregate(map[string]model.Value{
		"de": model.PlainValue("Hallo"),
		"en": model.PlainValue("Hello"),
	})
	require.Equal(t, a, b)
}

func TestAggregate_SkipsEmptyValues(t *testing.T) {
	t.Parallel()
	withEmpty := Aggregate(map[string]model.Value{
		"en": model.PlainValue("Hello"),
		"fr": {},
	})
	without := Aggregate(map[string]model.Value{
		"en": model.PlainValue("Hello"),
	})
	require.Equal(t, without, withEmpty)
	require.Equal(t, EmptyAggregate, Aggregate(map[string]model.Value{"fr": {}}))
}
