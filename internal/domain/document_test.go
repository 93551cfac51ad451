package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseToolDocument(t *testing.T) {
	doc := `{"tools":[{"name":"search","description":"find things"},{"name":"create"}]}`
	defs, err := ParseToolDocument([]byte(doc))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, "search", defs[0].Name)
	require.Equal(t, "create", defs[1].Name)
	require.JSONEq(t, `{"name":"search","description":"find things"}`, string(defs[0].Spec))
}

func TestParseToolDocumentEmptyTools(t *testing.T) {
	defs, err := ParseToolDocument([]byte(`{"tools":[]}`))
	require.NoError(t, err)
	require.Empty(t, defs)

	defs, err = ParseToolDocument([]byte(`{}`))
	require.NoError(t, err)
	require.Empty(t, defs)
}

func TestParseToolDocumentMalformed(t *testing.T) {
	for _, doc := range []string{``, `not json`, `{"tools": "nope"}`, `{"tools":[42]}`} {
		_, err := ParseToolDocument([]byte(doc))
		require.Error(t, err, "document %q", doc)
	}
}

func TestParseToolDocumentRequiresName(t *testing.T) {
	_, err := ParseToolDocument([]byte(`{"tools":[{"description":"anonymous"}]}`))
	require.Error(t, err)
}

func TestParseToolDocumentLaterDuplicateWins(t *testing.T) {
	doc := `{"tools":[{"name":"search","version":"old"},{"name":"other"},{"name":"search","version":"new"}]}`
	defs, err := ParseToolDocument([]byte(doc))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, "search", defs[0].Name)
	require.JSONEq(t, `{"name":"search","version":"new"}`, string(defs[0].Spec))
	require.Equal(t, "other", defs[1].Name)
}
