package signature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datocms/mcp-server/internal/typeprogram"
)

func mustProgram(t *testing.T) *typeprogram.Program {
	t.Helper()
	p, err := typeprogram.Parse(context.Background(), "../typeprogram/testdata/client.d.ts")
	require.NoError(t, err)
	return p
}

func TestExtract_ItemsList(t *testing.T) {
	p := mustProgram(t)

	methods, ok := Extract(p, "items", "list")
	require.True(t, ok)
	require.Len(t, methods, 1)

	m := methods[0]
	require.Equal(t, "list", m.MethodName)
	require.Contains(t, m.ReturnType, "Promise")
	require.NotEmpty(t, m.Referenced)
	require.Equal(t,
		"https://www.datocms.com/docs/content-management-api/resources/item/instances",
		m.ActionURL)
}

func TestExtract_ListVsRawListReferenceDistinctSymbols(t *testing.T) {
	p := mustProgram(t)

	list, ok := Extract(p, "items", "list")
	require.True(t, ok)
	rawList, ok := Extract(p, "items", "rawList")
	require.True(t, ok)

	var listKey, rawKey string
	listMatches, rawMatches := 0, 0
	for k, s := range list[0].Referenced {
		switch s.QualifiedName {
		case "ApiTypes.ItemTypeInstancesTargetSchema":
			listKey = k
			listMatches++
		case "RawApiTypes.ItemTypeInstancesTargetSchema":
			t.Fatalf("list.Referenced must not contain the raw shape %s", s.QualifiedName)
		}
	}
	for k, s := range rawList[0].Referenced {
		switch s.QualifiedName {
		case "RawApiTypes.ItemTypeInstancesTargetSchema":
			rawKey = k
			rawMatches++
		case "ApiTypes.ItemTypeInstancesTargetSchema":
			t.Fatalf("rawList.Referenced must not contain the non-raw shape %s", s.QualifiedName)
		}
	}

	require.NotEmpty(t, listKey)
	require.NotEmpty(t, rawKey)
	require.NotEqual(t, listKey, rawKey)
	require.Equal(t, 1, listMatches, "list.Referenced must contain exactly one ItemTypeInstancesTargetSchema symbol")
	require.Equal(t, 1, rawMatches, "rawList.Referenced must contain exactly one ItemTypeInstancesTargetSchema symbol")
}

func TestExtract_UnknownMethodReturnsFalse(t *testing.T) {
	p := mustProgram(t)
	_, ok := Extract(p, "items", "bogus")
	require.False(t, ok)
}

func TestExtract_UnknownResourceReturnsFalse(t *testing.T) {
	p := mustProgram(t)
	_, ok := Extract(p, "bogus", "list")
	require.False(t, ok)
}
