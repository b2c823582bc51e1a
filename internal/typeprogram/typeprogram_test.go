package typeprogram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_FindsClientClassAndNamespacedSymbols(t *testing.T) {
	p, err := Parse(context.Background(), "testdata/client.d.ts")
	require.NoError(t, err)
	require.NotNil(t, p.ClientClass())

	simple, ok := p.Lookup("ApiTypes.ItemTypeInstancesTargetSchema")
	require.True(t, ok)
	raw, ok := p.Lookup("RawApiTypes.ItemTypeInstancesTargetSchema")
	require.True(t, ok)

	// Same bare name, different declaring namespace: must not collide.
	require.NotEqual(t, simple.Key(), raw.Key())
	require.Len(t, p.LookupAny("ItemTypeInstancesTargetSchema"), 2)
}

func TestParse_MissingClientClassIsInvariantViolation(t *testing.T) {
	_, err := Parse(context.Background(), "testdata/no_client.d.ts")
	require.Error(t, err)
}
