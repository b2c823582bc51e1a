package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/datocms/mcp-server/internal/config"
)

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleResources_ListsAllWithoutQuery(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResources(context.Background(), nil, ResourcesInput{})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, textOf(t, result), "items")
}

func TestHandleResources_FuzzyFilterNarrows(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResources(context.Background(), nil, ResourcesInput{Query: "upload"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	require.Contains(t, text, "uploads")
	require.NotContains(t, text, "itemTypes")
}

func TestHandleResource_UnknownResourceErrors(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResource(context.Background(), nil, ResourceInput{Resource: "nope"})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleResource_KnownResourceListsActions(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResource(context.Background(), nil, ResourceInput{Resource: "items"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	require.Contains(t, text, "instances")
	require.Contains(t, text, "destroy")
}

func TestHandleResourceAction_BindsMatchingMethods(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResourceAction(context.Background(), nil, ResourceActionInput{
		Resource: "items",
		Action:   "instances",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	require.Contains(t, text, "list(")
	require.Contains(t, text, "rawList(")
}

func TestHandleResourceAction_UnknownActionErrors(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResourceAction(context.Background(), nil, ResourceActionInput{
		Resource: "items",
		Action:   "nonexistent",
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleResourceActionMethod_ReturnsSignatureAndReferencedTypes(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResourceActionMethod(context.Background(), nil, ResourceActionMethodInput{
		Resource: "items",
		Method:   "list",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	require.Contains(t, text, "items.list")
	require.Contains(t, text, "Read more:")
}

func TestHandleResourceActionMethod_UnknownMethodErrors(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{})
	result, _, err := d.handleResourceActionMethod(context.Background(), nil, ResourceActionMethodInput{
		Resource: "items",
		Method:   "doesNotExist",
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
}
