package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datocms/mcp-server/internal/cma"
	"github.com/datocms/mcp-server/internal/config"
)

func TestHandleExecuteReadonly_CallsBoundGETMethod(t *testing.T) {
	client := &fakeClient{
		call: func(ctx context.Context, resource, method string, args []any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
	d := testDeps(t, client, config.Config{APIToken: "tok", MaxOutputBytes: 2048})

	result, _, err := d.handleExecuteReadonly(context.Background(), nil, ExecuteMethodInput{
		Resource: "items",
		Method:   "list",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, textOf(t, result), "\"ok\": true")
}

func TestHandleExecuteDestructive_RejectsGETMethod(t *testing.T) {
	client := &fakeClient{}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleExecuteDestructive(context.Background(), nil, ExecuteMethodInput{
		Resource: "items",
		Method:   "list",
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, textOf(t, result), "readonly_method_execute")
}

func TestHandleExecuteReadonly_UnknownMethodErrors(t *testing.T) {
	d := testDeps(t, &fakeClient{}, config.Config{APIToken: "tok"})

	result, _, err := d.handleExecuteReadonly(context.Background(), nil, ExecuteMethodInput{
		Resource: "items",
		Method:   "missing",
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleExecuteReadonly_SerializesCMAError(t *testing.T) {
	client := &fakeClient{
		call: func(ctx context.Context, resource, method string, args []any) (any, error) {
			return nil, &cma.ApiError{Errors: []cma.ErrorDetail{{Code: "INVALID_FIELD", Detail: "bad field"}}}
		},
	}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleExecuteReadonly(context.Background(), nil, ExecuteMethodInput{
		Resource: "items",
		Method:   "list",
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, textOf(t, result), "bad field")
}

func TestHandleExecuteReadonly_AppliesJSONPointerFilter(t *testing.T) {
	client := &fakeClient{
		call: func(ctx context.Context, resource, method string, args []any) (any, error) {
			return map[string]any{"data": map[string]any{"id": "42"}}, nil
		},
	}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleExecuteReadonly(context.Background(), nil, ExecuteMethodInput{
		Resource: "items",
		Method:   "list",
		Filter:   "/data/id",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, textOf(t, result), "42")
}

func TestHandleSchemaInfo_FuzzyFiltersModels(t *testing.T) {
	client := &fakeClient{itemTypes: []cma.ItemType{
		{ID: "1", APIKey: "article", Name: "Article"},
		{ID: "2", APIKey: "author", Name: "Author"},
	}}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleSchemaInfo(context.Background(), nil, SchemaInfoInput{Query: "article"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	require.Contains(t, text, "\"article\"")
	require.NotContains(t, text, "\"author\"")
}

func TestHandleSchemaInfo_IncludeBlocksExpandsReferencedBlockModel(t *testing.T) {
	client := &fakeClient{itemTypes: []cma.ItemType{
		{
			ID: "1", APIKey: "article", Name: "Article",
			Fields: []cma.Field{
				{
					APIKey:    "body",
					FieldType: "rich_text",
					Validators: map[string]any{
						"rich_text_blocks": map[string]any{"item_types": []any{"2"}},
					},
				},
			},
		},
		{ID: "2", APIKey: "quote_block", Name: "Quote block"},
	}}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleSchemaInfo(context.Background(), nil, SchemaInfoInput{
		Query:         "article",
		IncludeBlocks: true,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, textOf(t, result), "quote_block")
}

func TestHandleSchemaInfo_BasicDetailsOmitsValidators(t *testing.T) {
	client := &fakeClient{itemTypes: []cma.ItemType{
		{ID: "1", APIKey: "article", Fields: []cma.Field{
			{APIKey: "title", FieldType: "string", Validators: map[string]any{"required": map[string]any{}}},
		}},
	}}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleSchemaInfo(context.Background(), nil, SchemaInfoInput{})
	require.NoError(t, err)
	require.NotContains(t, textOf(t, result), "required")
}

func TestHandleSchemaInfo_CompleteDetailsIncludesValidators(t *testing.T) {
	client := &fakeClient{itemTypes: []cma.ItemType{
		{ID: "1", APIKey: "article", Fields: []cma.Field{
			{APIKey: "title", FieldType: "string", Validators: map[string]any{"required": map[string]any{}}},
		}},
	}}
	d := testDeps(t, client, config.Config{APIToken: "tok"})

	result, _, err := d.handleSchemaInfo(context.Background(), nil, SchemaInfoInput{FieldsDetails: "complete"})
	require.NoError(t, err)
	require.Contains(t, textOf(t, result), "required")
}
