package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datocms/mcp-server/internal/cma"
	"github.com/datocms/mcp-server/internal/config"
	"github.com/datocms/mcp-server/internal/hyperschema"
	"github.com/datocms/mcp-server/internal/resourceschema"
	"github.com/datocms/mcp-server/internal/scriptstore"
	"github.com/datocms/mcp-server/internal/scriptvalidate"
	"github.com/datocms/mcp-server/internal/workspace"
)

const clientDeclPath = "../typeprogram/testdata/client.d.ts"

// fakeClient is a minimal in-memory stand-in for the real CMA client.
type fakeClient struct {
	itemTypes []cma.ItemType
	call      func(ctx context.Context, resource, method string, args []any) (any, error)
}

func (f *fakeClient) Config() cma.Config { return cma.Config{} }

func (f *fakeClient) Call(ctx context.Context, resource, method string, args []any) (any, error) {
	if f.call != nil {
		return f.call(ctx, resource, method, args)
	}
	return map[string]any{"resource": resource, "method": method}, nil
}

func (f *fakeClient) Site(ctx context.Context) (cma.Site, error) {
	return cma.Site{Locales: []string{"en"}}, nil
}

func (f *fakeClient) ItemTypes(ctx context.Context) ([]cma.ItemType, error) {
	return f.itemTypes, nil
}

// hyperschemaFixture serves a minimal hyperschema document whose
// "item"/"instances" link matches testdata/client.d.ts's Read more:
// URL and resourceschema's embedded resources.json item/instances
// endpoint, so discovery and execute-binding tests exercise the real
// actionUrl <-> docUrl match end to end.
func hyperschemaFixture(t *testing.T) *hyperschema.Loader {
	t.Helper()
	payload := map[string]any{
		"item": map[string]any{
			"jsonApiType": "item",
			"title":       "Item",
			"description": "A record.",
			"links": []any{
				map[string]any{
					"rel":         "instances",
					"description": "List all items. ::example[basic]\n\n<details>\n<summary>Filtering</summary>\nfilter docs\n</details>",
					"docUrl":      "https://www.datocms.com/docs/content-management-api/resources/item/instances",
					"documentation": map[string]any{
						"javascript": map[string]any{
							"examples": []any{
								map[string]any{
									"id":    "basic",
									"title": "Basic usage",
									"request": map[string]any{
										"code": "await client.items.list();",
									},
								},
							},
						},
					},
				},
			},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return hyperschema.NewLoader(srv.URL, srv.Client())
}

func testDeps(t *testing.T, client cma.Client, cfg config.Config) Deps {
	t.Helper()
	manifest, err := resourceschema.Load()
	require.NoError(t, err)

	scripts := scriptstore.New(func(content string) (scriptstore.ValidationResult, error) {
		res, err := scriptvalidate.Validate(content)
		if err != nil {
			return scriptstore.ValidationResult{}, err
		}
		var msgs []string
		for _, v := range res.Violations {
			msgs = append(msgs, v.Message)
		}
		return scriptstore.ValidationResult{Valid: res.Valid, Errors: msgs}, nil
	})

	ws := workspace.New(workspace.Config{Dir: t.TempDir()}, client)

	return NewDeps(manifest, hyperschemaFixture(t), scripts, ws, client, cfg, clientDeclPath)
}
