// Package tools registers the MCP tool surface this server exposes to
// the LLM, composing the resource schema, hyperschema, type program,
// script store, and workspace into the layered discover -> plan ->
// execute workflow spec'd for this server.
package tools

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/datocms/mcp-server/internal/cma"
	"github.com/datocms/mcp-server/internal/config"
	"github.com/datocms/mcp-server/internal/hyperschema"
	"github.com/datocms/mcp-server/internal/memo"
	"github.com/datocms/mcp-server/internal/resourceschema"
	"github.com/datocms/mcp-server/internal/scriptstore"
	"github.com/datocms/mcp-server/internal/typeprogram"
	"github.com/datocms/mcp-server/internal/workspace"
)

// Deps bundles every component the tool handlers compose. A zero-value
// Deps is never valid; build one with NewDeps.
type Deps struct {
	Manifest    *resourceschema.Manifest
	Docs        *hyperschema.Loader
	Scripts     *scriptstore.Store
	Workspace   *workspace.Workspace
	CMA         cma.Client
	Config      config.Config
	programOnce *memo.Once[*typeprogram.Program]
}

// NewDeps builds the tool registry's dependency bundle. clientDeclPath
// is the absolute path to the installed CMA client's root .d.ts file;
// it is parsed at most once, on first use, across the whole process.
func NewDeps(manifest *resourceschema.Manifest, docs *hyperschema.Loader, scripts *scriptstore.Store, ws *workspace.Workspace, client cma.Client, cfg config.Config, clientDeclPath string) Deps {
	d := Deps{
		Manifest:  manifest,
		Docs:      docs,
		Scripts:   scripts,
		Workspace: ws,
		CMA:       client,
		Config:    cfg,
	}
	d.programOnce = memo.New(func() (*typeprogram.Program, error) {
		return typeprogram.Parse(context.Background(), clientDeclPath)
	})
	return d
}

// Program returns the process-wide type program, parsing it on first
// call and reusing it thereafter.
func (d Deps) Program(ctx context.Context) (*typeprogram.Program, error) {
	return d.programOnce.Get()
}

// Register adds every tool to server. Discovery and script-authoring
// tools are always registered; the execute and schema_info tools only
// register when a CMA API token is configured, per spec.
func Register(server *mcpsdk.Server, deps Deps) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "resources",
		Description: "List DatoCMS CMA resources (namespaces), optionally fuzzy-filtered by query.",
	}, deps.handleResources)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "resource",
		Description: "Describe one resource: its entity description and the list of actions it exposes.",
	}, deps.handleResource)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "resource_action",
		Description: "Describe one action of a resource: hyperschema prose, examples, and every client method bound to it.",
	}, deps.handleResourceAction)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "resource_action_method",
		Description: "Return one client method's full signature plus its transitively referenced types, bounded by depth.",
	}, deps.handleResourceActionMethod)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "create_script",
		Description: "Create a new script://*.ts script. Always saved; structural validation errors are returned, not enforced.",
	}, deps.handleCreateScript)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "update_script",
		Description: "Apply an ordered list of unique-match replacements to an existing script.",
	}, deps.handleUpdateScript)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "view_script",
		Description: "Return a script's current content.",
	}, deps.handleViewScript)

	if !deps.Config.HasAPIToken() {
		return
	}

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "resource_action_readonly_method_execute",
		Description: "Invoke a GET-backed client method directly against the DatoCMS project and return its (optionally filtered) result.",
	}, deps.handleExecuteReadonly)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "resource_action_destructive_method_execute",
		Description: "Invoke a non-GET client method directly against the DatoCMS project and return its (optionally filtered) result.",
	}, deps.handleExecuteDestructive)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "schema_info",
		Description: "Prefetch and fuzzy-search the project's models and fields, with optional nested-block and reverse-reference expansion.",
	}, deps.handleSchemaInfo)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "execute_script",
		Description: "Type-check a stored script against the live schema and, if it passes, execute it in the sandboxed workspace.",
	}, deps.handleExecuteScript)
}

// textResult wraps s as a successful tool result.
func textResult(s string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: s}}}
}

// errorResult wraps a formatted message as a failed tool result — the
// universal failure channel per spec §7: never a Go error across the
// tool boundary.
func errorResult(format string, args ...any) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// panicResult converts a recovered panic value into the same failure
// channel, matching the teacher's handleToolCall recovery shape.
func panicResult(tool string, r any) *mcpsdk.CallToolResult {
	return errorResult("%s panicked: %v", tool, r)
}

// capBytes truncates s to limit bytes, appending the same truncation
// sentinel workspace.cappedBuffer uses, so every byte-capped surface
// in this server reads identically.
func capBytes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "\n…[truncated]"
}

// serializeCMAError renders the two error shapes internal/cma defines
// as tool-facing text, per spec's "serialize exceptions" requirement.
func serializeCMAError(err error) string {
	switch e := err.(type) {
	case *cma.ApiError:
		msg := e.Error()
		if len(e.Errors) > 1 {
			msg = fmt.Sprintf("%s (and %d more error(s))", msg, len(e.Errors)-1)
		}
		return fmt.Sprintf("CMA request failed: %s", msg)
	case *cma.TimeoutError:
		return fmt.Sprintf("CMA request timed out: %s", e.Error())
	default:
		return fmt.Sprintf("CMA request failed: %v", err)
	}
}
