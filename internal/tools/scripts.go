package tools

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/datocms/mcp-server/internal/scriptstore"
	"github.com/datocms/mcp-server/internal/workspace"
)

// CreateScriptInput is the input to "create_script".
type CreateScriptInput struct {
	Name        string `json:"name" jsonschema:"Script name, must begin 'script://' and end '.ts'"`
	Content     string `json:"content" jsonschema:"Full TypeScript source"`
	TscValidate bool   `json:"tsc_validate,omitempty" jsonschema:"If an API token is configured, also type-check against the live schema"`
	Execute     bool   `json:"execute,omitempty" jsonschema:"If an API token is configured, also run the script after saving"`
}

func (d Deps) handleCreateScript(ctx context.Context, req *mcpsdk.CallToolRequest, input CreateScriptInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("create_script", r), nil, nil
		}
	}()

	validation, serr := d.Scripts.Create(input.Name, input.Content)
	if serr != nil {
		return errorResult(serr.Error()), nil, nil
	}

	return d.renderScriptOutcome(ctx, input.Name, input.Content, validation, input.TscValidate, input.Execute), nil, nil
}

// EditInput is one ordered replacement within "update_script".
type EditInput struct {
	OldStr string `json:"old_str" jsonschema:"Exact text to replace; must occur exactly once when this edit is processed"`
	NewStr string `json:"new_str" jsonschema:"Replacement text"`
}

// UpdateScriptInput is the input to "update_script".
type UpdateScriptInput struct {
	Name        string      `json:"name" jsonschema:"Existing script name"`
	Edits       []EditInput `json:"edits" jsonschema:"Ordered list of unique-match replacements, applied sequentially"`
	TscValidate bool        `json:"tsc_validate,omitempty" jsonschema:"If an API token is configured, also type-check against the live schema"`
	Execute     bool        `json:"execute,omitempty" jsonschema:"If an API token is configured, also run the script after saving"`
}

func (d Deps) handleUpdateScript(ctx context.Context, req *mcpsdk.CallToolRequest, input UpdateScriptInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("update_script", r), nil, nil
		}
	}()

	edits := make([]scriptstore.Edit, len(input.Edits))
	for i, e := range input.Edits {
		edits[i] = scriptstore.Edit{OldStr: e.OldStr, NewStr: e.NewStr}
	}

	validation, serr := d.Scripts.Update(input.Name, edits)
	if serr != nil {
		return errorResult(serr.Error()), nil, nil
	}

	content, _ := d.Scripts.View(input.Name)
	return d.renderScriptOutcome(ctx, input.Name, content, validation, input.TscValidate, input.Execute), nil, nil
}

// ViewScriptInput is the input to "view_script".
type ViewScriptInput struct {
	Name string `json:"name" jsonschema:"Script name"`
}

func (d Deps) handleViewScript(ctx context.Context, req *mcpsdk.CallToolRequest, input ViewScriptInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("view_script", r), nil, nil
		}
	}()

	content, ok := d.Scripts.View(input.Name)
	if !ok {
		return errorResult("script %q not found", input.Name), nil, nil
	}
	return textResult(content), nil, nil
}

// ExecuteScriptInput is the input to "execute_script".
type ExecuteScriptInput struct {
	Name string `json:"name" jsonschema:"Script name"`
}

func (d Deps) handleExecuteScript(ctx context.Context, req *mcpsdk.CallToolRequest, input ExecuteScriptInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("execute_script", r), nil, nil
		}
	}()

	content, ok := d.Scripts.View(input.Name)
	if !ok {
		return errorResult("script %q not found", input.Name), nil, nil
	}

	validation, verr := d.Workspace.ValidateScript(ctx, input.Name, content)
	if verr != nil {
		return errorResult("type-checking %q: %v", input.Name, verr), nil, nil
	}
	if !validation.Valid {
		return errorResult("script %q failed type-checking, not executed:\n\n%s", input.Name, validation.Output), nil, nil
	}

	exec, eerr := d.Workspace.ExecuteScript(ctx, input.Name, content)
	if eerr != nil {
		return errorResult("executing %q: %v", input.Name, eerr), nil, nil
	}
	return textResult(renderExecutionResult(exec)), nil, nil
}

// renderScriptOutcome formats a create/update validation result, then
// optionally runs the workspace's tsc check and/or a full execution on
// top of it when an API token is configured and the caller asked.
func (d Deps) renderScriptOutcome(ctx context.Context, name, content string, validation scriptstore.ValidationResult, wantTsc, wantExecute bool) *mcpsdk.CallToolResult {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved %s.\n", name)
	if validation.Valid {
		b.WriteString("Structural validation: passed.\n")
	} else {
		b.WriteString("Structural validation: failed.\n")
		for _, v := range validation.Errors {
			fmt.Fprintf(&b, "  - %s\n", v)
		}
	}

	if !d.Config.HasAPIToken() {
		if wantTsc || wantExecute {
			b.WriteString("\n(tsc_validate/execute requested but no API token is configured; skipped.)\n")
		}
		return textResult(b.String())
	}

	if wantTsc || wantExecute {
		tsc, err := d.Workspace.ValidateScript(ctx, name, content)
		if err != nil {
			fmt.Fprintf(&b, "\ntsc validation failed to run: %v\n", err)
			return textResult(b.String())
		}
		if tsc.Valid {
			b.WriteString("\ntsc --noEmit: passed.\n")
		} else {
			fmt.Fprintf(&b, "\ntsc --noEmit: failed.\n\n%s\n", tsc.Output)
		}

		if wantExecute && tsc.Valid {
			exec, eerr := d.Workspace.ExecuteScript(ctx, name, content)
			if eerr != nil {
				fmt.Fprintf(&b, "\nexecution failed to run: %v\n", eerr)
			} else {
				b.WriteString("\n")
				b.WriteString(renderExecutionResult(exec))
			}
		} else if wantExecute {
			b.WriteString("\nexecution skipped: script failed type-checking.\n")
		}
	}

	return textResult(b.String())
}

func renderExecutionResult(r workspace.ExecutionResult) string {
	var b strings.Builder
	switch r.Outcome {
	case workspace.OutcomeSuccess:
		b.WriteString("Execution succeeded.\n")
	case workspace.OutcomeTimeout:
		b.WriteString("Execution timed out.\n")
	case workspace.OutcomeExitCode:
		fmt.Fprintf(&b, "Execution exited with code %d.\n", r.ExitCode)
	case workspace.OutcomeError:
		fmt.Fprintf(&b, "Execution could not run: %v\n", r.Err)
	}
	if r.Stdout != "" {
		fmt.Fprintf(&b, "\nstdout:\n```\n%s\n```\n", r.Stdout)
	}
	if r.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n```\n%s\n```\n", r.Stderr)
	}
	return b.String()
}
