package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/datocms/mcp-server/internal/docrender"
	"github.com/datocms/mcp-server/internal/fuzzy"
	"github.com/datocms/mcp-server/internal/hyperschema"
	"github.com/datocms/mcp-server/internal/resourceschema"
	"github.com/datocms/mcp-server/internal/signature"
	"github.com/datocms/mcp-server/internal/typedeps"
	"github.com/datocms/mcp-server/internal/typeprogram"
)

// ResourcesInput is the input to the "resources" tool.
type ResourcesInput struct {
	Query string `json:"query,omitempty" jsonschema:"Optional fuzzy filter over namespace, jsonApiType, and resourceClassName"`
}

func (d Deps) handleResources(ctx context.Context, req *mcpsdk.CallToolRequest, input ResourcesInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("resources", r), nil, nil
		}
	}()

	type scored struct {
		entity resourceschema.Entity
		score  int
		order  int
	}
	var rows []scored
	for i, e := range d.Manifest.Entities {
		score := 0
		if input.Query == "" {
			score = 1
		} else {
			score = maxScore(input.Query, e.Namespace, e.JSONAPIType, e.ResourceClassName)
		}
		if score > 0 {
			rows = append(rows, scored{entity: e, score: score, order: i})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].order < rows[j].order
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Resources (%d)\n\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(&b, "- **%s** (`%s`, %s) — %d action(s)\n", r.entity.Namespace, r.entity.JSONAPIType, r.entity.ResourceClassName, len(r.entity.Endpoints))
	}
	return textResult(b.String()), nil, nil
}

func maxScore(query string, targets ...string) int {
	best := 0
	for _, t := range targets {
		if s := fuzzy.Score(query, t); s > best {
			best = s
		}
	}
	return best
}

// ResourceInput is the input to the "resource" tool.
type ResourceInput struct {
	Resource      string   `json:"resource" jsonschema:"Resource namespace, e.g. 'items'"`
	ExpandDetails []string `json:"expand_details,omitempty" jsonschema:"Summary texts of <details> blocks/examples to expand fully; omit to collapse all"`
}

func (d Deps) handleResource(ctx context.Context, req *mcpsdk.CallToolRequest, input ResourceInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("resource", r), nil, nil
		}
	}()

	entity, ok := d.Manifest.FindByNamespace(input.Resource)
	if !ok {
		return errorResult("unknown resource %q", input.Resource), nil, nil
	}

	doc, derr := d.Docs.Load(ctx)
	if derr != nil {
		return errorResult("loading hyperschema: %v", derr), nil, nil
	}
	hsEntity, _ := doc.FindEntity(entity.JSONAPIType)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (`%s`)\n\n", entity.Namespace, entity.JSONAPIType)
	if hsEntity.Description != "" {
		if len(input.ExpandDetails) > 0 {
			b.WriteString(docrender.Filter(hsEntity.Description, hyperschema.Link{}, input.ExpandDetails))
		} else {
			b.WriteString(docrender.Summarize(hsEntity.Description, hyperschema.Link{}))
		}
		b.WriteString("\n\n")
	}

	b.WriteString("## Actions\n\n")
	for _, ep := range entity.Endpoints {
		dep := ""
		if ep.Deprecated {
			dep = " (deprecated)"
		}
		fmt.Fprintf(&b, "- `%s` %s %s%s\n", ep.Rel, ep.Method, ep.URLTemplate, dep)
	}
	return textResult(b.String()), nil, nil
}

// ResourceActionInput is the input to the "resource_action" tool.
type ResourceActionInput struct {
	Resource      string   `json:"resource" jsonschema:"Resource namespace, e.g. 'items'"`
	Action        string   `json:"action" jsonschema:"Hyperschema link rel, e.g. 'instances'"`
	ExpandDetails []string `json:"expand_details,omitempty" jsonschema:"Summary texts to expand fully; omit to collapse all"`
}

func (d Deps) handleResourceAction(ctx context.Context, req *mcpsdk.CallToolRequest, input ResourceActionInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("resource_action", r), nil, nil
		}
	}()

	entity, ok := d.Manifest.FindByNamespace(input.Resource)
	if !ok {
		return errorResult("unknown resource %q", input.Resource), nil, nil
	}

	doc, derr := d.Docs.Load(ctx)
	if derr != nil {
		return errorResult("loading hyperschema: %v", derr), nil, nil
	}
	link, ok := doc.FindLink(entity.JSONAPIType, input.Action)
	if !ok {
		return errorResult("resource %q has no action %q", input.Resource, input.Action), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s / %s\n\n", input.Resource, input.Action)
	if link.Description != "" {
		if len(input.ExpandDetails) > 0 {
			b.WriteString(docrender.Filter(link.Description, link, input.ExpandDetails))
		} else {
			b.WriteString(docrender.Summarize(link.Description, link))
		}
		b.WriteString("\n\n")
	}

	program, perr := d.Program(ctx)
	if perr != nil {
		return errorResult("loading type program: %v", perr), nil, nil
	}

	methodNames, _ := signature.ListMethods(program, input.Resource)
	var bound []string
	for _, name := range methodNames {
		overloads, ok := signature.Extract(program, input.Resource, name)
		if !ok {
			continue
		}
		for _, m := range overloads {
			if m.ActionURL != "" && m.ActionURL == link.DocURL {
				bound = append(bound, formatSignatureLine(name, m))
			}
		}
	}

	if len(bound) == 0 {
		b.WriteString("## Bound methods\n\n_none found with a matching `Read more:` URL_\n")
	} else {
		b.WriteString("## Bound methods\n\n")
		for _, line := range bound {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return textResult(b.String()), nil, nil
}

func formatSignatureLine(name string, m signature.Method) string {
	var params []string
	for _, p := range m.Parameters {
		opt := ""
		if p.IsOptional {
			opt = "?"
		}
		params = append(params, fmt.Sprintf("%s%s: %s", p.Name, opt, p.Type))
	}
	return fmt.Sprintf("- `%s(%s): %s`", name, strings.Join(params, ", "), m.ReturnType)
}

// ResourceActionMethodInput is the input to "resource_action_method".
type ResourceActionMethodInput struct {
	Resource     string   `json:"resource" jsonschema:"Resource namespace, e.g. 'items'"`
	Method       string   `json:"method" jsonschema:"Client method name, e.g. 'list'"`
	MaxDepth     int      `json:"max_depth,omitempty" jsonschema:"Type expansion depth; 0 means the default depth unless explicit_zero is set"`
	ExplicitZero bool     `json:"explicit_zero,omitempty" jsonschema:"Set together with max_depth:0 to mean literally zero, not 'unset'"`
	ExpandTypes  []string `json:"expand_types,omitempty" jsonschema:"Force-expand only these type names, unbounded; '*' means unlimited depth from the seeds"`
}

func (d Deps) handleResourceActionMethod(ctx context.Context, req *mcpsdk.CallToolRequest, input ResourceActionMethodInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("resource_action_method", r), nil, nil
		}
	}()

	program, perr := d.Program(ctx)
	if perr != nil {
		return errorResult("loading type program: %v", perr), nil, nil
	}

	overloads, ok := signature.Extract(program, input.Resource, input.Method)
	if !ok {
		return errorResult("resource %q has no method %q", input.Resource, input.Method), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s.%s\n\n", input.Resource, input.Method)

	for i, m := range overloads {
		if len(overloads) > 1 {
			fmt.Fprintf(&b, "## Overload %d\n\n", i+1)
		}
		b.WriteString(formatSignatureLine(input.Method, m))
		b.WriteString("\n")
		if m.Doc != "" {
			b.WriteString(m.Doc)
			b.WriteString("\n")
		}
		if m.ActionURL != "" {
			fmt.Fprintf(&b, "Read more: %s\n", m.ActionURL)
		}
		b.WriteString("\n")

		seeds := make([]typeprogram.Symbol, 0, len(m.Referenced))
		for _, sym := range m.Referenced {
			seeds = append(seeds, sym)
		}
		sort.Slice(seeds, func(i, j int) bool { return seeds[i].QualifiedName < seeds[j].QualifiedName })

		expansion := typedeps.Expand(program, seeds, typedeps.Options{
			MaxDepth:     input.MaxDepth,
			ExplicitZero: input.ExplicitZero,
			ExpandTypes:  input.ExpandTypes,
		})

		if expansion.ExpandedTypes != "" {
			b.WriteString("### Referenced types\n\n```typescript\n")
			b.WriteString(expansion.ExpandedTypes)
			b.WriteString("\n```\n\n")
		}
		if len(expansion.NotExpandedTypes) > 0 {
			fmt.Fprintf(&b, "### Not expanded (increase max_depth or pass expand_types)\n\n%s\n\n", strings.Join(expansion.NotExpandedTypes, ", "))
		}
	}

	return textResult(b.String()), nil, nil
}
