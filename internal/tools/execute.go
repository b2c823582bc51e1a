package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-openapi/jsonpointer"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/datocms/mcp-server/internal/cma"
	"github.com/datocms/mcp-server/internal/resourceschema"
	"github.com/datocms/mcp-server/internal/signature"
)

// ExecuteMethodInput is the input shared by both execute variants.
type ExecuteMethodInput struct {
	Resource string `json:"resource" jsonschema:"Resource namespace, e.g. 'items'"`
	Method   string `json:"method" jsonschema:"Client method name, e.g. 'list'"`
	Args     []any  `json:"args,omitempty" jsonschema:"Positional arguments passed to client[resource][method](...args)"`
	Filter   string `json:"filter,omitempty" jsonschema:"Optional JSON Pointer (RFC 6901) selecting a sub-value of the result"`
}

func (d Deps) handleExecuteReadonly(ctx context.Context, req *mcpsdk.CallToolRequest, input ExecuteMethodInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("resource_action_readonly_method_execute", r), nil, nil
		}
	}()
	return d.executeMethod(ctx, input, true), nil, nil
}

func (d Deps) handleExecuteDestructive(ctx context.Context, req *mcpsdk.CallToolRequest, input ExecuteMethodInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("resource_action_destructive_method_execute", r), nil, nil
		}
	}()
	return d.executeMethod(ctx, input, false), nil, nil
}

// executeMethod binds (resource, method) to the hyperschema action URL
// recorded on the client's own endpoint manifest, checks that the
// endpoint's HTTP verb matches the variant the caller invoked (GET for
// readonly, anything else for destructive), then calls through to the
// CMA client and post-filters/caps the result.
func (d Deps) executeMethod(ctx context.Context, input ExecuteMethodInput, wantReadonly bool) *mcpsdk.CallToolResult {
	entity, ok := d.Manifest.FindByNamespace(input.Resource)
	if !ok {
		return errorResult("unknown resource %q", input.Resource)
	}

	program, perr := d.Program(ctx)
	if perr != nil {
		return errorResult("loading type program: %v", perr)
	}

	overloads, ok := signature.Extract(program, input.Resource, input.Method)
	if !ok {
		return errorResult("resource %q has no method %q", input.Resource, input.Method)
	}

	verb, bound := boundHTTPVerb(entity, overloads)
	if !bound {
		return errorResult("method %q on resource %q is not bound to any hyperschema action (no Read more: URL matches an endpoint docUrl)", input.Method, input.Resource)
	}

	isReadonly := strings.EqualFold(verb, "GET")
	if isReadonly != wantReadonly {
		if wantReadonly {
			return errorResult("method %q is a %s operation; call resource_action_destructive_method_execute instead", input.Method, verb)
		}
		return errorResult("method %q is a GET operation; call resource_action_readonly_method_execute instead", input.Method)
	}

	raw, err := d.CMA.Call(ctx, input.Resource, input.Method, input.Args)
	if err != nil {
		return errorResult(serializeCMAError(err))
	}

	if input.Filter != "" {
		filtered, ferr := applyPointer(raw, input.Filter)
		if ferr != nil {
			return errorResult("applying filter %q: %v", input.Filter, ferr)
		}
		raw = filtered
	}

	encoded, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errorResult("encoding result: %v", err)
	}

	return textResult(capBytes(string(encoded), d.Config.MaxOutputBytes))
}

// boundHTTPVerb finds the endpoint whose docUrl matches one of
// overloads' actionUrl and returns its HTTP method — the only
// reliable binding per spec §4.10 ("the only robust binding is the
// Read more: URL... matches the hyperschema link's docUrl").
func boundHTTPVerb(entity resourceschema.Entity, overloads []signature.Method) (string, bool) {
	for _, m := range overloads {
		if m.ActionURL == "" {
			continue
		}
		for _, ep := range entity.Endpoints {
			if ep.DocURL == m.ActionURL {
				return ep.Method, true
			}
		}
	}
	return "", false
}

func applyPointer(v any, pointer string) (any, error) {
	ptr, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, err
	}
	result, _, err := ptr.Get(v)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SchemaInfoInput is the input to the "schema_info" tool.
type SchemaInfoInput struct {
	Query                    string   `json:"query,omitempty" jsonschema:"Fuzzy filter over api_key, name, and id"`
	IncludeFieldsets         bool     `json:"include_fieldsets,omitempty" jsonschema:"Include each model's fieldsets"`
	IncludeBlocks            bool     `json:"include_blocks,omitempty" jsonschema:"Recursively include block models embedded via rich_text/structured_text/single_block fields"`
	IncludeReverseReferences bool     `json:"include_reverse_references,omitempty" jsonschema:"Include models that reference a matched model"`
	FieldsDetails            string   `json:"fields_details,omitempty" jsonschema:"'basic' (default), 'complete', or 'allowlist'"`
	Allowlist                []string `json:"allowlist,omitempty" jsonschema:"Field api_keys to include in full when fields_details is 'allowlist'"`
}

type schemaField struct {
	APIKey     string         `json:"api_key"`
	FieldType  string         `json:"field_type"`
	Localized  bool           `json:"localized,omitempty"`
	Validators map[string]any `json:"validators,omitempty"`
}

type schemaModel struct {
	ID        string         `json:"id"`
	APIKey    string         `json:"api_key"`
	Name      string         `json:"name"`
	Singleton bool           `json:"singleton,omitempty"`
	SortOrder bool           `json:"sort_order,omitempty"`
	Tree      bool           `json:"tree,omitempty"`
	Modular   bool           `json:"modular,omitempty"`
	Fields    []schemaField  `json:"fields"`
	Fieldsets []cma.Fieldset `json:"fieldsets,omitempty"`
	Reason    string         `json:"matched_via,omitempty"`
}

func (d Deps) handleSchemaInfo(ctx context.Context, req *mcpsdk.CallToolRequest, input SchemaInfoInput) (result *mcpsdk.CallToolResult, metadata any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, metadata, err = panicResult("schema_info", r), nil, nil
		}
	}()

	itemTypes, ferr := d.CMA.ItemTypes(ctx)
	if ferr != nil {
		return errorResult(serializeCMAError(ferr)), nil, nil
	}

	byID := make(map[string]cma.ItemType, len(itemTypes))
	for _, it := range itemTypes {
		byID[it.ID] = it
	}

	type scored struct {
		it    cma.ItemType
		score int
		order int
	}
	var matched []scored
	for i, it := range itemTypes {
		score := 1
		if input.Query != "" {
			score = maxScore(input.Query, it.APIKey, it.Name, it.ID)
		}
		if score > 0 {
			matched = append(matched, scored{it: it, score: score, order: i})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].order < matched[j].order
	})

	included := make(map[string]string) // id -> matched_via reason
	var order []string
	for _, m := range matched {
		if _, ok := included[m.it.ID]; !ok {
			included[m.it.ID] = "query"
			order = append(order, m.it.ID)
		}
	}

	if input.IncludeBlocks {
		queue := append([]string{}, order...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			it, ok := byID[id]
			if !ok {
				continue
			}
			for _, f := range it.Fields {
				for _, blockID := range blockItemTypeIDs(f) {
					if _, ok := included[blockID]; ok {
						continue
					}
					included[blockID] = "block"
					order = append(order, blockID)
					queue = append(queue, blockID)
				}
			}
		}
	}

	if input.IncludeReverseReferences {
		targets := append([]string{}, order...)
		for _, target := range targets {
			for _, it := range itemTypes {
				if _, ok := included[it.ID]; ok {
					continue
				}
				if referencesItemType(it, target) {
					included[it.ID] = "reverse_reference"
					order = append(order, it.ID)
				}
			}
		}
	}

	details := input.FieldsDetails
	if details == "" {
		details = "basic"
	}
	allow := make(map[string]bool, len(input.Allowlist))
	for _, a := range input.Allowlist {
		allow[a] = true
	}

	var models []schemaModel
	for _, id := range order {
		it, ok := byID[id]
		if !ok {
			continue
		}
		models = append(models, renderModel(it, included[id], details, allow, input.IncludeFieldsets))
	}

	encoded, merr := json.MarshalIndent(models, "", "  ")
	if merr != nil {
		return errorResult("encoding schema info: %v", merr), nil, nil
	}
	return textResult(capBytes(string(encoded), d.Config.MaxOutputBytes)), nil, nil
}

func renderModel(it cma.ItemType, reason, details string, allow map[string]bool, includeFieldsets bool) schemaModel {
	m := schemaModel{
		ID: it.ID, APIKey: it.APIKey, Name: it.Name,
		Singleton: it.Singleton, SortOrder: it.SortOrder, Tree: it.Tree, Modular: it.Modular,
		Reason: reason,
	}
	for _, f := range it.Fields {
		sf := schemaField{APIKey: f.APIKey, FieldType: f.FieldType}
		switch details {
		case "complete":
			sf.Localized = f.Localized
			sf.Validators = f.Validators
		case "allowlist":
			if allow[f.APIKey] {
				sf.Localized = f.Localized
				sf.Validators = f.Validators
			}
		}
		m.Fields = append(m.Fields, sf)
	}
	if includeFieldsets {
		m.Fieldsets = it.Fieldsets
	}
	return m
}

// blockKeys are the validator keys that embed block models, per
// schemagen's own reading of the same shape.
var blockKeys = []string{"rich_text_blocks", "structured_text_blocks", "single_block_blocks"}

func blockItemTypeIDs(f cma.Field) []string {
	var ids []string
	for _, key := range blockKeys {
		v, ok := f.Validators[key]
		if !ok {
			continue
		}
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := vm["item_types"].([]any)
		if !ok {
			continue
		}
		for _, r := range raw {
			if s, ok := r.(string); ok {
				ids = append(ids, s)
			}
		}
	}
	return ids
}

// referencesItemType reports whether any of it's fields declare a
// validator whose "item_types" list contains targetID — this covers
// both link/reference validators and block-embedding validators
// without needing to enumerate every validator name.
func referencesItemType(it cma.ItemType, targetID string) bool {
	for _, f := range it.Fields {
		for _, v := range f.Validators {
			vm, ok := v.(map[string]any)
			if !ok {
				continue
			}
			raw, ok := vm["item_types"].([]any)
			if !ok {
				continue
			}
			for _, r := range raw {
				if s, ok := r.(string); ok && s == targetID {
					return true
				}
			}
		}
	}
	return false
}
