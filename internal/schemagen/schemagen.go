// Package schemagen renders the per-execution schema.ts file: one
// ItemTypeDefinition per content model, built from the live CMA
// client's item types and fields.
package schemagen

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	strcase "github.com/stoewer/go-strcase"

	"github.com/datocms/mcp-server/internal/cma"
)

const fileTemplate = `import type { ItemTypeDefinition } from '@datocms/cma-client';

export type EnvironmentSettings = {
  locales: {{.LocaleUnion}};
};

{{range .Models}}
export type {{.PascalName}} = ItemTypeDefinition<EnvironmentSettings, '{{.ID}}', {
{{- range .Fields}}
  {{.APIKey}}: {{.TypeLiteral}};
{{- end}}
}>;
{{end}}`

type modelView struct {
	ID         string
	PascalName string
	Fields     []fieldView
}

type fieldView struct {
	APIKey      string
	TypeLiteral string
}

type fileView struct {
	LocaleUnion string
	Models      []modelView
}

// Generate fetches site locales + item types/fields from client and
// renders schema.ts.
func Generate(ctx context.Context, client cma.Client) (string, error) {
	site, err := client.Site(ctx)
	if err != nil {
		return "", fmt.Errorf("schemagen: fetching site: %w", err)
	}
	itemTypes, err := client.ItemTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("schemagen: fetching item types: %w", err)
	}

	pascalByID := make(map[string]string, len(itemTypes))
	for _, it := range itemTypes {
		pascalByID[it.ID] = strcase.UpperCamelCase(it.APIKey)
	}

	models := make([]modelView, 0, len(itemTypes))
	for _, it := range itemTypes {
		models = append(models, modelView{
			ID:         it.ID,
			PascalName: pascalByID[it.ID],
			Fields:     fieldViews(it, pascalByID),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].PascalName < models[j].PascalName })

	view := fileView{
		LocaleUnion: localeUnion(site.Locales),
		Models:      models,
	}

	tmpl, err := template.New("schema.ts").Parse(fileTemplate)
	if err != nil {
		return "", fmt.Errorf("schemagen: parsing template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, view); err != nil {
		return "", fmt.Errorf("schemagen: rendering: %w", err)
	}
	return b.String(), nil
}

func localeUnion(locales []string) string {
	if len(locales) == 0 {
		return "string"
	}
	quoted := make([]string, len(locales))
	for i, l := range locales {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return strings.Join(quoted, " | ")
}

func fieldViews(it cma.ItemType, pascalByID map[string]string) []fieldView {
	fields := make([]fieldView, 0, len(it.Fields)+2)
	for _, f := range it.Fields {
		fields = append(fields, fieldView{
			APIKey:      f.APIKey,
			TypeLiteral: fieldTypeLiteral(f, pascalByID),
		})
	}

	if it.SortOrder || it.Tree {
		fields = append(fields, fieldView{APIKey: "position", TypeLiteral: "{ type: 'integer' }"})
	}
	if it.Tree {
		fields = append(fields, fieldView{APIKey: "parent_id", TypeLiteral: "{ type: 'string' }"})
	}

	return fields
}

// fieldTypeLiteral renders the `{type: '...'}` object spec §4.12
// requires, adding blocks/inline_blocks/localized as needed.
func fieldTypeLiteral(f cma.Field, pascalByID map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{ type: '%s'", f.FieldType)

	if blockUnion := blockUnionFor(f, pascalByID); blockUnion != "" {
		switch f.FieldType {
		case "rich_text", "single_block":
			fmt.Fprintf(&b, "; blocks: %s", blockUnion)
		case "structured_text":
			fmt.Fprintf(&b, "; blocks: %s; inline_blocks: %s", blockUnion, blockUnion)
		}
	}

	if f.Localized {
		b.WriteString("; localized: true")
	}

	b.WriteString(" }")
	return b.String()
}

func blockUnionFor(f cma.Field, pascalByID map[string]string) string {
	key := blockValidatorKey(f.FieldType)
	if key == "" {
		return ""
	}
	raw, ok := f.Validators[key]
	if !ok {
		return ""
	}
	entry, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	ids, ok := entry["item_types"].([]any)
	if !ok || len(ids) == 0 {
		return ""
	}

	names := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			continue
		}
		if name, ok := pascalByID[id]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return strings.Join(names, " | ")
}

func blockValidatorKey(fieldType string) string {
	switch fieldType {
	case "rich_text":
		return "rich_text_blocks"
	case "structured_text":
		return "structured_text_blocks"
	case "single_block":
		return "single_block_blocks"
	default:
		return ""
	}
}
