// Package typeprogram builds a once-per-process tree-sitter parse of
// the DatoCMS client's TypeScript declaration file, exposing a symbol
// table and the Client class declaration that the introspectors
// (signature, typedeps) share so that symbols compare
// by identity, never by bare name.
package typeprogram

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Kind classifies a top-level TypeScript declaration.
type Kind int

const (
	KindUnknown Kind = iota
	KindInterface
	KindTypeAlias
	KindClass
	KindEnum
	KindNamespace
)

// Symbol identifies one named declaration by qualified name AND
// declaring file, never by bare name alone — this is what lets
// ApiTypes.Foo and RawApiTypes.Foo stay distinguishable end to end.
type Symbol struct {
	// QualifiedName is dotted, e.g. "RawApiTypes.ItemTypeInstancesTargetSchema".
	QualifiedName string
	File          string
	Kind          Kind
	Node          *sitter.Node
}

// Key returns the composite identity used for map lookups.
func (s Symbol) Key() string { return s.File + "#" + s.QualifiedName }

// Program is a built-once compilation over the client's root .d.ts.
type Program struct {
	file    string
	source  []byte
	tree    *sitter.Tree
	symbols map[string]Symbol // keyed by Symbol.Key()
	byName  map[string][]Symbol
	client  *sitter.Node
}

// Parse reads path and builds the Program. It returns an invariant
// violation error if the file has no top-level class named "Client" —
// per spec this must fail loudly, never silently degrade.
func Parse(ctx context.Context, path string) (*Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("typeprogram: read %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("typeprogram: parse %s: %w", path, err)
	}

	p := &Program{
		file:    path,
		source:  source,
		tree:    tree,
		symbols: make(map[string]Symbol),
		byName:  make(map[string][]Symbol),
	}
	p.index(tree.RootNode(), nil)

	if p.client == nil {
		return nil, fmt.Errorf("typeprogram: no class declaration named %q found in %s", "Client", path)
	}
	return p, nil
}

// Text returns the verbatim source slice for node.
func (p *Program) Text(node *sitter.Node) string {
	return node.Content(p.source)
}

// Source returns the full parsed file content.
func (p *Program) Source() []byte { return p.source }

// File returns the path this program was built from.
func (p *Program) File() string { return p.file }

// RootNode returns the file's top-level AST node.
func (p *Program) RootNode() *sitter.Node { return p.tree.RootNode() }

// ClientClass returns the "Client" class_declaration node.
func (p *Program) ClientClass() *sitter.Node { return p.client }

// Lookup resolves a qualified name (e.g. "RawApiTypes.Foo" or "Foo")
// to its symbol within this program's declaring file.
func (p *Program) Lookup(qualifiedName string) (Symbol, bool) {
	s, ok := p.symbols[p.file+"#"+qualifiedName]
	return s, ok
}

// LookupAny returns every symbol across all namespaces sharing name —
// the bare-name collisions that make identity-based keying necessary.
func (p *Program) LookupAny(name string) []Symbol {
	return p.byName[name]
}

// index walks the AST, recording every interface/type-alias/class/enum
// declaration, descending into namespace/module bodies with a dotted
// prefix so "RawApiTypes.Foo" and "ApiTypes.Foo" are distinct keys.
func (p *Program) index(node *sitter.Node, prefix []string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		p.indexDeclaration(child, prefix)
		// export statements wrap the actual declaration as a child.
		if child.Type() == "export_statement" {
			for j := 0; j < int(child.ChildCount()); j++ {
				p.indexDeclaration(child.Child(j), prefix)
			}
		}
	}
}

func (p *Program) indexDeclaration(node *sitter.Node, prefix []string) {
	var kind Kind
	switch node.Type() {
	case "interface_declaration":
		kind = KindInterface
	case "type_alias_declaration":
		kind = KindTypeAlias
	case "class_declaration":
		kind = KindClass
	case "enum_declaration":
		kind = KindEnum
	case "internal_module", "module":
		kind = KindNamespace
	default:
		return
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := p.Text(nameNode)

	qualified := append(append([]string{}, prefix...), name)
	qualifiedName := dotted(qualified)

	sym := Symbol{QualifiedName: qualifiedName, File: p.file, Kind: kind, Node: node}
	p.symbols[sym.Key()] = sym
	p.byName[name] = append(p.byName[name], sym)

	if kind == KindClass && name == "Client" {
		p.client = node
	}

	if kind == KindNamespace {
		if body := node.ChildByFieldName("body"); body != nil {
			p.index(body, qualified)
		}
	}
}

func dotted(parts []string) string {
	out := parts[0]
	for _, s := range parts[1:] {
		out += "." + s
	}
	return out
}
