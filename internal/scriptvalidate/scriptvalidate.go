// Package scriptvalidate is the AST-level gate on a script's shape:
// import whitelist, default-export signature, and a ban on `any`/
// `unknown`. All violations are collected; an invalid script is still
// saved by the caller (internal/scriptstore).
package scriptvalidate

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Violation is one structural problem found in a script.
type Violation struct {
	Message string
	Line    int // 1-based
	Column  int // 1-based
}

// Result is the full set of violations for one script.
type Result struct {
	Valid      bool
	Violations []Violation
}

var whitelist = []string{"@datocms/*", "datocms-*", "./schema"}

// Validate parses source and runs every structural check.
func Validate(source string) (Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		return Result{}, fmt.Errorf("scriptvalidate: parse: %w", err)
	}
	root := tree.RootNode()
	src := []byte(source)

	var violations []Violation
	violations = append(violations, checkImports(root, src)...)
	violations = append(violations, checkDefaultExport(root, src)...)
	violations = append(violations, checkAnyUnknown(root, src)...)

	return Result{Valid: len(violations) == 0, Violations: violations}, nil
}

func checkImports(root *sitter.Node, src []byte) []Violation {
	var violations []Violation
	walk(root, func(n *sitter.Node) {
		if n.Type() != "import_statement" {
			return
		}
		sourceNode := n.ChildByFieldName("source")
		if sourceNode == nil {
			return
		}
		spec := strings.Trim(string(src[sourceNode.StartByte():sourceNode.EndByte()]), `"'`)
		if !matchesWhitelist(spec) {
			violations = append(violations, Violation{
				Message: fmt.Sprintf("Invalid import: %q (allowed: %s)", spec, strings.Join(whitelist, ", ")),
				Line:    int(n.StartPoint().Row) + 1,
				Column:  int(n.StartPoint().Column) + 1,
			})
		}
	})
	return violations
}

func matchesWhitelist(spec string) bool {
	for _, pattern := range whitelist {
		switch {
		case strings.HasSuffix(pattern, "/*"):
			scope := strings.TrimSuffix(pattern, "/*")
			if spec == scope || strings.HasPrefix(spec, scope+"/") {
				return true
			}
		case strings.HasSuffix(pattern, "*"):
			if strings.HasPrefix(spec, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		default:
			if spec == pattern {
				return true
			}
		}
	}
	return false
}

// checkDefaultExport verifies the file has a default export whose
// shape is: exactly one parameter annotated Client or
// ReturnType<typeof buildClient>, async or Promise<...>-returning.
// "export default foo" is resolved by following foo to its
// declaration elsewhere in the file, generalized rather than
// special-cased.
func checkDefaultExport(root *sitter.Node, src []byte) []Violation {
	exportNode := findDefaultExport(root)
	if exportNode == nil {
		return []Violation{{Message: "missing default export", Line: 1, Column: 1}}
	}

	fn := resolveToFunction(root, exportNode, src)
	if fn == nil {
		return []Violation{{
			Message: "default export must be a function",
			Line:    int(exportNode.StartPoint().Row) + 1,
			Column:  int(exportNode.StartPoint().Column) + 1,
		}}
	}

	var violations []Violation
	params := fn.ChildByFieldName("parameters")
	if params == nil || params.NamedChildCount() != 1 {
		violations = append(violations, Violation{
			Message: "default export function must take exactly one parameter",
			Line:    int(fn.StartPoint().Row) + 1,
			Column:  int(fn.StartPoint().Column) + 1,
		})
	} else {
		param := params.NamedChild(0)
		paramType := paramTypeText(param, src)
		if paramType != "Client" && paramType != "ReturnType<typeof buildClient>" {
			violations = append(violations, Violation{
				Message: fmt.Sprintf("default export parameter must be annotated Client or ReturnType<typeof buildClient>, got %q", paramType),
				Line:    int(param.StartPoint().Row) + 1,
				Column:  int(param.StartPoint().Column) + 1,
			})
		}
	}

	if !isAsyncOrPromiseReturning(fn, src) {
		violations = append(violations, Violation{
			Message: "default export function must be async or declare a Promise<...> return type",
			Line:    int(fn.StartPoint().Row) + 1,
			Column:  int(fn.StartPoint().Column) + 1,
		})
	}

	return violations
}

func findDefaultExport(root *sitter.Node) *sitter.Node {
	var found *sitter.Node
	walk(root, func(n *sitter.Node) {
		if found != nil || n.Type() != "export_statement" {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.Type() == "default" {
				found = n
			}
		}
	})
	return found
}

var functionNodeTypes = map[string]bool{
	"function_declaration":           true,
	"function":                       true,
	"arrow_function":                 true,
	"function_expression":            true,
	"generator_function_declaration": true,
}

// resolveToFunction returns the function node exported by
// exportStatement, following a bare identifier to its declaration
// elsewhere in the file if needed — "export default foo" where foo is
// a const/function declared separately validates identically to a
// direct "export default async function (...)".
func resolveToFunction(root *sitter.Node, exportStatement *sitter.Node, src []byte) *sitter.Node {
	var value *sitter.Node
	for i := 0; i < int(exportStatement.NamedChildCount()); i++ {
		c := exportStatement.NamedChild(i)
		if functionNodeTypes[c.Type()] || c.Type() == "identifier" {
			value = c
		}
	}
	if value == nil {
		return nil
	}

	if functionNodeTypes[value.Type()] {
		return value
	}
	if value.Type() == "identifier" {
		name := string(src[value.StartByte():value.EndByte()])
		return resolveIdentifierByName(root, name, src)
	}
	return nil
}

// resolveIdentifierByName finds name's declaration anywhere in the
// file — a top-level function declaration, or a variable_declarator
// whose value is a function — and returns the function node.
func resolveIdentifierByName(root *sitter.Node, name string, src []byte) *sitter.Node {
	var found *sitter.Node
	walk(root, func(n *sitter.Node) {
		if found != nil {
			return
		}
		switch n.Type() {
		case "function_declaration", "generator_function_declaration":
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil && string(src[nameNode.StartByte():nameNode.EndByte()]) == name {
				found = n
			}
		case "variable_declarator":
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil || string(src[nameNode.StartByte():nameNode.EndByte()]) != name {
				return
			}
			value := n.ChildByFieldName("value")
			if value != nil && functionNodeTypes[value.Type()] {
				found = value
			}
		}
	})
	return found
}

func paramTypeText(param *sitter.Node, src []byte) string {
	typeNode := param.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}
	if typeNode.Type() == "type_annotation" && typeNode.NamedChildCount() > 0 {
		typeNode = typeNode.NamedChild(0)
	}
	return string(src[typeNode.StartByte():typeNode.EndByte()])
}

func isAsyncOrPromiseReturning(fn *sitter.Node, src []byte) bool {
	for i := 0; i < int(fn.ChildCount()); i++ {
		if fn.Child(i).Type() == "async" {
			return true
		}
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		text := string(src[ret.StartByte():ret.EndByte()])
		if strings.Contains(text, "Promise") {
			return true
		}
	}
	return false
}

func checkAnyUnknown(root *sitter.Node, src []byte) []Violation {
	var violations []Violation
	walk(root, func(n *sitter.Node) {
		if n.Type() != "predefined_type" {
			return
		}
		text := string(src[n.StartByte():n.EndByte()])
		if text == "any" || text == "unknown" {
			violations = append(violations, Violation{
				Message: fmt.Sprintf("type %q is not allowed", text),
				Line:    int(n.StartPoint().Row) + 1,
				Column:  int(n.StartPoint().Column) + 1,
			})
		}
	})
	return violations
}

func walk(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), fn)
	}
}
