// Package signature extracts method signatures from the type program:
// given (resource, method), it returns every overload's parameters,
// return type, docstring, the bound hyperschema action URL, and the
// set of named type symbols the signature references.
package signature

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/datocms/mcp-server/internal/typeprogram"
)

// Parameter is one argument of a method signature.
type Parameter struct {
	Name       string
	Type       string
	IsOptional bool
	Doc        string
}

// Method is one overload of a resource's method.
type Method struct {
	MethodName  string
	Parameters  []Parameter
	ReturnType  string
	Doc         string
	ActionURL   string
	Referenced  map[string]typeprogram.Symbol // keyed by Symbol.Key()
}

var readMoreRe = regexp.MustCompile(`Read more:\s*(\S+)`)

// lib and primitive type names are never collected as referenced
// symbols — only the client's own named types matter for typedeps.
var primitiveOrLibNames = map[string]bool{
	"string": true, "number": true, "boolean": true, "void": true,
	"any": true, "unknown": true, "never": true, "null": true,
	"undefined": true, "object": true, "Promise": true, "Array": true,
	"Record": true, "Partial": true, "Omit": true, "Pick": true,
	"ReturnType": true, "Date": true,
}

// Extract returns every overload of resource.method, or false if the
// resource or method does not exist on the Client class.
func Extract(p *typeprogram.Program, resource, method string) ([]Method, bool) {
	resourceInterface, ok := findResourceInterface(p, resource)
	if !ok {
		return nil, false
	}

	var methods []Method
	walkMembers(resourceInterface, func(member *sitter.Node) {
		if member.Type() != "method_signature" {
			return
		}
		name := fieldText(p, member, "name")
		if name != method {
			return
		}
		methods = append(methods, buildMethod(p, member, method))
	})

	if len(methods) == 0 {
		return nil, false
	}
	return methods, true
}

// ListMethods returns every distinct method name declared on
// resource's interface, in declaration order. Used by resource_action
// to enumerate candidates for actionUrl binding, since the type
// program only extracts one named method at a time.
func ListMethods(p *typeprogram.Program, resource string) ([]string, bool) {
	resourceInterface, ok := findResourceInterface(p, resource)
	if !ok {
		return nil, false
	}

	seen := make(map[string]bool)
	var names []string
	walkMembers(resourceInterface, func(member *sitter.Node) {
		if member.Type() != "method_signature" {
			return
		}
		name := fieldText(p, member, "name")
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	})

	if len(names) == 0 {
		return nil, false
	}
	return names, true
}

// findResourceInterface locates the Client class property named
// resource and resolves its declared type to the body of an interface
// declaration, so walkMembers sees the interface's members.
func findResourceInterface(p *typeprogram.Program, resource string) (*sitter.Node, bool) {
	client := p.ClientClass()
	if client == nil {
		return nil, false
	}

	body := client.ChildByFieldName("body")
	if body == nil {
		return nil, false
	}

	var resourceTypeName string
	walkMembers(body, func(member *sitter.Node) {
		if resourceTypeName != "" {
			return
		}
		switch member.Type() {
		case "public_field_definition", "property_signature":
			if fieldText(p, member, "name") == resource {
				resourceTypeName = annotationTypeName(p, member)
			}
		}
	})
	if resourceTypeName == "" {
		return nil, false
	}

	for _, sym := range p.LookupAny(lastSegment(resourceTypeName)) {
		if sym.Kind == typeprogram.KindInterface {
			if ifaceBody := sym.Node.ChildByFieldName("body"); ifaceBody != nil {
				return ifaceBody, true
			}
		}
	}
	return nil, false
}

func buildMethod(p *typeprogram.Program, member *sitter.Node, name string) Method {
	doc := leadingComment(p, member)
	m := Method{
		MethodName: name,
		Doc:        doc,
		ReturnType: returnTypeText(p, member),
		Referenced: make(map[string]typeprogram.Symbol),
	}

	if matches := readMoreRe.FindStringSubmatch(doc); len(matches) == 2 {
		m.ActionURL = matches[1]
	}

	if params := member.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			paramNode := params.NamedChild(i)
			param := Parameter{
				Name:       fieldText(p, paramNode, "pattern"),
				Type:       annotationTypeName(p, paramNode),
				IsOptional: paramNode.Type() == "optional_parameter" || hasOptionalMarker(p, paramNode),
			}
			if param.Name == "" {
				param.Name = fieldText(p, paramNode, "name")
			}
			m.Parameters = append(m.Parameters, param)
			collectReferences(p, typeNode(paramNode), m.Referenced)
		}
	}

	collectReferences(p, returnTypeNode(member), m.Referenced)

	return m
}

// walkMembers calls fn for every direct named member of an
// object_type/class_body/interface body node.
func walkMembers(body *sitter.Node, fn func(*sitter.Node)) {
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		fn(body.NamedChild(i))
	}
}

func fieldText(p *typeprogram.Program, node *sitter.Node, field string) string {
	if node == nil {
		return ""
	}
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	return p.Text(n)
}

// annotationTypeName returns the textual type of a property/parameter
// that carries a "type" field wrapping a type_annotation.
func annotationTypeName(p *typeprogram.Program, node *sitter.Node) string {
	t := typeNode(node)
	if t == nil {
		return ""
	}
	return p.Text(t)
}

// typeNode unwraps a type_annotation field down to the actual type
// expression node, or returns the raw field if already unwrapped.
func typeNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	ann := node.ChildByFieldName("type")
	if ann == nil {
		return nil
	}
	if ann.Type() == "type_annotation" && ann.NamedChildCount() > 0 {
		return ann.NamedChild(0)
	}
	return ann
}

func returnTypeNode(member *sitter.Node) *sitter.Node {
	ann := member.ChildByFieldName("return_type")
	if ann == nil {
		return nil
	}
	if ann.Type() == "type_annotation" && ann.NamedChildCount() > 0 {
		return ann.NamedChild(0)
	}
	return ann
}

func returnTypeText(p *typeprogram.Program, member *sitter.Node) string {
	n := returnTypeNode(member)
	if n == nil {
		return ""
	}
	return p.Text(n)
}

func hasOptionalMarker(p *typeprogram.Program, node *sitter.Node) bool {
	return strings.Contains(p.Text(node), "?")
}

// leadingComment returns the JSDoc/line-comment block immediately
// preceding node, or "".
func leadingComment(p *typeprogram.Program, node *sitter.Node) string {
	prev := node.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	return stripComment(p.Text(prev))
}

func stripComment(raw string) string {
	raw = strings.TrimPrefix(raw, "/**")
	raw = strings.TrimPrefix(raw, "/*")
	raw = strings.TrimSuffix(raw, "*/")
	lines := strings.Split(raw, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "*")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// collectReferences walks a type expression structurally, descending
// into unions/intersections/generics/arrays, and records every named
// (non-primitive, non-lib) type it finds by resolving it against the
// program's symbol table — preserving symbol identity, not just name.
func collectReferences(p *typeprogram.Program, node *sitter.Node, out map[string]typeprogram.Symbol) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "type_identifier", "nested_type_identifier":
		name := p.Text(node)
		recordSymbol(p, name, out)
	case "generic_type":
		nameNode := node.ChildByFieldName("name")
		if nameNode != nil {
			recordSymbol(p, p.Text(nameNode), out)
		}
		if args := node.ChildByFieldName("type_arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				collectReferences(p, args.NamedChild(i), out)
			}
		}
	default:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			collectReferences(p, node.NamedChild(i), out)
		}
	}
}

func recordSymbol(p *typeprogram.Program, name string, out map[string]typeprogram.Symbol) {
	base := lastSegment(name)
	if primitiveOrLibNames[base] {
		return
	}
	candidates := p.LookupAny(base)
	for _, sym := range candidates {
		if sym.QualifiedName == name || len(candidates) == 1 {
			out[sym.Key()] = sym
		}
	}
}

func lastSegment(qualified string) string {
	idx := strings.LastIndexByte(qualified, '.')
	if idx < 0 {
		return qualified
	}
	return qualified[idx+1:]
}
