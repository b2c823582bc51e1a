// Package typedeps performs bounded-depth transitive expansion of
// type declarations: given a seed set of type symbols, it emits every
// declaration transitively referenced, up to a depth budget, with
// per-type overrides and a record of types it chose not to expand.
package typedeps

import (
	"math"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/datocms/mcp-server/internal/typeprogram"
)

// unlimitedDepth is the spec's "*" sentinel: no depth cap.
const unlimitedDepth = "*"

// DefaultMaxDepth is used when the caller doesn't override it.
const DefaultMaxDepth = 2

// Options controls one expansion run.
type Options struct {
	// MaxDepth bounds how far the traversal descends from the seeds.
	// Zero means "use DefaultMaxDepth"; use ExplicitZero for a literal
	// depth of 0 (which must yield an empty expansion per spec §8).
	MaxDepth int
	// ExplicitZero forces MaxDepth=0 to mean exactly that rather than
	// "unset".
	ExplicitZero bool
	// ExpandTypes is a list of names to force-expand; "*" means
	// unlimited depth. A non-empty, non-"*" list *replaces* the seeds.
	ExpandTypes []string
}

// Result is the expansion output.
type Result struct {
	ExpandedTypes    string
	NotExpandedTypes []string
}

var primitiveOrLibNames = map[string]bool{
	"string": true, "number": true, "boolean": true, "void": true,
	"any": true, "unknown": true, "never": true, "null": true,
	"undefined": true, "object": true, "Promise": true, "Array": true,
	"Record": true, "Partial": true, "Omit": true, "Pick": true,
	"ReturnType": true, "Date": true,
}

// Expand runs one bounded-depth traversal from seeds.
func Expand(p *typeprogram.Program, seeds []typeprogram.Symbol, opts Options) Result {
	depthLimit := opts.MaxDepth
	if depthLimit == 0 && !opts.ExplicitZero {
		depthLimit = DefaultMaxDepth
	}

	effectiveSeeds := seeds
	if len(opts.ExpandTypes) > 0 {
		if containsStar(opts.ExpandTypes) {
			depthLimit = math.MaxInt32
		} else {
			// "show me only these, fully": replace the seed set and
			// lift the depth cap for this run.
			effectiveSeeds = resolveNames(p, opts.ExpandTypes)
			depthLimit = math.MaxInt32
		}
	}

	w := &walker{
		program:   p,
		depthCap:  depthLimit,
		minDepth:  make(map[string]int),
		deferred:  make(map[string]typeprogram.Symbol),
		emitted:   make(map[string]bool),
	}
	for _, s := range effectiveSeeds {
		w.visit(s, 0)
	}

	return w.result()
}

type walker struct {
	program      *typeprogram.Program
	depthCap     int
	minDepth     map[string]int
	deferred     map[string]typeprogram.Symbol
	emitted      map[string]bool
	emittedOrder []typeprogram.Symbol
}

func (w *walker) visit(sym typeprogram.Symbol, depth int) {
	key := sym.Key()
	if prev, ok := w.minDepth[key]; ok && prev <= depth {
		return
	}
	w.minDepth[key] = depth

	if depth >= w.depthCap {
		for _, ref := range referencedSymbols(w.program, sym.Node) {
			if !w.emitted[ref.Key()] {
				w.deferred[ref.Key()] = ref
			}
		}
		return
	}

	if !w.emitted[key] {
		w.emitted[key] = true
		w.emittedOrder = append(w.emittedOrder, sym)
	}
	delete(w.deferred, key)

	for _, ref := range referencedSymbols(w.program, sym.Node) {
		w.visit(ref, depth+1)
	}
}

func (w *walker) result() Result {
	var b strings.Builder
	for i, sym := range w.emittedOrder {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(declarationText(w.program, sym))
	}

	var deferredNames []string
	for key, sym := range w.deferred {
		if !w.emitted[key] {
			deferredNames = append(deferredNames, sym.QualifiedName)
		}
	}
	sort.Strings(deferredNames)

	return Result{
		ExpandedTypes:    b.String(),
		NotExpandedTypes: deferredNames,
	}
}

// declarationText renders sym's declaration with its keyword ("type"/
// "interface"/"enum"/"class") preceded by "export " and any leading
// comment stripped — comments are AST siblings, not part of the node
// text, so there is nothing to strip from the text itself.
func declarationText(p *typeprogram.Program, sym typeprogram.Symbol) string {
	return "export " + p.Text(sym.Node)
}

func containsStar(names []string) bool {
	for _, n := range names {
		if n == unlimitedDepth {
			return true
		}
	}
	return false
}

func resolveNames(p *typeprogram.Program, names []string) []typeprogram.Symbol {
	var out []typeprogram.Symbol
	for _, name := range names {
		if name == unlimitedDepth {
			continue
		}
		if sym, ok := p.Lookup(name); ok {
			out = append(out, sym)
			continue
		}
		out = append(out, p.LookupAny(lastSegment(name))...)
	}
	return out
}

// referencedSymbols walks sym's declaration structurally, collecting
// every named type it mentions, restricted to the client's own source
// files (spec: "only emit declarations from the client's own
// packages; silently skip TS lib and unrelated dependencies" — here
// realized as "only resolvable against this program's symbol table").
func referencedSymbols(p *typeprogram.Program, node *sitter.Node) []typeprogram.Symbol {
	out := make(map[string]typeprogram.Symbol)
	walkType(p, node, out)
	result := make([]typeprogram.Symbol, 0, len(out))
	for _, s := range out {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].QualifiedName < result[j].QualifiedName })
	return result
}

func walkType(p *typeprogram.Program, node *sitter.Node, out map[string]typeprogram.Symbol) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "type_identifier", "nested_type_identifier":
		recordSymbol(p, p.Text(node), out)
	case "generic_type":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			recordSymbol(p, p.Text(nameNode), out)
		}
		if args := node.ChildByFieldName("type_arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				walkType(p, args.NamedChild(i), out)
			}
		}
	default:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walkType(p, node.NamedChild(i), out)
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
