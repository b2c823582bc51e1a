// Package docrender post-processes hyperschema prose: collapsing or
// expanding HTML <details> blocks and inline ::example[id] tokens
// attached to a hyperschema link's documented examples.
package docrender

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/datocms/mcp-server/internal/hyperschema"
)

var exampleTokenRe = regexp.MustCompile(`::example\[([^\]]+)\]`)

var detailsBlockRe = regexp.MustCompile(`(?s)<details>\s*<summary>(.*?)</summary>(.*?)</details>`)

// Summarize collapses every <details> block to its <summary> and
// every ::example[id] token to a collapsed placeholder, then appends
// any of link's examples that were never referenced, also collapsed.
func Summarize(prose string, link hyperschema.Link) string {
	referenced := make(map[string]bool)

	out := exampleTokenRe.ReplaceAllStringFunc(prose, func(tok string) string {
		m := exampleTokenRe.FindStringSubmatch(tok)
		id := m[1]
		referenced[id] = true
		ex := findExample(link, id)
		return collapsedExamplePlaceholder(id, ex)
	})

	out = rewriteDetailsBlocks(out, func(summary, _ string) string {
		return fmt.Sprintf("<details>\n<summary>%s</summary>\n</details>", summary)
	})

	var unreferenced []string
	for _, ex := range link.Documentation.JavaScript.Examples {
		if !referenced[ex.ID] {
			unreferenced = append(unreferenced, collapsedExamplePlaceholder(ex.ID, &ex))
		}
	}
	if len(unreferenced) > 0 {
		out = strings.TrimRight(out, "\n") + "\n\n" + strings.Join(unreferenced, "\n")
	}

	return out
}

// Filter keeps only the details blocks and examples whose summary
// text exactly matches an entry of wanted, fully expanded; everything
// else is elided.
func Filter(prose string, link hyperschema.Link, wanted []string) string {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[strings.TrimSpace(w)] = true
	}

	out := exampleTokenRe.ReplaceAllStringFunc(prose, func(tok string) string {
		m := exampleTokenRe.FindStringSubmatch(tok)
		id := m[1]
		ex := findExample(link, id)
		if ex == nil || !want[ex.Title] {
			return ""
		}
		return expandedExample(*ex)
	})

	out = rewriteDetailsBlocks(out, func(summary, body string) string {
		if !want[strings.TrimSpace(summary)] {
			return ""
		}
		return fmt.Sprintf("<details open>\n<summary>%s</summary>\n%s\n</details>", summary, body)
	})

	return strings.TrimSpace(out)
}

func findExample(link hyperschema.Link, id string) *hyperschema.Example {
	for i := range link.Documentation.JavaScript.Examples {
		if link.Documentation.JavaScript.Examples[i].ID == id {
			return &link.Documentation.JavaScript.Examples[i]
		}
	}
	return nil
}

func collapsedExamplePlaceholder(id string, ex *hyperschema.Example) string {
	title := id
	if ex != nil && ex.Title != "" {
		title = ex.Title
	}
	return fmt.Sprintf("<details>\n<summary>%s</summary>\n</details>", title)
}

func expandedExample(ex hyperschema.Example) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<details open>\n<summary>%s</summary>\n\n", ex.Title)
	if ex.Description != "" {
		b.WriteString(ex.Description + "\n\n")
	}
	if ex.Request.Code != "" {
		fmt.Fprintf(&b, "```javascript\n%s\n```\n\n", ex.Request.Code)
	}
	if ex.Response.Code != "" {
		fmt.Fprintf(&b, "```json\n%s\n```\n", ex.Response.Code)
	}
	b.WriteString("</details>")
	return b.String()
}

// htmlBlock is a raw-HTML block goldmark located in prose, with the
// byte range of the block's source text alongside its AST node.
type htmlBlock struct {
	node        ast.Node
	start, stop int
}

// findHTMLBlocks parses prose with goldmark and returns every
// top-level raw-HTML block it classifies as ast.KindHTMLBlock. This is
// the same classification goldmark uses for any raw-HTML markdown
// construct; <details>/<summary> has no markdown-syntax meaning of
// its own; goldmark only tells us where an HTML block starts and
// ends, so detailsBlockRe still does the summary/body extraction
// within the block goldmark already located.
func findHTMLBlocks(prose string) []htmlBlock {
	md := goldmark.New()
	reader := text.NewReader([]byte(prose))
	doc := md.Parser().Parse(reader)

	var blocks []htmlBlock
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() != ast.KindHTMLBlock {
			continue
		}
		hb, ok := n.(*ast.HTMLBlock)
		if !ok {
			continue
		}
		lines := hb.Lines()
		if lines.Len() == 0 {
			continue
		}
		blocks = append(blocks, htmlBlock{
			node:  n,
			start: lines.At(0).Start,
			stop:  lines.At(lines.Len() - 1).Stop,
		})
	}
	return blocks
}

// htmlBlocks returns every raw-HTML block goldmark finds in prose.
// Only the package's tests call it.
func htmlBlocks(prose string) []ast.Node {
	located := findHTMLBlocks(prose)
	nodes := make([]ast.Node, len(located))
	for i, b := range located {
		nodes[i] = b.node
	}
	return nodes
}

// rewriteDetailsBlocks locates every <details> block goldmark
// classifies as raw HTML and replaces each with rewrite's output,
// given the block's summary and body text. Adjacent <details> blocks
// with no blank line between them are one contiguous HTML block in
// goldmark's eyes, so each block's raw text is scanned for every
// <details>/<summary> occurrence it contains, not just the first.
func rewriteDetailsBlocks(prose string, rewrite func(summary, body string) string) string {
	blocks := findHTMLBlocks(prose)
	if len(blocks) == 0 {
		return prose
	}

	var b strings.Builder
	last := 0
	for _, blk := range blocks {
		if blk.start < last || blk.stop > len(prose) {
			continue
		}
		raw := prose[blk.start:blk.stop]
		matches := detailsBlockRe.FindAllStringSubmatchIndex(raw, -1)
		if len(matches) == 0 {
			continue
		}
		b.WriteString(prose[last:blk.start])
		innerLast := 0
		for _, m := range matches {
			b.WriteString(raw[innerLast:m[0]])
			summary, body := raw[m[2]:m[3]], raw[m[4]:m[5]]
			b.WriteString(rewrite(summary, body))
			innerLast = m[1]
		}
		b.WriteString(raw[innerLast:])
		last = blk.stop
	}
	b.WriteString(prose[last:])
	return b.String()
}
