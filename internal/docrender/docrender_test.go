package docrender

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datocms/mcp-server/internal/hyperschema"
)

func sampleLink() hyperschema.Link {
	var l hyperschema.Link
	l.Rel = "instances"
	l.Documentation.JavaScript.Examples = []hyperschema.Example{
		{ID: "ex1", Title: "List all items", Description: "Basic listing", Request: struct {
			Code string `json:"code"`
		}{Code: "client.items.list()"}, Response: struct {
			Code string `json:"code"`
		}{Code: "[]"}},
		{ID: "ex2", Title: "Filter by type", Description: "Filtered listing", Request: struct {
			Code string `json:"code"`
		}{Code: "client.items.list({filter: {...}})"}, Response: struct {
			Code string `json:"code"`
		}{Code: "[]"}},
	}
	return l
}

func TestSummarize_CollapsesExampleTokenAndAppendsUnreferenced(t *testing.T) {
	link := sampleLink()
	prose := "Some intro.\n\n::example[ex1]\n"

	out := Summarize(prose, link)
	require.Contains(t, out, "List all items")
	require.Contains(t, out, "Filter by type")
	require.NotContains(t, out, "::example[")
}

func TestSummarize_CollapsesDetailsToSummary(t *testing.T) {
	link := sampleLink()
	prose := "<details>\n<summary>Advanced usage</summary>\nLots of extra content here.\n</details>"

	out := Summarize(prose, link)
	require.Contains(t, out, "<summary>Advanced usage</summary>")
	require.NotContains(t, out, "Lots of extra content here.")
}

func TestFilter_KeepsOnlyMatchingSummaries(t *testing.T) {
	link := sampleLink()
	prose := "<details>\n<summary>Advanced usage</summary>\nextra\n</details>\n<details>\n<summary>Other</summary>\nmore\n</details>"

	out := Filter(prose, link, []string{"Advanced usage"})
	require.Contains(t, out, "Advanced usage")
	require.Contains(t, out, "extra")
	require.NotContains(t, out, "Other")
}

func TestFilter_KeepsOnlyMatchingExamples(t *testing.T) {
	link := sampleLink()
	prose := "::example[ex1]\n::example[ex2]\n"

	out := Filter(prose, link, []string{"Filter by type"})
	require.Contains(t, out, "Filter by type")
	require.NotContains(t, out, "List all items")
}

func TestHTMLBlocks_FindsDetailsBlock(t *testing.T) {
	blocks := htmlBlocks("<details>\n<summary>x</summary>\n</details>")
	require.NotEmpty(t, blocks)
}
