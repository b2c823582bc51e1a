// Command datocms-mcp starts the local MCP server mediating between an
// LLM and the DatoCMS Content Management API.
package main

import "github.com/datocms/mcp-server/cmd"

func main() {
	cmd.Execute()
}
