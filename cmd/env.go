package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// envCmd represents the env command
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print environment variables",
	Long:  `Print all environment variables this server reads configuration from.`,
	Run: func(cmd *cobra.Command, args []string) {
		printEnvironmentVariables()
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func printEnvironmentVariables() {
	fmt.Println("datocms-mcp Environment Variables:")
	fmt.Println("==================================")

	maskSensitive := func(value string) string {
		if value == "" {
			return "(not set)"
		}
		if len(value) <= 8 {
			return "********"
		}
		return value[:4] + "..." + value[len(value)-4:]
	}

	printVar := func(name, description string, sensitive bool) {
		value := os.Getenv(name)
		displayValue := value
		if sensitive && value != "" {
			displayValue = maskSensitive(value)
		}
		if value == "" {
			displayValue = "(not set)"
		}
		fmt.Printf("  %-28s - %s\n    Value: %s\n\n", name, description, displayValue)
	}

	fmt.Println("\nCMA Credentials:")
	printVar("DATOCMS_API_TOKEN", "API token; execute/schema_info tools register only when this is set", true)
	printVar("DATOCMS_ENVIRONMENT", "Sandbox environment name (defaults to the project's primary environment)", false)
	printVar("DATOCMS_BASE_URL", "Override the CMA host (defaults to the production API)", false)

	fmt.Println("\nExecution limits:")
	printVar("EXECUTION_TIMEOUT_SECONDS", "Script execution timeout before SIGINT/SIGKILL escalation (default 60)", false)
	printVar("MAX_OUTPUT_BYTES", "Per-stream byte cap on execution stdout/stderr and tool responses (default 2048)", false)

	fmt.Println("\nWorkspace:")
	printVar("DATOCMS_MCP_WORKSPACE_DIR", "Sandbox directory override (defaults to an OS-standard per-app config dir)", false)
	printVar("DATOCMS_CMA_CLIENT_VERSION", "Pinned @datocms/cma-client-node version in the generated package.json (default ^3.0.0)", false)
}
