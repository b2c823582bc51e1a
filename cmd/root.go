package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/datocms/mcp-server/internal/cma"
	"github.com/datocms/mcp-server/internal/config"
	"github.com/datocms/mcp-server/internal/hyperschema"
	"github.com/datocms/mcp-server/internal/resourceschema"
	"github.com/datocms/mcp-server/internal/scriptstore"
	"github.com/datocms/mcp-server/internal/scriptvalidate"
	"github.com/datocms/mcp-server/internal/tools"
	"github.com/datocms/mcp-server/internal/version"
	"github.com/datocms/mcp-server/internal/workspace"
)

var (
	configPath      string
	workspaceDirOpt string
	hyperschemaURL  string
	packageManager  string
)

// rootCmd is the single command this binary exposes: start the MCP
// server and serve tool calls over stdio until the parent process
// closes the connection.
var rootCmd = &cobra.Command{
	Use:   "datocms-mcp",
	Short: "Local MCP server mediating between an LLM and the DatoCMS Content Management API",
	Long: `datocms-mcp is a Model Context Protocol server that exposes a layered
discover -> plan -> execute toolset over the DatoCMS Content Management API,
instead of surfacing its ~150 raw REST endpoints directly to the model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Printf("datocms-mcp version %s\n", version.Get())
			return nil
		}
		return runServer(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number and exit")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file (optional; environment variables always take precedence)")
	rootCmd.PersistentFlags().StringVar(&workspaceDirOpt, "workspace-dir", "", "Override the on-disk sandbox directory (default: an OS-standard per-app config dir)")
	rootCmd.PersistentFlags().StringVar(&hyperschemaURL, "hyperschema-url", cma.DefaultBaseURL+"/site-api-hyperschema.json", "URL of the DatoCMS REST hyperschema document")
	rootCmd.PersistentFlags().StringVar(&packageManager, "package-manager", "npm", "Package manager used to materialize the script sandbox (npm or pnpm)")
}

// runServer resolves configuration, wires every component, registers
// the tool surface, and blocks serving stdio until ctx is cancelled.
func runServer(ctx context.Context) error {
	raw, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if workspaceDirOpt != "" {
		raw.WorkspaceDir = workspaceDirOpt
	}

	cfg, err := raw.Resolve()
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}

	client := cma.NewHTTPClient(cma.Config{
		APIToken:    cfg.APIToken,
		Environment: cfg.Environment,
		BaseURL:     cfg.BaseURL,
	}, &http.Client{})

	manifest, err := resourceschema.Load()
	if err != nil {
		return fmt.Errorf("loading resource manifest: %w", err)
	}

	docs := hyperschema.NewLoader(hyperschemaURL, &http.Client{})

	scripts := scriptstore.New(func(content string) (scriptstore.ValidationResult, error) {
		res, err := scriptvalidate.Validate(content)
		if err != nil {
			return scriptstore.ValidationResult{}, err
		}
		messages := make([]string, 0, len(res.Violations))
		for _, v := range res.Violations {
			messages = append(messages, fmt.Sprintf("%d:%d: %s", v.Line, v.Column, v.Message))
		}
		return scriptstore.ValidationResult{Valid: res.Valid, Errors: messages}, nil
	})

	ws := workspace.New(workspace.Config{
		Dir:              cfg.WorkspaceDir,
		APIToken:         cfg.APIToken,
		Environment:      cfg.Environment,
		BaseURL:          cfg.BaseURL,
		CMAClientVersion: cfg.CMAClientVersion,
		PackageManager:   packageManager,
		ExecutionTimeout: cfg.ExecutionTimeout,
		MaxOutputBytes:   cfg.MaxOutputBytes,
	}, client)

	if err := ws.Ensure(ctx); err != nil {
		return fmt.Errorf("preparing workspace: %w", err)
	}

	deps := tools.NewDeps(manifest, docs, scripts, ws, client, cfg, ws.ClientDeclPath())

	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "datocms-mcp",
		Title:   "DatoCMS MCP Server",
		Version: version.Get(),
	}, nil)

	tools.Register(mcpServer, deps)

	return mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}
