// Package config resolves the server's environment into a validated
// Config: API credentials, execution limits, and the on-disk workspace
// path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const appDirName = "datocms-mcp"

// defaultCMAClientVersion pins the workspace's @datocms/cma-client-node
// dependency when the host hasn't set one explicitly.
const defaultCMAClientVersion = "^3.0.0"

// RawConfig is what's read directly from the environment, before
// defaults are applied or derived fields (workspace dir, durations)
// are computed.
type RawConfig struct {
	APIToken                string `json:"apiToken" yaml:"apiToken" validate:"omitempty"`
	Environment             string `json:"environment" yaml:"environment" validate:"omitempty"`
	BaseURL                 string `json:"baseUrl" yaml:"baseUrl" validate:"omitempty,url"`
	ExecutionTimeoutSeconds string `json:"executionTimeoutSeconds" yaml:"executionTimeoutSeconds" validate:"omitempty,numeric"`
	MaxOutputBytes          string `json:"maxOutputBytes" yaml:"maxOutputBytes" validate:"omitempty,numeric"`
	WorkspaceDir            string `json:"workspaceDir" yaml:"workspaceDir" validate:"omitempty"`
	CMAClientVersion        string `json:"cmaClientVersion" yaml:"cmaClientVersion" validate:"omitempty"`
}

// Config is the resolved, typed configuration the rest of the server
// uses.
type Config struct {
	APIToken         string
	Environment      string
	BaseURL          string
	ExecutionTimeout time.Duration
	MaxOutputBytes   int
	WorkspaceDir     string
	CMAClientVersion string
}

// FromEnvironment reads RawConfig from the process environment.
func FromEnvironment() RawConfig {
	return RawConfig{
		APIToken:                os.Getenv("DATOCMS_API_TOKEN"),
		Environment:             os.Getenv("DATOCMS_ENVIRONMENT"),
		BaseURL:                 os.Getenv("DATOCMS_BASE_URL"),
		ExecutionTimeoutSeconds: os.Getenv("EXECUTION_TIMEOUT_SECONDS"),
		MaxOutputBytes:          os.Getenv("MAX_OUTPUT_BYTES"),
		WorkspaceDir:            os.Getenv("DATOCMS_MCP_WORKSPACE_DIR"),
		CMAClientVersion:        os.Getenv("DATOCMS_CMA_CLIENT_VERSION"),
	}
}

// FromFile reads RawConfig from a YAML config file. A missing file is
// not an error — callers fall back to environment-only config.
func FromFile(path string) (RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RawConfig{}, nil
		}
		return RawConfig{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw RawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return RawConfig{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return raw, nil
}

// Load merges file-provided defaults with environment overrides — any
// field set in the environment wins over the file's value.
func Load(filePath string) (RawConfig, error) {
	fileCfg, err := FromFile(filePath)
	if err != nil {
		return RawConfig{}, err
	}

	env := FromEnvironment()
	merged := fileCfg
	if env.APIToken != "" {
		merged.APIToken = env.APIToken
	}
	if env.Environment != "" {
		merged.Environment = env.Environment
	}
	if env.BaseURL != "" {
		merged.BaseURL = env.BaseURL
	}
	if env.ExecutionTimeoutSeconds != "" {
		merged.ExecutionTimeoutSeconds = env.ExecutionTimeoutSeconds
	}
	if env.MaxOutputBytes != "" {
		merged.MaxOutputBytes = env.MaxOutputBytes
	}
	if env.WorkspaceDir != "" {
		merged.WorkspaceDir = env.WorkspaceDir
	}
	if env.CMAClientVersion != "" {
		merged.CMAClientVersion = env.CMAClientVersion
	}
	return merged, nil
}

// Validate runs struct-tag validation over the raw values.
func (r RawConfig) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Resolve applies defaults (60s timeout, 2048 byte cap, OS-standard
// user-data dir) and parses numeric fields into Config.
func (r RawConfig) Resolve() (Config, error) {
	if err := r.Validate(); err != nil {
		return Config{}, err
	}

	timeout := 60 * time.Second
	if r.ExecutionTimeoutSeconds != "" {
		secs, err := strconv.Atoi(r.ExecutionTimeoutSeconds)
		if err != nil {
			return Config{}, fmt.Errorf("EXECUTION_TIMEOUT_SECONDS: %w", err)
		}
		timeout = time.Duration(secs) * time.Second
	}

	maxBytes := 2048
	if r.MaxOutputBytes != "" {
		n, err := strconv.Atoi(r.MaxOutputBytes)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_OUTPUT_BYTES: %w", err)
		}
		maxBytes = n
	}

	workspaceDir := r.WorkspaceDir
	if workspaceDir == "" {
		dir, err := defaultWorkspaceDir()
		if err != nil {
			return Config{}, err
		}
		workspaceDir = dir
	}

	clientVersion := r.CMAClientVersion
	if clientVersion == "" {
		clientVersion = defaultCMAClientVersion
	}

	return Config{
		APIToken:         r.APIToken,
		Environment:      r.Environment,
		BaseURL:          r.BaseURL,
		ExecutionTimeout: timeout,
		MaxOutputBytes:   maxBytes,
		WorkspaceDir:     workspaceDir,
		CMAClientVersion: clientVersion,
	}, nil
}

// HasAPIToken reports whether the resolved config can drive the CMA —
// execute/schema_info tools register only when this is true.
func (c Config) HasAPIToken() bool {
	return c.APIToken != ""
}

func defaultWorkspaceDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}
