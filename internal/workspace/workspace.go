// Package workspace owns the on-disk sandbox scripts run in: a
// node_modules-backed directory with a pinned @datocms/cma-client-node,
// a generated schema.ts, and the tsc/tsx process plumbing used to
// validate and execute a script.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"
	"github.com/gofrs/flock"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/datocms/mcp-server/internal/cma"
	"github.com/datocms/mcp-server/internal/schemagen"
)

// gracePeriod mirrors the teacher's SIGINT-then-SIGKILL escalation window.
const gracePeriod = 5 * time.Second

const lockTimeout = 5 * time.Minute
const lockRetryInterval = 200 * time.Millisecond

// Config carries everything Ensure/ValidateScript/ExecuteScript need
// that isn't discovered from the live CMA client.
type Config struct {
	Dir              string
	APIToken         string
	Environment      string
	BaseURL          string
	CMAClientVersion string
	PackageManager   string // "npm" (default) or "pnpm"
	ExecutionTimeout time.Duration
	MaxOutputBytes   int
}

// Workspace is the materialized sandbox for one server process.
type Workspace struct {
	cfg    Config
	client cma.Client
}

// New builds a Workspace bound to client, whose Config supplies the
// env vars runner.ts boots from.
func New(cfg Config, client cma.Client) *Workspace {
	if cfg.PackageManager == "" {
		cfg.PackageManager = "npm"
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 60 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 2048
	}
	return &Workspace{cfg: cfg, client: client}
}

// ClientDeclPath returns the path to the installed CMA client's root
// type declarations, the seed file internal/typeprogram parses. Valid
// only after Ensure has installed node_modules.
func (w *Workspace) ClientDeclPath() string {
	return filepath.Join(w.cfg.Dir, "node_modules", "@datocms", "cma-client-node", "dist", "types", "index.d.ts")
}

// Ensure idempotently materializes package.json, tsconfig.json,
// runner.ts, and node_modules under a cross-process exclusive lock.
func (w *Workspace) Ensure(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("workspace: creating dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(w.cfg.Dir, "scripts"), 0o755); err != nil {
		return fmt.Errorf("workspace: creating scripts dir: %w", err)
	}

	lock := flock.New(filepath.Join(w.cfg.Dir, ".lock"))
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("workspace: acquiring init lock: %w", err)
	}
	if !locked {
		return errors.New("workspace: timed out acquiring init lock")
	}
	defer lock.Unlock()

	if err := w.writePackageJSON(); err != nil {
		return err
	}
	if err := w.writeTSConfig(); err != nil {
		return err
	}
	if err := w.writeRunner(); err != nil {
		return err
	}
	return w.installDependencies(ctx)
}

func (w *Workspace) writePackageJSON() error {
	const tmpl = `{
  "name": "datocms-mcp-workspace",
  "private": true,
  "type": "module",
  "dependencies": {
    "@datocms/cma-client-node": "{{.CMAClientVersion}}"
  },
  "devDependencies": {
    "typescript": "^5.6.0",
    "tsx": "^4.19.0",
    "@types/node": "^22.0.0"
  }
}
`
	return w.render("package.json", tmpl, w.cfg)
}

func (w *Workspace) writeTSConfig() error {
	const body = `{
  "compilerOptions": {
    "target": "ES2020",
    "module": "nodenext",
    "moduleResolution": "nodenext",
    "strict": true,
    "esModuleInterop": true,
    "skipLibCheck": true
  },
  "include": ["scripts/**/*.ts"]
}
`
	return os.WriteFile(filepath.Join(w.cfg.Dir, "tsconfig.json"), []byte(body), 0o644)
}

func (w *Workspace) writeRunner() error {
	const tmpl = `import { buildClient } from "@datocms/cma-client-node";
import { pathToFileURL } from "node:url";

const client = buildClient({
  apiToken: process.env.DATOCMS_API_TOKEN!,
{{- if .Environment }}
  environment: process.env.DATOCMS_ENVIRONMENT,
{{- end }}
{{- if .BaseURL }}
  baseUrl: process.env.DATOCMS_BASE_URL,
{{- end }}
});

const scriptPath = process.argv[2];
const mod = await import(pathToFileURL(scriptPath).href);
await mod.default(client);
`
	return w.render("runner.ts", tmpl, w.cfg)
}

func (w *Workspace) render(filename, tmpl string, data any) error {
	t, err := template.New(filename).Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("workspace: parsing %s template: %w", filename, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("workspace: rendering %s: %w", filename, err)
	}
	if err := os.WriteFile(filepath.Join(w.cfg.Dir, filename), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("workspace: writing %s: %w", filename, err)
	}
	return nil
}

func (w *Workspace) installDependencies(ctx context.Context) error {
	nodeModules := filepath.Join(w.cfg.Dir, "node_modules")
	if info, err := os.Stat(nodeModules); err == nil && info.IsDir() {
		return nil
	}

	args := []string{"install", "--no-audit", "--no-fund"}
	if w.cfg.PackageManager == "pnpm" {
		args = []string{"install"}
	}
	cmd := exec.CommandContext(ctx, w.cfg.PackageManager, args...)
	cmd.Dir = w.cfg.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("workspace: %s install failed: %w: %s", w.cfg.PackageManager, err, out.String())
	}
	return nil
}

// ValidationResult is what tsc --noEmit reported.
type ValidationResult struct {
	Valid  bool
	Output string
}

// ValidateScript regenerates schema.ts, writes content under name,
// and type-checks it with tsc --noEmit.
func (w *Workspace) ValidateScript(ctx context.Context, name, content string) (ValidationResult, error) {
	path, cleanup, err := w.stageScript(ctx, name, content)
	if err != nil {
		return ValidationResult{}, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, "tsc", "--noEmit", "--pretty", "false", path)
	cmd.Dir = w.cfg.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err = cmd.Run()

	if err == nil {
		return ValidationResult{Valid: true, Output: out.String()}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ValidationResult{Valid: false, Output: out.String()}, nil
	}
	return ValidationResult{}, fmt.Errorf("workspace: running tsc: %w", err)
}

// Outcome tags how an execution finished.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeExitCode
	OutcomeError
)

// ExecutionResult is the four-way tagged variant of spec §4.11:
// success, timeout, nonzero exit, or an infrastructure error.
type ExecutionResult struct {
	Outcome  Outcome
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// ExecuteScript regenerates schema.ts, writes content under name, and
// runs it through tsx runner.ts under the configured timeout, with
// SIGINT-then-SIGKILL escalation and per-stream byte caps.
func (w *Workspace) ExecuteScript(ctx context.Context, name, content string) (ExecutionResult, error) {
	path, cleanup, err := w.stageScript(ctx, name, content)
	if err != nil {
		return ExecutionResult{}, err
	}
	defer cleanup()

	timeoutCtx, cancel := context.WithTimeout(ctx, w.cfg.ExecutionTimeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, "tsx", "runner.ts", path)
	cmd.Dir = w.cfg.Dir
	cmd.Env = append(os.Environ(),
		"DATOCMS_API_TOKEN="+w.cfg.APIToken,
		"DATOCMS_ENVIRONMENT="+w.cfg.Environment,
		"DATOCMS_BASE_URL="+w.cfg.BaseURL,
	)

	cmd.Cancel = func() error {
		cmd.Process.Signal(syscall.SIGINT)
		return os.ErrProcessDone
	}
	cmd.WaitDelay = gracePeriod

	stdout := newCappedBuffer(w.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(w.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	if timeoutCtx.Err() != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return ExecutionResult{
			Outcome: OutcomeTimeout,
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
		}, nil
	}

	if runErr == nil {
		return ExecutionResult{Outcome: OutcomeSuccess, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return ExecutionResult{
			Outcome:  OutcomeExitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitErr.ExitCode(),
		}, nil
	}

	return ExecutionResult{Outcome: OutcomeError, Stdout: stdout.String(), Stderr: stderr.String(), Err: runErr}, nil
}

// stageScript writes content to scripts/<name-without-prefix-and-.ts>.<8-char nanoid>.ts,
// regenerates schema.ts against the live client, and returns a
// cleanup func that removes the script file (schema.ts is left for
// the next operation to regenerate).
func (w *Workspace) stageScript(ctx context.Context, name, content string) (string, func(), error) {
	base := strings.TrimPrefix(name, "script://")
	if base == "" {
		return "", nil, errors.New("workspace: empty script name")
	}

	suffix, err := gonanoid.New(8)
	if err != nil {
		return "", nil, fmt.Errorf("workspace: generating temp suffix: %w", err)
	}
	fileName := fmt.Sprintf("%s.%s.ts", strings.TrimSuffix(base, ".ts"), suffix)
	path := filepath.Join(w.cfg.Dir, "scripts", fileName)

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", nil, fmt.Errorf("workspace: writing script: %w", err)
	}

	schema, err := schemagen.Generate(ctx, w.client)
	if err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("workspace: generating schema.ts: %w", err)
	}
	schemaPath := filepath.Join(w.cfg.Dir, "scripts", "schema.ts")
	if err := os.WriteFile(schemaPath, []byte(schema), 0o644); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("workspace: writing schema.ts: %w", err)
	}

	return filepath.Join("scripts", fileName), func() { os.Remove(path) }, nil
}

// cappedBuffer enforces a per-stream byte ceiling, appending a
// truncation sentinel the first time it's exceeded and silently
// dropping everything after.
type cappedBuffer struct {
	limit     int
	buf       bytes.Buffer
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if c.truncated {
		return n, nil
	}
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.buf.WriteString("\n…[truncated]")
		c.truncated = true
		return n, nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.buf.WriteString("\n…[truncated]")
		c.truncated = true
		return n, nil
	}
	c.buf.Write(p)
	return n, nil
}

func (c *cappedBuffer) String() string {
	s := c.buf.String()
	if !utf8.ValidString(s) {
		return strings.ToValidUTF8(s, "")
	}
	return s
}
