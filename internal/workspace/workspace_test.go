package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datocms/mcp-server/internal/cma"
)

type fakeClient struct{}

func (fakeClient) Config() cma.Config { return cma.Config{} }
func (fakeClient) Call(ctx context.Context, resource, method string, args []any) (any, error) {
	return nil, nil
}
func (fakeClient) Site(ctx context.Context) (cma.Site, error) { return cma.Site{Locales: []string{"en"}}, nil }
func (fakeClient) ItemTypes(ctx context.Context) ([]cma.ItemType, error) {
	return []cma.ItemType{{ID: "1", APIKey: "article"}}, nil
}

func TestEnsure_WritesConfigFilesAndSkipsInstallWhenNodeModulesPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))

	w := New(Config{Dir: dir, CMAClientVersion: "1.2.3"}, fakeClient{})
	require.NoError(t, w.Ensure(context.Background()))

	pkg, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	require.Contains(t, string(pkg), `"@datocms/cma-client-node": "1.2.3"`)

	tsconfig, err := os.ReadFile(filepath.Join(dir, "tsconfig.json"))
	require.NoError(t, err)
	require.Contains(t, string(tsconfig), `"scripts/**/*.ts"`)

	runner, err := os.ReadFile(filepath.Join(dir, "runner.ts"))
	require.NoError(t, err)
	require.Contains(t, string(runner), "buildClient")
}

func TestEnsure_RunnerOmitsOptionalEnvWhenUnset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))

	w := New(Config{Dir: dir}, fakeClient{})
	require.NoError(t, w.Ensure(context.Background()))

	runner, err := os.ReadFile(filepath.Join(dir, "runner.ts"))
	require.NoError(t, err)
	require.NotContains(t, string(runner), "DATOCMS_ENVIRONMENT")
	require.NotContains(t, string(runner), "DATOCMS_BASE_URL")
}

func TestEnsure_RunnerIncludesOptionalEnvWhenSet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))

	w := New(Config{Dir: dir, Environment: "staging", BaseURL: "https://example.test"}, fakeClient{})
	require.NoError(t, w.Ensure(context.Background()))

	runner, err := os.ReadFile(filepath.Join(dir, "runner.ts"))
	require.NoError(t, err)
	require.Contains(t, string(runner), "DATOCMS_ENVIRONMENT")
	require.Contains(t, string(runner), "DATOCMS_BASE_URL")
}

func TestStageScript_WritesScriptAndSchemaUnderScriptsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))

	w := New(Config{Dir: dir}, fakeClient{})
	relPath, cleanup, err := w.stageScript(context.Background(), "script://my-script.ts", "export default async function(c){}")
	require.NoError(t, err)
	defer cleanup()

	content, err := os.ReadFile(filepath.Join(dir, relPath))
	require.NoError(t, err)
	require.Contains(t, string(content), "export default")

	schema, err := os.ReadFile(filepath.Join(dir, "scripts", "schema.ts"))
	require.NoError(t, err)
	require.Contains(t, string(schema), "Article")

	cleanup()
	_, err = os.Stat(filepath.Join(dir, relPath))
	require.True(t, os.IsNotExist(err))
}

func TestCappedBuffer_TruncatesAfterLimit(t *testing.T) {
	buf := newCappedBuffer(5)
	buf.Write([]byte("hello world"))
	require.Contains(t, buf.String(), "hello")
	require.Contains(t, buf.String(), "[truncated]")
}

func TestCappedBuffer_DropsWritesAfterTruncation(t *testing.T) {
	buf := newCappedBuffer(5)
	buf.Write([]byte("hello world"))
	before := buf.String()
	buf.Write([]byte("more data"))
	require.Equal(t, before, buf.String())
}

func TestCappedBuffer_UnderLimitIsUntouched(t *testing.T) {
	buf := newCappedBuffer(100)
	buf.Write([]byte("short"))
	require.Equal(t, "short", buf.String())
}
