package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv points every configured directory at a fresh temp dir and clears
// settings that would change behavior between machines.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATASETS_DIR", filepath.Join(dir, "datasets"))
	t.Setenv("DATACARDS_DIR", filepath.Join(dir, "datacards"))
	t.Setenv("META_DB_PATH", filepath.Join(dir, "meta.sqlite"))
	for _, key := range []string{
		"ENV", "JWT_SECRET", "OIDC_ISSUER_URL", "OIDC_AUDIENCE", "OIDC_JWKS_URL",
		"LISTEN_ADDR", "LOG_LEVEL", "QUERY_TIMEOUT", "HISTORY_RETENTION", "HISTORY_PRUNE_SCHEDULE",
		"QUERY_STRICT_EXPRESSIONS", "REREGISTER_ALWAYS", "KEY_ID", "SECRET", "ENDPOINT", "REGION",
		"GCS_KEY_FILE", "AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// importUsers imports a three-row users.csv as acme/users.
func importUsers(t *testing.T, dir string) {
	t.Helper()
	src := writeFile(t, filepath.Join(dir, "src", "users.csv"), "name,email,age\nAlice,a@x.com,22\nBob,b@x.com,30\nCharlie,c@x.com,41\n")
	res := runCLI(t, "", "dataset", "import", "acme", src, "-o", "json")
	require.NoError(t, res.err)
}

func decodeJSON(t *testing.T, data string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(data), v), data)
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"json", []string{"version", "-o", "json"}, "{\n  \"commit\": \"none\",\n  \"version\": \"dev\"\n}\n"},
		{"table", []string{"version", "-o", "table"}, "dataframehub version dev (commit: none)\n"},
		{"non_terminal_defaults_to_json", []string{"version"}, "{\n  \"commit\": \"none\",\n  \"version\": \"dev\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			require.NoError(t, res.err)
			assert.Equal(t, tt.want, res.stdout)
		})
	}
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	testEnv(t)
	t.Setenv("ENV", "production")

	res := runCLI(t, "", "version", "-o", "table")
	require.NoError(t, res.err)

	res = runCLI(t, "", "history", "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "must be set in production")
}

func TestRootCmd_RejectsOutputFormat(t *testing.T) {
	res := runCLI(t, "", "version", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unsupported output format "yaml"`)
}

func TestCompletionCmd(t *testing.T) {
	res := runCLI(t, "", "completion", "bash")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "dataframehub")

	res = runCLI(t, "", "completion", "tcsh")
	require.Error(t, res.err)
}
