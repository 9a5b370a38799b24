package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/internal/cliconfig"
)

const petsConfig = `
plugin: rest
resources:
  - method: GET
    path: /pets
    response:
      content: '[]'
  - method: GET
    path: /pets
    queryParams:
      type: dog
    response:
      content: '["Rex"]'
  - method: GET
    path: /pets/{id}
    response:
      content: pet
  - path: /feature
    eval:
      - expression: '${stores.flags.beta}'
        value: "on"
    response:
      content: beta
system:
  stores:
    flags:
      preloadData:
        beta: "on"
`

// writeConfig creates a config directory holding doc and returns it.
func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pets-config.yaml"), []byte(doc), 0o600))
	return dir
}

// execute runs the command tree with args in an empty working directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{info: BuildInfo{Version: "1.2.3", Commit: "abc123", BuildDate: "2026-01-01"}, workDir: t.TempDir()}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate_Valid(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	out, err := execute(t, "validate", "-c", dir, "--json")
	require.NoError(t, err)

	var got ValidateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Valid)
	assert.Len(t, got.Files, 1)
	assert.Len(t, got.Resources, 4)
	assert.Equal(t, "GET /pets/{id}", got.Resources[2].Name)
	assert.Equal(t, []string{"flags"}, got.Stores)
}

func TestValidate_TextVerbose(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	out, err := execute(t, "validate", "-c", dir, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid: 1 file(s), 4 resource(s), 1 preloaded store(s)")
	assert.Contains(t, out, "GET /pets/{id}")
}

func TestValidate_Invalid(t *testing.T) {
	dir := writeConfig(t, "plugin: rest\nresources: [\n")

	out, err := execute(t, "validate", "-c", dir, "--json")
	require.ErrorIs(t, err, errInvalidConfig)

	var got ValidateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Valid)
	require.NotEmpty(t, got.Errors)
}

func TestValidate_MissingDir(t *testing.T) {
	_, err := execute(t, "validate", "-c", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestMatch(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	tests := []struct {
		name      string
		args      []string
		wantIndex int
		wantExact bool
	}{
		{name: "literal path", args: []string{"/pets"}, wantIndex: 0, wantExact: true},
		{name: "query in path", args: []string{"/pets?type=dog"}, wantIndex: 1, wantExact: true},
		{name: "query flag", args: []string{"/pets", "-q", "type=dog"}, wantIndex: 1, wantExact: true},
		{name: "placeholder", args: []string{"/pets/42"}, wantIndex: 2, wantExact: true},
		{name: "eval reads preloaded store", args: []string{"/feature"}, wantIndex: 3, wantExact: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"match", "-c", dir, "--json"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)

			var got []MatchOutput
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			require.NotEmpty(t, got)
			assert.Equal(t, 1, got[0].Rank)
			assert.Equal(t, tt.wantIndex, got[0].Index)
			assert.Equal(t, tt.wantExact, got[0].Exact)
			assert.NotEmpty(t, got[0].Results)
		})
	}
}

func TestMatch_All(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	out, err := execute(t, "match", "-c", dir, "--json", "--all", "/pets")
	require.NoError(t, err)

	var got []MatchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.True(t, got[0].Matched)
	assert.False(t, got[1].Matched)
	assert.Equal(t, 1, got[1].Index)
}

func TestMatch_NoMatch(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	out, err := execute(t, "match", "-c", dir, "-X", "DELETE", "/pets")
	require.ErrorIs(t, err, errNoMatch)
	assert.Contains(t, out, "No candidate resources.")
}

func TestMatch_Verbose(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	out, err := execute(t, "match", "-c", dir, "--verbose", "/pets/7")
	require.NoError(t, err)
	assert.Contains(t, out, "GET /pets/{id}")
	assert.Contains(t, out, "exactMatch")
}

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest("/pets?limit=5", &matchFlags{
		method:  "post",
		headers: []string{"Content-Type: application/x-www-form-urlencoded", "X-Trace: a"},
		query:   []string{"limit=6", "sort=name"},
		body:    "name=rex",
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/pets", req.Path)
	assert.Equal(t, []string{"5", "6"}, req.QueryParams["limit"])
	assert.Equal(t, "name", req.QueryParams.Get("sort"))
	v, ok := req.Header("x-trace")
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, "rex", req.FormParams.Get("name"))
	assert.Equal(t, "name=rex", req.Body)

	_, err = buildRequest("pets", &matchFlags{method: "GET"})
	assert.Error(t, err)
	_, err = buildRequest("/pets", &matchFlags{method: "GET", headers: []string{"no-colon"}})
	assert.Error(t, err)
	_, err = buildRequest("/pets", &matchFlags{method: "GET", query: []string{"novalue"}})
	assert.Error(t, err)
}

func TestServe_PrintSettings(t *testing.T) {
	t.Setenv(cliconfig.EnvPort, "7000")
	t.Setenv(cliconfig.EnvStoreDriver, "sqlite")

	out, err := execute(t, "serve", "--print-settings", "--json", "--port", "9000", "--key-prefix", "t1.")
	require.NoError(t, err)

	var got []settingOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	byKey := make(map[string]settingOutput, len(got))
	for _, s := range got {
		byKey[s.Key] = s
	}

	assert.InDelta(t, 9000, byKey["port"].Value, 0)
	assert.Equal(t, cliconfig.SourceFlag, byKey["port"].Source)
	assert.Equal(t, "t1.", byKey["keyPrefix"].Value)
	assert.Equal(t, "sqlite", byKey["storeDriver"].Value)
	assert.Equal(t, cliconfig.SourceEnv, byKey["storeDriver"].Source)
	assert.Equal(t, cliconfig.SourceDefault, byKey["logLevel"].Source)
	assert.Equal(t, "http://localhost:9000", byKey["serverUrl"].Value)
}

func TestServe_UnknownDriver(t *testing.T) {
	dir := writeConfig(t, petsConfig)

	_, err := execute(t, "serve", "-c", dir, "--store-driver", "cassandra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "cassandra"`)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		driver string
		want   string
	}{
		{driver: cliconfig.DriverMemory, want: "memory"},
		{driver: cliconfig.DriverSQLite, want: "sqlite"},
		{driver: cliconfig.DriverFile, want: "file"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s := cliconfig.NewDefault()
			s.StoreDriver = tt.driver
			s.SQLitePath = filepath.Join(dir, "stubd.db")
			s.FileDir = filepath.Join(dir, "data")

			b, err := openBackend(ctx, s, nil)
			require.NoError(t, err)
			defer b.Close()
			assert.Equal(t, tt.want, b.Name())
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var got VersionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "1.2.3", got.Version)
	assert.Equal(t, "2026-01-01", got.Date)
	assert.Contains(t, got.Commit, "abc123")

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stubd v1.2.3")
}

func TestRun_ExitCode(t *testing.T) {
	var stderr bytes.Buffer
	code := run(NewRootCommand(BuildInfo{}), []string{"no-such-command"}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error:")
}
