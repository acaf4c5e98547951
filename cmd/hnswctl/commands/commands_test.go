package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestEnv(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HNSWCTL_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("HNSWCTL_STORE_BACKEND", backend)
	t.Setenv("HNSWCTL_STORE_PATH", "")
	t.Setenv("HNSWCTL_LOG_LEVEL", "")
	t.Setenv("HNSWCTL_METRIC", "")
	return dir
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		stderr += err.Error()
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writePNG(t *testing.T, dir, name string, v uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestWorkflow(t *testing.T) {
	for _, backend := range []string{"bolt", "duckdb"} {
		t.Run(backend, func(t *testing.T) {
			dir := setupTestEnv(t, backend)
			dark := writePNG(t, dir, "dark.png", 0)
			light := writePNG(t, dir, "light.png", 255)
			query := writePNG(t, dir, "query.png", 235)

			stdout, stderr, code := runCmd(t, "add", dark, "--label", "dark")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, `Added "dark" as id 1`)

			stdout, stderr, code = runCmd(t, "add", light, "-l", "light")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, `Added "light" as id 2`)
			assert.FileExists(t, filepath.Join(dir, "data", "img_2.jpg"))

			stdout, stderr, code = runCmd(t, "search", query, "--k", "1")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "Found 1 result(s)")
			assert.Contains(t, stdout, "[id=2] light")

			stdout, stderr, code = runCmd(t, "label", "2", "bright")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, `Relabelled 2 as "bright"`)

			stdout, stderr, code = runCmd(t, "list")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "2 record(s)")
			assert.Contains(t, stdout, "[id=1] dark")
			assert.Contains(t, stdout, "[id=2] bright")

			stdout, stderr, code = runCmd(t, "inspect")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "nodes:       2")
			assert.Contains(t, stdout, "dimension:   4096")
			assert.Contains(t, stdout, "LAYER")

			out := filepath.Join(dir, "graph.arrow")
			stdout, stderr, code = runCmd(t, "export", out)
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "Exported 2 rows")
			assertArrowRows(t, out, 2)

			stdout, stderr, code = runCmd(t, "delete", "2")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "Deleted 2")

			stdout, stderr, code = runCmd(t, "search", query, "--k", "2")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "[id=1] dark")
			assert.NotContains(t, stdout, "bright")
		})
	}
}

func assertArrowRows(t *testing.T, path string, want int64) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rdr, err := ipc.NewReader(f)
	require.NoError(t, err)
	defer rdr.Release()

	var rows int64
	for rdr.Next() {
		rows += rdr.Record().NumRows()
	}
	require.NoError(t, rdr.Err())
	assert.Equal(t, want, rows)
}

func TestEmptyData(t *testing.T) {
	dir := setupTestEnv(t, "bolt")

	stdout, stderr, code := runCmd(t, "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "No records.")

	stdout, stderr, code = runCmd(t, "search", writePNG(t, dir, "q.png", 9))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "No results found.")

	stdout, stderr, code = runCmd(t, "inspect")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "nodes:       0")

	_, stderr, code = runCmd(t, "export", filepath.Join(dir, "out.arrow"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "index is empty")
}

func TestErrors(t *testing.T) {
	dir := setupTestEnv(t, "bolt")
	img := writePNG(t, dir, "img.png", 100)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"MissingLabel", []string{"add", img}, "--label is required"},
		{"MissingImage", []string{"add", filepath.Join(dir, "nope.png"), "-l", "x"}, "failed to open image"},
		{"BadID", []string{"delete", "abc"}, "invalid id"},
		{"UnknownID", []string{"label", "42", "x"}, "record not found"},
		{"ExtraArgs", []string{"list", "extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runCmd(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.True(t, strings.Contains(stderr, tt.want), "stderr %q does not contain %q", stderr, tt.want)
		})
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := setupTestEnv(t, "bolt")
	img := writePNG(t, dir, "img.png", 100)

	_, stderr, code := runCmd(t, "add", img, "-l", "x", "--verbose")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "level=DEBUG")
	assert.Contains(t, stderr, "image added")
}
