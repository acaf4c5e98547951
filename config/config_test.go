package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idebroy/hnsw"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{
		"HNSWCTL_DATA_DIR", "HNSWCTL_STORE_BACKEND", "HNSWCTL_STORE_PATH",
		"HNSWCTL_LOG_LEVEL", "HNSWCTL_METRIC",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hnswctl.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "hnsw_index.bin", cfg.Index.File)
	assert.Equal(t, filepath.Join("data", "records.duckdb"), cfg.StorePath())
}

func TestLoadConfigMissingFile(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
data_dir: /var/lib/faces
store:
  backend: bolt
index:
  m: 8
  ef_construction: 64
  ml: 0.5
  metric: cosine
  seed: 7
  compress: true
logging:
  level: debug
  format: json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/faces", cfg.DataDir)
	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/faces/records.bolt", cfg.StorePath())
	assert.Equal(t, 8, cfg.Index.M)
	assert.Equal(t, 64, cfg.Index.EfConstruction)
	require.NotNil(t, cfg.Index.ML)
	assert.Equal(t, 0.5, *cfg.Index.ML)
	assert.True(t, cfg.Index.Compress)
	assert.Equal(t, "json", cfg.Logging.Format)

	opts, err := cfg.Index.Options()
	require.NoError(t, err)
	idx, err := hnsw.New(opts...)
	require.NoError(t, err)
	assert.Equal(t, hnsw.Cosine, idx.Metric())
	assert.Equal(t, 8, idx.Stats().M)
	assert.Equal(t, 0.5, idx.Stats().ML)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
data_dir: from-file
store:
  backend: bolt
logging:
  level: warn
index:
  metric: cosine
`)
	t.Setenv("HNSWCTL_DATA_DIR", "from-env")
	t.Setenv("HNSWCTL_STORE_BACKEND", "memory")
	t.Setenv("HNSWCTL_LOG_LEVEL", "error")
	t.Setenv("HNSWCTL_METRIC", "dot")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DataDir)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "", cfg.StorePath())
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "dot", cfg.Index.Metric)

	t.Setenv("HNSWCTL_STORE_BACKEND", "duckdb")
	t.Setenv("HNSWCTL_STORE_PATH", "/tmp/custom.duckdb")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.duckdb", cfg.StorePath())
}

func TestLoadConfigHomeFile(t *testing.T) {
	isolate(t)
	home := os.Getenv("HOME")
	require.NoError(t, os.WriteFile(filepath.Join(home, ".hnswctl.yml"), []byte("data_dir: home-data\n"), 0o644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "home-data", cfg.DataDir)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"BadYAML", "index: [1, 2"},
		{"EmptyDataDir", `data_dir: ""`},
		{"UnknownBackend", "store:\n  backend: postgres\n"},
		{"UnknownMetric", "index:\n  metric: manhattan\n"},
		{"BadM", "index:\n  m: -3\n"},
		{"BadLevel", "logging:\n  level: loud\n"},
		{"BadFormat", "logging:\n  format: xml\n"},
		{"EmptyIndexFile", "index:\n  file: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "id", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"id":3`)

	buf.Reset()
	logger, err = LoggingConfig{Level: "DEBUG", Format: "text"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Debug("detail")
	assert.Contains(t, buf.String(), "msg=detail")

	_, err = LoggingConfig{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}
