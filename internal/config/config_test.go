package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ".md", cfg.Paths.Extension)
	assert.Equal(t, "sqlite", cfg.Search.LexicalBackend)
	assert.Equal(t, "local", cfg.Embeddings.Backend)
	assert.Equal(t, 256, cfg.Embeddings.Dimensions)
	assert.Equal(t, 8, cfg.Cluster.MinK)
	assert.Equal(t, 128, cfg.Cluster.MaxK)
}

func TestLoad_ReadsProjectConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "search:\n  lexical_backend: bleve\ncluster:\n  min_k: 4\n  max_k: 4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".noterank.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "bleve", cfg.Search.LexicalBackend)
	assert.Equal(t, 4, cfg.Cluster.MinK)
	assert.Equal(t, dir, cfg.Paths.Root)
}

func TestLoad_EnvOverridesFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	yaml := "search:\n  lexical_backend: bleve\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".noterank.yaml"), []byte(yaml), 0o644))

	t.Setenv("NOTERANK_LEXICAL_BACKEND", "sqlite")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Search.LexicalBackend)
}

func TestLoad_RemoteBackendRequiresAPIKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOTERANK_EMBED_BACKEND", "remote")
	t.Setenv("NOTERANK_EMBED_API_KEY", "")

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoad_RemoteBackendSucceedsWithAPIKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOTERANK_EMBED_BACKEND", "remote")
	t.Setenv("NOTERANK_EMBED_API_KEY", "sk-test")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "remote", cfg.Embeddings.Backend)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
}

func TestValidate_RejectsUnknownLexicalBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.LexicalBackend = "elasticsearch"

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedClusterBounds(t *testing.T) {
	cfg := NewConfig()
	cfg.Cluster.MinK = 20
	cfg.Cluster.MaxK = 10

	assert.Error(t, cfg.Validate())
}
