package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// When
	cfg, err := Load("")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "rules", cfg.Extractor.Strategy)
	assert.Equal(t, 30*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, 0.5, cfg.Extractor.ReviewThreshold)
	assert.Equal(t, 3, cfg.Risk.TopK)
	assert.True(t, cfg.Factors.CategoryFallback)
	assert.Empty(t, cfg.Archive.Bucket)
	assert.Empty(t, cfg.Server.APIKey)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_FileAndEnv(t *testing.T) {
	// Given
	dir := t.TempDir()
	path := filepath.Join(dir, "carbon.yaml")
	content := `factors:
  path: /etc/carbon/factors.ini
  category_fallback: false
extractor:
  strategy: model
  endpoint: http://model.local/extract
  timeout: 5s
risk:
  top_k: 5
archive:
  bucket: invoices
server:
  allowed_origins:
    - http://localhost:5173`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CARBON_EXTRACTOR_API_KEY", "secret")
	t.Setenv("CARBON_RISK_TOP_K", "4")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CARBON_SERVER_API_KEY", "dashboard-key")

	// When
	cfg, err := Load(path)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "/etc/carbon/factors.ini", cfg.Factors.Path)
	assert.False(t, cfg.Factors.CategoryFallback)
	assert.Equal(t, "model", cfg.Extractor.Strategy)
	assert.Equal(t, 5*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, "secret", cfg.Extractor.APIKey)
	assert.Equal(t, 4, cfg.Risk.TopK)
	assert.Equal(t, "invoices", cfg.Archive.Bucket)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "dashboard-key", cfg.Server.APIKey)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("extractor: strategy: : bad"), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	threshold := filepath.Join(dir, "threshold.yaml")
	require.NoError(t, os.WriteFile(threshold, []byte("extractor:\n  review_threshold: 1.5\n"), 0o644))
	_, err = Load(threshold)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("extractor:\n  review_threshold: 0\n"), 0o644))
	_, err = Load(zero)
	assert.ErrorContains(t, err, "review_threshold")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
