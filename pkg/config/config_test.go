package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkgforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  data_dir: /var/lib/pkgforge\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pkgforge", cfg.Storage.DataDir)
	assert.Equal(t, "pkgforge-public", cfg.Blob.PublicBucket)
	assert.Equal(t, "pkgforge-private", cfg.Blob.PrivateBucket)
	assert.Equal(t, int64(4), cfg.Ingestion.Concurrency)
	assert.Equal(t, os.TempDir(), cfg.Ingestion.TempRoot)
	assert.Equal(t, 60*time.Second, cfg.Catalog.Interval.Duration())
	assert.EqualValues(t, 5, cfg.Admission.RateLimitPerSecond)
	assert.Equal(t, 10, cfg.Admission.RateLimitBurst)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /data
ingestion:
  concurrency: 16
  temp_root: /tmp/pkgforge
catalog:
  output_path: /var/www/catalog.json
  interval: 30s
admission:
  rate_limit_per_second: 20
  rate_limit_burst: 40
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 16, cfg.Ingestion.Concurrency)
	assert.Equal(t, "/tmp/pkgforge", cfg.Ingestion.TempRoot)
	assert.Equal(t, "/var/www/catalog.json", cfg.Catalog.OutputPath)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Interval.Duration())
	assert.EqualValues(t, 20, cfg.Admission.RateLimitPerSecond)
	assert.Equal(t, 40, cfg.Admission.RateLimitBurst)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "storage: [this is not a mapping")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBlobStoreConfigAdapts(t *testing.T) {
	path := writeConfig(t, `
blob:
  endpoint: s3.example.com
  access_key_id: key
  secret_access_key: secret
  use_ssl: true
  public_bucket: custom-public
  private_bucket: custom-private
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	bsc := cfg.BlobStoreConfig()
	assert.Equal(t, "s3.example.com", bsc.Endpoint)
	assert.Equal(t, "custom-public", bsc.PublicBucket)
	assert.True(t, bsc.UseSSL)
}
