package config

import (
	"os"
	"time"

	"github.com/cuemby/pkgforge/pkg/blobstore"
	"github.com/cuemby/pkgforge/pkg/log"
	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can write "30s"/"1m"
// instead of a raw nanosecond count — yaml.v3 has no built-in notion
// of Go's duration strings.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string ("30s") or a bare
// integer (nanoseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// StorageConfig configures pkg/storage's BoltDB-backed Store.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// BlobConfig configures pkg/blobstore's S3-compatible client.
type BlobConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	PublicBucket    string `yaml:"public_bucket"`
	PrivateBucket   string `yaml:"private_bucket"`
}

// BrokerConfig configures pkg/jobbroker's persistent connection.
type BrokerConfig struct {
	URL string `yaml:"url"`
	// TrustKeyHash is the hex-encoded SHA-256 the broker's
	// handshake(trustKey) must match (spec §4.6 step 1).
	TrustKeyHash string `yaml:"trust_key_hash"`
	// SharedSecret is sent back in the client's handshake reply
	// (spec §4.6 step 2).
	SharedSecret  string   `yaml:"shared_secret"`
	JobAuthWindow Duration `yaml:"job_auth_window"`
}

// IngestionConfig configures pkg/ingestion.Pipeline.
type IngestionConfig struct {
	Concurrency int64  `yaml:"concurrency"`
	TempRoot    string `yaml:"temp_root"`
}

// CatalogConfig configures pkg/catalog.Snapshotter.
type CatalogConfig struct {
	OutputPath string   `yaml:"output_path"`
	Interval   Duration `yaml:"interval"`
}

// AdmissionConfig configures pkg/admission.Guard's rate limiter.
type AdmissionConfig struct {
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// AuthConfig configures pkg/authz.Issuer.
type AuthConfig struct {
	// SigningSecret is hex or raw text read from the config file. When
	// empty, Load generates a fresh random secret — fine for a single
	// process, but every replica of a multi-process deployment must
	// share the same configured secret to verify each other's tokens.
	SigningSecret string `yaml:"signing_secret"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level      log.Level `yaml:"level"`
	JSONOutput bool      `yaml:"json_output"`
}

// Config is the registry's full process configuration, decoded from a
// single YAML file the way cmd/warren's apply command decodes
// resource YAML.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Blob      BlobConfig      `yaml:"blob"`
	Broker    BrokerConfig    `yaml:"broker"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Admission AdmissionConfig `yaml:"admission"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads and decodes the YAML file at path, then fills in defaults
// for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, registryerrors.Validation.New("parse config file: %v", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in every field Load leaves at its zero value.
// TempRoot in particular must never be a hard-coded absolute path —
// os.TempDir() respects TMPDIR and the platform default.
func (c *Config) applyDefaults() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Blob.PublicBucket == "" {
		c.Blob.PublicBucket = "pkgforge-public"
	}
	if c.Blob.PrivateBucket == "" {
		c.Blob.PrivateBucket = "pkgforge-private"
	}
	if c.Broker.JobAuthWindow <= 0 {
		c.Broker.JobAuthWindow = Duration(30 * time.Second)
	}
	if c.Ingestion.Concurrency <= 0 {
		c.Ingestion.Concurrency = 4
	}
	if c.Ingestion.TempRoot == "" {
		c.Ingestion.TempRoot = os.TempDir()
	}
	if c.Catalog.Interval <= 0 {
		c.Catalog.Interval = Duration(60 * time.Second)
	}
	if c.Admission.RateLimitPerSecond <= 0 {
		c.Admission.RateLimitPerSecond = 5
	}
	if c.Admission.RateLimitBurst <= 0 {
		c.Admission.RateLimitBurst = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = log.InfoLevel
	}
}

// BlobStoreConfig adapts Config's blob settings to blobstore.Config.
func (c *Config) BlobStoreConfig() blobstore.Config {
	return blobstore.Config{
		Endpoint:        c.Blob.Endpoint,
		AccessKeyID:     c.Blob.AccessKeyID,
		SecretAccessKey: c.Blob.SecretAccessKey,
		UseSSL:          c.Blob.UseSSL,
		PublicBucket:    c.Blob.PublicBucket,
		PrivateBucket:   c.Blob.PrivateBucket,
	}
}
