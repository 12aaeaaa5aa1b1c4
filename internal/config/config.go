package config

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document, loaded once per process
// from a YAML file at startup.
type Config struct {
	WorkDir      string       `yaml:"work_dir"`
	Repositories []Repository `yaml:"repositories"`
	Storage      Storage      `yaml:"storage"`
	Embedding    Embedding    `yaml:"embedding"`
	Admin        Admin        `yaml:"admin"`
	RateLimit    RateLimit    `yaml:"rate_limit"`
	Log          Log          `yaml:"log"`
}

// Repository is one configured remote rpm-md repository, per spec §6.
type Repository struct {
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	Enabled         *bool  `yaml:"enabled"`
	Arch            string `yaml:"arch"`
}

// EnabledOrDefault returns Enabled with the spec's documented default
// of true when the key is absent from the config file.
func (r Repository) EnabledOrDefault() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ArchOrDefault returns Arch with the spec's documented default of
// "x86_64" when the key is absent from the config file.
func (r Repository) ArchOrDefault() string {
	if r.Arch == "" {
		return "x86_64"
	}
	return r.Arch
}

// Storage locates the relational database file backing packages,
// dependencies, files, embeddings (or the vector-virtual-table) and
// sync state.
type Storage struct {
	DBPath string `yaml:"db_path"`
}

// Embedding configures the embedding model identity guard and endpoint.
// BatchSize is parsed but not passed to the embedding builder, which
// always uses embedding.DefaultBatchSize.
type Embedding struct {
	ModelName string `yaml:"model_name"`
	Dim       int    `yaml:"dim"`
	BatchSize int    `yaml:"batch_size"`
	Endpoint  string `yaml:"endpoint"`
}

// BatchSizeOrDefault returns BatchSize with spec.md §4.6's documented
// default of 32 when unset.
func (e Embedding) BatchSizeOrDefault() int {
	if e.BatchSize <= 0 {
		return 32
	}
	return e.BatchSize
}

// Admin configures the narrow local admin/status HTTP surface used to
// inspect and trigger sync outside of daemon mode.
type Admin struct {
	Port int `yaml:"port"`
}

type RateLimit struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type Log struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Filename   string `yaml:"filename"`    // log file path
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress rotated files
}

var (
	config *Config
	once   sync.Once
)

// Load loads the configuration from the default config file.
func Load() (*Config, error) {
	return LoadFromFile("config/config.yaml")
}

// LoadFromFile loads the configuration from the specified file. Only
// the first call in a process does any work; later calls return the
// already-loaded Config.
func LoadFromFile(path string) (*Config, error) {
	var loadErr error
	once.Do(func() {
		cfg := &Config{}
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = err
			return
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			loadErr = err
			return
		}
		if err := ensureDirs(cfg.WorkDir); err != nil {
			loadErr = err
			return
		}
		config = cfg
	})
	return config, loadErr
}

// Get returns the current configuration.
func Get() *Config {
	return config
}

func ensureDirs(workDir string) error {
	if workDir == "" {
		return nil
	}
	return os.MkdirAll(filepath.Clean(workDir), 0755)
}
