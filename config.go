package torque

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of an App, decodable from a
// TOML, YAML or JSON file via LoadConfigFile, or built directly with
// DefaultConfig and field assignment.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	DebugMode bool   `mapstructure:"debug_mode"`

	// Address is the TCP address the server listens on.
	Address string `mapstructure:"address"`

	// WorkerThreads is decoded from configuration but not read by App or
	// Server: requests run on net/http's per-connection goroutines, which
	// it does not bound, and the task pool size is Tasks.Workers.
	WorkerThreads int `mapstructure:"worker_threads"`

	MaxHeaderBytes int   `mapstructure:"max_header_bytes"`
	MaxBodyBytes   int64 `mapstructure:"max_body_bytes"`

	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	// ProxyProtocol enables PROXY protocol v1/v2 parsing on accepted
	// connections, for servers sitting behind an L4 load balancer.
	ProxyProtocol bool `mapstructure:"proxy_protocol"`

	Cache  CacheConfig  `mapstructure:"cache"`
	Tasks  TasksConfig  `mapstructure:"tasks"`
	Upload UploadConfig `mapstructure:"upload"`
}

// CacheConfig configures the multi-level cache component.
type CacheConfig struct {
	L1MaxBytes           int           `mapstructure:"l1_max_bytes"`
	DefaultTTL           time.Duration `mapstructure:"default_ttl"`
	RedisAddr            string        `mapstructure:"redis_addr"`
	RedisDB              int           `mapstructure:"redis_db"`
	DiskPath             string        `mapstructure:"disk_path"`
	CompressionThreshold int           `mapstructure:"compression_threshold_bytes"`
}

// TasksConfig configures the background task queue component.
type TasksConfig struct {
	Workers       int           `mapstructure:"workers"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	ResultTTL     time.Duration `mapstructure:"result_ttl"`
}

// UploadConfig configures the streaming multipart reader.
type UploadConfig struct {
	MaxBufferedBytes int64  `mapstructure:"max_buffered_bytes"`
	MaxPartBytes     int64  `mapstructure:"max_part_bytes"`
	SpoolDir         string `mapstructure:"spool_dir"`

	// VirusScanCmd, if set, is run against every spooled upload before it
	// is handed to the application: the path is appended as the final
	// argument, and a non-zero exit is treated as a positive detection.
	VirusScanCmd string `mapstructure:"virus_scan_cmd"`
}

// DefaultConfig returns a Config with every field set to its documented
// default.
func DefaultConfig() Config {
	return Config{
		AppName:        "torque",
		Address:        "localhost:8080",
		WorkerThreads:  4,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   32 << 20,
		Cache: CacheConfig{
			L1MaxBytes:           32 << 20,
			DefaultTTL:           5 * time.Minute,
			CompressionThreshold: 8 << 10,
		},
		Tasks: TasksConfig{
			Workers:       4,
			QueueCapacity: 1024,
			MaxRetries:    3,
			RetryBackoff:  time.Second,
			ResultTTL:     10 * time.Minute,
		},
		Upload: UploadConfig{
			MaxBufferedBytes: 1 << 20,
			MaxPartBytes:     32 << 20,
			SpoolDir:         os.TempDir(),
			VirusScanCmd:     "",
		},
	}
}

// LoadConfigFile reads path, decodes it by extension (.json/.toml/.yaml/
// .yml) into a generic map, and merges that map onto cfg via mapstructure
// so fields absent from the file keep whatever cfg already held.
func LoadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	default:
		err = fmt.Errorf("torque: unsupported configuration file extension: %s", ext)
	}
	if err != nil {
		return err
	}

	return mapstructure.Decode(m, cfg)
}
