package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceKnowledge    = "knowledge"
	SourceDeviceExport = "device_export"
	SourceFile         = "file"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Timezone  string          `json:"timezone" yaml:"timezone"`
	DataDir   string          `json:"data_dir" yaml:"data_dir"`
	Sources   []SourceConfig  `json:"sources" yaml:"sources"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Export    ExportConfig    `json:"export" yaml:"export"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	API       APIConfig       `json:"api" yaml:"api"`
}

type SourceConfig struct {
	Name     string        `json:"name" yaml:"name"`
	Type     string        `json:"type" yaml:"type"`
	Enabled  *bool         `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Binary   string        `json:"binary,omitempty" yaml:"binary,omitempty"`
	DeviceID string        `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Lookback time.Duration `json:"lookback,omitempty" yaml:"lookback,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type NormalizeConfig struct {
	Apps          OrderedMap `json:"apps" yaml:"apps"`
	Titles        OrderedMap `json:"titles" yaml:"titles"`
	Categories    OrderedMap `json:"categories" yaml:"categories"`
	SystemPrefix  string     `json:"system_prefix" yaml:"system_prefix"`
	SystemTitles  []string   `json:"system_titles" yaml:"system_titles"`
	SkipDefaults  bool       `json:"skip_defaults" yaml:"skip_defaults"`
	PrefixLength  int        `json:"prefix_length" yaml:"prefix_length"`
	UnknownTitles []string   `json:"unknown_titles" yaml:"unknown_titles"`
}

type StorageConfig struct {
	Driver                  string `json:"driver" yaml:"driver"`
	Path                    string `json:"path" yaml:"path"`
	DSN                     string `json:"dsn" yaml:"dsn"`
	CollectionWatermarkPath string `json:"collection_watermark_path" yaml:"collection_watermark_path"`
	ExportWatermarkPath     string `json:"export_watermark_path" yaml:"export_watermark_path"`
}

type ExportConfig struct {
	Influx        InfluxConfig        `json:"influx" yaml:"influx"`
	HomeAssistant HomeAssistantConfig `json:"homeassistant" yaml:"homeassistant"`
	Kafka         KafkaConfig         `json:"kafka" yaml:"kafka"`
	MaxRetries    int                 `json:"max_retries" yaml:"max_retries"`
	Backoff       time.Duration       `json:"backoff" yaml:"backoff"`
	MaxBackoff    time.Duration       `json:"max_backoff" yaml:"max_backoff"`
	TopN          int                 `json:"top_n" yaml:"top_n"`
}

type InfluxConfig struct {
	URL         string        `json:"url" yaml:"url"`
	Token       string        `json:"token" yaml:"token"`
	Org         string        `json:"org" yaml:"org"`
	Bucket      string        `json:"bucket" yaml:"bucket"`
	Measurement string        `json:"measurement" yaml:"measurement"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

type HomeAssistantConfig struct {
	URL             string        `json:"url" yaml:"url"`
	Token           string        `json:"token" yaml:"token"`
	EntityPrefix    string        `json:"entity_prefix" yaml:"entity_prefix"`
	PrimaryCategory string        `json:"primary_category" yaml:"primary_category"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
}

type KafkaConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Brokers []string      `json:"brokers" yaml:"brokers"`
	Topic   string        `json:"topic" yaml:"topic"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile" yaml:"textfile"`
}

type HistoryConfig struct {
	Limit int `json:"limit" yaml:"limit"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Timezone: "Local",
		DataDir:  "data",
		Sources: []SourceConfig{
			{Name: "iphone", Type: SourceDeviceExport, Binary: "aw-import-screentime", Lookback: 28 * 24 * time.Hour, Timeout: 5 * time.Minute},
			{Name: "mac", Type: SourceKnowledge, Path: "~/Library/Application Support/Knowledge/knowledgeC.db"},
		},
		Normalize: NormalizeConfig{
			SystemPrefix: "System:",
			SystemTitles: []string{"Lock Screen", "Control Center", "Clock Widget"},
			PrefixLength: 15,
		},
		Storage: StorageConfig{Driver: "csv"},
		Export: ExportConfig{
			Influx: InfluxConfig{
				URL:         "http://localhost:8086",
				Org:         "home",
				Bucket:      "screentime",
				Measurement: "screentime",
				Timeout:     30 * time.Second,
			},
			HomeAssistant: HomeAssistantConfig{
				URL:             "http://homeassistant.local:8123",
				EntityPrefix:    "sensor.screentime",
				PrimaryCategory: "Social",
				Timeout:         10 * time.Second,
			},
			Kafka:      KafkaConfig{Enabled: false, Topic: "screentime-events", Timeout: 10 * time.Second},
			MaxRetries: 2,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 5 * time.Second,
			TopN:       10,
		},
		History: HistoryConfig{Limit: 100},
		API:     APIConfig{Enabled: false, Addr: ":8089"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault falls back to DefaultConfig when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		applyDefaults(cfg)
		applyEnv(cfg)
		return cfg, Validate(cfg)
	}
	return Load(path)
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "csv"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, "screentime.csv")
	}
	if cfg.Storage.CollectionWatermarkPath == "" {
		cfg.Storage.CollectionWatermarkPath = filepath.Join(cfg.DataDir, "screentime.csv.last")
	}
	if cfg.Storage.ExportWatermarkPath == "" {
		cfg.Storage.ExportWatermarkPath = filepath.Join(cfg.DataDir, ".last_export_timestamp")
	}
	if cfg.Normalize.SystemPrefix == "" {
		cfg.Normalize.SystemPrefix = "System:"
	}
	if cfg.Normalize.PrefixLength <= 0 {
		cfg.Normalize.PrefixLength = 15
	}
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Name == "" {
			src.Name = src.Type
		}
		if src.Type == SourceDeviceExport {
			if src.Binary == "" {
				src.Binary = "aw-import-screentime"
			}
			if src.Lookback <= 0 {
				src.Lookback = 28 * 24 * time.Hour
			}
		}
		if src.Timeout <= 0 {
			src.Timeout = 5 * time.Minute
		}
	}
	if cfg.Export.Influx.Measurement == "" {
		cfg.Export.Influx.Measurement = "screentime"
	}
	if cfg.Export.Influx.Timeout <= 0 {
		cfg.Export.Influx.Timeout = 30 * time.Second
	}
	if cfg.Export.HomeAssistant.EntityPrefix == "" {
		cfg.Export.HomeAssistant.EntityPrefix = "sensor.screentime"
	}
	if cfg.Export.HomeAssistant.Timeout <= 0 {
		cfg.Export.HomeAssistant.Timeout = 10 * time.Second
	}
	if cfg.Export.Kafka.Timeout <= 0 {
		cfg.Export.Kafka.Timeout = 10 * time.Second
	}
	if cfg.Export.MaxRetries < 0 {
		cfg.Export.MaxRetries = 0
	}
	if cfg.Export.Backoff <= 0 {
		cfg.Export.Backoff = 500 * time.Millisecond
	}
	if cfg.Export.MaxBackoff <= 0 {
		cfg.Export.MaxBackoff = 5 * time.Second
	}
	if cfg.Export.TopN <= 0 {
		cfg.Export.TopN = 10
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = 100
	}
}

// applyEnv lets credentials live outside the config file.
func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Export.Influx.URL, "INFLUX_URL")
	setFromEnv(&cfg.Export.Influx.Token, "INFLUX_TOKEN")
	setFromEnv(&cfg.Export.Influx.Org, "INFLUX_ORG")
	setFromEnv(&cfg.Export.Influx.Bucket, "INFLUX_BUCKET")
	setFromEnv(&cfg.Export.HomeAssistant.URL, "HA_URL")
	setFromEnv(&cfg.Export.HomeAssistant.Token, "HA_TOKEN")
	if id, ok := os.LookupEnv("DEVICE_ID"); ok && strings.TrimSpace(id) != "" {
		for i := range cfg.Sources {
			if cfg.Sources[i].Type == SourceDeviceExport && cfg.Sources[i].DeviceID == "" {
				cfg.Sources[i].DeviceID = strings.TrimSpace(id)
			}
		}
	}
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func Validate(cfg *Config) error {
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if seen[src.Name] {
			return fmt.Errorf("sources: duplicate name %q", src.Name)
		}
		seen[src.Name] = true
		switch src.Type {
		case SourceKnowledge, SourceFile:
			if src.Path == "" {
				return fmt.Errorf("sources.%s.path required for type %s", src.Name, src.Type)
			}
		case SourceDeviceExport:
		default:
			return fmt.Errorf("sources.%s: unknown type %q", src.Name, src.Type)
		}
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "csv":
	case "sqlite", "postgres", "postgresql":
		if cfg.Storage.DSN == "" && strings.ToLower(cfg.Storage.Driver) != "sqlite" {
			return errors.New("storage.dsn required for postgres")
		}
	default:
		return fmt.Errorf("storage.driver: unsupported %q", cfg.Storage.Driver)
	}
	if cfg.Export.Kafka.Enabled {
		if len(cfg.Export.Kafka.Brokers) == 0 || cfg.Export.Kafka.Topic == "" {
			return errors.New("export.kafka requires brokers and topic")
		}
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	return nil
}

// Location resolves the configured timezone used for local-store timestamps.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
