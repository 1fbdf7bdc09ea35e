package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	envPrefix = "PEPTOPT_"

	DefaultTopK              = 5
	DefaultPort              = 8080
	DefaultLogLevel          = "info"
	DefaultArtifactRoot      = "data/processed"
	DefaultSubstitutionsPath = "data/processed/glp1_substitutions_labeled.csv"
	defaultDBFileName        = "peptopt.db"
)

// Config represents app config object.
type Config struct {
	LogLevel          string    `yaml:"log_level"`
	DBPath            string    `yaml:"db_path"`
	SubstitutionsPath string    `yaml:"substitutions_path"`
	TopK              int       `yaml:"top_k"`
	Artifacts         Artifacts `yaml:"artifacts"`
	Server            Server    `yaml:"server"`
}

// Artifacts selects where trained models are read from.
type Artifacts struct {
	Driver    string `yaml:"driver"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// Server configures the HTTP API.
type Server struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

func getDefaultConfig(dirPath string) *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		DBPath:            filepath.Join(dirPath, defaultDBFileName),
		SubstitutionsPath: DefaultSubstitutionsPath,
		TopK:              DefaultTopK,
		Artifacts: Artifacts{
			Driver: "fs",
			Root:   DefaultArtifactRoot,
		},
		Server: Server{
			Port: DefaultPort,
		},
	}
}

// fill replaces unset fields with defaults.
func (c *Config) fill(dirPath string) {
	d := getDefaultConfig(dirPath)
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.SubstitutionsPath == "" {
		c.SubstitutionsPath = d.SubstitutionsPath
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.Artifacts.Driver == "" {
		c.Artifacts.Driver = d.Artifacts.Driver
	}
	if c.Artifacts.Root == "" && c.Artifacts.Driver == "fs" {
		c.Artifacts.Root = d.Artifacts.Root
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
}

// ApplyEnv overlays PEPTOPT_* environment variables onto c.
//
//	PEPTOPT_LOG_LEVEL, PEPTOPT_DB_PATH, PEPTOPT_SUBSTITUTIONS_PATH,
//	PEPTOPT_TOP_K, PEPTOPT_SERVER_ADDRESS, PEPTOPT_SERVER_PORT
//
// Artifact settings are overlaid separately by the artifact package.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(envPrefix + "SUBSTITUTIONS_PATH"); v != "" {
		c.SubstitutionsPath = v
	}
	if v := os.Getenv(envPrefix + "SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}

	ints := map[string]*int{
		"TOP_K":       &c.TopK,
		"SERVER_PORT": &c.Server.Port,
	}
	for k, p := range ints {
		v := os.Getenv(envPrefix + k)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, k, v, err)
		}
		*p = n
	}

	return nil
}

// Addr returns the host:port the server listens on.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one with
// defaults. Fields missing from an existing file are filled with defaults.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, getDefaultConfig(dirPath)); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	c.fill(dirPath)

	return &c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
