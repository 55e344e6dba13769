// Package config holds the on-disk client configuration: the engine data
// directory plus the registered deployment projects.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/deploysync/deploysync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".deploysync")
	DefaultConfigPath = filepath.Join(home, ".deploysync", "config.json")
)

// Project is one deployable source tree and its remote destination.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LocalPath  string `json:"local_path"`
	RemoteRoot string `json:"remote_root"`

	// Protocol selects the transport dialer: "ftp", "sftp" or "local"
	// (local mirrors into Host interpreted as a directory path).
	Protocol string `json:"protocol"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Connections overrides the parallel connection count; 0 means default.
	Connections int `json:"connections,omitempty"`
}

func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.LocalPath == "" {
		return fmt.Errorf("project %s: local_path is required", p.ID)
	}
	if p.Protocol == "" {
		return fmt.Errorf("project %s: protocol is required", p.ID)
	}
	return nil
}

type Config struct {
	DataDir  string    `json:"data_dir"`
	Projects []Project `json:"projects"`
	Path     string    `json:"-"`
}

func Default() *Config {
	return &Config{DataDir: DefaultDataDir}
}

// Project looks up a project by id or name.
func (c *Config) Project(key string) (*Project, bool) {
	for i := range c.Projects {
		if c.Projects[i].ID == key || c.Projects[i].Name == key {
			return &c.Projects[i], true
		}
	}
	return nil, false
}

// Engine state paths, all rooted under DataDir.

func (c *Config) DeltaCacheDir() string {
	return filepath.Join(c.DataDir, "delta_cache")
}

func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "version_history")
}

func (c *Config) BackupsDir() string {
	return filepath.Join(c.DataDir, "backups")
}

func (c *Config) SessionsPath() string {
	return filepath.Join(c.DataDir, "transfer_sessions.json")
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Load reads the config; a missing file yields the defaults so a fresh
// install works without setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.Path = path
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	cfg.Path = path

	for i := range cfg.Projects {
		if err := cfg.Projects[i].Validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
