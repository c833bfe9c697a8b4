package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile holds the endpoints and secrets for one deployment.
type Profile struct {
	ServerURL   string `yaml:"server_url"`
	IngestPath  string `yaml:"ingest_path,omitempty"`
	IngestToken string `yaml:"ingest_token,omitempty"`
	WorkerToken string `yaml:"worker_token,omitempty"`
	RedisURL    string `yaml:"redis_url,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`
	Stream      string `yaml:"stream,omitempty"`
	Subject     string `yaml:"subject,omitempty"`
}

// DefaultProfile matches the service's development defaults.
func DefaultProfile() *Profile {
	return &Profile{
		ServerURL:   "http://localhost:8080",
		IngestPath:  "/ingest",
		IngestToken: "dev-ingest-token",
		WorkerToken: "dev-secret-change-me",
		RedisURL:    "redis://localhost:6379/0",
		NATSURL:     "nats://localhost:4222",
		DatabaseURL: "postgres://telhawk@localhost:5432/telhawk_anomaly?sslmode=disable",
		Stream:      "anomaly:raw",
		Subject:     "anomalies",
	}
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
	}
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".anomctl", "config.yaml"), nil
}

func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		p, err := defaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}

	return cfg, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}

// SaveProfile stores p under name and makes it current.
func (c *Config) SaveProfile(name string, p *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = p
	c.CurrentProfile = name
	return c.Save()
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}

	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	return profile, nil
}

// Resolve returns the named profile with unset fields filled from
// DefaultProfile. A missing profile resolves to the defaults.
func (c *Config) Resolve(name string) *Profile {
	resolved := DefaultProfile()
	p, err := c.GetProfile(name)
	if err != nil {
		return resolved
	}

	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&resolved.ServerURL, p.ServerURL)
	merge(&resolved.IngestPath, p.IngestPath)
	merge(&resolved.IngestToken, p.IngestToken)
	merge(&resolved.WorkerToken, p.WorkerToken)
	merge(&resolved.RedisURL, p.RedisURL)
	merge(&resolved.NATSURL, p.NATSURL)
	merge(&resolved.DatabaseURL, p.DatabaseURL)
	merge(&resolved.Stream, p.Stream)
	merge(&resolved.Subject, p.Subject)
	return resolved
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(c.Profiles, name)

	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}

	return c.Save()
}
