// Package config loads the peer table and router tunables of a peer process.
// Values come from a YAML file and are then overridden by environment
// variables (SELF_ID, HTTP_ADDR, ETCD_ENDPOINTS, STATS_DIR, RETRY_CYCLES, DEBUG).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/router"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Self     string               `yaml:"self"`
	HTTPAddr string               `yaml:"httpAddr"`
	Peers    []directory.Endpoint `yaml:"peers"`

	// Etcd, when set, replaces the static peer table: the process registers
	// its own endpoint and waits for ExpectPeers members under the prefix.
	Etcd        []string           `yaml:"etcd"`
	EtcdPrefix  string             `yaml:"etcdPrefix"`
	ExpectPeers int                `yaml:"expectPeers"`
	Endpoint    directory.Endpoint `yaml:"endpoint"`

	DrainWindow time.Duration `yaml:"drainWindow"`
	PollTimeout time.Duration `yaml:"pollTimeout"`
	RetryCycles int           `yaml:"retryCycles"`
	AckTimeout  time.Duration `yaml:"ackTimeout"`
	StartWait   time.Duration `yaml:"startWait"`
	StatsDir    string        `yaml:"statsDir"`
	Debug       bool          `yaml:"debug"`
}

func Default() Config {
	d := router.DefaultConfig()
	return Config{
		HTTPAddr:    ":8080",
		EtcdPrefix:  "/r2rmesh/peers/",
		DrainWindow: d.DrainWindow,
		PollTimeout: d.PollTimeout,
		RetryCycles: d.RetryCycles,
		StartWait:   d.StartWait,
		StatsDir:    os.TempDir(),
	}
}

// Load reads path (if not empty) on top of the defaults, then applies the
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SELF_ID"); v != "" {
		c.Self = v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := getenv("ETCD_ENDPOINTS"); v != "" {
		c.Etcd = strings.Split(v, ",")
	}
	if v := getenv("STATS_DIR"); v != "" {
		c.StatsDir = v
	}
	if v := getenv("RETRY_CYCLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RETRY_CYCLES=%q", ErrInvalid, v)
		}
		c.RetryCycles = n
	}
	if v := getenv("DEBUG"); v != "" {
		c.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}

func (c Config) Validate() error {
	if c.Self == "" {
		return fmt.Errorf("%w: self is not set", ErrInvalid)
	}
	if c.RetryCycles <= 0 {
		return fmt.Errorf("%w: retryCycles must be positive", ErrInvalid)
	}
	if len(c.Etcd) > 0 {
		if c.Endpoint.ServerAddr == "" || c.Endpoint.ClientAddr == "" {
			return fmt.Errorf("%w: endpoint addresses are required with etcd discovery", ErrInvalid)
		}
		return nil
	}
	seen := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if seen[p.Name] {
			return fmt.Errorf("%w: peer %q listed twice", ErrInvalid, p.Name)
		}
		seen[p.Name] = true
	}
	if !seen[c.Self] {
		return fmt.Errorf("%w: self %q is not in the peer table", ErrInvalid, c.Self)
	}
	return nil
}

// SelfEndpoint returns the endpoint this process binds.
func (c Config) SelfEndpoint() (directory.Endpoint, bool) {
	if len(c.Etcd) > 0 {
		ep := c.Endpoint
		ep.Name = c.Self
		return ep, true
	}
	for _, p := range c.Peers {
		if p.Name == c.Self {
			return p, true
		}
	}
	return directory.Endpoint{}, false
}

// RouterConfig maps the tunables onto a router.Config.
func (c Config) RouterConfig() router.Config {
	return router.Config{
		DrainWindow: c.DrainWindow,
		PollTimeout: c.PollTimeout,
		RetryCycles: c.RetryCycles,
		AckTimeout:  c.AckTimeout,
		StartWait:   c.StartWait,
		StatsDir:    c.StatsDir,
		Debug:       c.Debug,
	}
}
