// Package config loads the chat node's per-process YAML configuration.
// spec.md §6 names configuration loading as an external collaborator the
// core spec doesn't define the format of; this package supplies a concrete,
// teacher-idiom implementation (YAML via gopkg.in/yaml.v3, grounded on the
// retrieved chat-service example's go.mod dependency on the same library)
// so cmd/chatnode has something real to parse and the rest of the module
// has typed values instead of loose strings.
package config

import (
	"os"
	"time"

	"github.com/pingcap/errors"
	"gopkg.in/yaml.v3"
)

// Peer describes one other chat node this process can forward RPCs to.
type Peer struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SelfServer describes this process's own identity and listen endpoints.
type SelfServer struct {
	Name    string `yaml:"name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	RPCPort int    `yaml:"rpc_port"`
}

// Redis configures the presence-cache connection (spec component C9).
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQL configures the relational store connection (user profiles, friend
// graph). DSN follows github.com/go-sql-driver/mysql's format.
type MySQL struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Limits bundles the frame/queue bounds spec.md §4 leaves configurable.
type Limits struct {
	MaxPayload      uint16        `yaml:"max_payload"`
	MaxSendQueue    int           `yaml:"max_send_queue"`
	DispatchQueue   int           `yaml:"dispatch_queue"`
	RPCPoolSize     int           `yaml:"rpc_pool_size"`
	WorkerLoops     int           `yaml:"worker_loops"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	IdleSweepPeriod time.Duration `yaml:"idle_sweep_period"`
}

// Config is the full per-node configuration document.
type Config struct {
	Self   SelfServer `yaml:"self_server"`
	Peers  []Peer     `yaml:"peer_server"`
	Redis  Redis      `yaml:"redis"`
	MySQL  MySQL      `yaml:"mysql"`
	Limits Limits     `yaml:"limits"`
}

// defaults fills zero-valued limits with the bounds spec.md's examples use.
func (c *Config) defaults() {
	if c.Limits.MaxPayload == 0 {
		c.Limits.MaxPayload = 2048
	}
	if c.Limits.MaxSendQueue == 0 {
		c.Limits.MaxSendQueue = 1000
	}
	if c.Limits.DispatchQueue == 0 {
		c.Limits.DispatchQueue = 4096
	}
	if c.Limits.RPCPoolSize == 0 {
		c.Limits.RPCPoolSize = 5
	}
	if c.Limits.WorkerLoops == 0 {
		c.Limits.WorkerLoops = 4
	}
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "config: read %s", path)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Annotatef(err, "config: parse %s", path)
	}
	c.defaults()
	if err := c.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Self.Name == "" {
		return errors.New("config: self_server.name is required")
	}
	if c.Self.Port == 0 {
		return errors.New("config: self_server.port is required")
	}
	if c.Self.RPCPort == 0 {
		return errors.New("config: self_server.rpc_port is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required")
	}
	if c.MySQL.DSN == "" {
		return errors.New("config: mysql.dsn is required")
	}
	return nil
}
