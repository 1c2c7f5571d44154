// Package membership's configuration surface mirrors the teacher's
// pkg/replication/config.go: a plain struct with defaults, a YAML file
// loader, and an environment-variable override layer, validated with
// a single Validate() call before use.
//
// Environment variables (QUORUMD_*):
//
//	QUORUMD_NAME=a
//	QUORUMD_ADDR=0.0.0.0
//	QUORUMD_PORT=2468
//	QUORUMD_MEMBERS=a:127.0.0.1:2468,b:127.0.0.1:2469
//	QUORUMD_LEADER_TIMEOUT=1.0
//	QUORUMD_ELECTION_TIMEOUT_JITTER=0.5
//	QUORUMD_VOTE_INTERVAL=0.5
//	QUORUMD_HEARTBEAT_INTERVAL=0.3
//	QUORUMD_REPORT_INTERVAL=5.0
//	QUORUMD_LOG_LEVEL=info
//	QUORUMD_LOG_COLOR=true
//	QUORUMD_DATA_DIR=./data
//
// Precedence is file-then-environment: LoadFromFile populates a
// Config from YAML, then ApplyEnv overrides any field whose
// environment variable is set, matching the original source's
// flag-layered-on-config-file precedence (SPEC_FULL.md "SUPPLEMENTED
// FEATURES" #6).
package membership

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every recognized option from spec §6's configuration
// surface. Durations are stored as seconds-as-float64 to stay
// compatible with the original Python source's config file shape
// (SPEC_FULL.md "SUPPLEMENTED FEATURES" #1); ActorConfig and
// ReportIntervalDuration convert them to idiomatic time.Duration for
// internal use.
type Config struct {
	Name    string `yaml:"name"`
	Addr    string `yaml:"addr"`
	Port    int    `yaml:"port"`
	Members string `yaml:"members"`

	LeaderTimeout         float64 `yaml:"leader_timeout"`
	ElectionTimeoutJitter float64 `yaml:"election_timeout_jitter"`
	VoteInterval          float64 `yaml:"vote_interval"`
	HeartbeatInterval     float64 `yaml:"heartbeat_interval"`
	ReportInterval        float64 `yaml:"report_interval"`

	LogLevel string `yaml:"log_level"`
	LogColor bool   `yaml:"log_color"`

	DataDir string `yaml:"data_dir"`
}

// DefaultConfig returns sensible defaults for every timing field,
// matching the magnitude of the scenarios in spec §8.
func DefaultConfig() *Config {
	return &Config{
		Addr:                  "0.0.0.0",
		Port:                  2468,
		LeaderTimeout:         1.0,
		ElectionTimeoutJitter: 0.5,
		VoteInterval:          0.5,
		HeartbeatInterval:     0.3,
		ReportInterval:        5.0,
		LogLevel:              "info",
		LogColor:              false,
		DataDir:               "./data",
	}
}

// LoadFromFile reads a YAML config file, starting from DefaultConfig
// and overlaying whatever the file sets.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// envFloat and envString/envBool read an environment variable into a
// field only when it's set, matching the teacher's
// "NORNICDB_CLUSTER_*" env-override idiom.
func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(name string, dst *float64) {
	if v, ok := os.LookupEnv(name); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// ApplyEnv overlays QUORUMD_* environment variables onto cfg,
// overriding only the fields whose variable is actually set.
func (c *Config) ApplyEnv() {
	envString("QUORUMD_NAME", &c.Name)
	envString("QUORUMD_ADDR", &c.Addr)
	envInt("QUORUMD_PORT", &c.Port)
	envString("QUORUMD_MEMBERS", &c.Members)
	envFloat("QUORUMD_LEADER_TIMEOUT", &c.LeaderTimeout)
	envFloat("QUORUMD_ELECTION_TIMEOUT_JITTER", &c.ElectionTimeoutJitter)
	envFloat("QUORUMD_VOTE_INTERVAL", &c.VoteInterval)
	envFloat("QUORUMD_HEARTBEAT_INTERVAL", &c.HeartbeatInterval)
	envFloat("QUORUMD_REPORT_INTERVAL", &c.ReportInterval)
	envString("QUORUMD_LOG_LEVEL", &c.LogLevel)
	envBool("QUORUMD_LOG_COLOR", &c.LogColor)
	envString("QUORUMD_DATA_DIR", &c.DataDir)
}

// Validate checks the recognized options for internal consistency
// (spec §6): Name must be set and present in Members, Port must be
// positive, and DataDir must exist or be creatable (spec §6 — "data_dir
// ... must exist / be created; reserved for future persistence". This
// module never writes under DataDir: spec §1/§9 keep "no persistent
// term/votedFor/log" as a documented limitation, not a feature to
// build — see SPEC_FULL.md's DOMAIN STACK section on badger).
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: name is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: port must be positive")
	}

	peers, err := ParseMembers(c.Members)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	found := false
	for _, p := range peers {
		if p.Name == c.Name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config: name %q must appear in members", c.Name)
	}

	if c.DataDir != "" {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return fmt.Errorf("config: data_dir %s: %w", c.DataDir, err)
		}
	}

	return nil
}

// ParseMembers parses a comma-separated "name:host:port" roster into
// an ordered []PeerAddr (spec §6's `members` option).
func ParseMembers(members string) ([]PeerAddr, error) {
	members = strings.TrimSpace(members)
	if members == "" {
		return nil, fmt.Errorf("members must not be empty")
	}

	parts := strings.Split(members, ",")
	peers := make([]PeerAddr, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.SplitN(part, ":", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed member entry %q, want name:host:port", part)
		}

		port, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("malformed port in member entry %q: %w", part, err)
		}

		peers = append(peers, PeerAddr{Name: fields[0], Host: fields[1], Port: port})
	}

	return peers, nil
}

// Identity builds this node's NodeIdentity from Name and Members.
func (c *Config) Identity() (NodeIdentity, error) {
	peers, err := ParseMembers(c.Members)
	if err != nil {
		return NodeIdentity{}, err
	}
	return NodeIdentity{Name: c.Name, Peers: peers}, nil
}

// BindAddr returns the "addr:port" listen string for Transport.Serve.
func (c *Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// ActorConfig converts the seconds-as-float fields into the
// time.Duration values Actor needs.
func (c *Config) ActorConfig() ActorConfig {
	return ActorConfig{
		LeaderTimeout:     secondsToDuration(c.LeaderTimeout),
		ElectionJitter:    secondsToDuration(c.ElectionTimeoutJitter),
		VoteInterval:      secondsToDuration(c.VoteInterval),
		HeartbeatInterval: secondsToDuration(c.HeartbeatInterval),
	}
}

// ReportIntervalDuration converts ReportInterval to a time.Duration.
func (c *Config) ReportIntervalDuration() time.Duration {
	return secondsToDuration(c.ReportInterval)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
