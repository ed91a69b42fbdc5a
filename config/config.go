// Package config loads the structured configuration named in the
// broker's external interfaces: queue names, background loop timers,
// the persistence mode, the replication role, and the access-key shape
// an external HTTP layer would enforce. Loading itself is an external
// concern, so this package stays thin (a set of structs plus Load)
// and exists only so cmd/spartanq has something concrete to parse.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PersistenceMode selects one of the mutually exclusive persistence
// disciplines (snapshot, log or sql), or none at all.
type PersistenceMode uint8

const (
	PersistenceDisabled PersistenceMode = iota
	PersistenceSnapshot
	PersistenceLog
	PersistenceSQL
)

func persistenceModeFromString(s string) (PersistenceMode, error) {
	switch s {
	case "", "none":
		return PersistenceDisabled, nil
	case "snapshot":
		return PersistenceSnapshot, nil
	case "log":
		return PersistenceLog, nil
	case "sql":
		return PersistenceSQL, nil
	default:
		return 0, fmt.Errorf("config: unknown persistence mode %q", s)
	}
}

func (m PersistenceMode) String() string {
	switch m {
	case PersistenceSnapshot:
		return "snapshot"
	case PersistenceLog:
		return "log"
	case PersistenceSQL:
		return "sql"
	default:
		return "none"
	}
}

// MarshalYAML implements yaml.Marshaler.
func (m PersistenceMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *PersistenceMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	mode, err := persistenceModeFromString(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Persistence configures how queues are durably stored. Snapshot and
// Log write to files under Path; SQL instead opens a database at DSN
// (the sql submodule provides the driver).
type Persistence struct {
	Mode PersistenceMode `yaml:"mode"`
	Path string          `yaml:"path,omitempty"`
	DSN  string          `yaml:"dsn,omitempty"`
}

// ReplicationRole selects which side of the replication protocol this
// process plays, or neither.
type ReplicationRole uint8

const (
	ReplicationDisabled ReplicationRole = iota
	ReplicationRolePrimary
	ReplicationRoleReplica
)

func replicationRoleFromString(s string) (ReplicationRole, error) {
	switch s {
	case "", "none":
		return ReplicationDisabled, nil
	case "primary":
		return ReplicationRolePrimary, nil
	case "replica":
		return ReplicationRoleReplica, nil
	default:
		return 0, fmt.Errorf("config: unknown replication role %q", s)
	}
}

func (r ReplicationRole) String() string {
	switch r {
	case ReplicationRolePrimary:
		return "primary"
	case ReplicationRoleReplica:
		return "replica"
	default:
		return "none"
	}
}

// MarshalYAML implements yaml.Marshaler.
func (r ReplicationRole) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *ReplicationRole) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	role, err := replicationRoleFromString(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Replication configures this process's role in log shipping. Primary
// dials every address in Destination on each cycle; Replica listens on
// Bind and accepts sessions from a primary.
type Replication struct {
	Role        ReplicationRole `yaml:"role"`
	Destination []string        `yaml:"destination,omitempty"`
	Bind        string          `yaml:"bind,omitempty"`
}

// AccessKey maps a single access key to the queue names it may be used
// against. The HTTP authorization middleware that enforces this is an
// external collaborator; this type exists so Config has somewhere
// typed to hold it.
type AccessKey struct {
	Key    string   `yaml:"key"`
	Queues []string `yaml:"queues"`
}

// Config is the structured configuration a broker process is started
// from.
type Config struct {
	Queues []string `yaml:"queues"`

	GCTimer          int `yaml:"gc_timer"`
	PersistenceTimer int `yaml:"persistence_timer"`

	Persistence *Persistence `yaml:"persistence,omitempty"`
	Replication *Replication `yaml:"replication,omitempty"`

	AccessKeys []AccessKey `yaml:"access_keys,omitempty"`
}

// Default returns a starter configuration, used by cmd/spartanq init to
// seed a new config file.
func Default() *Config {
	return &Config{
		Queues:           []string{"default"},
		GCTimer:          30,
		PersistenceTimer: 60,
		Persistence: &Persistence{
			Mode: PersistenceSnapshot,
			Path: "./data",
		},
	}
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML, creating the file if necessary.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
