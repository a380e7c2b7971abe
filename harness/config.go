// Package harness defines the test-harness configuration surface: the
// descriptor naming the node under test that individual test cases and
// fuzz harnesses consume to instantiate synthetic peers against it. Process
// supervision (actually starting or stopping that node) is out of scope.
package harness

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

// NodeKind names a known Zcash full-node implementation.
type NodeKind string

const (
	KindZebra  NodeKind = "zebra"
	KindZcashd NodeKind = "zcashd"
)

// Config is the keyed table naming the node under test.
type Config struct {
	Kind         NodeKind `toml:"kind"`
	Path         string   `toml:"path"`
	StartCommand string   `toml:"start_command"`
	StopCommand  string   `toml:"stop_command,omitempty"`
	LocalIP      string   `toml:"local_ip,omitempty"`
	LocalAddr    string   `toml:"local_addr,omitempty"`
	ExternalAddr string   `toml:"external_addr,omitempty"`
	PeerIP       string   `toml:"peer_ip,omitempty"`
}

// Load decodes a Config from the TOML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("harness: decoding %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Kind {
	case KindZebra, KindZcashd:
	default:
		return fmt.Errorf("harness: unknown node kind %q", c.Kind)
	}
	if c.Path == "" {
		return fmt.Errorf("harness: path is required")
	}
	if c.StartCommand == "" {
		return fmt.Errorf("harness: start_command is required")
	}
	return nil
}
