package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/QuTech-Delft/squidasm-sub000/link"
	"github.com/QuTech-Delft/squidasm-sub000/stack"
)

// DefaultNetworkConfig is a perfect two-node network: generic devices,
// deterministic PHI+ link, instantaneous classical channels.
func DefaultNetworkConfig() stack.NetworkConfig {
	return stack.NetworkConfig{
		Nodes: []stack.NodeConfig{
			{Name: "alice", Flavor: stack.FlavorGeneric, NumQubits: 5},
			{Name: "bob", Flavor: stack.FlavorGeneric, NumQubits: 5},
		},
		Link: link.DefaultLinkConfig(),
	}
}

// LoadNetworkConfig reads a network config from a YAML file. Omitted link
// fields fall back to the perfect-link defaults.
func LoadNetworkConfig(path string) (stack.NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stack.NetworkConfig{}, fmt.Errorf("reading network config: %w", err)
	}
	cfg := DefaultNetworkConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return stack.NetworkConfig{}, fmt.Errorf("parsing network config %s: %w", path, err)
	}
	if len(cfg.Nodes) != 2 {
		return stack.NetworkConfig{}, fmt.Errorf("network config %s: expected 2 nodes, got %d", path, len(cfg.Nodes))
	}
	return cfg, nil
}
