// Package config loads the static, full-mesh peer table a chat node runs
// against, from a YAML file or a compiled-in default topology.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Peer is one entry of the static network map. The local node has an entry
// too; PeersExcluding separates it from the others.
type Peer struct {
	ID   string `yaml:"id"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Network is the full compiled-in or file-loaded peer table.
type Network struct {
	Nodes []Peer `yaml:"nodes"`
}

// defaultNetwork is the compiled-in 3-node full-mesh topology used when no
// peer-table file is given (n1@5000, n2@5001, n3@5002).
func defaultNetwork() Network {
	return Network{Nodes: []Peer{
		{ID: "n1", Host: "localhost", Port: 5000},
		{ID: "n2", Host: "localhost", Port: 5001},
		{ID: "n3", Host: "localhost", Port: 5002},
	}}
}

// Load reads the peer table from path. An empty path returns the compiled-in
// default topology.
func Load(path string) (Network, error) {
	if path == "" {
		return defaultNetwork(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Network{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var net Network
	if err := yaml.Unmarshal(data, &net); err != nil {
		return Network{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(net.Nodes) == 0 {
		return Network{}, fmt.Errorf("config: %s declares no nodes", path)
	}
	return net, nil
}

// PeersExcluding returns every configured node except selfID, along with the
// matching self entry's host/port (zero Peer if selfID is absent).
func (n Network) PeersExcluding(selfID string) (peers []Peer, self Peer) {
	for _, p := range n.Nodes {
		if p.ID == selfID {
			self = p
			continue
		}
		peers = append(peers, p)
	}
	return peers, self
}
