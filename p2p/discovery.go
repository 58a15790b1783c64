package p2p

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Discovery maintains the table of known nodes. Real deployments would
// populate it from a broadcast protocol; the simulation seeds a static set.
type Discovery struct {
	nodeID  uint64
	address string

	mu    sync.Mutex
	known map[uint64]string
}

func NewDiscovery(nodeID uint64, address string) *Discovery {
	return &Discovery{
		nodeID:  nodeID,
		address: address,
		known:   make(map[uint64]string),
	}
}

// DiscoverNodes seeds the known-node table with the simulation's static
// peers.
func (d *Discovery) DiscoverNodes() {
	slog.Info("discovering nodes", "node", d.nodeID)
	d.AddNode(1, "192.168.1.1")
	d.AddNode(2, "192.168.1.2")
	d.AddNode(3, "192.168.1.3")
	d.mu.Lock()
	count := len(d.known)
	d.mu.Unlock()
	slog.Info("discovery complete", "known", count)
}

// AddNode records a node's address if it is not already known.
func (d *Discovery) AddNode(nodeID uint64, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.known[nodeID]; ok {
		return
	}
	d.known[nodeID] = address
}

// KnownNodes returns the known node ids in ascending order.
func (d *Discovery) KnownNodes() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint64, 0, len(d.known))
	for id := range d.known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NodeAddress looks up the address of a known node.
func (d *Discovery) NodeAddress(nodeID uint64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	address, ok := d.known[nodeID]
	if !ok {
		return "", fmt.Errorf("node %d: %w", nodeID, ErrPeerNotFound)
	}
	return address, nil
}
