// Package subnet assigns nodes to subnets with a least-loaded policy and
// periodically rebalances oversized subnets.
package subnet

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNodeNotAssigned = errors.New("node not assigned to any subnet")

// Manager tracks node-to-subnet assignments.
type Manager struct {
	mu           sync.Mutex
	totalSubnets int
	nodeSubnet   map[uint64]int
	subnetNodes  map[int][]uint64
}

func NewManager(totalSubnets int) *Manager {
	m := &Manager{
		totalSubnets: totalSubnets,
		nodeSubnet:   make(map[uint64]int),
		subnetNodes:  make(map[int][]uint64),
	}
	for i := 0; i < totalSubnets; i++ {
		m.subnetNodes[i] = nil
	}
	return m
}

// Assign places a node in the least-loaded subnet and returns its id.
func (m *Manager) Assign(nodeID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	subnet := m.leastLoaded()
	m.nodeSubnet[nodeID] = subnet
	m.subnetNodes[subnet] = append(m.subnetNodes[subnet], nodeID)
	return subnet
}

// SubnetOf returns the subnet a node was assigned to.
func (m *Manager) SubnetOf(nodeID uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subnet, ok := m.nodeSubnet[nodeID]
	if !ok {
		return 0, fmt.Errorf("node %d: %w", nodeID, ErrNodeNotAssigned)
	}
	return subnet, nil
}

// Nodes returns the nodes currently in a subnet.
func (m *Manager) Nodes(subnetID int) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := make([]uint64, len(m.subnetNodes[subnetID]))
	copy(nodes, m.subnetNodes[subnetID])
	return nodes
}

// Rebalance moves nodes out of oversized subnets into the least-loaded ones.
func (m *Manager) Rebalance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for subnet, nodes := range m.subnetNodes {
		for len(nodes) > m.totalSubnets {
			target := m.leastLoaded()
			if target == subnet {
				break
			}
			moved := nodes[len(nodes)-1]
			nodes = nodes[:len(nodes)-1]
			m.subnetNodes[subnet] = nodes
			m.nodeSubnet[moved] = target
			m.subnetNodes[target] = append(m.subnetNodes[target], moved)
		}
	}
}

// leastLoaded picks the subnet with the fewest nodes. Caller holds the lock.
func (m *Manager) leastLoaded() int {
	least := 0
	min := -1
	for i := 0; i < m.totalSubnets; i++ {
		size := len(m.subnetNodes[i])
		if min < 0 || size < min {
			min = size
			least = i
		}
	}
	return least
}
