// Package p2p provides the peer-messaging capability: a peer registry with
// websocket transport for outbound messages and an HTTP handler for inbound
// ones. Delivery is best effort; a failed send never halts consensus.
package p2p

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var ErrPeerNotFound = errors.New("peer not found")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Network is the peer registry and message transport for one node.
type Network struct {
	nodeID uint64

	mu      sync.Mutex
	peers   map[uint64]string
	conns   map[uint64]*websocket.Conn
	limiter *rate.Limiter

	// OnMessage, when set, receives every inbound peer message.
	OnMessage func(message string)
}

// NewNetwork creates the transport for the given node id. Outbound sends are
// rate limited to keep a chatty round from flooding peers.
func NewNetwork(nodeID uint64) *Network {
	return &Network{
		nodeID:  nodeID,
		peers:   make(map[uint64]string),
		conns:   make(map[uint64]*websocket.Conn),
		limiter: rate.NewLimiter(rate.Every(time.Second/100), 100),
	}
}

// RegisterPeer records a peer's dial address. Re-registering an id replaces
// its address and drops any cached connection.
func (n *Network) RegisterPeer(peerID uint64, address string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if conn, ok := n.conns[peerID]; ok {
		conn.Close()
		delete(n.conns, peerID)
	}
	n.peers[peerID] = address
}

// Peers returns the registered peer ids in ascending order.
func (n *Network) Peers() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]uint64, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Send delivers a text message to the named peer, dialing and caching the
// websocket connection on first use. The dial happens outside the registry
// lock so one unreachable peer cannot stall registration or sends to other
// peers; writes stay serialized under the lock.
func (n *Network) Send(peerID uint64, message string) error {
	if !n.limiter.Allow() {
		return fmt.Errorf("send to peer %d throttled", peerID)
	}

	n.mu.Lock()
	address, ok := n.peers[peerID]
	conn := n.conns[peerID]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("peer %d: %w", peerID, ErrPeerNotFound)
	}

	if conn == nil {
		dialed, _, err := websocket.DefaultDialer.Dial("ws://"+address+"/ws", nil)
		if err != nil {
			return fmt.Errorf("failed to dial peer %d at %s: %v", peerID, address, err)
		}
		n.mu.Lock()
		if cached, ok := n.conns[peerID]; ok {
			// A concurrent send won the dial race.
			conn = cached
			n.mu.Unlock()
			dialed.Close()
		} else {
			n.conns[peerID] = dialed
			conn = dialed
			n.mu.Unlock()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		conn.Close()
		if n.conns[peerID] == conn {
			delete(n.conns, peerID)
		}
		return fmt.Errorf("failed to send to peer %d: %v", peerID, err)
	}
	return nil
}

// Handler returns the inbound websocket endpoint. Each received text message
// is logged and handed to OnMessage.
func (n *Network) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade to websocket", "error", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			slog.Info("received peer message", "node", n.nodeID, "message", string(msg))
			if n.OnMessage != nil {
				n.OnMessage(string(msg))
			}
		}
	}
}

// Close drops every cached peer connection.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, conn := range n.conns {
		conn.Close()
		delete(n.conns, id)
	}
}
