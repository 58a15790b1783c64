package p2p

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndListPeers(t *testing.T) {
	n := NewNetwork(1)
	n.RegisterPeer(3, "192.168.1.3:8080")
	n.RegisterPeer(2, "192.168.1.2:8080")
	n.RegisterPeer(2, "192.168.1.2:9090")

	require.Equal(t, []uint64{2, 3}, n.Peers())
}

func TestSendUnknownPeer(t *testing.T) {
	n := NewNetwork(1)
	err := n.Send(42, "hello")
	require.ErrorIs(t, err, ErrPeerNotFound)
}

func TestSendDeliversOverWebsocket(t *testing.T) {
	receiver := NewNetwork(2)
	received := make(chan string, 1)
	receiver.OnMessage = func(message string) {
		received <- message
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", receiver.Handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	sender := NewNetwork(1)
	defer sender.Close()
	sender.RegisterPeer(2, strings.TrimPrefix(server.URL, "http://"))

	require.NoError(t, sender.Send(2, "Finalized block with hash: abc123"))

	select {
	case msg := <-received:
		require.Equal(t, "Finalized block with hash: abc123", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}

	// The cached connection is reused for the next send.
	require.NoError(t, sender.Send(2, "second"))
	select {
	case msg := <-received:
		require.Equal(t, "second", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("second message was not delivered")
	}
}

func TestConcurrentSendsShareOneConnection(t *testing.T) {
	receiver := NewNetwork(2)
	received := make(chan string, 8)
	receiver.OnMessage = func(message string) {
		received <- message
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", receiver.Handler())
	server := httptest.NewServer(mux)
	defer server.Close()

	sender := NewNetwork(1)
	defer sender.Close()
	sender.RegisterPeer(2, strings.TrimPrefix(server.URL, "http://"))

	// Racing sends may both dial; the loser's connection is discarded and
	// every message still arrives.
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- sender.Send(2, fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 4 messages delivered", i)
		}
	}

	sender.mu.Lock()
	cached := len(sender.conns)
	sender.mu.Unlock()
	require.Equal(t, 1, cached)
}

func TestFailedDialLeavesRegistryUsable(t *testing.T) {
	n := NewNetwork(1)
	defer n.Close()
	n.RegisterPeer(9, "127.0.0.1:1")

	require.Error(t, n.Send(9, "hello"))
	require.Equal(t, []uint64{9}, n.Peers())

	n.mu.Lock()
	cached := len(n.conns)
	n.mu.Unlock()
	require.Zero(t, cached)
}

func TestDiscovery(t *testing.T) {
	d := NewDiscovery(7, "127.0.0.1")
	d.DiscoverNodes()

	require.Equal(t, []uint64{1, 2, 3}, d.KnownNodes())

	address, err := d.NodeAddress(2)
	require.NoError(t, err)
	require.Equal(t, "192.168.1.2", address)

	_, err = d.NodeAddress(99)
	require.ErrorIs(t, err, ErrPeerNotFound)

	// Re-adding a known node keeps the original address.
	d.AddNode(2, "10.0.0.2")
	address, err = d.NodeAddress(2)
	require.NoError(t, err)
	require.Equal(t, "192.168.1.2", address)
}
