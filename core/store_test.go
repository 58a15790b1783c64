package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "posyg-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreBlockRoundTrip(t *testing.T) {
	store := openTestStore(t)

	b := NewBlock(3, "prevhash", 2)
	b.Transactions = []Transaction{
		{Sender: "alice", Receiver: "bob", Amount: 5, Signature: "s1", Type: Payment},
	}
	b.SealHash()

	require.NoError(t, store.PutBlock(b))
	loaded, err := store.GetBlock(b.Hash())
	require.NoError(t, err)
	require.Equal(t, b.Number, loaded.Number)
	require.Equal(t, b.Transactions, loaded.Transactions)
	require.Equal(t, b.Hash(), loaded.Hash())
}

func TestStoreBlockNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetBlock("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreParticipantRoundTrip(t *testing.T) {
	store := openTestStore(t)

	p := newParticipant(4)
	p.Reward = 12.5
	p.Slashed = true

	require.NoError(t, store.PutParticipant(p))
	loaded, err := store.GetParticipant(4)
	require.NoError(t, err)
	require.Equal(t, p, loaded)

	_, err = store.GetParticipant(5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreBlockHashes(t *testing.T) {
	store := openTestStore(t)

	first := NewBlock(1, "a", 1)
	first.SealHash()
	second := NewBlock(2, "b", 1)
	second.SealHash()
	require.NoError(t, store.PutBlock(first))
	require.NoError(t, store.PutBlock(second))

	hashes, err := store.BlockHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	require.Contains(t, hashes, first.Hash())
	require.Contains(t, hashes, second.Hash())
}
