package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeMessenger records every announcement.
type fakeMessenger struct {
	mu       sync.Mutex
	messages []string
}

func (m *fakeMessenger) Send(peerID uint64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *fakeMessenger) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}

func newTestCoordinator(t *testing.T, validators int) (*Coordinator, *Registry, *Ledger, *fakeMessenger) {
	t.Helper()
	registry := NewRegistry(validators)
	registry.SetBehaviorPolicy(fixedPolicy{BehaviorHonest})
	ledger := NewLedger(3)
	messenger := &fakeMessenger{}
	return NewCoordinator(validators, messenger, registry, ledger), registry, ledger, messenger
}

func TestCreateNewBlockLinksToTip(t *testing.T) {
	c, _, ledger, _ := newTestCoordinator(t, 5)
	ledger.AddTransaction(Transaction{Sender: "alice", Receiver: "bob", Amount: 1, Signature: "s"})

	b := c.CreateNewBlock()
	require.Equal(t, uint64(1), b.Number)
	require.Equal(t, ledger.TipHash(), b.PrevHash)
	require.NotEmpty(t, b.Hash())
	require.Len(t, b.Transactions, 1)
	require.False(t, ledger.HasPendingTransactions())
	require.Equal(t, StateProposed, c.State())
}

func TestValidateBlockStructural(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 5)

	missingPrev := NewBlock(1, "", 2)
	missingPrev.SealHash()
	require.False(t, c.ValidateBlock(missingPrev))
	require.Equal(t, StateRejected, c.State())

	unsealed := NewBlock(1, "prev", 2)
	require.False(t, c.ValidateBlock(unsealed))
	require.Equal(t, StateRejected, c.State())

	good := NewBlock(1, "prev", 2)
	good.SealHash()
	require.True(t, c.ValidateBlock(good))
	require.Equal(t, StateValidated, c.State())
}

func TestHandleMultisigExactThreshold(t *testing.T) {
	// Ten validators race for two slots; the count must land exactly on
	// the threshold every time.
	for run := 0; run < 20; run++ {
		c, _, _, _ := newTestCoordinator(t, 10)
		b := c.CreateNewBlock()

		signed, ok := c.HandleMultisig(b)
		require.True(t, ok)
		require.Equal(t, requiredBlockSignatures, signed.SignatureCount())
		require.True(t, signed.VerifySignatures())

		// The shared block was never mutated.
		require.Equal(t, 0, b.SignatureCount())
	}
}

func TestHandleMultisigShortOfThreshold(t *testing.T) {
	// One validator cannot meet a threshold of two.
	c, _, _, _ := newTestCoordinator(t, 1)
	b := c.CreateNewBlock()

	signed, ok := c.HandleMultisig(b)
	require.False(t, ok)
	require.Equal(t, 1, signed.SignatureCount())
}

func TestInitiateConsensusFinalizes(t *testing.T) {
	c, _, ledger, messenger := newTestCoordinator(t, 5)

	require.NoError(t, c.InitiateConsensus())
	require.Equal(t, StateFinalized, c.State())
	require.Equal(t, 2, ledger.Length())
	require.True(t, ledger.ValidateChain())

	current := c.CurrentBlock()
	require.NotNil(t, current)
	require.Equal(t, ledger.TipHash(), current.Hash())

	sent := messenger.sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], current.Hash())
}

func TestRejectedRoundLeavesLedgerUntouched(t *testing.T) {
	// A single validator can never reach the two-signature threshold, so
	// every round is rejected and the chain must not advance.
	c, registry, ledger, _ := newTestCoordinator(t, 1)

	err := c.InitiateConsensus()
	require.Error(t, err)
	require.Equal(t, StateRejected, c.State())
	require.Equal(t, 1, ledger.Length())

	// The reward pass still ran.
	p, lookupErr := registry.Snapshot(0)
	require.NoError(t, lookupErr)
	require.Greater(t, p.Reward, 0.0)
}

func TestRejectedRoundRequeuesPendingTransactions(t *testing.T) {
	// The proposal drains the pool; when the round fails the threshold the
	// drained transactions must land back in the pool, not vanish with the
	// discarded block.
	c, _, ledger, _ := newTestCoordinator(t, 1)
	txs := []Transaction{
		{Sender: "alice", Receiver: "bob", Amount: 1, Signature: "s1"},
		{Sender: "bob", Receiver: "carol", Amount: 2, Signature: "s2"},
	}
	for _, tx := range txs {
		ledger.AddTransaction(tx)
	}

	require.Error(t, c.InitiateConsensus())
	require.Equal(t, 1, ledger.Length())
	require.True(t, ledger.HasPendingTransactions())
	require.Equal(t, txs, ledger.PendingTransactions())

	// The requeued transactions ride in the next successful proposal.
	b := c.CreateNewBlock()
	require.Equal(t, txs, b.Transactions)
	require.False(t, ledger.HasPendingTransactions())
}

func TestFinalizeBlockChainMismatch(t *testing.T) {
	c, _, ledger, _ := newTestCoordinator(t, 5)

	stale := NewBlock(1, "not-the-tip", 2)
	stale.SealHash()
	err := c.FinalizeBlock(stale)
	require.ErrorIs(t, err, ErrChainMismatch)
	require.Equal(t, StateRejected, c.State())
	require.Equal(t, 1, ledger.Length())
}

func TestValidateAndSlash(t *testing.T) {
	c, registry, _, _ := newTestCoordinator(t, 3)
	registry.participants[1].EconomicActivity = 5
	registry.participants[1].GovernanceActivity = 3

	c.ValidateAndSlash()

	slashed, err := registry.Snapshot(1)
	require.NoError(t, err)
	require.True(t, slashed.Slashed)

	honest, err := registry.Snapshot(0)
	require.NoError(t, err)
	require.False(t, honest.Slashed)
}

func TestDistributeRewardsIsFlat(t *testing.T) {
	c, registry, _, _ := newTestCoordinator(t, 3)

	c.DistributeRewards()

	first, err := registry.Snapshot(0)
	require.NoError(t, err)
	for i := 1; i < 3; i++ {
		p, err := registry.Snapshot(i)
		require.NoError(t, err)
		require.Equal(t, first.Reward, p.Reward)
	}
	require.Greater(t, first.Reward, 0.0)
}

func TestDynamicNetworkManagementDrift(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 3)

	c.DynamicNetworkManagement()
	require.InDelta(t, 100.0*1.05, c.slashingPenalty, 1e-9)
	require.InDelta(t, 50.0*1.02, c.rewardForValidator, 1e-9)
}

func TestRoundStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "finalized", StateFinalized.String())
	require.Equal(t, "rejected", StateRejected.String())
}
