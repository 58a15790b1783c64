package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RoundState tracks where the coordinator is within one consensus round.
type RoundState int

const (
	StateIdle RoundState = iota
	StateProposed
	StateValidated
	StateSignatureCollection
	StateFinalized
	StateRejected
)

func (s RoundState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProposed:
		return "proposed"
	case StateValidated:
		return "validated"
	case StateSignatureCollection:
		return "signature-collection"
	case StateFinalized:
		return "finalized"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Messenger is the peer-messaging capability the coordinator announces
// finalized blocks through. Failure to reach a peer is never fatal to the
// local round.
type Messenger interface {
	Send(peerID uint64, message string) error
}

// requiredBlockSignatures is the multisig finality threshold for proposed
// blocks.
const requiredBlockSignatures = 2

// Coordinator orchestrates one consensus round: propose, validate, collect
// multisignatures, finalize into the ledger, then slash and reward. It holds
// non-owning handles to the registry and ledger established at construction.
type Coordinator struct {
	mu         sync.Mutex
	validators []int
	current    *Block
	network    Messenger
	registry   *Registry
	ledger     *Ledger
	state      RoundState

	slashingPenalty    float64
	rewardForValidator float64
}

// NewCoordinator wires a coordinator over numValidators validator ids
// (0..numValidators-1, matching registry ids).
func NewCoordinator(numValidators int, network Messenger, registry *Registry, ledger *Ledger) *Coordinator {
	validators := make([]int, numValidators)
	for i := range validators {
		validators[i] = i
	}
	return &Coordinator{
		validators:         validators,
		network:            network,
		registry:           registry,
		ledger:             ledger,
		state:              StateIdle,
		slashingPenalty:    100.0,
		rewardForValidator: 50.0,
	}
}

// State returns the coordinator's current round state.
func (c *Coordinator) State() RoundState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentBlock returns the most recently finalized block, nil before the
// first finalization.
func (c *Coordinator) CurrentBlock() *Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.Copy()
}

// CreateNewBlock proposes a block skeleton at the ledger's height, linked to
// the current tip, carrying the pending transaction pool.
func (c *Coordinator) CreateNewBlock() *Block {
	b := NewBlock(uint64(c.ledger.Length()), c.ledger.TipHash(), requiredBlockSignatures)
	b.Transactions = c.ledger.DrainPendingTransactions()
	b.SealHash()
	c.setState(StateProposed)
	slog.Info("created new block", "number", b.Number, "txs", len(b.Transactions))
	return b
}

// ValidateBlock performs the structural check on a proposed block: it must
// carry a previous-hash pointer and a sealed content hash. Transaction
// signatures and the Merkle root are not re-verified here.
func (c *Coordinator) ValidateBlock(b *Block) bool {
	if b.PrevHash == "" {
		slog.Error("invalid block: empty previous block hash", "number", b.Number)
		c.setState(StateRejected)
		return false
	}
	if b.Hash() == "" {
		slog.Error("invalid block: empty block hash", "number", b.Number)
		c.setState(StateRejected)
		return false
	}
	c.setState(StateValidated)
	return true
}

// HandleMultisig collects validator signatures on a private working copy of
// the block, never mutating a block already shared with peers. The threshold
// check and the append happen as one atomic step under the collection lock,
// so the signature count always lands exactly on the threshold no matter how
// the signing attempts interleave. The signed copy is returned along with
// whether the threshold was met.
func (c *Coordinator) HandleMultisig(b *Block) (*Block, bool) {
	c.setState(StateSignatureCollection)
	working := b.Copy()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range c.validators {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			signature := fmt.Sprintf("Signature_%d", id)
			mu.Lock()
			added := working.AddSignature(signature)
			mu.Unlock()
			if !added {
				slog.Debug("block already has enough signatures", "validator", id)
			}
		}(id)
	}
	wg.Wait()

	signed := working.VerifySignatures()
	if signed {
		slog.Info("block verified with enough signatures",
			"number", working.Number, "signatures", working.SignatureCount())
	} else {
		slog.Warn("block does not have enough signatures",
			"number", working.Number, "signatures", working.SignatureCount())
	}
	return working, signed
}

// FinalizeBlock replaces the coordinator's current block, appends it to the
// ledger, and announces the finalized hash to peers. A peer send failure is
// logged, not returned.
func (c *Coordinator) FinalizeBlock(b *Block) error {
	if err := c.ledger.AddBlock(b); err != nil {
		c.setState(StateRejected)
		return fmt.Errorf("failed to finalize block %d: %w", b.Number, err)
	}

	c.mu.Lock()
	c.current = b
	c.state = StateFinalized
	c.mu.Unlock()

	if err := c.network.Send(0, "Finalized block with hash: "+b.Hash()); err != nil {
		slog.Error("failed to announce finalized block", "number", b.Number, "error", err)
	}
	slog.Info("finalized block", "number", b.Number, "hash", b.Hash())
	return nil
}

// ValidateAndSlash queries the registry's suspicious-behavior detector for
// every validator and slashes the flagged ones.
func (c *Coordinator) ValidateAndSlash() {
	var wg sync.WaitGroup
	for _, id := range c.validators {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			suspicious, err := c.registry.Suspicious(id)
			if err != nil {
				slog.Error("failed to inspect validator", "validator", id, "error", err)
				return
			}
			if suspicious {
				if err := c.registry.ApplySlash(id); err != nil {
					slog.Error("failed to slash validator", "validator", id, "error", err)
					return
				}
				slog.Info("validator slashed", "validator", id)
			}
		}(id)
	}
	wg.Wait()
}

// DistributeRewards credits the flat per-round participation reward to every
// validator. This is distinct from the registry's proportional synergy-based
// distribution.
func (c *Coordinator) DistributeRewards() {
	c.mu.Lock()
	reward := c.rewardForValidator
	c.mu.Unlock()

	for _, id := range c.validators {
		if err := c.registry.AddReward(id, reward); err != nil {
			slog.Error("failed to reward validator", "validator", id, "error", err)
		}
	}
}

// DynamicNetworkManagement drifts the slashing penalty and validator reward
// geometrically each round. The drift is uncapped, matching the reference
// behavior; long-running deployments should bound it.
func (c *Coordinator) DynamicNetworkManagement() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slashingPenalty *= 1.05
	c.rewardForValidator *= 1.02
}

// InitiateConsensus runs one full round: adjust parameters, propose,
// validate, collect signatures, finalize. A rejected block or a failed
// collection ends the round without touching the ledger; the transactions
// drained into the failed proposal go back to the pending pool. The slashing
// and reward passes run regardless of the round's outcome.
func (c *Coordinator) InitiateConsensus() error {
	start := time.Now()
	slog.Info("initiating consensus", "validators", len(c.validators))

	c.DynamicNetworkManagement()

	var roundErr error
	block := c.CreateNewBlock()
	if c.ValidateBlock(block) {
		signed, ok := c.HandleMultisig(block)
		if ok {
			roundErr = c.FinalizeBlock(signed)
		} else {
			c.setState(StateRejected)
			roundErr = fmt.Errorf("block %d: signature collection fell short of threshold", block.Number)
		}
	} else {
		roundErr = fmt.Errorf("block %d: structural validation failed", block.Number)
	}

	if roundErr != nil {
		c.ledger.RequeueTransactions(block.Transactions)
		slog.Warn("consensus round rejected", "error", roundErr)
	}
	slog.Info("consensus round complete", "state", c.State().String(), "elapsed", time.Since(start))

	c.ValidateAndSlash()
	c.DistributeRewards()
	return roundErr
}

func (c *Coordinator) setState(s RoundState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
