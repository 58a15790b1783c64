package core

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/synergia/posyg-node/crypto"
)

// GenesisPrevHash is the previous-hash sentinel carried by the genesis block.
const GenesisPrevHash = "0"

const genesisSignature = "Genesis Block Signature"

// forkPruneWindow is how far a fork may trail the canonical height before it
// is dropped.
const forkPruneWindow = 10

// Ledger owns the canonical chain, competing forks, the confirmed-block set,
// and the pending transaction pool. A single writer lock serializes
// mutation; read-only queries run concurrently under the read lock.
type Ledger struct {
	mu               sync.RWMutex
	chain            []*Block
	difficulty       uint64
	currentNumber    uint64
	tipHash          string
	forks            map[string][]*Block
	forkLengths      map[string]int
	forkDifficulties map[string]uint64
	confirmed        map[string]bool
	pool             []Transaction
}

// NewLedger constructs a ledger seeded with the genesis block: number 0,
// previous-hash sentinel "0", one required signature, carrying the fixed
// genesis signature. This is the sole authority for genesis state.
func NewLedger(initialDifficulty uint64) *Ledger {
	genesis := NewBlock(0, GenesisPrevHash, 1)
	genesis.AddSignature(genesisSignature)
	genesis.SealHash()

	return &Ledger{
		chain:            []*Block{genesis},
		difficulty:       initialDifficulty,
		tipHash:          genesis.Hash(),
		forks:            make(map[string][]*Block),
		forkLengths:      make(map[string]int),
		forkDifficulties: make(map[string]uint64),
		confirmed:        make(map[string]bool),
	}
}

// TipHash returns the hash of the canonical chain tip.
func (l *Ledger) TipHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tipHash
}

// Length returns the number of blocks on the canonical chain.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// LatestBlock returns a copy of the canonical chain tip.
func (l *Ledger) LatestBlock() *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Copy()
}

// Chain returns a copy of the canonical chain.
func (l *Ledger) Chain() []*Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.Copy()
	}
	return out
}

// AddBlock appends a block to the canonical chain. The block must extend the
// recorded tip; the tip hash and height advance together under the lock.
func (l *Ledger) AddBlock(b *Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b.PrevHash != l.tipHash {
		return fmt.Errorf("block %d: %w", b.Number, ErrChainMismatch)
	}
	stored := b.Copy()
	l.chain = append(l.chain, stored)
	l.currentNumber++
	l.tipHash = stored.Hash()
	return nil
}

// AddForkBlock appends a block to the named fork, creating the fork entry
// lazily and accumulating its length and difficulty.
func (l *Ledger) AddForkBlock(forkTip string, b *Block) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.forks[forkTip] = append(l.forks[forkTip], b.Copy())
	l.forkLengths[forkTip] = len(l.forks[forkTip])
	l.forkDifficulties[forkTip] += l.difficulty
}

// ValidateChain checks linkage and hash integrity across every adjacent pair
// of canonical blocks. It never mutates state.
func (l *Ledger) ValidateChain() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return validateSequence(l.chain)
}

// ValidateFork runs the same linkage and integrity checks over a fork.
// Unknown forks fail validation.
func (l *Ledger) ValidateFork(forkTip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fork, ok := l.forks[forkTip]
	if !ok {
		return false
	}
	return validateSequence(fork)
}

func validateSequence(blocks []*Block) bool {
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if cur.PrevHash != prev.Hash() {
			slog.Error("block has invalid previous block hash", "number", cur.Number)
			return false
		}
		if cur.Hash() != cur.ComputeHash() {
			slog.Error("block has invalid block hash", "number", cur.Number)
			return false
		}
	}
	return true
}

// RollbackChain truncates the canonical chain by n blocks, resetting height
// and tip hash together. Fails without mutating when n covers the whole
// chain or more.
func (l *Ledger) RollbackChain(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n >= len(l.chain) {
		return fmt.Errorf("rollback of %d blocks on chain of length %d: %w", n, len(l.chain), ErrOutOfRange)
	}
	l.chain = l.chain[:len(l.chain)-n]
	l.currentNumber -= uint64(n)
	l.tipHash = l.chain[len(l.chain)-1].Hash()
	return nil
}

// SelectFork adopts the named fork by appending its blocks onto the
// canonical chain. Callers must ValidateFork first; no validation is
// re-checked here. The adopted entry is removed from the fork map so it
// cannot be adopted twice; competing forks stay tracked until pruned.
func (l *Ledger) SelectFork(forkTip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fork, ok := l.forks[forkTip]
	if !ok {
		return fmt.Errorf("fork %s: %w", forkTip, ErrNotFound)
	}
	l.chain = append(l.chain, fork...)
	l.currentNumber = uint64(len(l.chain) - 1)
	l.tipHash = l.chain[len(l.chain)-1].Hash()
	delete(l.forks, forkTip)
	delete(l.forkLengths, forkTip)
	delete(l.forkDifficulties, forkTip)
	return nil
}

// ConfirmBlock records a block as confirmed when its number is within the
// canonical height and it carries enough signatures. Confirmation lives in a
// separate set keyed by hash, independent of chain membership.
func (l *Ledger) ConfirmBlock(b *Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b.Number <= l.currentNumber && b.VerifySignatures() {
		l.confirmed[b.Hash()] = true
		return true
	}
	return false
}

// IsConfirmed reports whether the block hash has been confirmed.
func (l *Ledger) IsConfirmed(blockHash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.confirmed[blockHash]
}

// PruneForks drops every fork whose recorded length trails the canonical
// height by more than the prune window.
func (l *Ledger) PruneForks() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentNumber <= forkPruneWindow {
		return
	}
	cutoff := int(l.currentNumber - forkPruneWindow)
	for tip, length := range l.forkLengths {
		if length < cutoff {
			delete(l.forks, tip)
			delete(l.forkLengths, tip)
			delete(l.forkDifficulties, tip)
		}
	}
}

// MerkleRoot hashes each transaction's canonical fields and reduces the list
// by pairwise hashing, duplicating the last entry when the count is odd,
// until a single root remains. Transaction order is significant; an empty
// input yields an empty root.
func MerkleRoot(transactions []Transaction) string {
	if len(transactions) == 0 {
		return ""
	}

	hashes := make([]string, len(transactions))
	for i, tx := range transactions {
		hashes[i] = crypto.Hash(tx.Sender + tx.Receiver + strconv.FormatFloat(tx.Amount, 'f', -1, 64) + tx.Signature)
	}

	for len(hashes) > 1 {
		if len(hashes)%2 != 0 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}
		next := make([]string, 0, len(hashes)/2)
		for i := 0; i < len(hashes); i += 2 {
			next = append(next, crypto.Hash(hashes[i]+hashes[i+1]))
		}
		hashes = next
	}
	return hashes[0]
}

// AddTransaction appends a transaction to the pending pool. The pool is a
// plain FIFO buffer: no fee ordering, no deduplication.
func (l *Ledger) AddTransaction(tx Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pool = append(l.pool, tx)
}

// HasPendingTransactions reports whether the pool is non-empty.
func (l *Ledger) HasPendingTransactions() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pool) > 0
}

// PendingTransactions returns a stable-order snapshot of the pool.
func (l *Ledger) PendingTransactions() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.pool))
	copy(out, l.pool)
	return out
}

// RequeueTransactions returns transactions drained for a proposal that was
// not finalized to the front of the pool, ahead of anything that arrived in
// the meantime, so a rejected round never loses or reorders them.
func (l *Ledger) RequeueTransactions(txs []Transaction) {
	if len(txs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	restored := make([]Transaction, 0, len(txs)+len(l.pool))
	restored = append(restored, txs...)
	l.pool = append(restored, l.pool...)
}

// DrainPendingTransactions empties the pool and returns its contents in
// insertion order.
func (l *Ledger) DrainPendingTransactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pool
	l.pool = nil
	return out
}

// LogChainState emits the current chain shape through the structured logger.
func (l *Ledger) LogChainState() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slog.Info("chain state",
		"length", len(l.chain),
		"number", l.currentNumber,
		"tip", l.tipHash,
		"forks", len(l.forks),
		"pending", len(l.pool),
	)
}
