package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/synergia/posyg-node/crypto"
)

// Block is one unit of the chain. The content hash is a pure function of
// (previous hash, timestamp, serialized transactions); it is recomputed
// explicitly through ComputeHash/SealHash rather than mutated on read, so a
// stale cached value can never be trusted by accident.
type Block struct {
	Number       uint64
	PrevHash     string
	Timestamp    int64
	Transactions []Transaction
	Required     int

	hash       string
	signatures []string
}

// NewBlock creates a block skeleton linked to prevHash. The hash is not
// sealed yet; callers seal it once the transaction set is final.
func NewBlock(number uint64, prevHash string, requiredSignatures int) *Block {
	return &Block{
		Number:    number,
		PrevHash:  prevHash,
		Timestamp: time.Now().Unix(),
		Required:  requiredSignatures,
	}
}

// ComputeHash derives the content hash from the block's current contents.
// It is pure and idempotent; it does not touch the cached hash.
func (b *Block) ComputeHash() string {
	var sb strings.Builder
	sb.WriteString(b.PrevHash)
	sb.WriteString(strconv.FormatInt(b.Timestamp, 10))
	for _, tx := range b.Transactions {
		sb.WriteString(tx.Serialize())
	}
	return crypto.Hash(sb.String())
}

// SealHash recomputes the content hash and caches it.
func (b *Block) SealHash() string {
	b.hash = b.ComputeHash()
	return b.hash
}

// Hash returns the cached content hash, empty until sealed.
func (b *Block) Hash() string {
	return b.hash
}

// AddTransaction admits a transaction after verifying its signature, then
// reseals the hash so it reflects the new contents.
func (b *Block) AddTransaction(tx Transaction, v Verifier) error {
	if !tx.Verify(v) {
		return fmt.Errorf("transaction from %s: %w", tx.Sender, ErrInvalidSignature)
	}
	b.Transactions = append(b.Transactions, tx)
	b.SealHash()
	return nil
}

// AddSignature appends a validator signature while the threshold has not
// been reached. Returns false once the block already carries enough
// signatures. Not safe for concurrent use; callers serialize signing.
func (b *Block) AddSignature(signature string) bool {
	if len(b.signatures) >= b.Required {
		return false
	}
	b.signatures = append(b.signatures, signature)
	return true
}

// SignatureCount returns the number of collected validator signatures.
func (b *Block) SignatureCount() int {
	return len(b.signatures)
}

// VerifySignatures reports whether the finality threshold has been met.
func (b *Block) VerifySignatures() bool {
	return len(b.signatures) >= b.Required
}

// Copy returns a deep copy of the block, including collected signatures.
func (b *Block) Copy() *Block {
	blockCopy := &Block{
		Number:    b.Number,
		PrevHash:  b.PrevHash,
		Timestamp: b.Timestamp,
		Required:  b.Required,
		hash:      b.hash,
	}
	if len(b.Transactions) > 0 {
		blockCopy.Transactions = make([]Transaction, len(b.Transactions))
		copy(blockCopy.Transactions, b.Transactions)
	}
	if len(b.signatures) > 0 {
		blockCopy.signatures = make([]string, len(b.signatures))
		copy(blockCopy.signatures, b.signatures)
	}
	return blockCopy
}

// Serialize renders the block in its wire format:
// number|prev|timestamp|required| followed by transactions joined with '#'.
func (b *Block) Serialize() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(b.Number, 10))
	sb.WriteByte('|')
	sb.WriteString(b.PrevHash)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(b.Timestamp, 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(b.Required))
	sb.WriteByte('|')
	for _, tx := range b.Transactions {
		sb.WriteString(tx.Serialize())
		sb.WriteByte('#')
	}
	return sb.String()
}

// DeserializeBlock parses the wire format produced by Serialize. The hash is
// re-derived from the parsed contents, never taken from the wire.
func DeserializeBlock(s string) (*Block, error) {
	parts := strings.SplitN(s, "|", 5)
	if len(parts) != 5 {
		return nil, fmt.Errorf("malformed block: expected 5 fields, got %d", len(parts))
	}
	number, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block number: %v", err)
	}
	timestamp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block timestamp: %v", err)
	}
	required, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("failed to parse required signatures: %v", err)
	}

	b := &Block{
		Number:    number,
		PrevHash:  parts[1],
		Timestamp: timestamp,
		Required:  required,
	}
	for _, raw := range strings.Split(parts[4], "#") {
		if raw == "" {
			continue
		}
		tx, err := DeserializeTransaction(raw)
		if err != nil {
			return nil, err
		}
		b.Transactions = append(b.Transactions, tx)
	}
	b.SealHash()
	return b, nil
}
