package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubVerifier accepts or rejects every signature.
type stubVerifier struct {
	ok bool
}

func (v stubVerifier) Verify(message, signature, publicKey string) bool {
	return v.ok
}

func TestTransactionWireRoundTrip(t *testing.T) {
	tx := Transaction{
		Sender:    "alice",
		Receiver:  "bob",
		Amount:    12.5,
		Signature: "sig",
		Type:      Governance,
		Data:      "payload",
	}

	parsed, err := DeserializeTransaction(tx.Serialize())
	require.NoError(t, err)
	require.Equal(t, tx, parsed)
}

func TestTransactionDeserializeMalformed(t *testing.T) {
	_, err := DeserializeTransaction("only|three|fields")
	require.Error(t, err)

	_, err = DeserializeTransaction("a|b|not-a-number|sig|0|data")
	require.Error(t, err)
}

func TestBlockWireRoundTrip(t *testing.T) {
	b := NewBlock(7, "prevhash", 2)
	b.Transactions = []Transaction{
		{Sender: "alice", Receiver: "bob", Amount: 1, Signature: "s1", Type: Payment},
		{Sender: "bob", Receiver: "carol", Amount: 2.25, Signature: "s2", Type: SmartContractExecution, Data: "code"},
	}
	b.SealHash()

	parsed, err := DeserializeBlock(b.Serialize())
	require.NoError(t, err)
	require.Equal(t, b.Number, parsed.Number)
	require.Equal(t, b.PrevHash, parsed.PrevHash)
	require.Equal(t, b.Timestamp, parsed.Timestamp)
	require.Equal(t, b.Required, parsed.Required)
	require.Equal(t, b.Transactions, parsed.Transactions)

	// The hash is re-derived after deserialization, never transmitted.
	require.Equal(t, b.Hash(), parsed.Hash())
	require.Equal(t, parsed.ComputeHash(), parsed.Hash())
}

func TestBlockHashReflectsContent(t *testing.T) {
	b := NewBlock(1, "prev", 2)
	sealed := b.SealHash()
	require.NotEmpty(t, sealed)
	require.Equal(t, sealed, b.ComputeHash())

	require.NoError(t, b.AddTransaction(Transaction{Sender: "alice", Signature: "s"}, stubVerifier{ok: true}))
	require.NotEqual(t, sealed, b.Hash())
	require.Equal(t, b.ComputeHash(), b.Hash())
}

func TestAddTransactionRejectsBadSignature(t *testing.T) {
	b := NewBlock(1, "prev", 2)
	b.SealHash()
	before := b.Hash()

	err := b.AddTransaction(Transaction{Sender: "mallory", Signature: "forged"}, stubVerifier{ok: false})
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.Empty(t, b.Transactions)
	require.Equal(t, before, b.Hash())
}

func TestAddSignatureThreshold(t *testing.T) {
	b := NewBlock(1, "prev", 2)

	require.True(t, b.AddSignature("Signature_0"))
	require.False(t, b.VerifySignatures())
	require.True(t, b.AddSignature("Signature_1"))
	require.True(t, b.VerifySignatures())

	// The block is full: further attempts are rejected.
	require.False(t, b.AddSignature("Signature_2"))
	require.Equal(t, 2, b.SignatureCount())
}

func TestBlockCopyIsDeep(t *testing.T) {
	b := NewBlock(1, "prev", 2)
	b.Transactions = []Transaction{{Sender: "alice", Signature: "s"}}
	b.AddSignature("Signature_0")
	b.SealHash()

	blockCopy := b.Copy()
	blockCopy.Transactions[0].Sender = "mallory"
	blockCopy.AddSignature("Signature_1")

	require.Equal(t, "alice", b.Transactions[0].Sender)
	require.Equal(t, 1, b.SignatureCount())
	require.Equal(t, b.Hash(), blockCopy.Hash())
}
