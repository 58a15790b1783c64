package core

import (
	"fmt"
	"strconv"
	"strings"
)

// TransactionType discriminates the payload semantics of a transaction.
type TransactionType int

const (
	Payment TransactionType = iota
	Governance
	SmartContractExecution
)

// Verifier checks a signature over a message against public key material.
// The concrete implementation lives in the crypto package; tests inject
// stubs.
type Verifier interface {
	Verify(message, signature, publicKey string) bool
}

// Transaction is an immutable value transfer between two accounts. Validity
// is defined by signature verification against the sender's key material.
type Transaction struct {
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Amount    float64         `json:"amount"`
	Signature string          `json:"signature"`
	Type      TransactionType `json:"type"`
	Data      string          `json:"data"`
}

// Verify checks the transaction signature with the given verifier.
func (tx Transaction) Verify(v Verifier) bool {
	return v.Verify(tx.Sender, tx.Signature, tx.Sender)
}

// Serialize renders the transaction in its wire format:
// sender|receiver|amount|signature|type|data.
func (tx Transaction) Serialize() string {
	return strings.Join([]string{
		tx.Sender,
		tx.Receiver,
		strconv.FormatFloat(tx.Amount, 'f', -1, 64),
		tx.Signature,
		strconv.Itoa(int(tx.Type)),
		tx.Data,
	}, "|")
}

// DeserializeTransaction parses the wire format produced by Serialize.
func DeserializeTransaction(s string) (Transaction, error) {
	parts := strings.SplitN(s, "|", 6)
	if len(parts) != 6 {
		return Transaction{}, fmt.Errorf("malformed transaction: expected 6 fields, got %d", len(parts))
	}
	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to parse transaction amount: %v", err)
	}
	txType, err := strconv.Atoi(parts[4])
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to parse transaction type: %v", err)
	}
	return Transaction{
		Sender:    parts[0],
		Receiver:  parts[1],
		Amount:    amount,
		Signature: parts[3],
		Type:      TransactionType(txType),
		Data:      parts[5],
	}, nil
}
