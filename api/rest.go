// Package api exposes read-only HTTP endpoints over the node's ledger and
// participant registry.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/synergia/posyg-node/core"
)

type blockView struct {
	Number     uint64 `json:"number"`
	PrevHash   string `json:"prevHash"`
	Hash       string `json:"hash"`
	Timestamp  int64  `json:"timestamp"`
	TxCount    int    `json:"txCount"`
	Signatures int    `json:"signatures"`
	Required   int    `json:"required"`
	MerkleRoot string `json:"merkleRoot,omitempty"`
}

// NewMux returns the read API: /chain, /stats, and /validate.
func NewMux(ledger *core.Ledger, registry *core.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/chain", func(w http.ResponseWriter, r *http.Request) {
		chain := ledger.Chain()
		views := make([]blockView, len(chain))
		for i, b := range chain {
			views[i] = blockView{
				Number:     b.Number,
				PrevHash:   b.PrevHash,
				Hash:       b.Hash(),
				Timestamp:  b.Timestamp,
				TxCount:    len(b.Transactions),
				Signatures: b.SignatureCount(),
				Required:   b.Required,
				MerkleRoot: core.MerkleRoot(b.Transactions),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"length": len(chain),
			"tip":    ledger.TipHash(),
			"blocks": views,
		})
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(registry.Statistics())
	})

	mux.HandleFunc("/validate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"valid": ledger.ValidateChain()})
	})

	return mux
}
