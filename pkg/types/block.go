// Package types holds the chain entities cspr reads from a node. Only the
// fields the event and awaiting code relies on are typed; everything else is
// kept as raw JSON.
package types

import (
	"encoding/json"
	"time"
)

// Block is a finalised block as returned by chain_get_block.
type Block struct {
	Hash   string          `json:"hash"`
	Header BlockHeader     `json:"header"`
	Body   json.RawMessage `json:"body,omitempty"`
	Proofs json.RawMessage `json:"proofs,omitempty"`
}

// BlockHeader is the subset of a block header needed to track chain progress.
type BlockHeader struct {
	ParentHash      string    `json:"parent_hash"`
	StateRootHash   string    `json:"state_root_hash"`
	BodyHash        string    `json:"body_hash"`
	RandomBit       bool      `json:"random_bit"`
	AccumulatedSeed string    `json:"accumulated_seed"`
	EraEnd          *EraEnd   `json:"era_end"`
	Timestamp       time.Time `json:"timestamp"`
	EraID           uint64    `json:"era_id"`
	Height          uint64    `json:"height"`
	ProtocolVersion string    `json:"protocol_version"`
}

// EraEnd is present only on the last block of an era.
type EraEnd struct {
	EraReport               json.RawMessage `json:"era_report,omitempty"`
	NextEraValidatorWeights json.RawMessage `json:"next_era_validator_weights,omitempty"`
}

// IsSwitchBlock reports whether the block closes its era.
func (b *Block) IsSwitchBlock() bool {
	return b != nil && b.Header.EraEnd != nil
}

// ChainHeights is a snapshot of the chain tip. It is never cached.
type ChainHeights struct {
	Era   uint64 `json:"era"`
	Block uint64 `json:"block"`
}

// Heights returns the era and block height of b.
func (b *Block) Heights() ChainHeights {
	return ChainHeights{Era: b.Header.EraID, Block: b.Header.Height}
}
