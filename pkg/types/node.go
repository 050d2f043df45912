package types

import "encoding/json"

// NodeStatus is the subset of /status (REST) and info_get_status (RPC)
// rendered by the CLI. The full document is kept in Raw.
type NodeStatus struct {
	APIVersion        string          `json:"api_version"`
	ChainspecName     string          `json:"chainspec_name"`
	StartingStateRoot string          `json:"starting_state_root_hash"`
	OurPublicSigner   string          `json:"our_public_signing_key"`
	BuildVersion      string          `json:"build_version"`
	Uptime            string          `json:"uptime"`
	ReactorState      string          `json:"reactor_state"`
	LastAddedBlock    *BlockInfo      `json:"last_added_block_info"`
	Peers             []Peer          `json:"peers"`
	Raw               json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the document in Raw.
func (s *NodeStatus) UnmarshalJSON(data []byte) error {
	type plain NodeStatus
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = NodeStatus(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// BlockInfo summarises the last block a node added.
type BlockInfo struct {
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
	EraID     uint64 `json:"era_id"`
	Height    uint64 `json:"height"`
	Creator   string `json:"creator"`
}

// Peer is an entry of a node's peer list.
type Peer struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
}

// ValidatorChange is one entry of /validator-changes.
type ValidatorChange struct {
	PublicKey     string          `json:"public_key"`
	StatusChanges json.RawMessage `json:"status_changes"`
}

// RPCSchema is the OpenRPC document served at /rpc-schema and by rpc.discover.
type RPCSchema struct {
	OpenRPC    string            `json:"openrpc"`
	Info       json.RawMessage   `json:"info"`
	Servers    json.RawMessage   `json:"servers"`
	Methods    []json.RawMessage `json:"methods"`
	Components json.RawMessage   `json:"components"`
}

// Chainspec is the document served at /chainspec.
type Chainspec struct {
	ChainspecBytes            string  `json:"chainspec_bytes"`
	MaybeGenesisAccountsBytes *string `json:"maybe_genesis_accounts_bytes"`
	MaybeGlobalStateBytes     *string `json:"maybe_global_state_bytes"`
}
