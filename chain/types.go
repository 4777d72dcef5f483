package chain

// Esplora-shaped wire types. Field names mirror the JSON the upstream
// Esplora-compatible REST API returns (see spec.md §6).

// UTXOResponse is one element of GET /address/{addr}/utxo.
type UTXOResponse struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight int64  `json:"block_height,omitempty"`
		BlockHash   string `json:"block_hash,omitempty"`
	} `json:"status"`
}

// TxStatusResponse is the body of GET /tx/{txid}/status.
type TxStatusResponse struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
}

// MerkleProofResponse is the body of GET /tx/{txid}/merkle-proof.
type MerkleProofResponse struct {
	BlockHeight int64    `json:"block_height"`
	Merkle      []string `json:"merkle"`
	Pos         uint32   `json:"pos"`
}

// FeeEstimates is the body of GET /v1/fees/recommended-equivalent.
type FeeEstimates struct {
	FastestFee  int64 `json:"fastestFee"`
	HalfHourFee int64 `json:"halfHourFee"`
	HourFee     int64 `json:"hourFee"`
	EconomyFee  int64 `json:"economyFee"`
	MinimumFee  int64 `json:"minimumFee"`
}

// UTXO is an adapter-level, already-decoded unspent output.
type UTXO struct {
	TxID          string
	Vout          uint32
	ValueSats     int64
	BlockHeight   int64 // 0 if unconfirmed
	Confirmations uint32
}

// AddressStatus is the result of CheckAddress.
type AddressStatus struct {
	FundedSats int64
	TxCount    int
	UTXOs      []UTXO
}

// TxConfirmationStatus is the result of GetTxConfirmations.
type TxConfirmationStatus struct {
	Confirmed     bool
	BlockHeight   int64
	BlockHash     string
	Confirmations uint32
}

// BlockHeaderInfo is the result of GetBlockHeader.
type BlockHeaderInfo struct {
	Height  int64
	Hash    string
	RawHex  string // 80 bytes, hex encoded
}

// MerkleProof is the result of GetMerkleProof in the API's wire shape
// (display-order sibling hashes, position as a packed integer); the
// chain adapter only decodes the wire JSON, and the caller converts it
// to internal byte order with spv.ToInternalMerkleProof.
type MerkleProof struct {
	BlockHeight int64
	Siblings    []string // hex, display order as returned by the API
	Pos         uint32
}
