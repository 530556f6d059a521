package model

// Operation is one line of a replay script.
type Operation struct {
	Seq       uint64    `json:"seq"`
	Op        string    `json:"op"`
	AssetX    string    `json:"asset_x,omitempty"`
	AssetY    string    `json:"asset_y,omitempty"`
	Seed      uint64    `json:"seed,omitempty"`
	Caller    string    `json:"caller,omitempty"`
	FeeBps    uint16    `json:"fee_bps,omitempty"`
	Authority string    `json:"authority,omitempty"`
	Asset     string    `json:"asset,omitempty"`
	Amount    uint64    `json:"amount,omitempty"`
	AmountX   uint64    `json:"amount_x,omitempty"`
	AmountY   uint64    `json:"amount_y,omitempty"`
	MaxX      uint64    `json:"max_x,omitempty"`
	MaxY      uint64    `json:"max_y,omitempty"`
	MinX      uint64    `json:"min_x,omitempty"`
	MinY      uint64    `json:"min_y,omitempty"`
	MinOut    uint64    `json:"min_out,omitempty"`
	MinLP     uint64    `json:"min_lp,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// OperationResult records the outcome of a replayed operation.
type OperationResult struct {
	Seq       uint64         `json:"seq"`
	Op        string         `json:"op"`
	Pool      string         `json:"pool,omitempty"`
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	AmountX   uint64         `json:"amount_x,omitempty"`
	AmountY   uint64         `json:"amount_y,omitempty"`
	LPAmount  uint64         `json:"lp_amount,omitempty"`
	AmountIn  uint64         `json:"amount_in,omitempty"`
	AmountOut uint64         `json:"amount_out,omitempty"`
	Fee       uint64         `json:"fee,omitempty"`
	Reserves  *ReserveLedger `json:"reserves,omitempty"`
}
