package model

// EventKind names a pool event.
type EventKind string

const (
	EventInitialized EventKind = "Initialized"
	EventDeposit     EventKind = "Deposit"
	EventWithdraw    EventKind = "Withdraw"
	EventSwap        EventKind = "Swap"
	EventLockChanged EventKind = "LockChanged"
)

// PoolEvent is emitted after an operation commits.
type PoolEvent struct {
	Kind      EventKind `json:"kind"`
	Pool      AssetID   `json:"pool"`
	Sequence  uint64    `json:"sequence"`
	Timestamp uint64    `json:"timestamp"`
	Owner     AssetID   `json:"owner"`

	AssetX    AssetID `json:"asset_x,omitempty"`
	AssetY    AssetID `json:"asset_y,omitempty"`
	Seed      uint64  `json:"seed,omitempty"`
	FeeBps    uint16  `json:"fee_bps,omitempty"`
	LPShareID AssetID `json:"lp_share_id,omitempty"`

	AmountX  uint64 `json:"amount_x,omitempty"`
	AmountY  uint64 `json:"amount_y,omitempty"`
	LPAmount uint64 `json:"lp_amount,omitempty"`

	Direction Direction `json:"direction,omitempty"`
	AmountIn  uint64    `json:"amount_in,omitempty"`
	AmountOut uint64    `json:"amount_out,omitempty"`
	Fee       uint64    `json:"fee,omitempty"`

	Locked bool `json:"locked,omitempty"`

	Reserves ReserveLedger `json:"reserves"`
}
