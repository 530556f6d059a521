package model

// PoolState is the persistent configuration of a pool.
type PoolState struct {
	Seed      uint64   `json:"seed"`
	AssetX    AssetID  `json:"asset_x"`
	AssetY    AssetID  `json:"asset_y"`
	FeeBps    uint16   `json:"fee_bps"`
	Locked    bool     `json:"locked"`
	PoolID    AssetID  `json:"pool_id"`
	LPShareID AssetID  `json:"lp_share_id"`
	Authority *AssetID `json:"authority,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// Key returns the identity of the pool.
func (s PoolState) Key() PoolKey {
	return PoolKey{AssetX: s.AssetX, AssetY: s.AssetY, Seed: s.Seed}
}

// ReserveLedger holds the two custody balances and the outstanding LP supply.
type ReserveLedger struct {
	ReserveX uint64 `json:"reserve_x"`
	ReserveY uint64 `json:"reserve_y"`
	LPSupply uint64 `json:"lp_supply"`
}

// Empty reports whether no LP shares are outstanding.
func (r ReserveLedger) Empty() bool {
	return r.LPSupply == 0
}

// PoolRecord is the unit persisted per pool.
type PoolRecord struct {
	State    PoolState     `json:"state"`
	Reserves ReserveLedger `json:"reserves"`
	Version  uint64        `json:"version"`
}

// Pool is a pool snapshot for relational storage.
type Pool struct {
	PoolID    string `json:"pool_id"`
	AssetX    string `json:"asset_x"`
	AssetY    string `json:"asset_y"`
	Seed      uint64 `json:"seed"`
	FeeBps    uint16 `json:"fee_bps"`
	LPShareID string `json:"lp_share_id"`
	Locked    bool   `json:"locked"`
	ReserveX  uint64 `json:"reserve_x"`
	ReserveY  uint64 `json:"reserve_y"`
	LPSupply  uint64 `json:"lp_supply"`
	Sequence  uint64 `json:"sequence"`
}

// Snapshot converts a record into its relational form.
func (r PoolRecord) Snapshot() Pool {
	return Pool{
		PoolID:    r.State.PoolID.Hex(),
		AssetX:    r.State.AssetX.Hex(),
		AssetY:    r.State.AssetY.Hex(),
		Seed:      r.State.Seed,
		FeeBps:    r.State.FeeBps,
		LPShareID: r.State.LPShareID.Hex(),
		Locked:    r.State.Locked,
		ReserveX:  r.Reserves.ReserveX,
		ReserveY:  r.Reserves.ReserveY,
		LPSupply:  r.Reserves.LPSupply,
		Sequence:  r.Version,
	}
}
