package model

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AssetID identifies a tradable asset, an LP share token, or a holder account.
type AssetID = common.Address

// ZeroAsset is the empty identifier. As a movement source it means mint, as a
// destination it means burn.
var ZeroAsset AssetID

// ParseAssetID converts a hex string into an AssetID.
func ParseAssetID(input string) (AssetID, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return AssetID{}, fmt.Errorf("invalid asset id: %s", input)
	}
	return common.HexToAddress(input), nil
}

// PoolKey is the identity of a pool: an ordered asset pair plus a seed.
type PoolKey struct {
	AssetX AssetID `json:"asset_x"`
	AssetY AssetID `json:"asset_y"`
	Seed   uint64  `json:"seed"`
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.AssetX.Hex(), k.AssetY.Hex(), k.Seed)
}

// PoolID derives the custody account that holds the pool reserves.
func (k PoolKey) PoolID() AssetID {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], k.Seed)
	hash := crypto.Keccak256([]byte("pool"), k.AssetX.Bytes(), k.AssetY.Bytes(), seed[:])
	return common.BytesToAddress(hash[12:])
}

// LPShareID derives the identifier of the pool's LP share token.
func LPShareID(poolID AssetID) AssetID {
	hash := crypto.Keccak256([]byte("lp"), poolID.Bytes())
	return common.BytesToAddress(hash[12:])
}
