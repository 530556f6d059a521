package aggregate

import (
	"math/big"
	"strconv"
	"time"
)

const ratioScale = 18

func computeFeeRates(feeX *big.Int, feeY *big.Int, tvlX *big.Int, tvlY *big.Int) (*string, *string) {
	var feeRateX *string
	var feeRateY *string

	if rate := computeRateFromInt(feeX, tvlX); rate != "" {
		feeRateX = &rate
	}
	if rate := computeRateFromInt(feeY, tvlY); rate != "" {
		feeRateY = &rate
	}
	return feeRateX, feeRateY
}

func computeRateFromInt(fee *big.Int, tvl *big.Int) string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, tvl)
	return rat.FloatString(ratioScale)
}

// computeAPR annualizes a window fee rate. It is only defined when fees were
// earned on exactly one side, since the two sides are not priced against each
// other.
func computeAPR(feeRateX *string, feeRateY *string, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	var selected string
	if feeRateX != nil && feeRateY == nil {
		selected = *feeRateX
	} else if feeRateY != nil && feeRateX == nil {
		selected = *feeRateY
	} else {
		return nil
	}

	rat, ok := new(big.Rat).SetString(selected)
	if !ok {
		return nil
	}
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rat, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

func uintString(v uint64) *string {
	s := strconv.FormatUint(v, 10)
	return &s
}
