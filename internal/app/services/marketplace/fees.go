package marketplace

import (
	"github.com/holiman/uint256"

	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/admin"
	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

// SplitRoyalty splits a price into the royalty owed to the original vendor
// and the remainder owed to the current vendor:
//
//	royalty   = floor(price * rateBps / 10000)
//	remainder = price - royalty
//
// The multiplication runs on a widened integer so it cannot wrap. A rate
// above 10000 basis points makes the royalty exceed the price and fails with
// ErrOverflow; the admin update path deliberately does not reject such rates
// up front.
func SplitRoyalty(price uint64, rateBps uint16) (royalty, remainder uint64, err error) {
	denominator := uint64(admin.MaxFeeBasisPoints)
	if denominator == 0 {
		return 0, 0, errors.ErrDivideByZero
	}

	product := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(uint64(rateBps)))
	quotient := new(uint256.Int).Div(product, uint256.NewInt(denominator))
	if !quotient.IsUint64() {
		return 0, 0, errors.ErrOverflow
	}

	royalty = quotient.Uint64()
	remainder, err = checkedSub(price, royalty)
	if err != nil {
		return 0, 0, err
	}
	return royalty, remainder, nil
}

// checkedSub subtracts b from a, failing instead of wrapping.
func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, errors.ErrOverflow
	}
	return a - b, nil
}
