package fusion

import "github.com/holiman/uint256"

// mulDivFloor computes floor(a*b/denom) over a 256-bit intermediate. The
// result must fit uint64; anything wider is reported as overflow rather than
// truncated.
func mulDivFloor(a, b, denom uint64) (uint64, error) {
	quotient, _, err := mulDiv(a, b, denom)
	return quotient, err
}

// mulDivCeil computes ceil(a*b/denom) under the same overflow discipline.
func mulDivCeil(a, b, denom uint64) (uint64, error) {
	quotient, remainder, err := mulDiv(a, b, denom)
	if err != nil {
		return 0, err
	}
	if remainder != 0 {
		if quotient == ^uint64(0) {
			return 0, ErrArithmeticOverflow
		}
		quotient++
	}
	return quotient, nil
}

func mulDiv(a, b, denom uint64) (uint64, uint64, error) {
	if denom == 0 {
		return 0, 0, ErrArithmeticOverflow
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := new(uint256.Int)
	remainder := new(uint256.Int)
	quotient.DivMod(product, uint256.NewInt(denom), remainder)
	if !quotient.IsUint64() {
		return 0, 0, ErrArithmeticOverflow
	}
	return quotient.Uint64(), remainder.Uint64(), nil
}
