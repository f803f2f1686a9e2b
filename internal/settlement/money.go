package settlement

import (
	"math/big"
	"strconv"
	"strings"
)

const baseUnitDecimals = 18

// ToBaseUnits converts a display-unit amount to integer base units using
// decimal fixed-point scaling. Products that are not integral truncate
// toward zero; the value never passes through binary floating point on the
// way to the ledger.
func ToBaseUnits(amount float64) *big.Int {
	text := strconv.FormatFloat(amount, 'f', -1, 64)

	whole, frac, _ := strings.Cut(text, ".")
	if len(frac) > baseUnitDecimals {
		frac = frac[:baseUnitDecimals] // truncate, not round
	}
	frac += strings.Repeat("0", baseUnitDecimals-len(frac))

	negative := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return big.NewInt(0)
	}
	if negative {
		out.Neg(out)
	}
	return out
}
