package ledger

import (
	"fmt"
	"math"
)

// Amount is a quantity of ledger currency in the ledger's smallest unit.
// 1 human unit = 10^7 base units. Conversion to and from decimal units
// happens only at the client and API boundary; the core carries Amount.
type Amount int64

const BaseUnitsPerUnit = 10_000_000

// Units converts a decimal unit value into base units, rounding to the
// nearest base unit.
func Units(v float64) Amount {
	return Amount(math.Round(v * BaseUnitsPerUnit))
}

// Units converts back to decimal units.
func (a Amount) Units() float64 {
	return float64(a) / BaseUnitsPerUnit
}

func (a Amount) String() string {
	return fmt.Sprintf("%.7f", a.Units())
}
