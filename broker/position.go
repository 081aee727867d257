package broker

import "math"

// Position is a net signed holding in one symbol together with its cost
// basis. Positive quantity is long, negative is short. A flat position
// always has a zero average price.
type Position struct {
	Symbol   string
	Quantity float64
	AvgPrice float64
}

func (p Position) IsLong() bool  { return p.Quantity > 0 }
func (p Position) IsShort() bool { return p.Quantity < 0 }
func (p Position) IsFlat() bool  { return p.Quantity == 0 }

// Update applies a signed fill quantity at a fill price. Four cases, chosen
// by comparing the sign of the existing quantity to the sign of the fill:
//
//   - same direction (or opening from flat): weighted-average cost basis
//   - opposite direction, partial reduction: basis unchanged
//   - opposite direction, exact close: quantity and basis reset to zero
//   - opposite direction, reversal: basis becomes the fill price, since the
//     surplus is a fresh position on the other side
func (p *Position) Update(signedQty, fillPrice float64) {
	newQty := p.Quantity + signedQty

	switch {
	case p.Quantity == 0 || sameSign(p.Quantity, signedQty):
		p.AvgPrice = (p.Quantity*p.AvgPrice + signedQty*fillPrice) / newQty
		p.Quantity = newQty

	case newQty == 0:
		p.Quantity = 0
		p.AvgPrice = 0

	case math.Abs(signedQty) < math.Abs(p.Quantity):
		// Reducing: realized P&L is the broker's concern, the basis of
		// what remains does not move.
		p.Quantity = newQty

	default:
		// Reversal through zero.
		p.Quantity = newQty
		p.AvgPrice = fillPrice
	}
}

// UnrealizedPL is (current - basis) * quantity; negative quantity flips the
// sign for shorts as expected.
func (p Position) UnrealizedPL(currentPrice float64) float64 {
	return (currentPrice - p.AvgPrice) * p.Quantity
}

// UnrealizedPLPercent is the unrealized P&L as a percentage of the position
// cost. Zero for a flat position or an unset basis.
func (p Position) UnrealizedPLPercent(currentPrice float64) float64 {
	if p.Quantity == 0 || p.AvgPrice == 0 {
		return 0
	}
	return p.UnrealizedPL(currentPrice) / (p.AvgPrice * math.Abs(p.Quantity)) * 100
}

// MarketValue is the notional value of the holding at the given price.
func (p Position) MarketValue(currentPrice float64) float64 {
	return math.Abs(p.Quantity) * currentPrice
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
