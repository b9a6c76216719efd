package order

import "github.com/shopspring/decimal"

// Request is a new-order request as accepted by Trader.Order: symbol,
// type, side, quantity, and (for non-market types) price.
type Request struct {
	Symbol   string
	Side     Side
	Type     Type
	Quantity decimal.Decimal
	Price    decimal.Decimal // zero for Type == TypeMarket
}
