package order

import "fmt"

// Side is the side of an order (buy or sell).
type Side int

const (
	SideBuy  Side = iota // BUY
	SideSell             // SELL
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return fmt.Sprintf("Unknown Side (%d)", s)
	}
}

// Type is the order type accepted by Trader.Order.
type Type int

const (
	TypeLimit      Type = iota // LIMIT
	TypeMarket                 // MARKET
	TypeLimitMaker             // LIMIT_MAKER
)

func (t Type) String() string {
	switch t {
	case TypeLimit:
		return "LIMIT"
	case TypeMarket:
		return "MARKET"
	case TypeLimitMaker:
		return "LIMIT_MAKER"
	default:
		return fmt.Sprintf("Unknown Type (%d)", t)
	}
}
