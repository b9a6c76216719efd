package binance

import "encoding/json"

// DepthSnapshot is the response shape of GET /api/v3/depth.
type DepthSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// RecentTrade is one entry of GET /api/v3/trades.
type RecentTrade struct {
	ID            int64  `json:"id"`
	Price         string `json:"price"`
	Qty           string `json:"qty"`
	Time          int64  `json:"time"`
	IsBuyerMaker  bool   `json:"isBuyerMaker"`
	IsBestMatch   bool   `json:"isBestMatch"`
}

// RawKline is one row of GET /api/v3/klines, decoded loosely because Binance
// mixes string and numeric fields in the same JSON array.
type RawKline [12]json.RawMessage

// OrderAck is the response of POST /api/v3/order (NEW_ORDER_RESP_TYPE ACK).
type OrderAck struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	TransactTime  int64  `json:"transactTime"`
}

// WSFrame is the envelope every combined-stream message arrives in.
type WSFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// WSDepthEvent is the "depthUpdate" payload of a diff-depth stream.
type WSDepthEvent struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// WSTickerEvent is the "24hrTicker" payload.
type WSTickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	WeightedAvgPrice   string `json:"w"`
	LastPrice          string `json:"c"`
	OpenPrice           string `json:"o"`
	HighPrice           string `json:"h"`
	LowPrice            string `json:"l"`
	Volume              string `json:"v"`
	BestBidPrice        string `json:"b"`
	BestAskPrice        string `json:"a"`
}

// WSTradeEvent is the "trade" payload.
type WSTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerOrderID int64  `json:"b"`
	SellerOrderID int64 `json:"a"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// WSKlineEvent is the "kline" payload.
type WSKlineEvent struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Kline     WSKlinePart `json:"k"`
}

// WSKlinePart is the nested "k" object of a kline event.
type WSKlinePart struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	IsClosed  bool   `json:"x"`
}
