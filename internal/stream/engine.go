// Package stream wires Client's REST snapshots and combined WebSocket
// stream into the per-symbol OrderBook, TradeBook, and KLineSeries stores,
// publishing normalized updates on an EventBus as they arrive.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/BullionBear/sequex/internal/kline"
	"github.com/BullionBear/sequex/internal/orderbook"
	"github.com/BullionBear/sequex/internal/tradebook"
	"github.com/BullionBear/sequex/pkg/binance"
	"github.com/BullionBear/sequex/pkg/eventbus"
)

// ErrEmptyMarkets is returned by Start when called with no symbols.
var ErrEmptyMarkets = errors.New("stream: markets list must not be empty")

// Engine is the multiplexed stream dispatcher (component E): it opens one
// combined WebSocket per Start call, loads each symbol's initial REST
// snapshots, and fans out live frames into the per-symbol stores.
type Engine struct {
	client *binance.Client
	bus    *eventbus.EventBus
	logger zerolog.Logger

	periods           []kline.Period
	tradeBookSize     int
	klineHistoryLimit int
	snapshotTimeout   time.Duration
	bookTicker        bool

	ws *binance.WSConnection

	mu      sync.RWMutex
	closed  bool
	symbols []string
	books   map[string]*orderbook.OrderBook
	trades  map[string]*tradebook.TradeBook
	klines  map[string]*kline.Series

	depthPending int64
	tradePending int64
	klinePending int64
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithTradeBookSize bounds each symbol's trade tapes. Default unbounded.
func WithTradeBookSize(n int) Option { return func(e *Engine) { e.tradeBookSize = n } }

// WithKlineHistoryLimit bounds the historical k-line rows requested per
// period at startup. Default 500.
func WithKlineHistoryLimit(n int) Option { return func(e *Engine) { e.klineHistoryLimit = n } }

// WithSnapshotTimeout bounds each REST snapshot call issued at startup.
// Default 10s.
func WithSnapshotTimeout(d time.Duration) Option {
	return func(e *Engine) { e.snapshotTimeout = d }
}

// WithBookTicker enables the optional book_ticker event, emitted whenever
// a depth update moves a symbol's best bid or best ask. Off by default.
func WithBookTicker(enabled bool) Option { return func(e *Engine) { e.bookTicker = enabled } }

// New creates an Engine bound to client and bus, tracking periods for
// every symbol Start is later called with.
func New(client *binance.Client, bus *eventbus.EventBus, logger zerolog.Logger, periods []kline.Period, opts ...Option) *Engine {
	e := &Engine{
		client:            client,
		bus:               bus,
		logger:            logger.With().Str("component", "stream-engine").Logger(),
		periods:           periods,
		klineHistoryLimit: 500,
		snapshotTimeout:   10 * time.Second,
		books:             make(map[string]*orderbook.OrderBook),
		trades:            make(map[string]*tradebook.TradeBook),
		klines:            make(map[string]*kline.Series),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start constructs a store triple per symbol, opens the combined stream,
// and kicks off the startup snapshot barrier. It returns once the socket
// is connected; the barrier events (orderbook_open, etc.) arrive later on
// the bus as snapshots complete.
func (e *Engine) Start(ctx context.Context, markets []string) error {
	if len(markets) == 0 {
		return ErrEmptyMarkets
	}

	e.mu.Lock()
	e.symbols = markets
	e.closed = false
	for _, sym := range markets {
		e.books[sym] = orderbook.New(sym)
		e.trades[sym] = tradebook.New(sym, e.tradeBookSize)
		e.klines[sym] = kline.New(sym)
	}
	atomic.StoreInt64(&e.depthPending, int64(len(markets)))
	atomic.StoreInt64(&e.tradePending, int64(len(markets)))
	atomic.StoreInt64(&e.klinePending, int64(len(markets)*len(e.periods)))
	e.mu.Unlock()

	streams, err := e.streamNames(markets)
	if err != nil {
		return err
	}
	streamURL, err := binance.BuildCombinedStreamURL(e.client.WSBaseURL(), streams)
	if err != nil {
		return fmt.Errorf("build combined stream url: %w", err)
	}

	e.ws = binance.NewWSConnection(e.client.Config(), streamURL, e.logger)
	e.ws.SetMessageHandler(e.handleFrame)
	e.ws.SetErrorHandler(func(err error) { e.bus.Emit("error", err.Error()) })

	if err := e.ws.Connect(ctx); err != nil {
		return fmt.Errorf("connect combined stream: %w", err)
	}

	for _, sym := range markets {
		sym := sym
		go e.loadDepth(sym)
		go e.loadTrades(sym)
		for _, p := range e.periods {
			p := p
			go e.loadKline(sym, p)
		}
	}

	return nil
}

func (e *Engine) streamNames(markets []string) ([]string, error) {
	streams := make([]string, 0, len(markets)*(3+len(e.periods)))
	for _, m := range markets {
		lower := strings.ToLower(m)
		streams = append(streams, lower+"@depth", lower+"@ticker", lower+"@trade")
		for _, p := range e.periods {
			label, err := kline.Humanize(p)
			if err != nil {
				return nil, err
			}
			streams = append(streams, lower+"@kline_"+label)
		}
	}
	return streams, nil
}

// Stop closes the combined WebSocket and marks the engine closed so any
// REST callback still in flight becomes a no-op. It does not reconnect; a
// supervisor that wants to resume calls Start again with a fresh Engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.ws != nil {
		return e.ws.Disconnect()
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *Engine) book(symbol string) *orderbook.OrderBook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.books[symbol]
}

func (e *Engine) tradeTape(symbol string) *tradebook.TradeBook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trades[symbol]
}

func (e *Engine) klineSeries(symbol string) *kline.Series {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.klines[symbol]
}

// OrderBookSnapshots returns a copy of every symbol's current book state.
func (e *Engine) OrderBookSnapshots() map[string]orderbook.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]orderbook.Snapshot, len(e.books))
	for sym, b := range e.books {
		out[sym] = b.Snapshot()
	}
	return out
}

// TradeBookSnapshots returns a copy of every symbol's current trade tapes.
func (e *Engine) TradeBookSnapshots() map[string]tradebook.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]tradebook.Snapshot, len(e.trades))
	for sym, tb := range e.trades {
		out[sym] = tb.Snapshot()
	}
	return out
}

// KLineSnapshots returns a copy of every symbol's k-line series.
func (e *Engine) KLineSnapshots() map[string]map[kline.Period][]kline.Point {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]map[kline.Period][]kline.Point, len(e.klines))
	for sym, ks := range e.klines {
		out[sym] = ks.Depth()
	}
	return out
}

func (e *Engine) snapshotCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.snapshotTimeout)
}

// loadDepth fetches a snapshot and commits it into the book, advancing the
// depth half of the startup barrier. Per the failure model, a failed
// snapshot is fatal for the barrier: it publishes error and does not
// decrement depthPending.
func (e *Engine) loadDepth(symbol string) {
	if e.isClosed() {
		return
	}
	ctx, cancel := e.snapshotCtx()
	defer cancel()

	snap, err := e.client.GetDepth(ctx, symbol, 1000)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("depth snapshot failed")
		e.bus.Emit("error", err.Error())
		return
	}
	if e.isClosed() {
		return
	}

	seed, err := toSeed(snap)
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}
	book := e.book(symbol)
	book.Commit(snap.LastUpdateID, seed)
	e.maybeEmitBookTicker(symbol, book)

	if atomic.AddInt64(&e.depthPending, -1) == 0 {
		e.bus.Emit("orderbook_open", e.OrderBookSnapshots())
	}
}

func toSeed(snap *binance.DepthSnapshot) (orderbook.Seed, error) {
	bids, err := toPriceLevels(snap.Bids)
	if err != nil {
		return orderbook.Seed{}, err
	}
	asks, err := toPriceLevels(snap.Asks)
	if err != nil {
		return orderbook.Seed{}, err
	}
	return orderbook.Seed{Bids: bids, Asks: asks}, nil
}

func toPriceLevels(raw [][]string) ([]orderbook.PriceLevel, error) {
	out := make([]orderbook.PriceLevel, 0, len(raw))
	for _, pv := range raw {
		if len(pv) != 2 {
			continue
		}
		price, err := decimal.NewFromString(pv[0])
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", pv[0], err)
		}
		volume, err := decimal.NewFromString(pv[1])
		if err != nil {
			return nil, fmt.Errorf("parse volume %q: %w", pv[1], err)
		}
		out = append(out, orderbook.PriceLevel{Price: price, Volume: volume})
	}
	return out, nil
}

// loadTrades seeds the trade book from the most recent 100 trades,
// advancing the trade half of the startup barrier.
//
// Side is derived from isBuyerMaker exactly as the upstream does: buy when
// the resting order was the buyer. This reads backwards (the aggressor,
// not the maker, determines the trade's conventional side) but is kept
// literal rather than silently corrected.
func (e *Engine) loadTrades(symbol string) {
	if e.isClosed() {
		return
	}
	ctx, cancel := e.snapshotCtx()
	defer cancel()

	recent, err := e.client.GetRecentTrades(ctx, symbol, 100)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("recent trades failed")
		e.bus.Emit("error", err.Error())
		return
	}
	if e.isClosed() {
		return
	}

	tape := e.tradeTape(symbol)
	for _, rt := range recent {
		price, err := decimal.NewFromString(rt.Price)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(rt.Qty)
		if err != nil {
			continue
		}
		side := tradebook.SideSell
		if rt.IsBuyerMaker {
			side = tradebook.SideBuy
		}
		tape.Add(tradebook.Trade{
			TID:    rt.ID,
			Side:   side,
			TsMs:   rt.Time,
			Price:  price,
			Amount: amount,
		})
	}

	if atomic.AddInt64(&e.tradePending, -1) == 0 {
		e.bus.Emit("tradebook_open", e.TradeBookSnapshots())
	}
}

// loadKline fetches the historical series for one symbol/period pair,
// advancing the k-line third of the startup barrier. kline_open fires
// only once every symbol's every period has loaded.
func (e *Engine) loadKline(symbol string, period kline.Period) {
	if e.isClosed() {
		return
	}
	label, err := kline.Humanize(period)
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}

	ctx, cancel := e.snapshotCtx()
	defer cancel()

	rows, err := e.client.GetKlines(ctx, symbol, label, e.klineHistoryLimit)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Str("period", label).Msg("kline history failed")
		e.bus.Emit("error", err.Error())
		return
	}
	if e.isClosed() {
		return
	}

	series := e.klineSeries(symbol)
	for _, row := range rows {
		pt, err := decodeHistoricalKline(row)
		if err != nil {
			continue
		}
		if _, err := series.Add(period, pt.openTimeMs, pt.o, pt.h, pt.l, pt.c, pt.v); err != nil {
			e.bus.Emit("error", err.Error())
		}
	}

	if atomic.AddInt64(&e.klinePending, -1) == 0 {
		e.bus.Emit("kline_open", e.KLineSnapshots())
	}
}

type rawKlineRow struct {
	openTimeMs int64
	o, h, l, c, v decimal.Decimal
}

// decodeHistoricalKline reads the first six fields of a /api/v3/klines row:
// [openTime, open, high, low, close, volume, ...]. Remaining fields (close
// time, quote volume, trade count, ...) are ignored.
func decodeHistoricalKline(row binance.RawKline) (rawKlineRow, error) {
	var out rawKlineRow
	if err := json.Unmarshal(row[0], &out.openTimeMs); err != nil {
		return out, fmt.Errorf("decode open time: %w", err)
	}
	fields := [5]*decimal.Decimal{&out.o, &out.h, &out.l, &out.c, &out.v}
	for i, f := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return out, fmt.Errorf("decode field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return out, fmt.Errorf("parse field %d: %w", i+1, err)
		}
		*f = d
	}
	return out, nil
}

// handleFrame routes one combined-stream frame by its stream name suffix.
func (e *Engine) handleFrame(raw []byte) {
	var frame binance.WSFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		e.bus.Emit("error", fmt.Sprintf("decode frame: %v", err))
		return
	}

	idx := strings.Index(frame.Stream, "@")
	if idx < 0 {
		e.bus.Emit("error", fmt.Sprintf("malformed stream name %q", frame.Stream))
		return
	}
	symbol := strings.ToUpper(frame.Stream[:idx])
	kind := frame.Stream[idx+1:]

	switch {
	case kind == "depth":
		e.handleDepth(symbol, frame.Data)
	case kind == "ticker":
		e.handleTicker(symbol, frame.Data)
	case kind == "trade":
		e.handleTrade(symbol, frame.Data)
	case strings.HasPrefix(kind, "kline_"):
		e.handleKline(symbol, strings.TrimPrefix(kind, "kline_"), frame.Data)
	default:
		e.logger.Debug().Str("kind", kind).Msg("ignoring unrecognized stream kind")
	}
}

// handleDepth applies a diff-depth event, mirroring Binance's documented
// resync algorithm: drop anything older than the book, apply anything
// contiguous with it, and resnapshot on a gap.
func (e *Engine) handleDepth(symbol string, data json.RawMessage) {
	var ev binance.WSDepthEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		e.bus.Emit("error", fmt.Sprintf("decode depth event: %v", err))
		return
	}

	book := e.book(symbol)
	if book == nil {
		return
	}
	g := book.Generation()

	switch {
	case ev.FinalUpdateID <= g:
		return // stale or duplicate, drop
	case orderbook.FirstDiffInRange(ev.FirstUpdateID, ev.FinalUpdateID, g):
		e.applyDepth(book, symbol, ev)
	default:
		go e.resnapshot(symbol, ev)
	}
}

func (e *Engine) applyDepth(book *orderbook.OrderBook, symbol string, ev binance.WSDepthEvent) {
	bids, err := toPriceLevels(ev.Bids)
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}
	asks, err := toPriceLevels(ev.Asks)
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}
	if !book.ApplyDiff(ev.FinalUpdateID, bids, asks) {
		return
	}
	e.logger.Debug().Str("symbol", symbol).Int("bid_levels", len(bids)).Int("ask_levels", len(asks)).Msg("depth diff applied")
	e.maybeEmitBookTicker(symbol, book)
}

// maybeEmitBookTicker publishes book_ticker when enabled and the book's
// top of book moved on the last mutation. Off by default; spec.md names
// no such event, but OrderBook already tracks the data for free.
func (e *Engine) maybeEmitBookTicker(symbol string, book *orderbook.OrderBook) {
	if !e.bookTicker {
		return
	}
	if ticker, changed := book.BestChanged(); changed {
		e.bus.Emit("book_ticker", symbol, ticker)
	}
}

// resnapshot refetches a depth snapshot after detecting a generation gap,
// then replays the diff that triggered it if it is now contiguous. This is
// the synchronizer's only self-healing path; §9 of the upstream design
// flags its absence as an open question, so this is the core's answer.
func (e *Engine) resnapshot(symbol string, pending binance.WSDepthEvent) {
	if e.isClosed() {
		return
	}
	ctx, cancel := e.snapshotCtx()
	defer cancel()

	snap, err := e.client.GetDepth(ctx, symbol, 1000)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("resnapshot failed")
		e.bus.Emit("error", err.Error())
		return
	}
	if e.isClosed() {
		return
	}

	seed, err := toSeed(snap)
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}
	book := e.book(symbol)
	book.Commit(snap.LastUpdateID, seed)
	e.maybeEmitBookTicker(symbol, book)

	if orderbook.FirstDiffInRange(pending.FirstUpdateID, pending.FinalUpdateID, snap.LastUpdateID) {
		e.applyDepth(book, symbol, pending)
	}
}

// tickerMessage is the normalized 24h-ticker payload published on
// ticker_message.
type tickerMessage struct {
	Low                decimal.Decimal `json:"low"`
	High               decimal.Decimal `json:"high"`
	Last               decimal.Decimal `json:"last"`
	Volume             decimal.Decimal `json:"volume"`
	Open               decimal.Decimal `json:"open"`
	Sell               decimal.Decimal `json:"sell"`
	Buy                decimal.Decimal `json:"buy"`
	AvgPrice           decimal.Decimal `json:"avg_price"`
	PriceChangePercent string          `json:"price_change_percent"`
}

func (e *Engine) handleTicker(symbol string, data json.RawMessage) {
	var ev binance.WSTickerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		e.bus.Emit("error", fmt.Sprintf("decode ticker event: %v", err))
		return
	}
	msg := tickerMessage{
		Low:                mustDecimal(ev.LowPrice),
		High:               mustDecimal(ev.HighPrice),
		Last:               mustDecimal(ev.LastPrice),
		Volume:             mustDecimal(ev.Volume),
		Open:               mustDecimal(ev.OpenPrice),
		Sell:               mustDecimal(ev.BestAskPrice),
		Buy:                mustDecimal(ev.BestBidPrice),
		AvgPrice:           mustDecimal(ev.WeightedAvgPrice),
		PriceChangePercent: ev.PriceChangePercent,
	}
	e.bus.Emit("ticker_message", symbol, msg)
}

// tradeMessage is the normalized live-trade payload published on
// trade_message.
type tradeMessage struct {
	TID    int64           `json:"tid"`
	Type   string          `json:"type"`
	Date   int64           `json:"date"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// handleTrade publishes a live trade. type is derived from m (isBuyerMaker)
// the same way the upstream does — "buy" when the resting side was the
// buyer — kept literal alongside the REST-seed mapping in loadTrades even
// though both read backwards from the conventional maker/taker labeling.
func (e *Engine) handleTrade(symbol string, data json.RawMessage) {
	var ev binance.WSTradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		e.bus.Emit("error", fmt.Sprintf("decode trade event: %v", err))
		return
	}
	tradeType := "sell"
	if ev.IsBuyerMaker {
		tradeType = "buy"
	}
	msg := tradeMessage{
		TID:    ev.TradeID,
		Type:   tradeType,
		Date:   ev.EventTime / 1000,
		Price:  mustDecimal(ev.Price),
		Amount: mustDecimal(ev.Quantity),
	}
	e.bus.Emit("trade_message", symbol, msg)
}

// klineMessage is the normalized live-kline payload published on
// kline_message.
type klineMessage struct {
	Symbol string      `json:"symbol"`
	Period kline.Period `json:"period"`
	Data   kline.Point `json:"data"`
}

func (e *Engine) handleKline(symbol, label string, data json.RawMessage) {
	period, err := kline.Dehumanize(label)
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}
	var ev binance.WSKlineEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		e.bus.Emit("error", fmt.Sprintf("decode kline event: %v", err))
		return
	}

	series := e.klineSeries(symbol)
	pt, err := series.Filter(period, ev.Kline.OpenTime,
		mustDecimal(ev.Kline.Open), mustDecimal(ev.Kline.High),
		mustDecimal(ev.Kline.Low), mustDecimal(ev.Kline.Close),
		mustDecimal(ev.Kline.Volume))
	if err != nil {
		e.bus.Emit("error", err.Error())
		return
	}

	e.bus.Emit("kline_message", symbol, klineMessage{Symbol: symbol, Period: period, Data: pt})
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
