// Package kline keeps per-period candlestick series for one symbol.
package kline

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Period is a candlestick period expressed in minutes. Only the values in
// Periods are recognized.
type Period int

const (
	Period1m   Period = 1
	Period5m   Period = 5
	Period15m  Period = 15
	Period30m  Period = 30
	Period1h   Period = 60
	Period2h   Period = 120
	Period4h   Period = 240
	Period6h   Period = 360
	Period12h  Period = 720
	Period1d   Period = 1440
	Period3d   Period = 4320
	Period1w   Period = 10080
)

// Periods is the recognized set, in ascending order.
var Periods = []Period{
	Period1m, Period5m, Period15m, Period30m,
	Period1h, Period2h, Period4h, Period6h, Period12h,
	Period1d, Period3d, Period1w,
}

var labels = map[Period]string{
	Period1m: "1m", Period5m: "5m", Period15m: "15m", Period30m: "30m",
	Period1h: "1h", Period2h: "2h", Period4h: "4h", Period6h: "6h", Period12h: "12h",
	Period1d: "1d", Period3d: "3d", Period1w: "1w",
}

var fromLabel = func() map[string]Period {
	m := make(map[string]Period, len(labels))
	for p, l := range labels {
		m[l] = p
	}
	return m
}()

// ErrUnknownPeriod is returned by Humanize/Add/Filter for a period outside
// the recognized set.
type ErrUnknownPeriod struct{ Period Period }

func (e ErrUnknownPeriod) Error() string {
	return fmt.Sprintf("unknown k-line period: %d", e.Period)
}

// ErrUnknownLabel is returned by Dehumanize for an unrecognized label.
type ErrUnknownLabel struct{ Label string }

func (e ErrUnknownLabel) Error() string {
	return fmt.Sprintf("unknown k-line label: %q", e.Label)
}

// Humanize converts a period in minutes to the exchange's interval label.
func Humanize(p Period) (string, error) {
	l, ok := labels[p]
	if !ok {
		return "", ErrUnknownPeriod{Period: p}
	}
	return l, nil
}

// Dehumanize converts an exchange interval label back to minutes.
func Dehumanize(label string) (Period, error) {
	p, ok := fromLabel[label]
	if !ok {
		return 0, ErrUnknownLabel{Label: label}
	}
	return p, nil
}

func isRecognized(p Period) bool {
	_, ok := labels[p]
	return ok
}

// Point is one normalized OHLCV entry: open time in seconds, OHLC as
// decimals, volume rounded to 4 decimal places.
type Point struct {
	OpenTime int64
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Normalize converts a raw ingestion tuple (open_time in milliseconds, raw
// OHLCV decimals) into the stored/forwarded Point shape: ms -> s via
// integer division, volume rounded to 4 decimal places.
func Normalize(openTimeMs int64, o, h, l, c, v decimal.Decimal) Point {
	return Point{
		OpenTime: openTimeMs / 1000,
		Open:     o,
		High:     h,
		Low:      l,
		Close:    c,
		Volume:   v.Round(4),
	}
}

// Series keeps the per-period OHLCV lists for one symbol.
type Series struct {
	Symbol string

	mu   sync.RWMutex
	byPd map[Period][]Point
}

// New creates an empty series for the given symbol.
func New(symbol string) *Series {
	return &Series{Symbol: symbol, byPd: make(map[Period][]Point)}
}

// Add normalizes and appends a point to period's list. It is used for
// historical k-line ingestion at startup.
func (s *Series) Add(period Period, openTimeMs int64, o, h, l, c, v decimal.Decimal) (Point, error) {
	if !isRecognized(period) {
		return Point{}, ErrUnknownPeriod{Period: period}
	}
	pt := Normalize(openTimeMs, o, h, l, c, v)
	s.mu.Lock()
	s.byPd[period] = append(s.byPd[period], pt)
	s.mu.Unlock()
	return pt, nil
}

// Filter normalizes a tuple the same way Add does, but does not append. It
// is used for live k-line updates that are forwarded on the bus without
// being retained.
func (s *Series) Filter(period Period, openTimeMs int64, o, h, l, c, v decimal.Decimal) (Point, error) {
	if !isRecognized(period) {
		return Point{}, ErrUnknownPeriod{Period: period}
	}
	return Normalize(openTimeMs, o, h, l, c, v), nil
}

// Depth returns a copy of every period's point list, keyed by period.
func (s *Series) Depth() map[Period][]Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Period][]Point, len(s.byPd))
	for p, pts := range s.byPd {
		cp := make([]Point, len(pts))
		copy(cp, pts)
		out[p] = cp
	}
	return out
}
