package kline

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestHumanizeRoundTripOnRecognizedPeriods(t *testing.T) {
	for _, p := range Periods {
		label, err := Humanize(p)
		if err != nil {
			t.Fatalf("Humanize(%d) unexpected error: %v", p, err)
		}
		back, err := Dehumanize(label)
		if err != nil {
			t.Fatalf("Dehumanize(%q) unexpected error: %v", label, err)
		}
		if back != p {
			t.Errorf("round trip mismatch: %d -> %q -> %d", p, label, back)
		}
	}
}

func TestHumanizeFailsOnUnknownPeriod(t *testing.T) {
	if _, err := Humanize(Period(7)); err == nil {
		t.Error("expected error for unrecognized period")
	}
	if _, err := Dehumanize("7m"); err == nil {
		t.Error("expected error for unrecognized label")
	}
}

func TestKlineNormalization(t *testing.T) {
	s := New("BTCUSDT")
	pt, err := s.Add(Period1m, 1_700_000_000_000, d("10"), d("11"), d("9"), d("10.5"), d("0.123456"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pt.OpenTime != 1_700_000_000 {
		t.Errorf("expected open time 1700000000, got %d", pt.OpenTime)
	}
	if !pt.Volume.Equal(d("0.1235")) {
		t.Errorf("expected volume rounded to 0.1235, got %s", pt.Volume)
	}
	if !pt.Open.Equal(d("10")) || !pt.High.Equal(d("11")) || !pt.Low.Equal(d("9")) || !pt.Close.Equal(d("10.5")) {
		t.Errorf("unexpected OHLC: %+v", pt)
	}

	depth := s.Depth()
	if len(depth[Period1m]) != 1 || depth[Period1m][0] != pt {
		t.Errorf("Add should have appended to the series: %+v", depth)
	}
}

func TestFilterMatchesAddWithoutAppending(t *testing.T) {
	s := New("BTCUSDT")
	added, err := s.Add(Period5m, 1_700_000_123_000, d("1"), d("2"), d("0.5"), d("1.5"), d("3.14159"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	filtered, err := s.Filter(Period5m, 1_700_000_123_000, d("1"), d("2"), d("0.5"), d("1.5"), d("3.14159"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filtered.OpenTime != added.OpenTime || !filtered.Open.Equal(added.Open) || !filtered.High.Equal(added.High) ||
		!filtered.Low.Equal(added.Low) || !filtered.Close.Equal(added.Close) || !filtered.Volume.Equal(added.Volume) {
		t.Errorf("Filter should normalize identically to Add: %+v vs %+v", filtered, added)
	}
	if len(s.Depth()[Period5m]) != 1 {
		t.Error("Filter must not append to the series")
	}
}

func TestAddRejectsUnknownPeriod(t *testing.T) {
	s := New("BTCUSDT")
	if _, err := s.Add(Period(3), 0, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero); err == nil {
		t.Error("expected error for unrecognized period")
	}
}
