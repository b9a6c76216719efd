package binance

import (
	"net/url"
	"strings"
	"testing"
)

func TestBuildCombinedStreamURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		streams []string
		wantErr bool
		check   func(t *testing.T, got string)
	}{
		{
			name:    "single stream",
			baseURL: "wss://stream.binance.com:9443",
			streams: []string{"btcusdt@depth"},
			check: func(t *testing.T, got string) {
				assertStreamsParam(t, got, "btcusdt@depth")
			},
		},
		{
			name:    "multiple streams joined with a slash",
			baseURL: "wss://stream.binance.com:9443",
			streams: []string{"btcusdt@depth", "btcusdt@ticker", "btcusdt@trade"},
			check: func(t *testing.T, got string) {
				assertStreamsParam(t, got, "btcusdt@depth/btcusdt@ticker/btcusdt@trade")
			},
		},
		{
			name:    "empty stream list is an error",
			baseURL: "wss://stream.binance.com:9443",
			streams: nil,
			wantErr: true,
		},
		{
			name:    "path and query are built on top of the given base url",
			baseURL: "wss://testnet.binance.vision",
			streams: []string{"ethusdt@kline_1m"},
			check: func(t *testing.T, got string) {
				u, err := url.Parse(got)
				if err != nil {
					t.Fatalf("result is not a valid URL: %v", err)
				}
				if u.Scheme != "wss" || u.Host != "testnet.binance.vision" {
					t.Errorf("expected the base url's scheme/host to be preserved, got %q", got)
				}
				if u.Path != "/stream" {
					t.Errorf("expected path /stream, got %q", u.Path)
				}
				assertStreamsParam(t, got, "ethusdt@kline_1m")
			},
		},
		{
			name:    "invalid base url is an error",
			baseURL: "wss://stream.binance.com\x7f",
			streams: []string{"btcusdt@trade"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildCombinedStreamURL(tt.baseURL, tt.streams)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got url %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func assertStreamsParam(t *testing.T, rawURL, expected string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("result is not a valid URL: %v", err)
	}
	got := u.Query().Get("streams")
	if got != expected {
		t.Errorf("expected streams param %q, got %q (full url %q)", expected, got, rawURL)
	}
	if !strings.HasPrefix(u.Path, "/stream") {
		t.Errorf("expected path to start with /stream, got %q", u.Path)
	}
}
