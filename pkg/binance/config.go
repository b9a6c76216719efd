package binance

import "time"

// BaseURL and WSBaseURL point at Binance's production spot endpoints.
// SandboxBaseURL and SandboxWSBaseURL point at the public testnet.
const (
	BaseURL          = "https://api.binance.com"
	WSBaseURL        = "wss://stream.binance.com:9443"
	SandboxBaseURL   = "https://testnet.binance.vision"
	SandboxWSBaseURL = "wss://testnet.binance.vision"
)

// Config holds everything the REST and WebSocket clients need to talk to
// Binance. API credentials are only required for signed (trading) calls;
// market-data calls work with a zero-value Config.
type Config struct {
	APIKey    string        `yaml:"api_key" json:"api_key"`
	APISecret string        `yaml:"api_secret" json:"api_secret"`
	Sandbox   bool          `yaml:"sandbox" json:"sandbox"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns a Config suitable for unauthenticated market-data use.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

// IsValid reports whether the configuration carries usable API credentials.
func (c *Config) IsValid() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// GetBaseURL returns the REST base URL for the configured environment.
func (c *Config) GetBaseURL() string {
	if c.Sandbox {
		return SandboxBaseURL
	}
	return BaseURL
}

// GetWSBaseURL returns the combined-stream WebSocket base URL.
func (c *Config) GetWSBaseURL() string {
	if c.Sandbox {
		return SandboxWSBaseURL
	}
	return WSBaseURL
}
