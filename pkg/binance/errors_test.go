package binance

import (
	"errors"
	"testing"
)

func TestAPIErrorImplementsError(t *testing.T) {
	apiErr := &APIError{Code: -1002, Msg: "Unauthorized"}
	var err error = apiErr
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	want := "binance api error -1002: Unauthorized"
	if got := apiErr.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []*APIError{
		{Code: ErrCodeTooManyRequests},
		{Code: ErrCodeTimeout},
		{Code: ErrCodeDisconnected},
	}
	for _, apiErr := range retryable {
		if !IsRetryableError(apiErr) {
			t.Errorf("expected code %d to be retryable", apiErr.Code)
		}
	}

	nonRetryable := []*APIError{
		{Code: ErrCodeUnauthorized},
		{Code: ErrCodeInvalidSignature},
		{Code: ErrCodeBadSymbol},
	}
	for _, apiErr := range nonRetryable {
		if IsRetryableError(apiErr) {
			t.Errorf("expected code %d to not be retryable", apiErr.Code)
		}
	}

	if IsRetryableError(nil) {
		t.Error("nil error should not be retryable")
	}
	if IsRetryableError(errors.New("boom")) {
		t.Error("non-API error should not be retryable")
	}
}

func TestParseAPIError(t *testing.T) {
	body := []byte(`{"code":-1121,"msg":"Invalid symbol."}`)
	err := ParseAPIError(400, body)
	if err.Code != -1121 || err.Msg != "Invalid symbol." {
		t.Errorf("unexpected parse result: %+v", err)
	}

	fallback := ParseAPIError(500, []byte("not json"))
	if fallback.Code != ErrCodeUnknown {
		t.Errorf("expected fallback code %d, got %d", ErrCodeUnknown, fallback.Code)
	}
}

func TestAuthError(t *testing.T) {
	err := NewAuthError("missing API key")
	if err.Code != AuthErrorCode {
		t.Errorf("expected code %d, got %d", AuthErrorCode, err.Code)
	}
	want := "authorization failed (2001): missing API key"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
