package config

import (
	"testing"
	"time"
)

func TestLoadTransferDefaults(t *testing.T) {
	t.Setenv("API_TOKEN", "api-secret")
	t.Setenv("LEDGER_TOKEN", "ledger-secret")

	cfg, err := LoadTransfer()
	if err != nil {
		t.Fatalf("LoadTransfer() unexpected error: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.Redis.ReservationTTL != 30*time.Second {
		t.Errorf("ReservationTTL = %v, want 30s", cfg.Redis.ReservationTTL)
	}
	if cfg.Ledger.BaseURL != "http://localhost:8081" {
		t.Errorf("Ledger.BaseURL = %q, want default", cfg.Ledger.BaseURL)
	}
}

func TestLoadTransferOverrides(t *testing.T) {
	t.Setenv("API_TOKEN", "api-secret")
	t.Setenv("LEDGER_TOKEN", "ledger-secret")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("RESERVATION_TTL", "2m")

	cfg, err := LoadTransfer()
	if err != nil {
		t.Fatalf("LoadTransfer() unexpected error: %v", err)
	}

	if cfg.HTTPPort != "9999" {
		t.Errorf("HTTPPort = %q, want 9999", cfg.HTTPPort)
	}
	if cfg.Redis.ReservationTTL != 2*time.Minute {
		t.Errorf("ReservationTTL = %v, want 2m", cfg.Redis.ReservationTTL)
	}
}

func TestLoadTransferRequiresTokens(t *testing.T) {
	t.Setenv("API_TOKEN", "")
	t.Setenv("LEDGER_TOKEN", "")

	if _, err := LoadTransfer(); err == nil {
		t.Error("LoadTransfer() without API_TOKEN should fail")
	}

	t.Setenv("API_TOKEN", "api-secret")
	if _, err := LoadTransfer(); err == nil {
		t.Error("LoadTransfer() without LEDGER_TOKEN should fail")
	}
}

func TestLoadFee(t *testing.T) {
	cfg, err := LoadFee()
	if err != nil {
		t.Fatalf("LoadFee() unexpected error: %v", err)
	}
	if cfg.FlatFee != "2.00" {
		t.Errorf("FlatFee = %q, want default 2.00", cfg.FlatFee)
	}

	t.Setenv("FLAT_FEE", "3.50")
	cfg, err = LoadFee()
	if err != nil {
		t.Fatalf("LoadFee() unexpected error: %v", err)
	}
	if cfg.FlatFee != "3.50" {
		t.Errorf("FlatFee = %q, want 3.50", cfg.FlatFee)
	}
}

func TestLoadFeeRejectsMalformedFee(t *testing.T) {
	tests := []string{"free", "-1.00", "0", "1.234"}
	for _, value := range tests {
		t.Setenv("FLAT_FEE", value)
		if _, err := LoadFee(); err == nil {
			t.Errorf("LoadFee() with FLAT_FEE=%q should fail", value)
		}
	}
}

func TestLoadLedgerRequiresToken(t *testing.T) {
	t.Setenv("API_TOKEN", "")
	if _, err := LoadLedger(); err == nil {
		t.Error("LoadLedger() without API_TOKEN should fail")
	}

	t.Setenv("API_TOKEN", "secret")
	cfg, err := LoadLedger()
	if err != nil {
		t.Fatalf("LoadLedger() unexpected error: %v", err)
	}
	if cfg.HTTPPort != "8081" {
		t.Errorf("HTTPPort = %q, want 8081", cfg.HTTPPort)
	}
}
