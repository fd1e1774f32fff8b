package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DERIV_API_TOKEN", "a1b2c3d4e5f6")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DerivWSURL != "wss://ws.derivws.com/websockets/v3" {
		t.Errorf("ws url = %q", cfg.DerivWSURL)
	}
	if cfg.DerivAppID != 1089 {
		t.Errorf("app id = %d", cfg.DerivAppID)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("ping interval = %v", cfg.PingInterval)
	}
	if !cfg.LossWarningThreshold.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("warning threshold = %s", cfg.LossWarningThreshold)
	}
	if !cfg.LossAlertThreshold.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("alert threshold = %s", cfg.LossAlertThreshold)
	}
	if cfg.RevengeWindow != 3*time.Minute {
		t.Errorf("revenge window = %v", cfg.RevengeWindow)
	}
	if cfg.StopCountdown != 5*time.Second {
		t.Errorf("stop countdown = %v", cfg.StopCountdown)
	}
	if cfg.HarshMode {
		t.Error("harsh mode should default off")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("DERIV_API_TOKEN", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("missing token should fail validation")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DERIV_API_TOKEN", "tok")
	t.Setenv("LOSS_WARNING_THRESHOLD", "0.03")
	t.Setenv("LOSS_ALERT_THRESHOLD", "0.08")
	t.Setenv("HARSH_MODE", "true")
	t.Setenv("STOP_COUNTDOWN_SECONDS", "10")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.LossWarningThreshold.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("warning threshold = %s", cfg.LossWarningThreshold)
	}
	if !cfg.HarshMode {
		t.Error("harsh mode override ignored")
	}
	if cfg.StopCountdown != 10*time.Second {
		t.Errorf("stop countdown = %v", cfg.StopCountdown)
	}
}

func TestLoad_AlertBelowWarningRejected(t *testing.T) {
	t.Setenv("DERIV_API_TOKEN", "tok")
	t.Setenv("LOSS_WARNING_THRESHOLD", "0.10")
	t.Setenv("LOSS_ALERT_THRESHOLD", "0.05")

	if _, err := config.Load(); err == nil {
		t.Fatal("alert threshold below warning should fail validation")
	}
}

func TestMaskedToken(t *testing.T) {
	cfg := &config.Config{DerivAPIToken: "abcdefghijkl"}
	if got := cfg.MaskedToken(); got != "abcd****ijkl" {
		t.Errorf("masked = %q", got)
	}

	cfg.DerivAPIToken = "short"
	if got := cfg.MaskedToken(); got != "****" {
		t.Errorf("masked short = %q", got)
	}
}
