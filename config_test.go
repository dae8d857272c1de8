package isotp

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfigRejectsReservedSTmin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.STmin = 0x80
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for reserved stmin value")
	}
}

func TestConfigRejectsNonPositiveTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutCr = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
}
