package isotp

import (
	"testing"

	"github.com/christiansandberg/aioisotp/canframe"
)

func TestNewAddressAutoDetectsWidth(t *testing.T) {
	a := NewAddress(0x7E0, 0x7E8, nil)
	if a.Extended {
		t.Fatalf("expected standard addressing for ids within 11 bits")
	}

	a = NewAddress(0x18DA10F1, 0x18DAF110, nil)
	if !a.Extended {
		t.Fatalf("expected extended addressing for ids beyond 11 bits")
	}
}

func TestAddressMatchesOnlyRxID(t *testing.T) {
	a := NewAddress(0x7E0, 0x7E8, nil)

	f, _ := canframe.New(0x7E8, []byte{1})
	if !a.Matches(f) {
		t.Fatalf("expected frame on rx id to match")
	}

	f, _ = canframe.New(0x7E0, []byte{1})
	if a.Matches(f) {
		t.Fatalf("frame on tx id should not match")
	}
}
