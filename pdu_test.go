package isotp

import (
	"testing"
	"time"
)

func TestDecodePDUSingleFrame(t *testing.T) {
	p, err := decodePDU([]byte{0x03, 0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.kind != pciSingleFrame || len(p.data) != 3 {
		t.Fatalf("unexpected pdu: %+v", p)
	}
}

func TestDecodePDURejectsZeroLengthSingleFrame(t *testing.T) {
	if _, err := decodePDU([]byte{0x00}); err == nil {
		t.Fatalf("expected error for zero-length single frame")
	}
}

func TestDecodePDUFirstFrame(t *testing.T) {
	p, err := decodePDU([]byte{0x10, 0x14, 1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.kind != pciFirstFrame || p.length != 20 || len(p.data) != 6 {
		t.Fatalf("unexpected pdu: %+v", p)
	}
}

func TestDecodePDURejectsFirstFrameThatShouldBeSingle(t *testing.T) {
	if _, err := decodePDU([]byte{0x10, 0x05, 1, 2, 3, 4, 5}); err == nil {
		t.Fatalf("expected error for first frame declaring <=7 bytes")
	}
}

func TestDecodePDUFlowControl(t *testing.T) {
	p, err := decodePDU([]byte{0x30, 0x08, 0x0A})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.kind != pciFlowControl || p.status != FlowStatusContinue || p.blockSize != 8 || p.stMin != 0x0A {
		t.Fatalf("unexpected pdu: %+v", p)
	}
}

func TestDecodePDURejectsReservedFlowStatus(t *testing.T) {
	if _, err := decodePDU([]byte{0x33, 0, 0}); err == nil {
		t.Fatalf("expected error for reserved flow status")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sf := encodeSingleFrame([]byte{1, 2, 3})
	p, err := decodePDU(sf)
	if err != nil || len(p.data) != 3 {
		t.Fatalf("single frame round trip failed: %+v %v", p, err)
	}

	ff := encodeFirstFrame(20, []byte{1, 2, 3, 4, 5, 6})
	p, err = decodePDU(ff)
	if err != nil || p.length != 20 {
		t.Fatalf("first frame round trip failed: %+v %v", p, err)
	}

	cf := encodeConsecutiveFrame(3, []byte{7, 8})
	p, err = decodePDU(cf)
	if err != nil || p.seq != 3 {
		t.Fatalf("consecutive frame round trip failed: %+v %v", p, err)
	}

	fc := encodeFlowControl(FlowStatusWait, 0, 0)
	p, err = decodePDU(fc)
	if err != nil || p.status != FlowStatusWait {
		t.Fatalf("flow control round trip failed: %+v %v", p, err)
	}
}

func TestNextSeqWraps(t *testing.T) {
	if nextSeq(15) != 0 {
		t.Fatalf("expected wrap from 15 to 0")
	}
	if nextSeq(0) != 1 {
		t.Fatalf("expected 0 to advance to 1")
	}
	if nextSeq(7) != 8 {
		t.Fatalf("expected 7 to advance to 8")
	}
}

func TestDecodeSTmin(t *testing.T) {
	cases := []struct {
		b    byte
		want time.Duration
	}{
		{0x00, 0},
		{0x7F, 127 * time.Millisecond},
		{0xF1, 100 * time.Microsecond},
		{0xF9, 900 * time.Microsecond},
		{0xFA, 127 * time.Millisecond}, // reserved, falls back to worst case
		{0x80, 127 * time.Millisecond}, // reserved, falls back to worst case
	}
	for _, c := range cases {
		if got := decodeSTmin(c.b); got != c.want {
			t.Errorf("decodeSTmin(%#x) = %v, want %v", c.b, got, c.want)
		}
	}
}
