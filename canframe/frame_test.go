package canframe

import "testing"

func TestNewAutoDetectsExtended(t *testing.T) {
	f, err := New(0x100, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Extended {
		t.Fatalf("expected standard id for 0x100")
	}

	f, err = New(0x1FFFFFF0, []byte{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Extended {
		t.Fatalf("expected extended id for 0x1FFFFFF0")
	}
}

func TestNewRejectsOversizedData(t *testing.T) {
	if _, err := New(0x100, make([]byte, 9)); err != ErrInvalidLen {
		t.Fatalf("expected ErrInvalidLen, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeID(t *testing.T) {
	f := Frame{ID: MaxStandardID + 1, Extended: false, Len: 1}
	if err := f.Validate(); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	f, err := New(0x321, []byte{0x02, 0x68, 0x69})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("expected 16-byte wire frame, got %d", len(buf))
	}

	var out Frame
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != f.ID || out.Extended != f.Extended || out.Len != f.Len || out.Data != f.Data {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, f)
	}
}

func TestPayloadExcludesPadding(t *testing.T) {
	f, err := New(0x100, []byte{0x02, 0x68, 0x69})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.Payload(); len(got) != 3 {
		t.Fatalf("expected 3-byte payload, got %d", len(got))
	}
}
