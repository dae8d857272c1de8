package isotp

import "time"

// Config carries the timing and framing parameters for one connection.
// Zero value is invalid; use DefaultConfig and override individual fields.
type Config struct {
	// PaddingByte pads every outbound frame (Flow Control included) up to 8
	// bytes when non-nil. A nil value disables padding (short CAN frames are sent as-is).
	PaddingByte *byte

	// BlockSize is the number of Consecutive Frames the sender may transmit
	// before waiting for another Flow Control, as advertised by the
	// receiver. 0 means unlimited.
	BlockSize byte

	// STmin is the minimum separation time the receiver demands between
	// Consecutive Frames, encoded per the ISO 15765-2 table (0x00-0x7F ms,
	// 0xF1-0xF9 in 100us steps).
	STmin byte

	// WftMax bounds how many consecutive Flow Control WAIT frames a sender
	// will tolerate before giving up.
	WftMax byte

	TimeoutAs time.Duration // N_As: sender waiting for the adapter to accept a frame
	TimeoutBs time.Duration // N_Bs: sender waiting for Flow Control
	TimeoutCr time.Duration // N_Cr: receiver waiting for the next Consecutive Frame
}

// DefaultConfig returns the parameters from ISO 15765-2's default timing
// set: no padding, unlimited block size, no enforced separation time, and
// the standard 1 second N_As/N_Bs/N_Cr ceilings.
func DefaultConfig() Config {
	return Config{
		PaddingByte: nil,
		BlockSize:   0,
		STmin:       0,
		WftMax:      10,
		TimeoutAs:   1 * time.Second,
		TimeoutBs:   1 * time.Second,
		TimeoutCr:   1 * time.Second,
	}
}

// Validate reports whether the configuration describes a usable profile.
func (c Config) Validate() error {
	if c.STmin > 0x7F && (c.STmin < 0xF1 || c.STmin > 0xF9) {
		return protocolErrorf("reserved stmin value %#x", c.STmin)
	}
	if c.TimeoutAs <= 0 || c.TimeoutBs <= 0 || c.TimeoutCr <= 0 {
		return protocolErrorf("timeouts must be positive")
	}
	return nil
}
