package isotp

import "github.com/christiansandberg/aioisotp/canframe"

// Address identifies one connection's pair of CAN ids. Only normal
// addressing is supported — extended addressing (a 1-byte address prefix
// inside the payload) and mixed addressing are explicit non-goals.
type Address struct {
	TxID     uint32
	RxID     uint32
	Extended bool
}

// NewAddress builds an Address, auto-detecting the identifier width from
// whether either id needs more than 11 bits unless extended is given
// explicitly.
func NewAddress(txID, rxID uint32, extended *bool) Address {
	a := Address{TxID: txID, RxID: rxID}
	if extended != nil {
		a.Extended = *extended
	} else {
		a.Extended = txID > canframe.MaxStandardID || rxID > canframe.MaxStandardID
	}
	return a
}

// Matches reports whether an inbound frame belongs to this connection.
func (a Address) Matches(f canframe.Frame) bool {
	return f.Extended == a.Extended && f.ID == a.RxID
}
