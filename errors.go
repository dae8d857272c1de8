package isotp

import "fmt"

// isoTPError is the common base every error kind embeds, mirroring the
// teacher repository's error hierarchy so callers can errors.As against a
// specific kind while still getting a sensible default message.
type isoTPError struct {
	msg string
}

func (e isoTPError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "isotp error"
}

func newErr(msg string) isoTPError { return isoTPError{msg: msg} }

// ProtocolError reports a malformed PCI or otherwise impossible framing.
// The offending frame is dropped; the connection survives.
type ProtocolError struct{ isoTPError }

func protocolErrorf(format string, args ...any) ProtocolError {
	return ProtocolError{newErr(fmt.Sprintf(format, args...))}
}

// SequenceError reports a Consecutive Frame sequence-number mismatch. The
// in-progress reassembly is aborted; the connection survives.
type SequenceError struct{ isoTPError }

func sequenceErrorf(format string, args ...any) SequenceError {
	return SequenceError{newErr(fmt.Sprintf(format, args...))}
}

// FlowControlTimeoutError reports that N_Bs expired waiting for a Flow
// Control frame. The in-progress transmission is aborted.
type FlowControlTimeoutError struct{ isoTPError }

func flowControlTimeoutError() FlowControlTimeoutError {
	return FlowControlTimeoutError{newErr("flow control frame not received within N_Bs")}
}

// ReassemblyTimeoutError reports that N_Cr expired waiting for the next
// Consecutive Frame. The in-progress reassembly is aborted.
type ReassemblyTimeoutError struct{ isoTPError }

func reassemblyTimeoutError() ReassemblyTimeoutError {
	return ReassemblyTimeoutError{newErr("consecutive frame not received within N_Cr")}
}

// FlowControlWaitOverflowError reports that the peer sent more WAIT frames
// than wftmax allows. The in-progress transmission is aborted.
type FlowControlWaitOverflowError struct{ isoTPError }

func flowControlWaitOverflowError() FlowControlWaitOverflowError {
	return FlowControlWaitOverflowError{newErr("peer exceeded the maximum number of flow control wait frames")}
}

// PeerBufferOverflowError reports an OVFLW flow status from the peer. The
// in-progress transmission is aborted.
type PeerBufferOverflowError struct{ isoTPError }

func peerBufferOverflowError() PeerBufferOverflowError {
	return PeerBufferOverflowError{newErr("peer reported buffer overflow")}
}

// TransmitTimeoutError reports that the adapter failed to accept a frame
// within N_As.
type TransmitTimeoutError struct{ isoTPError }

func transmitTimeoutError() TransmitTimeoutError {
	return TransmitTimeoutError{newErr("adapter did not accept frame within N_As")}
}

// ConnectionClosedError is returned by any pending or future operation on a
// connection that has been torn down.
type ConnectionClosedError struct{ isoTPError }

func connectionClosedError() ConnectionClosedError {
	return ConnectionClosedError{newErr("connection closed")}
}

// AdapterError wraps an error returned by the underlying canframe.Adapter.
// It is fatal for the whole network: every connection is closed.
type AdapterError struct {
	isoTPError
	Err error
}

func adapterError(err error) AdapterError {
	return AdapterError{isoTPError: newErr(fmt.Sprintf("adapter error: %v", err)), Err: err}
}

func (e AdapterError) Unwrap() error { return e.Err }

// DuplicateRxIDError is returned by CreateConnection when rx_id is already
// bound to another connection on the network.
type DuplicateRxIDError struct {
	isoTPError
	RxID uint32
}

func duplicateRxIDError(rxID uint32) DuplicateRxIDError {
	return DuplicateRxIDError{isoTPError: newErr(fmt.Sprintf("rx id %#x already bound", rxID)), RxID: rxID}
}
