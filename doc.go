// Package isotp implements ISO 15765-2 (ISO-TP) transport over classic CAN.
//
// It multiplexes many logical ISO-TP connections over one physical CAN
// channel (via a canframe.Adapter), each exposed to the application as
// either a push-style Protocol or a pull-style Reader/Writer pair.
//
// Extended addressing, mixed addressing, remote transmission requests and
// CAN-FD framing are not implemented; see SPEC_FULL.md for the full list of
// non-goals.
package isotp
