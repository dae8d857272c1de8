package canframe

import (
	"net"
	"testing"
)

func TestTCPBridgeRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	a := newTCPBridge(client)
	b := newTCPBridge(server)
	defer a.Close()
	defer b.Close()

	f, err := New(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Send(f) }()

	r, err := b.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send: %v", err)
	}
	if r.Frame.ID != f.ID || r.Frame.Payload()[0] != 0xDE {
		t.Fatalf("expected %v, got %v", f, r.Frame)
	}
}

func TestTCPBridgeCloseUnblocksRecv(t *testing.T) {
	client, server := net.Pipe()
	a := newTCPBridge(client)
	b := newTCPBridge(server)
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Recv()
		errCh <- err
	}()

	b.Close()

	if err := <-errCh; err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
