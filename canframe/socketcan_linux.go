//go:build linux

package canframe

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// socketCAN adapts a Linux SocketCAN raw interface (can0, vcan0, ...) to the
// Adapter interface using the kernel's CAN_RAW socket family directly.
type socketCAN struct {
	fd     int
	file   *os.File
	closed chan struct{}
}

// sockaddrCAN mirrors struct sockaddr_can for a bind(2) call; x/sys/unix has
// no typed helper for AF_CAN, so the layout is built by hand the same way
// the reference adapter in the example corpus does it.
type sockaddrCAN struct {
	family  uint16
	_pad    uint16
	ifindex int32
	addr    [8]byte
}

// DialOption configures a DialSocketCAN socket before it is returned.
type DialOption func(fd int) error

// WithReceiveOwnMessages makes the socket loop back frames this process
// sends on the same interface into its own Recv, matching python-can's
// receive_own_messages option (passed straight through to CAN_RAW_RECV_OWN_MSGS
// at the SOL_CAN_RAW level).
func WithReceiveOwnMessages() DialOption {
	return func(fd int) error {
		return unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, 1)
	}
}

// DialSocketCAN opens and binds a raw CAN_RAW socket on the named interface
// (e.g. "can0"). The returned Adapter is non-blocking internally; Recv still
// blocks the calling goroutine until a frame arrives.
func DialSocketCAN(iface string, opts ...DialOption) (Adapter, error) {
	const afCAN = 29
	fd, err := unix.Socket(afCAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canframe: socket: %w", err)
	}

	ifreq, err := unix.NewIfreq(sanitizeIfName(iface))
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canframe: interface name %q: %w", iface, err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFINDEX, ifreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canframe: interface lookup %q: %w", iface, err)
	}

	sa := sockaddrCAN{family: afCAN, ifindex: int32(ifreq.Uint32())}
	if err := bindCAN(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canframe: bind %q: %w", iface, err)
	}

	for _, opt := range opts {
		if err := opt(fd); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("canframe: socket option: %w", err)
		}
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canframe: set nonblock: %w", err)
	}

	return &socketCAN{fd: fd, file: os.NewFile(uintptr(fd), "socketcan"), closed: make(chan struct{})}, nil
}

func bindCAN(fd int, sa *sockaddrCAN) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(sa)), unsafe.Sizeof(*sa))
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *socketCAN) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	return s.file.Close()
}

func (s *socketCAN) Send(f Frame) error {
	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return ErrWouldBlock
		}
		return fmt.Errorf("%w: %v", ErrBusError, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write", ErrBusError)
	}
	return nil
}

func (s *socketCAN) Recv() (Received, error) {
	buf := make([]byte, 16)
	for {
		select {
		case <-s.closed:
			return Received{}, ErrClosed
		default:
		}
		n, err := unix.Read(s.fd, buf)
		if err == nil {
			if n != len(buf) {
				return Received{}, fmt.Errorf("%w: short read", ErrBusError)
			}
			var f Frame
			if err := f.UnmarshalBinary(buf); err != nil {
				return Received{}, err
			}
			return Received{Frame: f, At: time.Now()}, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			waitReadable(s.fd)
			continue
		}
		return Received{}, fmt.Errorf("%w: %v", ErrBusError, err)
	}
}

// waitReadable blocks briefly until the socket is readable or errors,
// avoiding a busy spin while the non-blocking fd has nothing queued.
func waitReadable(fd int) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	unix.Poll(pfd, 1000)
}

func sanitizeIfName(name string) string {
	if len(name) >= unix.IFNAMSIZ {
		return name[:unix.IFNAMSIZ-1]
	}
	return name
}
