package isotp

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/christiansandberg/aioisotp/canframe"
)

// Network is component C4: it owns one canframe.Adapter and demultiplexes
// inbound frames to the Connection whose Address.RxID matches, and
// serializes every Connection's outbound frames back onto the adapter.
type Network struct {
	adapter canframe.Adapter
	logger  *logrus.Entry
	limiter *rateLimiter

	mu          sync.Mutex
	connections map[connKey]*Connection
	closed      bool
	fatalErr    error

	outbound chan canframe.Frame
	group    *errgroup.Group
	cancel   context.CancelFunc
	done     chan struct{}
}

// connKey identifies a bound connection by both identifier width and value,
// so a standard-width and an extended-width connection can never collide on
// the same numeric id the way a bare uint32 key would.
type connKey struct {
	extended bool
	id       uint32
}

func keyOf(addr Address) connKey { return connKey{extended: addr.Extended, id: addr.RxID} }

// Option configures a Network at construction time.
type Option func(*Network)

// WithLogger attaches a logrus logger; by default nothing is logged.
func WithLogger(logger *logrus.Logger) Option {
	return func(n *Network) { n.logger = logger.WithField("component", "isotp") }
}

// WithRateLimit caps aggregate outbound bandwidth across every connection on
// this network. It never violates STmin; it only ever adds extra delay on
// top of it. A limit of 0 (the default) leaves outbound frames unthrottled.
func WithRateLimit(bytesPerSecond float64, burst int) Option {
	return func(n *Network) { n.limiter = newRateLimiter(bytesPerSecond, burst) }
}

// NewNetwork starts demultiplexing frames read from adapter. Call Close to
// stop and tear down every connection.
func NewNetwork(adapter canframe.Adapter, opts ...Option) *Network {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	n := &Network{
		adapter:     adapter,
		logger:      discard.WithField("component", "isotp"),
		connections: make(map[connKey]*Connection),
		outbound:    make(chan canframe.Frame, 64),
		group:       group,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	group.Go(func() error { return n.readLoop(ctx) })
	group.Go(func() error { return n.writeLoop(ctx) })

	// A fatal adapter error surfaces through the errgroup even if nobody
	// has called Close yet; this goroutine is what actually tears every
	// connection down the moment that happens, per spec §7: adapter errors
	// are fatal for the whole network, not just the loop that hit them.
	go func() {
		err := group.Wait()
		n.teardown(err)
		close(n.done)
	}()
	return n
}

// teardown closes every live connection exactly once, recording err (if
// any) as the reason so Close can report it to whoever is waiting on it.
func (n *Network) teardown(err error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.fatalErr = err
	conns := make([]*Connection, 0, len(n.connections))
	for _, c := range n.connections {
		conns = append(conns, c)
	}
	n.connections = nil
	n.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// CreateConnection binds a new Connection to rxID/txID. It returns
// DuplicateRxIDError if rxID is already bound on this network.
func (n *Network) CreateConnection(rxID, txID uint32, cfg Config) (*Connection, error) {
	return n.createConnection(NewAddress(txID, rxID, nil), cfg)
}

// CreateConnectionWithAddress is like CreateConnection but takes a fully
// formed Address, allowing an explicit choice of identifier width.
func (n *Network) CreateConnectionWithAddress(addr Address, cfg Config) (*Connection, error) {
	return n.createConnection(addr, cfg)
}

func (n *Network) createConnection(addr Address, cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, connectionClosedError()
	}
	key := keyOf(addr)
	if _, exists := n.connections[key]; exists {
		return nil, duplicateRxIDError(addr.RxID)
	}

	conn := newConnection(addr, cfg, n.outbound)
	n.connections[key] = conn
	return conn, nil
}

// CloseConnection unbinds and closes a single connection, freeing its rx id
// for reuse.
func (n *Network) CloseConnection(conn *Connection) error {
	n.mu.Lock()
	key := keyOf(conn.addr)
	if n.connections[key] == conn {
		delete(n.connections, key)
	}
	n.mu.Unlock()
	return conn.Close()
}

// Close stops the network's I/O loops, closes every connection, and closes
// the underlying adapter. If the network had already shut itself down
// because of a fatal adapter error, Close returns that error.
func (n *Network) Close() error {
	n.cancel()
	closeErr := n.adapter.Close()
	<-n.done

	n.mu.Lock()
	err := n.fatalErr
	n.mu.Unlock()
	if err != nil {
		return err
	}
	return closeErr
}

func (n *Network) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		received, err := n.adapter.Recv()
		if err != nil {
			if err == canframe.ErrClosed {
				return nil
			}
			n.logger.WithError(err).Error("adapter recv failed, closing network")
			return adapterError(err)
		}

		n.mu.Lock()
		conn, ok := n.lookup(received.Frame)
		n.mu.Unlock()
		if ok {
			conn.deliver(received.Frame)
		}
	}
}

func (n *Network) lookup(f canframe.Frame) (*Connection, bool) {
	c, ok := n.connections[connKey{extended: f.Extended, id: f.ID}]
	if !ok || !c.addr.Matches(f) {
		return nil, false
	}
	return c, true
}

func (n *Network) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-n.outbound:
			if n.limiter != nil {
				n.limiter.wait(int(f.Len))
			}
			if err := n.send(ctx, f); err != nil {
				if err == canframe.ErrClosed {
					return nil
				}
				n.logger.WithError(err).Error("adapter send failed, closing network")
				// Closing the adapter unblocks readLoop's Recv so the
				// errgroup can finish and the network is torn down now.
				n.adapter.Close()
				return adapterError(err)
			}
		}
	}
}

// send retries on ErrWouldBlock, per canframe.Adapter's contract that the
// caller owns retrying when the driver's queue is momentarily full, and
// treats every other error as fatal for the network.
func (n *Network) send(ctx context.Context, f canframe.Frame) error {
	for {
		err := n.adapter.Send(f)
		if err == nil {
			return nil
		}
		if err != canframe.ErrWouldBlock {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Millisecond):
		}
	}
}
