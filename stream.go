package isotp

// Protocol is the push-style application surface: ServePush drives it from
// a goroutine that blocks on Connection.Read so the caller never has to
// poll.
type Protocol interface {
	// ConnectionMade is called once, before the first DataReceived, on the
	// goroutine ServePush spawned.
	ConnectionMade(w *Writer)
	// DataReceived is called once per reassembled message, in order.
	DataReceived(data []byte)
	// ConnectionLost is called exactly once, with the reason the connection
	// stopped producing messages (a ConnectionClosedError once it is closed).
	ConnectionLost(err error)
}

// ServePush drives p from conn until conn is closed or a non-recoverable
// error is reported, then calls p.ConnectionLost. It returns immediately;
// the serving goroutine owns conn's lifetime from here on.
func ServePush(conn *Connection, p Protocol) {
	w := &Writer{conn: conn}
	go func() {
		p.ConnectionMade(w)
		for {
			data, err := conn.Read()
			if err != nil {
				if _, closed := err.(ConnectionClosedError); !closed {
					// Per-message errors leave the connection usable.
					continue
				}
				p.ConnectionLost(err)
				return
			}
			p.DataReceived(data)
		}
	}()
}

// Writer is the pull-style send half of a connection.
type Writer struct {
	conn *Connection
}

// NewWriter wraps conn for pull-style sending.
func NewWriter(conn *Connection) *Writer { return &Writer{conn: conn} }

// Write blocks until payload is fully transmitted or the attempt fails.
func (w *Writer) Write(payload []byte) error { return w.conn.Write(payload) }

// Drain waits for any in-flight Write to finish. Write already blocks until
// its own transmission completes and this type never buffers more than one
// message at a time, so Drain only needs to guard against a Write that is
// currently in flight on another goroutine.
func (w *Writer) Drain() error {
	w.conn.drainMu.Lock()
	defer w.conn.drainMu.Unlock()
	return nil
}

// Close closes the underlying connection.
func (w *Writer) Close() error { return w.conn.Close() }

// Reader is the pull-style receive half of a connection.
type Reader struct {
	conn *Connection
}

// NewReader wraps conn for pull-style receiving.
func NewReader(conn *Connection) *Reader { return &Reader{conn: conn} }

// Read blocks until the next reassembled message, an error, or closure.
func (r *Reader) Read() ([]byte, error) { return r.conn.Read() }
