package isotp

import (
	"sync"
	"time"

	"github.com/christiansandberg/aioisotp/canframe"
)

type txState int

const (
	txIdle txState = iota
	txWaitFC
	txSending
	txWaitFCAgain
)

type rxState int

const (
	rxIdle rxState = iota
	rxAssembling
)

type writeRequest struct {
	payload []byte
	result  chan error
}

// Connection is one logical ISO-TP session: a tx id / rx id pair
// multiplexed over a shared canframe.Adapter by a Network. Its event loop
// runs on its own goroutine; no connection state is touched from any other
// goroutine, so there is no internal locking beyond what's needed to guard
// against a concurrent Close.
type Connection struct {
	addr Address
	cfg  Config

	in  chan canframe.Frame
	out chan<- canframe.Frame

	writeReq   chan writeRequest
	rxMessages chan []byte
	errs       chan error

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	// drainMu is held for the duration of each Write so Writer.Drain can
	// block until any in-flight write finishes.
	drainMu sync.Mutex

	// rx half
	rxState   rxState
	rxBuf     []byte
	rxLen     int
	rxSeq     byte
	rxBlocks  byte
	timerRxCF *time.Timer

	// tx half
	txState      txState
	txBuf        []byte
	txSeq        byte
	txBlocks     byte
	remoteBS     byte
	remoteSTmin  time.Duration
	wft          byte
	pendingWrite *writeRequest
	timerTxFC    *time.Timer
	timerTxSTmin *time.Timer
}

func newConnection(addr Address, cfg Config, out chan<- canframe.Frame) *Connection {
	c := &Connection{
		addr:         addr,
		cfg:          cfg,
		in:           make(chan canframe.Frame, 16),
		out:          out,
		writeReq:     make(chan writeRequest),
		rxMessages:   make(chan []byte, 4),
		errs:         make(chan error, 4),
		closed:       make(chan struct{}),
		done:         make(chan struct{}),
		timerRxCF:    time.NewTimer(time.Hour),
		timerTxFC:    time.NewTimer(time.Hour),
		timerTxSTmin: time.NewTimer(time.Hour),
	}
	c.timerRxCF.Stop()
	c.timerTxFC.Stop()
	c.timerTxSTmin.Stop()
	go c.run()
	return c
}

// Write blocks until payload has been fully transmitted, or fails. Only one
// Write may be in flight at a time; concurrent callers serialize through the
// connection's own request channel.
func (c *Connection) Write(payload []byte) error {
	if len(payload) > MaxPayload {
		return protocolErrorf("payload of %d bytes exceeds maximum of %d", len(payload), MaxPayload)
	}
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	req := writeRequest{payload: payload, result: make(chan error, 1)}
	select {
	case c.writeReq <- req:
	case <-c.closed:
		return connectionClosedError()
	}
	select {
	case err := <-req.result:
		return err
	case <-c.closed:
		return connectionClosedError()
	}
}

// Read blocks until a complete message has been reassembled, the
// connection hits a protocol error, or the connection is closed.
func (c *Connection) Read() ([]byte, error) {
	select {
	case msg := <-c.rxMessages:
		return msg, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, connectionClosedError()
	}
}

// Close tears the connection down; any blocked Write or Read returns
// ConnectionClosedError.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	<-c.done
	return nil
}

func (c *Connection) deliver(f canframe.Frame) {
	select {
	case c.in <- f:
	case <-c.closed:
	default:
		// inbound buffer saturated; drop rather than block the demultiplexer.
	}
}

func (c *Connection) run() {
	defer close(c.done)
	defer c.timerRxCF.Stop()
	defer c.timerTxFC.Stop()
	defer c.timerTxSTmin.Stop()

	for {
		var writeEnable chan writeRequest
		if c.txState == txIdle {
			writeEnable = c.writeReq
		}

		select {
		case <-c.closed:
			c.abortWrite(connectionClosedError())
			return

		case f := <-c.in:
			c.handleFrame(f)

		case req := <-writeEnable:
			c.pendingWrite = &req
			c.startWrite(req.payload)

		case <-c.timerRxCF.C:
			c.reportError(reassemblyTimeoutError())
			c.resetRx()

		case <-c.timerTxFC.C:
			c.finishWrite(flowControlTimeoutError())

		case <-c.timerTxSTmin.C:
			if c.txState == txSending {
				c.sendNextConsecutiveFrame()
			}
		}
	}
}

func (c *Connection) abortWrite(err error) {
	if c.pendingWrite != nil {
		c.pendingWrite.result <- err
		c.pendingWrite = nil
	}
}

func (c *Connection) reportError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// --- rx half ---

func (c *Connection) resetRx() {
	c.rxState = rxIdle
	c.rxBuf = nil
	c.rxLen = 0
	c.rxSeq = 0
	c.rxBlocks = 0
	stopAndDrain(c.timerRxCF)
}

func (c *Connection) resetRxTimer() {
	stopAndDrain(c.timerRxCF)
	c.timerRxCF.Reset(c.cfg.TimeoutCr)
}

func (c *Connection) handleFrame(f canframe.Frame) {
	p, err := decodePDU(f.Payload())
	if err != nil {
		c.reportError(err)
		return
	}

	switch p.kind {
	case pciFlowControl:
		c.handleFlowControl(p)
	case pciSingleFrame:
		c.handleSingleFrame(p)
	case pciFirstFrame:
		c.handleFirstFrame(p)
	case pciConsecutiveFrame:
		c.handleConsecutiveFrame(p)
	}
}

func (c *Connection) handleSingleFrame(p pdu) {
	// A Single Frame always starts a new message, even mid-reassembly: the
	// in-progress First/Consecutive Frame sequence is abandoned.
	c.resetRx()
	c.deliverMessage(p.data)
}

func (c *Connection) handleFirstFrame(p pdu) {
	// A new First Frame restarts reassembly unconditionally, matching how a
	// transmitter that itself just restarted would resync with its peer.
	c.resetRx()

	c.rxLen = p.length
	c.rxBuf = make([]byte, 0, p.length)
	c.rxBuf = append(c.rxBuf, p.data...)
	c.rxSeq = 1
	c.rxState = rxAssembling

	if err := c.sendFlowControl(FlowStatusContinue); err != nil {
		c.reportError(err)
		c.resetRx()
		return
	}
	c.resetRxTimer()
}

func (c *Connection) handleConsecutiveFrame(p pdu) {
	if c.rxState != rxAssembling {
		return
	}
	if p.seq != c.rxSeq {
		c.reportError(sequenceErrorf("expected sequence number %d, got %d", c.rxSeq, p.seq))
		c.resetRx()
		return
	}

	c.resetRxTimer()
	c.rxSeq = nextSeq(c.rxSeq)

	remaining := c.rxLen - len(c.rxBuf)
	chunk := p.data
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
	}
	c.rxBuf = append(c.rxBuf, chunk...)

	if len(c.rxBuf) >= c.rxLen {
		c.deliverMessage(c.rxBuf)
		c.resetRx()
		return
	}

	c.rxBlocks++
	if c.cfg.BlockSize > 0 && c.rxBlocks >= c.cfg.BlockSize {
		c.rxBlocks = 0
		if err := c.sendFlowControl(FlowStatusContinue); err != nil {
			c.reportError(err)
			c.resetRx()
			return
		}
		c.resetRxTimer()
	}
}

func (c *Connection) deliverMessage(data []byte) {
	msg := make([]byte, len(data))
	copy(msg, data)
	select {
	case c.rxMessages <- msg:
	default:
		// application isn't draining fast enough; drop the oldest semantics
		// are deliberately avoided here, we simply drop this message rather
		// than block the event loop.
	}
}

func (c *Connection) sendFlowControl(status FlowStatus) error {
	payload := encodeFlowControl(status, c.cfg.BlockSize, encodeSTmin(c.cfg.STmin))
	return c.transmit(payload)
}

// --- tx half ---

func (c *Connection) resetTx() {
	c.txState = txIdle
	c.txBuf = nil
	c.txSeq = 0
	c.txBlocks = 0
	c.remoteBS = 0
	c.remoteSTmin = 0
	c.wft = 0
	stopAndDrain(c.timerTxFC)
	stopAndDrain(c.timerTxSTmin)
}

func (c *Connection) resetTxFCTimer() {
	stopAndDrain(c.timerTxFC)
	c.timerTxFC.Reset(c.cfg.TimeoutBs)
}

func (c *Connection) resetTxSTminTimer(d time.Duration) {
	stopAndDrain(c.timerTxSTmin)
	c.timerTxSTmin.Reset(d)
}

func (c *Connection) finishWrite(err error) {
	c.resetTx()
	c.abortWrite(err)
}

func (c *Connection) startWrite(payload []byte) {
	if len(payload) <= singleFrameMaxLen {
		if err := c.transmit(encodeSingleFrame(payload)); err != nil {
			c.finishWrite(err)
			return
		}
		c.pendingWrite.result <- nil
		c.pendingWrite = nil
		c.resetTx()
		return
	}

	first := payload[:firstFrameDataLen]
	c.txBuf = payload[firstFrameDataLen:]
	c.txSeq = 1

	if err := c.transmit(encodeFirstFrame(len(payload), first)); err != nil {
		c.finishWrite(err)
		return
	}

	c.txState = txWaitFC
	c.resetTxFCTimer()
}

func (c *Connection) handleFlowControl(p pdu) {
	if c.txState != txWaitFC && c.txState != txWaitFCAgain {
		return
	}
	stopAndDrain(c.timerTxFC)

	switch p.status {
	case FlowStatusContinue:
		c.wft = 0
		c.remoteBS = p.blockSize
		c.remoteSTmin = decodeSTmin(p.stMin)
		c.txBlocks = 0
		c.txState = txSending
		c.resetTxSTminTimer(c.remoteSTmin)

	case FlowStatusWait:
		c.wft++
		if c.wft > c.cfg.WftMax {
			c.finishWrite(flowControlWaitOverflowError())
			return
		}
		c.txState = txWaitFCAgain
		c.resetTxFCTimer()

	case FlowStatusOverflow:
		c.finishWrite(peerBufferOverflowError())
	}
}

func (c *Connection) sendNextConsecutiveFrame() {
	chunkSize := consecutiveFrameMaxLen
	chunk := c.txBuf
	if len(chunk) > chunkSize {
		chunk = chunk[:chunkSize]
	}

	if err := c.transmit(encodeConsecutiveFrame(c.txSeq, chunk)); err != nil {
		c.finishWrite(err)
		return
	}
	c.txBuf = c.txBuf[len(chunk):]
	c.txSeq = nextSeq(c.txSeq)
	c.txBlocks++

	if len(c.txBuf) == 0 {
		c.pendingWrite.result <- nil
		c.pendingWrite = nil
		c.resetTx()
		return
	}

	if c.remoteBS > 0 && c.txBlocks >= c.remoteBS {
		c.txState = txWaitFC
		c.resetTxFCTimer()
		return
	}
	c.resetTxSTminTimer(c.remoteSTmin)
}

// transmit hands a frame to the network's shared outbound writer, enforcing
// N_As: the adapter must accept it before the configured timeout.
func (c *Connection) transmit(payload []byte) error {
	if c.cfg.PaddingByte != nil && len(payload) < 8 {
		padded := make([]byte, 8)
		copy(padded, payload)
		for i := len(payload); i < 8; i++ {
			padded[i] = *c.cfg.PaddingByte
		}
		payload = padded
	}

	f := canframe.Frame{ID: c.addr.TxID, Extended: c.addr.Extended, Len: uint8(len(payload))}
	copy(f.Data[:], payload)
	if err := f.Validate(); err != nil {
		return protocolErrorf("building outbound frame: %v", err)
	}

	timer := time.NewTimer(c.cfg.TimeoutAs)
	defer timer.Stop()
	select {
	case c.out <- f:
		return nil
	case <-timer.C:
		return transmitTimeoutError()
	case <-c.closed:
		return connectionClosedError()
	}
}

func stopAndDrain(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
