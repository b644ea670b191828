package dtu

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/ohand/dtugateway/internal/protocol"
)

// transportEventKind distinguishes the events a Transport delivers to the
// executor goroutine.
type transportEventKind int

const (
	eventConnected transportEventKind = iota
	eventDisconnected
	eventError
	eventFrame
)

type transportEvent struct {
	kind  transportEventKind
	frame protocol.DecodedFrame
	err   error
}

// Transport owns the TCP socket to the DTU. Dial is asynchronous: it
// spawns a goroutine that connects, then reads length-prefixed frames in a
// loop, delivering every outcome as a transportEvent on Events(). This is
// the Go realization of the source's AsyncClient callback API (§9): one
// goroutine plays the role the source's event loop plays, so the rest of
// the client never touches the socket directly.
type Transport struct {
	events      chan transportEvent
	conn        net.Conn
	dialTimeout time.Duration
	validateCRC bool
}

// NewTransport creates a Transport. The caller must call Dial before using
// Write, and should drain Events continuously.
func NewTransport() *Transport {
	return &Transport{
		events:      make(chan transportEvent, 16),
		dialTimeout: 5 * time.Second,
	}
}

// Events returns the channel the executor selects on.
func (t *Transport) Events() <-chan transportEvent { return t.events }

// Dial connects to addr in the background; the result is delivered as an
// eventConnected or eventError on Events().
func (t *Transport) Dial(addr string) {
	go func() {
		conn, err := net.DialTimeout("tcp", addr, t.dialTimeout)
		if err != nil {
			t.events <- transportEvent{kind: eventError, err: fmt.Errorf("dtu: dial %s: %w", addr, err)}
			return
		}
		t.conn = conn
		t.events <- transportEvent{kind: eventConnected}
		t.readLoop(conn)
	}()
}

// readLoop buffers inbound bytes and splits them into frames on the
// header's length field, since a stream socket may deliver a response
// split across reads or coalesced with the next keep-alive byte (SPEC_FULL
// §4.8).
func (t *Transport) readLoop(conn net.Conn) {
	r := bufio.NewReaderSize(conn, 4096)
	for {
		header, err := r.Peek(protocol.HeaderSize)
		if err != nil {
			t.deliverClose(err)
			return
		}
		length, err := protocol.PeekLength(header)
		if err != nil {
			t.events <- transportEvent{kind: eventError, err: err}
			t.deliverClose(err)
			return
		}
		raw := make([]byte, length)
		if _, err := readFull(r, raw); err != nil {
			t.deliverClose(err)
			return
		}
		frame, err := protocol.Decode(raw, t.validateCRC)
		if err != nil {
			t.events <- transportEvent{kind: eventError, err: err}
			continue
		}
		t.events <- transportEvent{kind: eventFrame, frame: frame}
	}
}

func (t *Transport) deliverClose(err error) {
	if err != nil {
		t.events <- transportEvent{kind: eventError, err: fmt.Errorf("dtu: connection closed: %w", err)}
	}
	t.events <- transportEvent{kind: eventDisconnected}
}

// readFull is bufio-compatible io.ReadFull, avoiding an io import for one
// call site.
func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Write sends a pre-encoded frame. It is only ever called from the
// executor goroutine, which is the sole owner of t.conn once Dial's
// eventConnected has been observed.
func (t *Transport) Write(frame []byte) error {
	if t.conn == nil {
		return fmt.Errorf("dtu: write before connect")
	}
	_, err := t.conn.Write(frame)
	return err
}

// Close tears down the socket. Safe to call even if never connected.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
