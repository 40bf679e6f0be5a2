// Package transport implements the Transport Proxy (C6): a reconnecting
// raw TCP connection that frames inbound bytes on the FIX trailer and
// buffers outbound writes across reconnects, modeled on the teacher's
// WSFeed reconnect loop but retargeted from gorilla/websocket to a plain
// net.Conn since FIX over TCP carries no WebSocket framing of its own.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"truex-fixmd/internal/fixcodec"
)

const (
	baseBackoff  = time.Second
	maxBackoff   = 30 * time.Second
	maxAttempts  = 5
	writeTimeout = 10 * time.Second
	dialTimeout  = 10 * time.Second
)

// Proxy owns a single reconnecting TCP connection. Frames (complete,
// trailer-terminated byte slices) arrive on Inbound(); outbound frames are
// queued via Send, which buffers while no connection is established and
// flushes FIFO once one comes up.
type Proxy struct {
	addr   string
	logger *slog.Logger

	connMu sync.Mutex
	conn   net.Conn

	writeMu  sync.Mutex
	pending  [][]byte
	inbound  chan []byte
	onUp     func() error
	onDown   func(error)
}

// New constructs a Proxy dialing addr (host:port). onUp is invoked once a
// connection is established and ready for writes — typically
// Session.OnTransportUp. onDown is invoked whenever the connection drops,
// before a reconnect attempt; it receives the error that caused the drop.
func New(addr string, logger *slog.Logger, onUp func() error, onDown func(error)) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		addr:    addr,
		logger:  logger.With("component", "transport"),
		inbound: make(chan []byte, 256),
		onUp:    onUp,
		onDown:  onDown,
	}
}

// Inbound returns the channel of decoded frame byte-slices (trailer
// included) read off the wire.
func (p *Proxy) Inbound() <-chan []byte {
	return p.inbound
}

// Send either writes frame immediately, if connected, or buffers it for
// flush once a connection comes up.
func (p *Proxy) Send(frame []byte) error {
	p.connMu.Lock()
	conn := p.conn
	p.connMu.Unlock()

	if conn == nil {
		p.writeMu.Lock()
		p.pending = append(p.pending, frame)
		p.writeMu.Unlock()
		return nil
	}
	return p.write(conn, frame)
}

func (p *Proxy) write(conn net.Conn, frame []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := conn.Write(frame)
	return err
}

func (p *Proxy) flushPending(conn net.Conn) error {
	p.writeMu.Lock()
	pending := p.pending
	p.pending = nil
	p.writeMu.Unlock()

	for _, frame := range pending {
		if err := p.write(conn, frame); err != nil {
			return err
		}
	}
	return nil
}

// Run dials and maintains the connection with exponential backoff (1s up
// to 30s, capped at maxAttempts consecutive failures) until ctx is
// cancelled or the attempt budget is exhausted, at which point Run returns
// a terminal error for the supervisor to act on.
func (p *Proxy) Run(ctx context.Context) error {
	backoff := baseBackoff
	attempts := 0

	for {
		err := p.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Any error other than a failed dial means a connection had come
		// up, so the consecutive-failure count and backoff start over.
		var opErr *net.OpError
		if !errors.As(err, &opErr) || opErr.Op != "dial" {
			attempts = 0
			backoff = baseBackoff
		}

		attempts++
		if p.onDown != nil {
			p.onDown(err)
		}
		p.logger.Warn("transport disconnected, reconnecting", "error", err, "backoff", backoff, "attempt", attempts)

		if attempts >= maxAttempts {
			return fmt.Errorf("transport: exceeded %d reconnect attempts: %w", maxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (p *Proxy) connectAndRead(ctx context.Context) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	p.connMu.Lock()
	p.conn = conn
	p.connMu.Unlock()

	defer func() {
		p.connMu.Lock()
		conn.Close()
		p.conn = nil
		p.connMu.Unlock()
	}()

	if err := p.flushPending(conn); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if p.onUp != nil {
		if err := p.onUp(); err != nil {
			return fmt.Errorf("on-up hook: %w", err)
		}
	}

	p.logger.Info("transport connected", "addr", p.addr)

	reader := bufio.NewReaderSize(conn, 64*1024)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame, err := readFrame(reader)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		select {
		case p.inbound <- frame:
		default:
			p.logger.Warn("inbound channel full, dropping frame")
		}
	}
}

// readFrame reads bytes until it has consumed a complete FIX frame: the
// BeginString/BodyLength header, the declared number of body bytes, and
// the trailing CheckSum field. It buffers a partial frame across
// successive Read calls the same way the teacher's WSFeed read loop
// buffers partial WebSocket frames, except here framing is our own
// responsibility rather than the gorilla/websocket library's.
func readFrame(r *bufio.Reader) ([]byte, error) {
	beginTag := fmt.Sprintf("%d=", fixcodec.TagBeginString)
	prefix, err := r.ReadString(fixcodec.SOH)
	if err != nil {
		return nil, err
	}
	if len(prefix) < len(beginTag) || prefix[:len(beginTag)] != beginTag {
		return nil, fmt.Errorf("transport: frame does not start with tag %d", fixcodec.TagBeginString)
	}

	bodyLenField, err := r.ReadString(fixcodec.SOH)
	if err != nil {
		return nil, err
	}
	bodyLenTag := fmt.Sprintf("%d=", fixcodec.TagBodyLength)
	if len(bodyLenField) < len(bodyLenTag) || bodyLenField[:len(bodyLenTag)] != bodyLenTag {
		return nil, fmt.Errorf("transport: expected tag %d after BeginString", fixcodec.TagBodyLength)
	}
	var bodyLen int
	if _, err := fmt.Sscanf(bodyLenField[len(bodyLenTag):], "%d", &bodyLen); err != nil {
		return nil, fmt.Errorf("transport: bad body length: %w", err)
	}

	body := make([]byte, bodyLen)
	if _, err := readFull(r, body); err != nil {
		return nil, err
	}

	trailer, err := r.ReadString(fixcodec.SOH)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(prefix)+len(bodyLenField)+len(body)+len(trailer))
	frame = append(frame, prefix...)
	frame = append(frame, bodyLenField...)
	frame = append(frame, body...)
	frame = append(frame, trailer...)
	return frame, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
