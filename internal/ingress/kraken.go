// Package ingress implements the non-FIX market-data producer spec.md
// §4.4 allows: a duplex WebSocket connection to a Kraken-shaped public
// order-book channel, normalized and applied directly against an
// internal/book.Book.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"truex-fixmd/internal/book"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

type envelope struct {
	Pair       string          `json:"pair"`
	Bids       json.RawMessage `json:"bs,omitempty"`
	Asks       json.RawMessage `json:"as,omitempty"`
	BidUpdates json.RawMessage `json:"b,omitempty"`
	AskUpdates json.RawMessage `json:"a,omitempty"`
}

type subscribeMsg struct {
	Event        string   `json:"event"`
	Pair         []string `json:"pair"`
	Subscription struct {
		Name string `json:"name"`
	} `json:"subscription"`
}

// Feed streams a Kraken-shaped public order-book channel directly into
// the order-book registry it is constructed with; one Feed drives every
// pair in books over a single connection.
type Feed struct {
	url    string
	books  map[string]*book.Book
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
}

// New constructs a Feed. books maps each Kraken pair name (e.g.
// "XBT/USD") to the Book that pair's updates should be applied to.
func New(url string, books map[string]*book.Book, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		url:    url,
		books:  books,
		logger: logger.With("component", "ingress"),
	}
}

// Run connects and maintains the feed with auto-reconnect. Blocks until
// ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("ingress disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close closes the underlying connection, if any.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	for pair := range f.books {
		if err := f.subscribe(pair); err != nil {
			return fmt.Errorf("subscribe %s: %w", pair, err)
		}
	}

	f.logger.Info("ingress connected", "url", f.url, "pairs", len(f.books))

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(data)
	}
}

func (f *Feed) subscribe(pair string) error {
	msg := subscribeMsg{Event: "subscribe", Pair: []string{pair}}
	msg.Subscription.Name = "book"
	return f.writeJSON(msg)
}

func (f *Feed) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Debug("ignoring non-book ws message", "data", string(data))
		return
	}
	if env.Pair == "" {
		return
	}
	bk, ok := f.books[env.Pair]
	if !ok {
		f.logger.Debug("message for unsubscribed pair", "pair", env.Pair)
		return
	}

	raw := map[string]any{}
	decodeInto(raw, "bs", env.Bids)
	decodeInto(raw, "as", env.Asks)
	decodeInto(raw, "b", env.BidUpdates)
	decodeInto(raw, "a", env.AskUpdates)
	if len(raw) == 0 {
		return
	}

	update, err := book.Normalize("kraken-ws", raw)
	if err != nil {
		f.logger.Warn("normalize ingress payload", "pair", env.Pair, "error", err)
		return
	}
	if err := bk.ApplyUpdate(update); err != nil {
		f.logger.Warn("apply ingress update", "pair", env.Pair, "error", err)
	}
}

func decodeInto(raw map[string]any, key string, data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return
	}
	raw[key] = v
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("ingress: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("ingress: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
