// Package engine is the central orchestrator of the FIX market-data Core.
//
// It wires together all subsystems:
//
//  1. Transport (C6) owns the reconnecting TCP connection to the FIX gateway.
//  2. Session (C2) drives the state machine over transport's inbound frames
//     and outbound Send, answering heartbeats/TestRequests and resubscribing
//     on reconnect.
//  3. One internal/book.Book per symbol (C4), fed both by FIX market data
//     (C3's demux, dispatched by the supervisor reading application-message
//     frames) and, optionally, a non-FIX Kraken ingress feed.
//  4. internal/orders.Manager (C5) tracks the order lifecycle from
//     execution reports, also dispatched by the supervisor.
//  5. A periodic checkpoint loop persists session sequence numbers and the
//     order index through the opaque kvstore boundary.
//
// Lifecycle: New() → Start() → [runs until cancelled] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"truex-fixmd/internal/book"
	"truex-fixmd/internal/config"
	"truex-fixmd/internal/events"
	"truex-fixmd/internal/fixcodec"
	"truex-fixmd/internal/ingress"
	"truex-fixmd/internal/kvstore"
	"truex-fixmd/internal/marketdata"
	"truex-fixmd/internal/orders"
	"truex-fixmd/internal/session"
	"truex-fixmd/internal/transport"

	"github.com/shopspring/decimal"
)

const checkpointInterval = 30 * time.Second

// Engine orchestrates every component of the Core. It owns the lifecycle
// of all goroutines and the opaque storage boundary.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	proxy   *transport.Proxy
	session *session.Session
	orders  *orders.Manager
	store   kvstore.Store
	ingress *ingress.Feed

	booksMu sync.RWMutex
	books   map[string]*book.Book

	events chan events.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components, restoring whatever order
// index and session checkpoint the opaque store already holds.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	st, err := kvstore.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	orderMgr := orders.NewManager(logger)
	if err := orderMgr.Restore(st); err != nil {
		logger.Warn("failed to restore order index from checkpoint", "error", err)
	}

	evCh := make(chan events.Event, 256)

	bookCfg := book.Config{
		BufferSize:            cfg.Book.BufferSize,
		InversionTolerancePct: decimal.NewFromFloat(cfg.Book.InversionTolerancePct),
		VolatilityThreshold:   decimal.NewFromFloat(cfg.Book.VolatilityThreshold),
	}

	books := make(map[string]*book.Book)
	for _, pair := range cfg.Ingress.Pairs {
		books[pair] = book.New(pair, bookCfg, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
		orders: orderMgr,
		store:  st,
		books:  books,
		events: evCh,
		ctx:    ctx,
		cancel: cancel,
	}

	sessCfg := session.Config{
		SenderCompID:         cfg.FIX.SenderCompID,
		TargetCompID:         cfg.FIX.TargetCompID,
		Username:             cfg.FIX.Username,
		Secret:               cfg.FIX.Secret,
		HeartBtIntervalS:     cfg.FIX.HeartBtIntervalS,
		LogonTimeout:         cfg.FIX.LogonTimeout(),
		ReconnectBaseMS:      cfg.FIX.ReconnectBaseMS,
		ReconnectCapMS:       cfg.FIX.ReconnectCapMS,
		ReconnectMaxAttempts: cfg.FIX.ReconnectMaxAttempts,
	}

	e.proxy = transport.New(cfg.FIX.Addr(), logger, func() error {
		return e.session.OnTransportUp()
	}, func(err error) {
		logger.Warn("transport reported disconnect", "error", err)
	})
	e.session = session.New(sessCfg, e.proxy.Send, logger, evCh)

	if _, err := e.session.LoadCheckpoint(st); err != nil {
		logger.Warn("failed to restore session checkpoint", "error", err)
	}

	if cfg.Ingress.Enabled {
		e.ingress = ingress.New(cfg.Ingress.URL, books, logger)
	}

	return e, nil
}

// Start launches all background goroutines: the transport proxy, the
// session's timer loop, the optional ingress feed, and the checkpoint
// loop. Inbound application-message frames (market data, execution
// reports) are dispatched by dispatchApplicationFrames.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.proxy.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("transport proxy terminated", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchApplicationFrames()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case now := <-ticker.C:
				if err := e.session.CheckTimers(now); err != nil {
					e.logger.Warn("session timer check failed", "error", err)
				}
			}
		}
	}()

	if e.ingress != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.ingress.Run(e.ctx); err != nil && e.ctx.Err() == nil {
				e.logger.Error("ingress feed terminated", "error", err)
			}
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.checkpointLoop()
	}()

	return nil
}

// dispatchApplicationFrames reads decoded raw frames off the transport and
// routes session-level traffic to Session.HandleFrame, market data to
// internal/marketdata, and execution reports to internal/orders.
func (e *Engine) dispatchApplicationFrames() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case frame, ok := <-e.proxy.Inbound():
			if !ok {
				return
			}
			e.routeFrame(frame)
		}
	}
}

func (e *Engine) routeFrame(frame []byte) {
	msg, err := fixcodec.Decode(frame)
	if err != nil {
		e.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch msg.MsgType() {
	case fixcodec.MsgTypeLogon, fixcodec.MsgTypeHeartbeat, fixcodec.MsgTypeTestRequest,
		fixcodec.MsgTypeSequenceReset, fixcodec.MsgTypeLogout, fixcodec.MsgTypeResendRequest:
		if err := e.session.HandleFrame(frame); err != nil {
			e.logger.Warn("session rejected frame", "error", err)
		}

	case fixcodec.MsgTypeMarketDataSnapshot:
		e.handleSnapshot(msg)

	case fixcodec.MsgTypeMarketDataIncremental:
		e.handleIncremental(msg)

	case fixcodec.MsgTypeMarketDataReject:
		reject := marketdata.ParseReject(msg)
		var symbol string
		for _, sub := range e.session.Subscriptions() {
			if sub.MDReqID == reject.MDReqID {
				symbol = sub.Symbol
				e.session.RemoveSubscription(sub.Symbol)
				break
			}
		}
		e.emitEvent(events.SubscriptionRejected(symbol, reject.Reason))

	case fixcodec.MsgTypeExecutionReport:
		e.handleExecutionReport(msg)

	default:
		e.logger.Debug("ignoring unrouted message type", "msg_type", msg.MsgType())
	}
}

func (e *Engine) handleSnapshot(msg *fixcodec.Message) {
	update, _, err := marketdata.ParseSnapshot(msg)
	if err != nil {
		e.logger.Warn("parse market data snapshot", "error", err)
		return
	}
	symbol, _ := msg.Get(fixcodec.TagSymbol)
	bk := e.bookFor(symbol)
	if bk == nil {
		return
	}
	if err := bk.ApplyUpdate(update); err != nil {
		e.logger.Warn("apply snapshot", "symbol", symbol, "error", err)
	}
}

func (e *Engine) handleIncremental(msg *fixcodec.Message) {
	deltas, err := marketdata.ParseIncremental(msg)
	if err != nil {
		e.logger.Warn("parse market data incremental", "error", err)
		return
	}
	symbol, _ := msg.Get(fixcodec.TagSymbol)
	bk := e.bookFor(symbol)
	if bk == nil {
		return
	}
	for _, d := range deltas {
		if err := bk.ApplyDelta(d); err != nil {
			e.logger.Warn("apply delta", "symbol", symbol, "error", err)
		}
	}
}

func (e *Engine) handleExecutionReport(msg *fixcodec.Message) {
	clOrdID, _ := msg.Get(fixcodec.TagClOrdID)
	ordStatus, _ := msg.Get(fixcodec.TagOrdStatus)
	text, _ := msg.Get(fixcodec.TagText)

	if ordStatus == fixcodec.OrdStatusRejected {
		order, fatal, err := e.orders.Reject(clOrdID, text)
		if err != nil {
			e.logger.Warn("reject unknown order", "cl_ord_id", clOrdID, "error", err)
			return
		}
		e.emitEvent(events.OrderRejected(order, text))
		if fatal {
			e.logger.Error("fatal auth error surfaced via order reject", "text", text)
		}
		return
	}

	orderID, _ := msg.Get(fixcodec.TagOrderID)
	execType, _ := msg.Get(fixcodec.TagExecType)
	execID, _ := msg.Get(fixcodec.TagExecID)
	er := orders.ExecutionReport{
		ClOrdID:   clOrdID,
		OrderID:   orderID,
		OrdStatus: ordStatus,
		ExecType:  execType,
		ExecID:    execID,
	}
	if v, ok := msg.Get(fixcodec.TagCumQty); ok {
		er.CumQty = decimalOrZero(v)
	}
	if v, ok := msg.Get(fixcodec.TagLeavesQty); ok {
		er.LeavesQty = decimalOrZero(v)
	}
	if v, ok := msg.Get(fixcodec.TagLastShares); ok {
		er.LastQty = decimalOrZero(v)
	}
	if v, ok := msg.Get(fixcodec.TagLastPx); ok {
		er.LastPx = decimalOrZero(v)
	}
	if v, ok := msg.Get(fixcodec.TagAvgPx); ok {
		er.AvgPx = decimalOrZero(v)
	}

	order, fill, err := e.orders.ApplyExecutionReport(er)
	if err != nil {
		e.logger.Warn("apply execution report", "cl_ord_id", clOrdID, "error", err)
		return
	}
	e.emitEvent(events.OrderAck(order))
	if fill != nil {
		e.emitEvent(events.OrderFilled(order, fill))
	}
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (e *Engine) bookFor(symbol string) *book.Book {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	return e.books[symbol]
}

func (e *Engine) emitEvent(ev events.Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("dropping event, consumer channel full", "kind", ev.Kind)
	}
}

// Events returns the consumer-facing event stream.
func (e *Engine) Events() <-chan events.Event { return e.events }

// Session returns the underlying session, for callers that need direct
// Subscribe access.
func (e *Engine) Session() *session.Session { return e.session }

// Orders returns the order lifecycle manager.
func (e *Engine) Orders() *orders.Manager { return e.orders }

// Book returns the order book for symbol, if tracked.
func (e *Engine) Book(symbol string) (*book.Book, bool) {
	bk := e.bookFor(symbol)
	return bk, bk != nil
}

func (e *Engine) checkpointLoop() {
	ticker := time.NewTicker(checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if err := e.session.SaveCheckpoint(e.store); err != nil {
				e.logger.Warn("save session checkpoint", "error", err)
			}
			if err := e.orders.Checkpoint(e.store); err != nil {
				e.logger.Warn("save order checkpoint", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down: cancels all contexts, persists a final
// checkpoint, waits for goroutines, and closes the store.
func (e *Engine) Stop() {
	e.logger.Info("shutting down")
	e.cancel()
	e.wg.Wait()

	if err := e.session.SaveCheckpoint(e.store); err != nil {
		e.logger.Error("failed to save final session checkpoint", "error", err)
	}
	if err := e.orders.Checkpoint(e.store); err != nil {
		e.logger.Error("failed to save final order checkpoint", "error", err)
	}
	if e.ingress != nil {
		e.ingress.Close()
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("failed to close store", "error", err)
	}

	e.logger.Info("shutdown complete")
}
