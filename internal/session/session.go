// Package session implements the FIX session state machine (C2):
// Disconnected/Connecting/LogonSent/LoggedIn/LogoutInProgress transitions,
// sequence number bookkeeping, heartbeat/TestRequest timers, fatal-auth
// detection, and automatic resubscription after reconnect.
//
// All mutation is serialized through Session's mutex, standing in for the
// single owner task spec.md §5 requires: outbound emissions (Emit) and
// inbound frame handling (HandleFrame) never race on sequence numbers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"truex-fixmd/internal/events"
	"truex-fixmd/internal/fixcodec"
	"truex-fixmd/pkg/types"
)

// ErrFatalAuth is surfaced when a Logout's free text contains "invalid
// client" (case-insensitive): a configuration error the supervisor must
// not retry past.
var ErrFatalAuth = errors.New("session: fatal authentication error")

// ErrSequenceGap is surfaced (to the log, not the supervisor) when an
// inbound gap is detected and a ResendRequest has been issued.
var ErrSequenceGap = errors.New("session: inbound sequence gap")

// Config mirrors the configuration keys spec.md §6 names.
type Config struct {
	SenderCompID         string
	TargetCompID         string
	Username             string
	Secret               string
	HeartBtIntervalS     int
	LogonTimeout         time.Duration
	ReconnectBaseMS      int
	ReconnectCapMS       int
	ReconnectMaxAttempts int
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		HeartBtIntervalS:     30,
		LogonTimeout:         5 * time.Second,
		ReconnectBaseMS:      1000,
		ReconnectCapMS:       30000,
		ReconnectMaxAttempts: 5,
	}
}

// Sender delivers an encoded frame to the transport. Implemented by
// internal/transport in production and by a fake in tests.
type Sender func(frame []byte) error

// Session owns the state machine for a single FIX connection.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
	send   Sender
	events chan events.Event

	state               types.SessionState
	outboundSeqNum      int
	inboundSeqExpected  int
	lastHeartbeatSent   time.Time
	lastInboundActivity time.Time
	logonDeadline       time.Time
	testReqPending      string
	testReqDeadline     time.Time
	fatalSurfaced       bool
	everLoggedIn        bool

	subscriptions map[string]*types.Subscription
}

// New constructs a Session. events, if non-nil, receives a non-blocking
// best-effort stream of consumer-facing Events; a full channel drops the
// event rather than block the owner task.
func New(cfg Config, send Sender, logger *slog.Logger, eventsCh chan events.Event) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:           cfg,
		logger:        logger.With("component", "session"),
		send:          send,
		events:        eventsCh,
		state:         types.SessionDisconnected,
		subscriptions: make(map[string]*types.Subscription),
	}
}

// State returns the current state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OutboundSeqNum returns the next sequence number that will be assigned.
func (s *Session) OutboundSeqNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outboundSeqNum
}

func (s *Session) emitEvent(e events.Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn("dropping event, consumer channel full", "kind", e.Kind)
	}
}

// header allocates the next outbound sequence number and returns a
// fixcodec.Header for it. Must be called with mu held.
func (s *Session) header() fixcodec.Header {
	h := fixcodec.Header{
		SenderCompID: s.cfg.SenderCompID,
		TargetCompID: s.cfg.TargetCompID,
		MsgSeqNum:    s.outboundSeqNum,
		SendingTime:  time.Now(),
	}
	s.outboundSeqNum++
	s.lastHeartbeatSent = h.SendingTime
	return h
}

// OnTransportUp drives LogonSent entry: resets sequence numbers to 1 and
// emits a Logon carrying ResetSeqNumFlag=Y, per spec.md §4.2.
func (s *Session) OnTransportUp() error {
	s.mu.Lock()
	s.state = types.SessionConnecting
	s.outboundSeqNum = 1
	s.inboundSeqExpected = 1
	h := s.header()
	s.state = types.SessionLogonSent
	s.logonDeadline = time.Now().Add(s.cfg.LogonTimeout)
	frame := fixcodec.BuildLogon(fixcodec.LogonParams{
		Header:          h,
		HeartBtInt:      s.cfg.HeartBtIntervalS,
		Username:        s.cfg.Username,
		Secret:          s.cfg.Secret,
		ResetSeqNumFlag: true,
	})
	s.mu.Unlock()

	return s.send(frame)
}

// Subscriptions returns the currently active subscriptions, for the
// supervisor to drive a resubscribe after reconnect.
func (s *Session) Subscriptions() []*types.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out
}

// Subscribe emits a MarketDataRequest for symbol and records the
// subscription so it can be replayed after a reconnect.
func (s *Session) Subscribe(symbol string, depth int) (*types.Subscription, error) {
	s.mu.Lock()
	if s.state != types.SessionLoggedIn {
		s.mu.Unlock()
		return nil, fmt.Errorf("session: cannot subscribe while state=%s", s.state)
	}
	h := s.header()
	mdReqID := uuid.NewString()
	sub := &types.Subscription{
		MDReqID:          mdReqID,
		Symbol:           symbol,
		RequestedDepth:   depth,
		SubscriptionType: fixcodec.SubscriptionRequestTypeSubscribe,
		StartedAt:        time.Now(),
	}
	s.subscriptions[symbol] = sub
	frame := fixcodec.BuildMarketDataRequest(fixcodec.MarketDataRequestParams{
		Header:           h,
		MDReqID:          mdReqID,
		SubscriptionType: fixcodec.SubscriptionRequestTypeSubscribe,
		MarketDepth:      depth,
		Symbol:           symbol,
	})
	s.mu.Unlock()

	if err := s.send(frame); err != nil {
		return nil, err
	}
	return sub, nil
}

// ResubscribeAll replays every tracked subscription. handleLogonAck calls
// it, in its own goroutine, on every Logon ack after the first, i.e. once a
// reconnect has returned the session to LoggedIn.
func (s *Session) ResubscribeAll() error {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.subscriptions))
	depths := make(map[string]int, len(s.subscriptions))
	for sym, sub := range s.subscriptions {
		symbols = append(symbols, sym)
		depths[sym] = sub.RequestedDepth
	}
	s.mu.Unlock()

	for _, sym := range symbols {
		if _, err := s.Subscribe(sym, depths[sym]); err != nil {
			return err
		}
	}
	return nil
}

// RemoveSubscription drops a subscription, e.g. on a MarketDataRequestReject.
func (s *Session) RemoveSubscription(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, symbol)
}

// Emit allocates the next sequence number, builds a frame via build, and
// sends it. build receives the allocated Header. Used by the engine's
// order entry points (PlaceOrder, CancelOrder, ReplaceOrder) so
// ClOrdID-bearing messages still flow through the session's single
// sequencing point.
func (s *Session) Emit(build func(fixcodec.Header) []byte) ([]byte, error) {
	s.mu.Lock()
	h := s.header()
	frame := build(h)
	s.mu.Unlock()

	if err := s.send(frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// HandleFrame decodes and dispatches a single inbound frame. Framing
// errors are logged and swallowed; the session stays up.
func (s *Session) HandleFrame(raw []byte) error {
	msg, err := fixcodec.Decode(raw)
	if err != nil {
		s.logger.Warn("dropping malformed frame", "error", err)
		return nil
	}

	s.mu.Lock()
	s.lastInboundActivity = time.Now()
	// Any inbound traffic after a TestRequest was sent for silence counts
	// as the peer being alive again; re-arm the normal heartbeat-interval
	// check instead of staying latched on the original deadline.
	s.testReqPending = ""
	if seqStr, ok := msg.Get(fixcodec.TagMsgSeqNum); ok {
		if seq, convErr := strconv.Atoi(seqStr); convErr == nil {
			if s.inboundSeqExpected != 0 && seq > s.inboundSeqExpected {
				gap := s.buildResendRequest(seq)
				s.mu.Unlock()
				s.logger.Warn("inbound sequence gap detected", "expected", s.inboundSeqExpected, "got", seq)
				if sendErr := s.send(gap); sendErr != nil {
					return sendErr
				}
				return ErrSequenceGap
			}
			s.inboundSeqExpected = seq + 1
		}
	}
	msgType := msg.MsgType()
	s.mu.Unlock()

	switch msgType {
	case fixcodec.MsgTypeLogon:
		return s.handleLogonAck()
	case fixcodec.MsgTypeTestRequest:
		return s.handleTestRequest(msg)
	case fixcodec.MsgTypeHeartbeat:
		return nil // inbound activity already recorded above
	case fixcodec.MsgTypeSequenceReset:
		return s.handleSequenceReset(msg)
	case fixcodec.MsgTypeLogout:
		return s.handleLogout(msg)
	default:
		return nil // application messages are routed by the supervisor, not here
	}
}

func (s *Session) buildResendRequest(gapSeq int) []byte {
	h := s.header()
	return fixcodec.BuildResendRequest(h, s.inboundSeqExpected, gapSeq-1)
}

func (s *Session) handleLogonAck() error {
	s.mu.Lock()
	s.state = types.SessionLoggedIn
	reconnect := s.everLoggedIn
	s.everLoggedIn = true
	s.mu.Unlock()
	s.emitEvent(events.Connected())

	if reconnect {
		// Resubscription does I/O (sends one MarketDataRequest per tracked
		// subscription); run it off the caller's goroutine so HandleFrame
		// (and the inbound-frame read loop behind it) never blocks on it.
		go func() {
			if err := s.ResubscribeAll(); err != nil {
				s.logger.Warn("resubscribe after reconnect failed", "error", err)
			}
		}()
	}
	return nil
}

func (s *Session) handleTestRequest(msg *fixcodec.Message) error {
	testReqID, _ := msg.Get(fixcodec.TagTestReqID)
	s.mu.Lock()
	h := s.header()
	s.mu.Unlock()
	return s.send(fixcodec.BuildHeartbeat(h, testReqID))
}

func (s *Session) handleSequenceReset(msg *fixcodec.Message) error {
	newSeqStr, ok := msg.Get(fixcodec.TagNewSeqNo)
	if !ok {
		return nil
	}
	newSeq, err := strconv.Atoi(newSeqStr)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	s.inboundSeqExpected = newSeq
	s.mu.Unlock()
	return nil
}

func (s *Session) handleLogout(msg *fixcodec.Message) error {
	text, _ := msg.Get(fixcodec.TagText)

	s.mu.Lock()
	s.state = types.SessionDisconnected
	fatal := strings.Contains(strings.ToLower(text), "invalid client")
	alreadySurfaced := s.fatalSurfaced
	if fatal {
		s.fatalSurfaced = true
	}
	s.mu.Unlock()

	if fatal {
		if !alreadySurfaced {
			s.emitEvent(events.FatalAuthError(text))
		}
		return fmt.Errorf("%w: %s", ErrFatalAuth, text)
	}
	s.emitEvent(events.Disconnected(text))
	return nil
}

// CheckTimers evaluates heartbeat and TestRequest deadlines against now,
// emitting a Heartbeat, a TestRequest, or reporting a dead connection.
// Called periodically by Run.
func (s *Session) CheckTimers(now time.Time) error {
	s.mu.Lock()
	if s.state != types.SessionLoggedIn && s.state != types.SessionLogonSent {
		s.mu.Unlock()
		return nil
	}
	if s.state == types.SessionLogonSent && now.After(s.logonDeadline) {
		s.state = types.SessionDisconnected
		s.mu.Unlock()
		return fmt.Errorf("session: logon timed out after %s", s.cfg.LogonTimeout)
	}

	interval := time.Duration(s.cfg.HeartBtIntervalS) * time.Second
	var heartbeatFrame []byte
	var testRequestFrame []byte
	var deadFrame bool

	if s.testReqPending != "" {
		if now.After(s.testReqDeadline) {
			deadFrame = true
		}
	} else if now.Sub(s.lastInboundActivity) > interval+interval/2 {
		testReqID := uuid.NewString()
		s.testReqPending = testReqID
		s.testReqDeadline = now.Add(interval)
		h := s.header()
		testRequestFrame = fixcodec.BuildTestRequest(h, testReqID)
	} else if now.Sub(s.lastHeartbeatSent) > interval {
		h := s.header()
		heartbeatFrame = fixcodec.BuildHeartbeat(h, "")
	}
	s.mu.Unlock()

	switch {
	case deadFrame:
		return fmt.Errorf("session: no TestRequest response within grace window, connection presumed dead")
	case testRequestFrame != nil:
		return s.send(testRequestFrame)
	case heartbeatFrame != nil:
		return s.send(heartbeatFrame)
	}
	return nil
}

// Run owns the session's periodic timer checks until ctx is cancelled.
// Inbound frames arrive over inbound; HandleFrame is invoked for each.
func (s *Session) Run(ctx context.Context, inbound <-chan []byte) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := s.HandleFrame(frame); err != nil && errors.Is(err, ErrFatalAuth) {
				return err
			}
		case now := <-ticker.C:
			if err := s.CheckTimers(now); err != nil {
				return err
			}
		}
	}
}
