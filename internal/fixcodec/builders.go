package fixcodec

import (
	"fmt"
	"time"
)

// Header carries the identity and sequencing fields every outbound message
// needs; callers assemble one per message from session state.
type Header struct {
	SenderCompID string
	TargetCompID string
	MsgSeqNum    int
	SendingTime  time.Time
}

func (h Header) sendingTime() string {
	return SendingTime(h.SendingTime)
}

// LogonParams carries the fields needed to build a MsgType=A logon.
type LogonParams struct {
	Header
	HeartBtInt      int
	Username        string
	Secret          string
	ResetSeqNumFlag bool
}

// BuildLogon renders a Logon message in the exact field order spec.md
// §4.1 requires, computing the HMAC password inline.
func BuildLogon(p LogonParams) []byte {
	seq := fmt.Sprintf("%d", p.MsgSeqNum)
	sendingTime := p.sendingTime()
	password := SignPassword(p.Secret, sendingTime, MsgTypeLogon, seq, p.SenderCompID, p.TargetCompID, p.Username)

	reset := "N"
	if p.ResetSeqNumFlag {
		reset = "Y"
	}

	return Encode([]Field{
		{TagMsgType, MsgTypeLogon},
		{TagSenderCompID, p.SenderCompID},
		{TagTargetCompID, p.TargetCompID},
		{TagMsgSeqNum, seq},
		{TagSendingTime, sendingTime},
		{TagEncryptMethod, EncryptMethodNone},
		{TagHeartBtInt, fmt.Sprintf("%d", p.HeartBtInt)},
		{TagResetSeqNumFlag, reset},
		{TagUsername, p.Username},
		{TagPassword, password},
		{TagDefaultApplVerID, DefaultApplVerID},
	})
}

// BuildHeartbeat renders a MsgType=0, echoing TestReqID when answering a
// TestRequest (empty string omits the field).
func BuildHeartbeat(h Header, testReqID string) []byte {
	fields := []Field{
		{TagMsgType, MsgTypeHeartbeat},
		{TagSenderCompID, h.SenderCompID},
		{TagTargetCompID, h.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", h.MsgSeqNum)},
		{TagSendingTime, h.sendingTime()},
	}
	if testReqID != "" {
		fields = append(fields, Field{TagTestReqID, testReqID})
	}
	return Encode(fields)
}

// BuildTestRequest renders a MsgType=1 carrying a fresh TestReqID.
func BuildTestRequest(h Header, testReqID string) []byte {
	return Encode([]Field{
		{TagMsgType, MsgTypeTestRequest},
		{TagSenderCompID, h.SenderCompID},
		{TagTargetCompID, h.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", h.MsgSeqNum)},
		{TagSendingTime, h.sendingTime()},
		{TagTestReqID, testReqID},
	})
}

// BuildResendRequest renders a MsgType=2 requesting retransmission of the
// seq-num range [from, to].
func BuildResendRequest(h Header, from, to int) []byte {
	return Encode([]Field{
		{TagMsgType, MsgTypeResendRequest},
		{TagSenderCompID, h.SenderCompID},
		{TagTargetCompID, h.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", h.MsgSeqNum)},
		{TagSendingTime, h.sendingTime()},
		{7, fmt.Sprintf("%d", from)}, // BeginSeqNo
		{16, fmt.Sprintf("%d", to)},  // EndSeqNo
	})
}

// BuildLogout renders a MsgType=5, optionally carrying free text (tag 58).
func BuildLogout(h Header, text string) []byte {
	fields := []Field{
		{TagMsgType, MsgTypeLogout},
		{TagSenderCompID, h.SenderCompID},
		{TagTargetCompID, h.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", h.MsgSeqNum)},
		{TagSendingTime, h.sendingTime()},
	}
	if text != "" {
		fields = append(fields, Field{TagText, text})
	}
	return Encode(fields)
}

// MarketDataRequestParams carries the fields needed to build a MsgType=V.
type MarketDataRequestParams struct {
	Header
	MDReqID          string
	SubscriptionType string
	MarketDepth      int
	Symbol           string
}

// BuildMarketDataRequest renders a MarketDataRequest subscribing (or
// unsubscribing, or snapshotting) a single symbol.
func BuildMarketDataRequest(p MarketDataRequestParams) []byte {
	return Encode([]Field{
		{TagMsgType, MsgTypeMarketDataRequest},
		{TagSenderCompID, p.SenderCompID},
		{TagTargetCompID, p.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", p.MsgSeqNum)},
		{TagSendingTime, p.sendingTime()},
		{TagMDReqID, p.MDReqID},
		{TagSubscriptionRequestType, p.SubscriptionType},
		{TagMarketDepth, fmt.Sprintf("%d", p.MarketDepth)},
		{TagNoMDEntryTypes, "2"},
		{TagMDEntryType, MDEntryTypeBid},
		{TagMDEntryType, MDEntryTypeOffer},
		{TagNoRelatedSym, "1"},
		{TagSymbol, p.Symbol},
	})
}

// NewOrderParams carries the fields needed to build a MsgType=D.
type NewOrderParams struct {
	Header
	ClOrdID      string
	Symbol       string
	Side         string
	OrderQty     string
	OrdType      string
	Price        string
	HasPrice     bool
	TimeInForce  string
	PartyID      string
}

// BuildNewOrderSingle renders a NewOrderSingle in the exact field order
// spec.md §4.1 requires, with the party-ID triple last and ExecInst
// defaulted to Add-Liquidity-Only (6), per spec.md §4.5.
func BuildNewOrderSingle(p NewOrderParams) []byte {
	fields := []Field{
		{TagMsgType, MsgTypeNewOrderSingle},
		{TagSenderCompID, p.SenderCompID},
		{TagTargetCompID, p.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", p.MsgSeqNum)},
		{TagSendingTime, p.sendingTime()},
		{TagClOrdID, p.ClOrdID},
		{18, "6"}, // ExecInst = Add-Liquidity-Only
		{TagSymbol, p.Symbol},
		{TagSide, p.Side},
		{TagOrderQty, p.OrderQty},
		{TagOrdType, p.OrdType},
	}
	if p.HasPrice {
		fields = append(fields, Field{TagPrice, p.Price})
	}
	fields = append(fields,
		Field{TagTimeInForce, p.TimeInForce},
		Field{TagNoPartyIDs, "1"},
		Field{TagPartyID, p.PartyID},
		Field{TagPartyRole, "3"},
	)
	return Encode(fields)
}

// CancelReplaceParams carries the fields needed to build a MsgType=G. A
// cancel is modeled as a replace with OrderQty=0, per spec.md §4.5.
type CancelReplaceParams struct {
	Header
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Side        string
	OrderQty    string
}

// BuildOrderCancelReplace renders a CancelReplaceRequest. Callers pass
// OrderQty="0" to model a pure cancel.
func BuildOrderCancelReplace(p CancelReplaceParams) []byte {
	return Encode([]Field{
		{TagMsgType, MsgTypeOrderCancelReplace},
		{TagSenderCompID, p.SenderCompID},
		{TagTargetCompID, p.TargetCompID},
		{TagMsgSeqNum, fmt.Sprintf("%d", p.MsgSeqNum)},
		{TagSendingTime, p.sendingTime()},
		{TagClOrdID, p.ClOrdID},
		{TagOrigClOrdID, p.OrigClOrdID},
		{TagSymbol, p.Symbol},
		{TagSide, p.Side},
		{TagOrderQty, p.OrderQty},
	})
}
