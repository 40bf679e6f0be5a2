package fixcodec

// Tag is a FIX field number.
type Tag int

// Standard FIX tags used by the Core. Grouped by the section of a message
// they typically appear in.
const (
	TagBeginString    Tag = 8
	TagBodyLength     Tag = 9
	TagCheckSum       Tag = 10
	TagClOrdID        Tag = 11
	TagCumQty         Tag = 14
	TagMsgSeqNum      Tag = 34
	TagMsgType        Tag = 35
	TagNewSeqNo       Tag = 36
	TagExecID         Tag = 17
	TagOrderID        Tag = 37
	TagOrderQty       Tag = 38
	TagOrdStatus      Tag = 39
	TagOrdType        Tag = 40
	TagOrigClOrdID    Tag = 41
	TagAvgPx          Tag = 6
	TagLastPx         Tag = 31
	TagLastShares     Tag = 32
	TagPrice          Tag = 44
	TagRefSeqNum      Tag = 45
	TagSenderCompID   Tag = 49
	TagSendingTime    Tag = 52
	TagSide           Tag = 54
	TagSymbol         Tag = 55
	TagTargetCompID   Tag = 56
	TagText           Tag = 58
	TagTimeInForce    Tag = 59
	TagTransactTime   Tag = 60
	TagEncryptMethod  Tag = 98
	TagOrdRejReason   Tag = 103
	TagHeartBtInt     Tag = 108
	TagTestReqID      Tag = 112
	TagGapFillFlag    Tag = 123
	TagLeavesQty      Tag = 151
	TagExecType       Tag = 150
	TagResetSeqNumFlag Tag = 141
	TagNoRelatedSym   Tag = 146
	TagCxlRejReason   Tag = 102
	TagCxlRejResponseTo Tag = 434

	// Market-data tags.
	TagMDReqID                 Tag = 262
	TagSubscriptionRequestType Tag = 263
	TagMarketDepth             Tag = 264
	TagMDUpdateType            Tag = 265
	TagNoMDEntryTypes          Tag = 267
	TagNoMDEntries             Tag = 268
	TagMDEntryType             Tag = 269
	TagMDEntryPx               Tag = 270
	TagMDEntrySize             Tag = 271
	TagMDEntryTime             Tag = 273
	TagMDUpdateAction          Tag = 279
	TagMDReqRejReason          Tag = 281
	TagMDPriceLevel            Tag = 1023

	// Reject tags.
	TagRefTagID            Tag = 371
	TagRefMsgType          Tag = 372
	TagSessionRejectReason Tag = 373
	TagBusinessRejectReason Tag = 380

	// Party-ID triple (order entry).
	TagNoPartyIDs Tag = 453
	TagPartyID    Tag = 448
	TagPartyRole  Tag = 452

	// Authentication.
	TagUsername         Tag = 553
	TagPassword         Tag = 554
	TagDefaultApplVerID Tag = 1137

	// Coinbase-style aggressor-side extension tag used by TrueX-shaped
	// trade entries.
	TagAggressorSide Tag = 2446
)

// Message types (tag 35).
const (
	MsgTypeLogon                 = "A"
	MsgTypeHeartbeat             = "0"
	MsgTypeTestRequest           = "1"
	MsgTypeResendRequest         = "2"
	MsgTypeReject                = "3"
	MsgTypeSequenceReset         = "4"
	MsgTypeLogout                = "5"
	MsgTypeNewOrderSingle        = "D"
	MsgTypeOrderCancelReplace    = "G"
	MsgTypeExecutionReport       = "8"
	MsgTypeOrderCancelReject     = "9"
	MsgTypeMarketDataRequest     = "V"
	MsgTypeMarketDataSnapshot    = "W"
	MsgTypeMarketDataIncremental = "X"
	MsgTypeMarketDataReject      = "Y"
)

// Side values (tag 54).
const (
	SideBuy  = "1"
	SideSell = "2"
)

// OrdType values (tag 40).
const (
	OrdTypeMarket = "1"
	OrdTypeLimit  = "2"
)

// OrdStatus values (tag 39).
const (
	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusCanceled        = "4"
	OrdStatusRejected        = "8"
	OrdStatusPendingNew      = "A"
	OrdStatusExpired         = "C"
)

// ExecType values (tag 150).
const (
	ExecTypeRejected = "8"
)

// MDEntryType values (tag 269).
const (
	MDEntryTypeBid   = "0"
	MDEntryTypeOffer = "1"
	MDEntryTypeTrade = "2"
)

// MDUpdateAction values (tag 279), incremental refresh entries only.
const (
	MDUpdateActionNew    = "0"
	MDUpdateActionChange = "1"
	MDUpdateActionDelete = "2"
)

// SubscriptionRequestType values (tag 263).
const (
	SubscriptionRequestTypeSnapshot    = "0"
	SubscriptionRequestTypeSubscribe   = "1"
	SubscriptionRequestTypeUnsubscribe = "2"
)

// Protocol-level constants.
const (
	BeginString       = "FIXT.1.1"
	DefaultApplVerID  = "FIX.5.0SP2"
	EncryptMethodNone = "0"
	SendingTimeLayout = "20060102-15:04:05.000"
)

// GeneralBodyOrder is the field order every non-order message body must
// follow (header fields through the authentication fields).
var GeneralBodyOrder = []Tag{
	TagMsgType, TagSenderCompID, TagTargetCompID, TagMsgSeqNum, TagSendingTime,
	TagEncryptMethod, TagHeartBtInt, TagResetSeqNumFlag, TagUsername, TagPassword,
	TagDefaultApplVerID,
}

// NewOrderSingleOrder is the field order a MsgType=D body must follow,
// including the party-ID triple in its required position.
var NewOrderSingleOrder = []Tag{
	TagMsgType, TagSenderCompID, TagTargetCompID, TagMsgSeqNum, TagSendingTime,
	TagClOrdID, Tag(18) /* ExecInst */, TagSymbol, TagSide, TagOrderQty, TagOrdType,
	TagPrice, TagTimeInForce, TagNoPartyIDs, TagPartyID, TagPartyRole,
}
