package fixcodec

import (
	"strings"
	"testing"
	"time"
)

func mustDecode(t *testing.T, frame []byte) *Message {
	t.Helper()
	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return msg
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	sendingTime := time.Date(2025, 10, 6, 14, 30, 0, 0, time.UTC)
	frame := BuildLogon(LogonParams{
		Header: Header{
			SenderCompID: "CLI",
			TargetCompID: "TRUEX_UAT_OE",
			MsgSeqNum:    1,
			SendingTime:  sendingTime,
		},
		HeartBtInt:      30,
		Username:        "USER",
		Secret:          "shh",
		ResetSeqNumFlag: true,
	})

	msg := mustDecode(t, frame)
	if got := msg.MsgType(); got != MsgTypeLogon {
		t.Errorf("MsgType() = %q, want %q", got, MsgTypeLogon)
	}
	if got, _ := msg.Get(TagSenderCompID); got != "CLI" {
		t.Errorf("SenderCompID = %q, want CLI", got)
	}
	if got, _ := msg.Get(TagResetSeqNumFlag); got != "Y" {
		t.Errorf("ResetSeqNumFlag = %q, want Y", got)
	}
	if _, ok := msg.Get(TagPassword); !ok {
		t.Error("expected Password field to be present")
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	t.Parallel()

	frame := BuildHeartbeat(Header{SenderCompID: "A", TargetCompID: "B", MsgSeqNum: 2, SendingTime: time.Now()}, "")
	corrupted := append([]byte(nil), frame...)
	// Flip the last checksum digit.
	for i := len(corrupted) - 2; i >= 0; i-- {
		if corrupted[i] >= '0' && corrupted[i] <= '9' {
			if corrupted[i] == '9' {
				corrupted[i] = '0'
			} else {
				corrupted[i]++
			}
			break
		}
	}

	if _, err := Decode(corrupted); err == nil {
		t.Error("expected checksum mismatch error, got nil")
	}
}

func TestDecodeRejectsBadBodyLength(t *testing.T) {
	t.Parallel()

	frame := string(BuildHeartbeat(Header{SenderCompID: "A", TargetCompID: "B", MsgSeqNum: 1, SendingTime: time.Now()}, ""))
	corrupted := strings.Replace(frame, "9=", "9=999", 1)

	if _, err := Decode([]byte(corrupted)); err == nil {
		t.Error("expected body length mismatch error, got nil")
	}
}

func TestNewOrderSingleFieldOrder(t *testing.T) {
	t.Parallel()

	frame := BuildNewOrderSingle(NewOrderParams{
		Header:      Header{SenderCompID: "CLI", TargetCompID: "TRUEX_UAT_OE", MsgSeqNum: 5, SendingTime: time.Now()},
		ClOrdID:     "ORDER_001",
		Symbol:      "BTC-PYUSD",
		Side:        SideBuy,
		OrderQty:    "1.5",
		OrdType:     OrdTypeLimit,
		Price:       "100.25",
		HasPrice:    true,
		TimeInForce: "1",
		PartyID:     "client-party",
	})

	msg := mustDecode(t, frame)
	wantOrder := []Tag{
		TagMsgType, TagSenderCompID, TagTargetCompID, TagMsgSeqNum, TagSendingTime,
		TagClOrdID, 18, TagSymbol, TagSide, TagOrderQty, TagOrdType, TagPrice,
		TagTimeInForce, TagNoPartyIDs, TagPartyID, TagPartyRole,
	}
	if len(msg.Fields) != len(wantOrder) {
		t.Fatalf("field count = %d, want %d", len(msg.Fields), len(wantOrder))
	}
	for i, tag := range wantOrder {
		if msg.Fields[i].Tag != tag {
			t.Errorf("field[%d].Tag = %d, want %d", i, msg.Fields[i].Tag, tag)
		}
	}
}

func TestSignPasswordDeterministic(t *testing.T) {
	t.Parallel()

	a := SignPassword("secret", "20251006-14:30:00.000", MsgTypeLogon, "1", "CLI", "TRUEX_UAT_OE", "USER")
	b := SignPassword("secret", "20251006-14:30:00.000", MsgTypeLogon, "1", "CLI", "TRUEX_UAT_OE", "USER")
	if a != b {
		t.Error("SignPassword must be deterministic for identical inputs")
	}

	c := SignPassword("secret", "20251006-14:30:00.000", MsgTypeLogon, "2", "CLI", "TRUEX_UAT_OE", "USER")
	if a == c {
		t.Error("SignPassword must differ when seq num changes")
	}
}

func TestEntriesByLeadTag(t *testing.T) {
	t.Parallel()

	msg := &Message{Fields: []Field{
		{TagNoMDEntries, "2"},
		{TagMDEntryType, MDEntryTypeBid},
		{TagMDEntryPx, "100"},
		{TagMDEntrySize, "1"},
		{TagMDEntryType, MDEntryTypeOffer},
		{TagMDEntryPx, "101"},
		{TagMDEntrySize, "2"},
	}}

	entries := EntriesByLeadTag(msg.Fields, TagMDEntryType)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if px, _ := EntryGet(entries[0], TagMDEntryPx); px != "100" {
		t.Errorf("entries[0] price = %q, want 100", px)
	}
	if px, _ := EntryGet(entries[1], TagMDEntryPx); px != "101" {
		t.Errorf("entries[1] price = %q, want 101", px)
	}
}
