package session

import (
	"encoding/json"
	"fmt"

	"truex-fixmd/internal/kvstore"
)

var checkpointKey = []byte("session:seq")

type checkpoint struct {
	OutboundSeqNum     int `json:"outbound_seq_num"`
	InboundSeqExpected int `json:"inbound_seq_expected"`
}

// SaveCheckpoint persists the current sequence-number bookkeeping so a
// process restart can recover §3's outbound_seq_num/inbound_seq_expected
// bookkeeping for gap-analysis before the next Logon resets the wire
// sequence. Called by the supervisor on a cadence, not by the session
// itself — the session has no opinion about how often.
func (s *Session) SaveCheckpoint(store kvstore.Store) error {
	s.mu.Lock()
	cp := checkpoint{
		OutboundSeqNum:     s.outboundSeqNum,
		InboundSeqExpected: s.inboundSeqExpected,
	}
	s.mu.Unlock()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("session: marshal checkpoint: %w", err)
	}
	return store.Set(checkpointKey, data)
}

// LoadCheckpoint restores previously persisted sequence bookkeeping. ok is
// false if no checkpoint has ever been saved.
func (s *Session) LoadCheckpoint(store kvstore.Store) (ok bool, err error) {
	data, found, err := store.Get(checkpointKey)
	if err != nil {
		return false, fmt.Errorf("session: load checkpoint: %w", err)
	}
	if !found {
		return false, nil
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return false, fmt.Errorf("session: unmarshal checkpoint: %w", err)
	}

	s.mu.Lock()
	s.outboundSeqNum = cp.OutboundSeqNum
	s.inboundSeqExpected = cp.InboundSeqExpected
	s.mu.Unlock()
	return true, nil
}
