package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"callbingo/internal/core"
	"callbingo/internal/effects"
)

// EffectMessage carries one board effect to presentation consumers.
type EffectMessage struct {
	Kind      string    `json:"kind"`
	CellID    *int      `json:"cellId,omitempty"`
	Lines     int       `json:"lines,omitempty"`
	Quote     string    `json:"quote,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEffectMessage(ev effects.Event) *EffectMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &EffectMessage{
		Kind:      string(ev.Kind),
		CellID:    ev.CellID,
		Lines:     ev.Lines,
		Quote:     ev.Quote,
		Timestamp: ts,
	}
}

func (m *EffectMessage) Event() effects.Event {
	return effects.Event{
		Kind:   effects.Kind(m.Kind),
		CellID: m.CellID,
		Lines:  m.Lines,
		Quote:  m.Quote,
		At:     m.Timestamp,
	}
}

func EffectMessageFromJSON(data []byte) (*EffectMessage, error) {
	var msg EffectMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !effects.Kind(msg.Kind).Valid() {
		return nil, fmt.Errorf("unknown effect kind %q", msg.Kind)
	}
	return &msg, nil
}

type LedgerAction string

const (
	ActionRecorded LedgerAction = "recorded"
	ActionDeleted  LedgerAction = "deleted"
)

// LedgerSyncMessage mirrors one ledger change. Deleted messages carry the
// removed transaction so consumers can locate it.
type LedgerSyncMessage struct {
	Action      LedgerAction     `json:"action"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

func NewLedgerSyncMessage(action LedgerAction, tx core.Transaction) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		Action:      action,
		Transaction: tx,
		Timestamp:   time.Now(),
	}
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionRecorded, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown ledger action %q", msg.Action)
	}
	if msg.Transaction.ID <= 0 {
		return nil, errors.New("ledger message without transaction id")
	}
	return &msg, nil
}
