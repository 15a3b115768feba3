package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"callbingo/internal/core"
	"callbingo/internal/effects"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "bingo", effectsQueue: "bingo_effects", ledgerQueue: "bingo_ledger"}

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", client.state)
	}

	// A failure while half-open reopens immediately.
	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatalf("state = %d, want open", client.state)
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}
}

func TestClient_PublishGuards(t *testing.T) {
	client := &Client{exchangeName: "bingo", effectsQueue: "bingo_effects", ledgerQueue: "bingo_ledger"}

	t.Run("open circuit", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishLedgerSync(context.Background(), ActionRecorded, core.Transaction{ID: 1})
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected ErrCircuitOpen, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.Emit(ctx, effects.Event{Kind: effects.BoardReset}); err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("closed client does not dial", func(t *testing.T) {
		client.recordSuccess()
		err := client.PublishEffect(context.Background(), &EffectMessage{Kind: string(effects.BoardReset)})
		if !errors.Is(err, errNotConnected) {
			t.Fatalf("expected errNotConnected, got %v", err)
		}
	})
}

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error { d.acked = true; return nil }
func (d *fakeDelivery) Nack(_ bool, requeue bool) error {
	d.nacked, d.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	ctx := context.Background()
	ok := func(context.Context, []byte) (bool, error) { return true, nil }
	failing := func(context.Context, []byte) (bool, error) { return true, errors.New("sheet offline") }
	garbled := func(context.Context, []byte) (bool, error) { return false, errors.New("bad json") }
	rejected := func(context.Context, []byte) (bool, error) {
		return true, fmt.Errorf("%w: unknown action", ErrRejected)
	}

	d := &fakeDelivery{}
	handleDelivery(ctx, "q", d, nil, ok)
	if !d.acked || d.nacked {
		t.Errorf("success: %+v", d)
	}

	d = &fakeDelivery{}
	handleDelivery(ctx, "q", d, nil, failing)
	if !d.nacked || !d.requeued {
		t.Errorf("handler error should requeue: %+v", d)
	}

	d = &fakeDelivery{}
	handleDelivery(ctx, "q", d, nil, garbled)
	if !d.nacked || d.requeued {
		t.Errorf("decode error should drop: %+v", d)
	}

	d = &fakeDelivery{}
	handleDelivery(ctx, "q", d, nil, rejected)
	if !d.nacked || d.requeued {
		t.Errorf("rejected message should drop: %+v", d)
	}
}

func TestEffectMessageRoundTrip(t *testing.T) {
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	msg := NewEffectMessage(effects.Cell(effects.CenterMarked, 4, at))

	body := []byte(fmt.Sprintf(`{"kind":%q,"cellId":4,"timestamp":%q}`, msg.Kind, at.Format(time.RFC3339)))
	parsed, err := EffectMessageFromJSON(body)
	if err != nil {
		t.Fatalf("EffectMessageFromJSON: %v", err)
	}
	ev := parsed.Event()
	if ev.Kind != effects.CenterMarked || ev.CellID == nil || *ev.CellID != 4 || !ev.At.Equal(at) {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := EffectMessageFromJSON([]byte(`{"kind":"fireworks"}`)); err == nil {
		t.Error("unknown kind should be rejected")
	}
}

func TestLedgerSyncMessageFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"recorded", `{"action":"recorded","transaction":{"id":5,"date":"2025-04-01","type":"income","amount":200,"description":"x"}}`, ""},
		{"deleted", `{"action":"deleted","transaction":{"id":5}}`, ""},
		{"bad action", `{"action":"edited","transaction":{"id":5}}`, "unknown ledger action"},
		{"missing id", `{"action":"recorded","transaction":{}}`, "without transaction id"},
		{"not json", `{`, "unexpected end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := LedgerSyncMessageFromJSON([]byte(tt.body))
			if tt.wantErr == "" {
				if err != nil || msg.Transaction.ID != 5 {
					t.Fatalf("unexpected result msg=%+v err=%v", msg, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPingWithoutBroker(t *testing.T) {
	client := &Client{exchangeName: "bingo", effectsQueue: "bingo_effects", ledgerQueue: "bingo_ledger"}
	if err := client.Ping(context.Background()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Ping(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
