package terminal

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// --- Mock Terminal Backend ---
//
// Drop-in engine for running the full payment flow without hardware. It
// keeps the callback contract of the real SDK, adds bounded artificial
// latency per operation class, and answers deterministically.

// LimitAmount triggers a simulated daily-limit decline, so flow testing
// can exercise the failure path on demand.
const LimitAmount = "101.00"

type MockEngine struct {
	seq atomic.Int64
}

func NewMock() *MockEngine {
	return &MockEngine{}
}

func (e *MockEngine) Init(string) error { return nil }

func (e *MockEngine) Name() string { return "mock" }

func (e *MockEngine) Dial(ip string, port int) (Conn, error) {
	return &mockConn{engine: e, addr: fmt.Sprintf("%s:%d", ip, port)}, nil
}

type mockConn struct {
	engine *MockEngine
	addr   string
	closed atomic.Bool
}

func (c *mockConn) IsConnected() bool { return !c.closed.Load() }

func (c *mockConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *mockConn) Submit(req Request, cb Callback) error {
	if c.closed.Load() {
		return fmt.Errorf("mock terminal %s: connection closed", c.addr)
	}
	go func() {
		cb.OnStatus(StatusProcessing)
		time.Sleep(latencyFor(req.Operation))
		cb.OnResult(c.engine.resultFor(req))
		cb.OnStatus(StatusReady)
	}()
	return nil
}

func latencyFor(op Operation) time.Duration {
	var min, max int // millis
	switch op {
	case OpCancel:
		min, max = 50, 150
	case OpCardCheck:
		min, max = 150, 400
	default: // sale, reversal
		min, max = 400, 900
	}
	return time.Duration(min+rand.IntN(max-min)) * time.Millisecond
}

func (e *MockEngine) resultFor(req Request) map[string]string {
	seq := fmt.Sprintf("%06d", e.seq.Add(1))

	if req.Operation == OpSale && req.Amount == LimitAmount {
		return map[string]string{
			FieldResultCode: "D",
			FieldMessage:    "DAILY_LIMIT_EXCEEDED",
			FieldSequence:   seq,
		}
	}

	fields := map[string]string{
		FieldResultCode: "A",
		FieldBankCode:   "00",
		FieldMessage:    "APPROVED",
		FieldSequence:   seq,
	}
	if req.Operation == OpCardCheck {
		fields[FieldToken] = fmt.Sprintf("MOCK-TOKEN-%s", seq)
	}
	return fields
}
