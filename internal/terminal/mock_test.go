package terminal

import (
	"strings"
	"testing"
	"time"
)

type collector struct {
	results  chan map[string]string
	statuses chan string
}

func newCollector() *collector {
	return &collector{
		results:  make(chan map[string]string, 4),
		statuses: make(chan string, 8),
	}
}

func (c *collector) OnResult(fields map[string]string) { c.results <- fields }
func (c *collector) OnStatus(status string) { c.statuses <- status }

func (c *collector) wait(t *testing.T, timeout time.Duration) map[string]string {
	t.Helper()
	select {
	case fields := <-c.results:
		return fields
	case <-time.After(timeout):
		t.Fatal("no result callback")
		return nil
	}
}

func dialMock(t *testing.T) Conn {
	t.Helper()
	conn, err := NewMock().Dial("127.0.0.1", 20002)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestMockSaleApproved(t *testing.T) {
	t.Parallel()

	conn := dialMock(t)
	cb := newCollector()
	if err := conn.Submit(Request{Operation: OpSale, Amount: "25.00", Reference: "ref"}, cb); err != nil {
		t.Fatalf("submit: %v", err)
	}

	fields := cb.wait(t, 3*time.Second)
	if fields[FieldResultCode] != "A" || fields[FieldBankCode] != "00" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields[FieldSequence] == "" {
		t.Fatalf("missing sequence number: %v", fields)
	}
}

func TestMockLimitDecline(t *testing.T) {
	t.Parallel()

	conn := dialMock(t)
	cb := newCollector()
	if err := conn.Submit(Request{Operation: OpSale, Amount: LimitAmount, Reference: "ref"}, cb); err != nil {
		t.Fatalf("submit: %v", err)
	}

	fields := cb.wait(t, 3*time.Second)
	if fields[FieldResultCode] != "D" || fields[FieldMessage] != "DAILY_LIMIT_EXCEEDED" {
		t.Fatalf("expected the limit decline, got %v", fields)
	}
}

func TestMockCardCheckToken(t *testing.T) {
	t.Parallel()

	conn := dialMock(t)
	cb := newCollector()
	if err := conn.Submit(Request{Operation: OpCardCheck, Reference: "ref"}, cb); err != nil {
		t.Fatalf("submit: %v", err)
	}

	fields := cb.wait(t, 3*time.Second)
	if !strings.HasPrefix(fields[FieldToken], "MOCK-TOKEN-") {
		t.Fatalf("missing token: %v", fields)
	}
}

func TestMockLatencyBounds(t *testing.T) {
	t.Parallel()

	conn := dialMock(t)
	cb := newCollector()
	start := time.Now()
	if err := conn.Submit(Request{Operation: OpSale, Amount: "5.00", Reference: "ref"}, cb); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cb.wait(t, 3*time.Second)
	elapsed := time.Since(start)
	if elapsed < 400*time.Millisecond || elapsed > 2*time.Second {
		t.Fatalf("sale latency out of bounds: %s", elapsed)
	}
}

func TestMockStatusSequence(t *testing.T) {
	t.Parallel()

	conn := dialMock(t)
	cb := newCollector()
	if err := conn.Submit(Request{Operation: OpCancel, Reference: "ref"}, cb); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cb.wait(t, 3*time.Second)

	if got := <-cb.statuses; got != StatusProcessing {
		t.Fatalf("first status %q", got)
	}
	select {
	case got := <-cb.statuses:
		if got != StatusReady {
			t.Fatalf("final status %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no READY status")
	}
}

func TestMockClosedConnRejectsSubmit(t *testing.T) {
	t.Parallel()

	conn := dialMock(t)
	conn.Close()
	if conn.IsConnected() {
		t.Fatal("closed conn reports connected")
	}
	if err := conn.Submit(Request{Operation: OpSale, Amount: "5.00"}, newCollector()); err == nil {
		t.Fatal("submit on closed conn must fail")
	}
}
