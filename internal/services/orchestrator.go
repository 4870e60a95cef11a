package services

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/journal"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/terminal"
)

// Default operation timeouts. Each call may override its own.
const (
	SaleTimeout      = 120 * time.Second
	CardCheckTimeout = 60 * time.Second
	CancelTimeout    = 10 * time.Second

	readyWait = 2 * time.Second
	readyPoll = 50 * time.Millisecond
)

// Recorder is the journal the orchestrator appends to. Optional.
type Recorder interface {
	Record(e journal.Entry) error
}

// --- Terminal Transaction Orchestrator ---

// Orchestrator executes card-check, sale, cancel and reversal operations
// against the terminal. At most one operation is in flight system-wide;
// the lock is held for the full call, wait included. The terminal
// connection is owned here exclusively and reused across calls until the
// endpoint changes or the link drops.
type Orchestrator struct {
	engine terminal.Engine
	rec    Recorder
	logDir string

	// probe, when set, is a fast TCP reachability check run before a new
	// connection is constructed.
	probe func(ip string, port int) bool

	opMu sync.Mutex // serializes terminal operations

	mu          sync.Mutex
	ip          string
	port        int
	conn        terminal.Conn
	connIP      string
	connPort    int
	broken      bool // presumed-broken, forces recreation on next call
	availProbed bool
	available   bool // sticky for the process lifetime

	creations atomic.Int64
}

func NewOrchestrator(engine terminal.Engine, ip string, port int, rec Recorder) *Orchestrator {
	return &Orchestrator{
		engine: engine,
		rec:    rec,
		logDir: "terminal-logs",
		ip:     ip,
		port:   port,
	}
}

// SetProbe installs a reachability pre-check for new connections.
func (o *Orchestrator) SetProbe(probe func(ip string, port int) bool) {
	o.mu.Lock()
	o.probe = probe
	o.mu.Unlock()
}

// SetEndpoint retargets the terminal. The current connection, if any, is
// recreated on the next operation.
func (o *Orchestrator) SetEndpoint(ip string, port int) {
	o.mu.Lock()
	o.ip = ip
	o.port = port
	o.mu.Unlock()
}

// --- Operations ---

// CardCheck verifies a card without moving money. timeout <= 0 uses the
// default.
func (o *Orchestrator) CardCheck(reference string, timeout time.Duration) model.PaymentResult {
	if timeout <= 0 {
		timeout = CardCheckTimeout
	}
	return o.execute(terminal.Request{
		Operation: terminal.OpCardCheck,
		Reference: reference,
	}, timeout)
}

// Sale charges the given decimal amount ("12.50").
func (o *Orchestrator) Sale(amount, reference string, timeout time.Duration) model.PaymentResult {
	if timeout <= 0 {
		timeout = SaleTimeout
	}
	return o.execute(terminal.Request{
		Operation: terminal.OpSale,
		Amount:    amount,
		Reference: reference,
	}, timeout)
}

// Cancel aborts the operation identified by originalRef. A timeout after
// a successful submission is reported as a soft success: the terminal may
// well have processed the cancel without acknowledging it.
func (o *Orchestrator) Cancel(originalRef string, timeout time.Duration) model.PaymentResult {
	if timeout <= 0 {
		timeout = CancelTimeout
	}
	return o.execute(terminal.Request{
		Operation:   terminal.OpCancel,
		Reference:   originalRef,
		OriginalRef: originalRef,
	}, timeout)
}

// Reversal refunds a completed sale.
func (o *Orchestrator) Reversal(amount, reference, originalRef string, timeout time.Duration) model.PaymentResult {
	if timeout <= 0 {
		timeout = SaleTimeout
	}
	return o.execute(terminal.Request{
		Operation:   terminal.OpReversal,
		Amount:      amount,
		Reference:   reference,
		OriginalRef: originalRef,
	}, timeout)
}

// --- Core Execution ---

func (o *Orchestrator) execute(req terminal.Request, timeout time.Duration) (res model.PaymentResult) {
	defer func() {
		if r := recover(); r != nil {
			// Never let anything escape the orchestrator boundary. A
			// panic also means the link state is unknown.
			log.Printf("[Orchestrator] Panic in %s: %v", req.Operation, r)
			o.markBroken()
			res = failure(model.ResultInternalError, fmt.Sprintf("internal error: %v", r), req.Reference)
		}
		o.record(req, res)
	}()

	if !o.ensureEngine() {
		return failure(model.ResultSDKUnavailable, "terminal SDK unavailable", req.Reference)
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()

	conn, err := o.obtainConn()
	if err != nil {
		log.Printf("[Orchestrator] Connection failed: %v", err)
		return failure(model.ResultConnFailed, err.Error(), req.Reference)
	}

	state := newTxState()
	log.Printf("[Orchestrator] Submitting %s (ref=%s)", req.Operation, req.Reference)
	if err := conn.Submit(req, state); err != nil {
		// Submission itself was rejected: no wait, and the link is
		// presumed broken for the next call.
		o.markBroken()
		return failure(model.ResultSubmitFailed, err.Error(), req.Reference)
	}

	select {
	case <-state.done:
	case <-time.After(timeout):
		// A timeout leaves the connection alone: the terminal is slow or
		// the cardholder walked away, not necessarily a dead link.
		if req.Operation == terminal.OpCancel {
			log.Printf("[Orchestrator] Cancel unacknowledged after %s, assuming processed", timeout)
			return model.PaymentResult{
				Success:        true,
				ResultCode:     model.ResultCancelAssumed,
				Message:        "cancel submitted, no acknowledgement before timeout",
				CorrelatingRef: req.OriginalRef,
			}
		}
		log.Printf("[Orchestrator] %s timed out after %s", req.Operation, timeout)
		return failure(model.ResultTimeout, fmt.Sprintf("no terminal response within %s", timeout), req.Reference)
	}

	res = state.classify(req)
	o.waitTerminalReady(state)
	return res
}

// ensureEngine probes SDK availability exactly once. The outcome sticks
// for the process lifetime.
func (o *Orchestrator) ensureEngine() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.availProbed {
		err := o.engine.Init(o.logDir)
		o.availProbed = true
		o.available = err == nil
		if err != nil {
			log.Printf("[Orchestrator] Terminal engine %q unavailable: %v", o.engine.Name(), err)
		} else {
			log.Printf("[Orchestrator] Terminal engine %q initialized.", o.engine.Name())
		}
	}
	return o.available
}

// obtainConn reuses the live connection when the endpoint is unchanged
// and the link still reports connected; otherwise it tears the old one
// down and constructs a fresh handle. Callers hold opMu.
func (o *Orchestrator) obtainConn() (terminal.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn != nil && !o.broken && o.connIP == o.ip && o.connPort == o.port && o.conn.IsConnected() {
		return o.conn, nil
	}

	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
	o.broken = false

	if o.probe != nil && !o.probe(o.ip, o.port) {
		return nil, fmt.Errorf("terminal %s:%d unreachable", o.ip, o.port)
	}

	log.Printf("[Orchestrator] Connecting to terminal %s:%d...", o.ip, o.port)
	conn, err := o.engine.Dial(o.ip, o.port)
	if err != nil {
		return nil, fmt.Errorf("dialing terminal %s:%d: %w", o.ip, o.port, err)
	}
	o.conn = conn
	o.connIP = o.ip
	o.connPort = o.port
	o.creations.Add(1)
	return conn, nil
}

func (o *Orchestrator) markBroken() {
	o.mu.Lock()
	o.broken = true
	o.mu.Unlock()
}

// waitTerminalReady gives the terminal a short window to report READY so
// the next operation starts fast. Purely advisory; never changes the
// operation outcome.
func (o *Orchestrator) waitTerminalReady(state *txState) {
	deadline := time.Now().Add(readyWait)
	for time.Now().Before(deadline) {
		if state.ready() {
			return
		}
		time.Sleep(readyPoll)
	}
}

func (o *Orchestrator) record(req terminal.Request, res model.PaymentResult) {
	if o.rec == nil {
		return
	}
	err := o.rec.Record(journal.Entry{
		Operation:  string(req.Operation),
		Reference:  req.Reference,
		Amount:     req.Amount,
		ResultCode: res.ResultCode,
		Message:    res.Message,
		Success:    res.Success,
	})
	if err != nil {
		log.Printf("[Orchestrator] Journal write failed: %v", err)
	}
}

// --- Observation & Teardown ---

// Available reports whether the terminal SDK came up. Probes on first use.
func (o *Orchestrator) Available() bool {
	return o.ensureEngine()
}

// ConnCreations counts how many terminal connections have been
// constructed. Two back-to-back operations on a healthy link keep it
// constant.
func (o *Orchestrator) ConnCreations() int64 {
	return o.creations.Load()
}

// Close disposes the terminal connection and owned state. Safe to call
// even if the engine never became available.
func (o *Orchestrator) Close() {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
	o.broken = false
}

func failure(code, message, ref string) model.PaymentResult {
	return model.PaymentResult{
		Success:        false,
		ResultCode:     code,
		Message:        message,
		CorrelatingRef: ref,
	}
}
