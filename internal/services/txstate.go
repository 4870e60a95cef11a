package services

import (
	"strings"
	"sync"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/terminal"
)

// txState is the per-call mutable state the terminal callbacks write
// into. Created fresh for every operation, gone when the call returns.
// It bridges the SDK's push callbacks to the orchestrator's blocking
// wait: OnResult closes done exactly once.
type txState struct {
	mu            sync.Mutex
	fields        map[string]string
	completed     bool
	terminalReady bool
	done          chan struct{}
}

func newTxState() *txState {
	return &txState{done: make(chan struct{})}
}

func (s *txState) OnResult(fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	s.completed = true
	s.fields = fields
	close(s.done)
}

func (s *txState) OnStatus(status string) {
	if status != terminal.StatusReady {
		return
	}
	s.mu.Lock()
	s.terminalReady = true
	s.mu.Unlock()
}

func (s *txState) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminalReady
}

// classify turns the raw callback fields into a result. Terminal
// firmwares disagree on which fields they fill in, so any one approval
// signal (result code, bank code or message text) counts as success.
func (s *txState) classify(req terminal.Request) model.PaymentResult {
	s.mu.Lock()
	fields := s.fields
	s.mu.Unlock()

	resultCode := fields[terminal.FieldResultCode]
	bankCode := fields[terminal.FieldBankCode]
	message := fields[terminal.FieldMessage]

	success := resultCode == model.ResultApproved ||
		bankCode == model.BankApproved ||
		strings.Contains(strings.ToUpper(message), "APPROVED")

	return model.PaymentResult{
		Success:        success,
		ResultCode:     resultCode,
		BankResultCode: bankCode,
		Message:        message,
		Token:          fields[terminal.FieldToken],
		SequenceNumber: fields[terminal.FieldSequence],
		CorrelatingRef: req.Reference,
		RawFields:      fields,
	}
}
