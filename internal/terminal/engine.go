package terminal

// --- Vendor SDK Boundary ---
//
// The physical terminal is driven through a vendor SDK that talks its own
// wire protocol. This package only models the SDK surface the agent needs:
// an engine that is initialized once per process, connections dialed per
// endpoint, and requests answered through asynchronous callbacks.

type Operation string

const (
	OpCardCheck Operation = "CARD_CHECK"
	OpSale      Operation = "SALE"
	OpCancel    Operation = "CANCEL"
	OpReversal  Operation = "REVERSAL"
)

// Request is one outbound terminal request. Amount is a decimal string
// ("12.50") because the vendor protocol is textual about money.
type Request struct {
	Operation   Operation
	Amount      string
	Reference   string // caller-supplied correlation reference
	OriginalRef string // original operation, cancel/reversal only
}

// Callback receives asynchronous terminal responses. The SDK never
// returns results directly from Submit.
type Callback interface {
	OnResult(fields map[string]string)
	OnStatus(status string)
}

// Status values delivered through OnStatus.
const (
	StatusReady      = "READY"
	StatusProcessing = "PROCESSING"
)

// Well-known keys in the flattened result field map.
const (
	FieldResultCode = "resultCode"
	FieldBankCode   = "bankResultCode"
	FieldMessage    = "message"
	FieldToken      = "token"
	FieldSequence   = "sequenceNumber"
)

// Engine is the per-process SDK handle.
type Engine interface {
	// Init probes engine/logger availability. Called once; a failure is
	// sticky for the process lifetime.
	Init(logDir string) error
	Dial(ip string, port int) (Conn, error)
	Name() string
}

// Conn is a live link to one terminal endpoint.
type Conn interface {
	IsConnected() bool
	Submit(req Request, cb Callback) error
	Close() error
}
