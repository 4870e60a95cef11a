package model

// --- Terminal Operation Results ---

// Result codes returned by the orchestrator. "A" and "D" come straight
// from the terminal; the rest are produced locally.
const (
	ResultApproved       = "A"
	ResultDeclined       = "D"
	ResultTimeout        = "TX_TIMEOUT"
	ResultSDKUnavailable = "SDK_UNAVAILABLE"
	ResultSubmitFailed   = "SUBMIT_FAILED"
	ResultConnFailed     = "CONN_FAILED"
	ResultInternalError  = "INTERNAL_ERROR"
	ResultCancelAssumed  = "CANCEL_ASSUMED"
)

// BankApproved is the ISO-style bank response code meaning approval.
const BankApproved = "00"

// PaymentResult is the immutable outcome of one terminal operation
// (card-check, sale, cancel or reversal). Success is decided by an OR of
// independent signals because different terminal firmware populates
// different subsets of these fields.
type PaymentResult struct {
	Success        bool              `json:"success"`
	ResultCode     string            `json:"resultCode"`
	BankResultCode string            `json:"bankResultCode,omitempty"`
	Message        string            `json:"message,omitempty"`
	Token          string            `json:"token,omitempty"`
	SequenceNumber string            `json:"sequenceNumber,omitempty"`
	CorrelatingRef string            `json:"correlatingRef,omitempty"`
	RawFields      map[string]string `json:"rawFields,omitempty"`
}
