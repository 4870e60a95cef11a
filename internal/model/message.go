package model

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MessageTypeUserAction   MessageType = "USER_ACTION"
	MessageTypeScreenChange MessageType = "SCREEN_CHANGE"
	MessageTypeError        MessageType = "ERROR"
	MessageTypeStatusUpdate MessageType = "STATUS_UPDATE"
)

// --- Control Channel Messages ---

// ProtocolMessage is one frame on the control channel. Correlation across
// frames happens through TransactionID, never through frame ordering.
type ProtocolMessage struct {
	MessageType   MessageType     `json:"messageType"`
	Screen        string          `json:"screen,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"` // Keep raw to parse into specific structs
	TransactionID string          `json:"transactionId,omitempty"`
	Timestamp     int64           `json:"timestamp"`
}

// NewMessage stamps a frame with the current epoch millis.
func NewMessage(t MessageType, screen string, txID string, data any) ProtocolMessage {
	msg := ProtocolMessage{
		MessageType:   t,
		Screen:        screen,
		TransactionID: txID,
		Timestamp:     time.Now().UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			msg.Data = raw
		}
	}
	return msg
}

// ScreenData is the payload carried by SCREEN_CHANGE and ERROR frames.
// Every field is optional; the coordinator fills documented defaults.
type ScreenData struct {
	Currency     string    `json:"currency,omitempty"`
	MinAmount    *float64  `json:"minAmount,omitempty"`
	MaxAmount    *float64  `json:"maxAmount,omitempty"`
	Methods      []string  `json:"paymentMethods,omitempty"`
	Presets      []float64 `json:"presetAmounts,omitempty"`
	Amount       *float64  `json:"amount,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	QRPayload    string    `json:"qrPayload,omitempty"`
	ResultCode   string    `json:"resultCode,omitempty"`
	Token        string    `json:"token,omitempty"`
}

// ActionData is the payload of outbound USER_ACTION frames.
type ActionData struct {
	Action          string  `json:"action"`
	Amount          float64 `json:"amount,omitempty"`
	SelectionMethod string  `json:"selectionMethod,omitempty"`
	PaymentMethod   string  `json:"paymentMethod,omitempty"`
}

// User action names.
const (
	ActionAmountSelect  = "AMOUNT_SELECT"
	ActionPaymentMethod = "PAYMENT_METHOD"
	ActionCancel        = "CANCEL"
	ActionReset         = "RESET"
)

// Amount selection classification.
const (
	SelectionPreset = "PRESET"
	SelectionCustom = "CUSTOM"
)

// AmountReset is the sentinel amount meaning "abandon the current
// transaction and start over with a fresh transaction id".
const AmountReset float64 = -2
