package model

// --- Screen States ---

type ScreenKind string

const (
	ScreenLoading         ScreenKind = "LOADING"
	ScreenConnectionError ScreenKind = "CONNECTION_ERROR"
	ScreenAmountSelect    ScreenKind = "AMOUNT_SELECT"
	ScreenKeypadEntry     ScreenKind = "KEYPAD_ENTRY"
	ScreenPaymentMethod   ScreenKind = "PAYMENT_METHOD"
	ScreenQRCode          ScreenKind = "QR_CODE"
	ScreenProcessing      ScreenKind = "PROCESSING"
	ScreenTxSuccess       ScreenKind = "TX_SUCCESS"
	ScreenTxFailed        ScreenKind = "TX_FAILED"
	ScreenLimitError      ScreenKind = "LIMIT_ERROR"
	ScreenPrintingTicket  ScreenKind = "PRINTING_TICKET"
	ScreenCollectTicket   ScreenKind = "COLLECT_TICKET"
	ScreenThankYou        ScreenKind = "THANK_YOU"
	ScreenDeviceError     ScreenKind = "DEVICE_ERROR"
	ScreenTimeout         ScreenKind = "TIMEOUT"
	ScreenReset           ScreenKind = "RESET"
)

// Defaults used when a SCREEN_CHANGE payload omits the field.
const (
	DefaultCurrency  = "€"
	DefaultMinAmount = 0.50
	DefaultMaxAmount = 500.00
)

func DefaultMethods() []string {
	return []string{"card", "contactless", "bank-transfer"}
}

func DefaultPresets() []float64 {
	return []float64{5, 10, 20, 50}
}

// Screen is the single current screen of the flow. Exactly one Screen is
// active at a time; the rendering layer consumes it as-is.
type Screen struct {
	Kind         ScreenKind `json:"kind"`
	Currency     string     `json:"currency,omitempty"`
	MinAmount    float64    `json:"minAmount,omitempty"`
	MaxAmount    float64    `json:"maxAmount,omitempty"`
	Methods      []string   `json:"paymentMethods,omitempty"`
	Presets      []float64  `json:"presetAmounts,omitempty"`
	Amount       float64    `json:"amount,omitempty"`
	QRPayload    string     `json:"qrPayload,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}
