package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
)

// MessageSender is what the coordinator needs from the connector to emit
// outbound user actions.
type MessageSender interface {
	Send(msg model.ProtocolMessage) bool
}

// screenTags maps inbound `screen` tags onto the closed screen set.
// Anything not in here is ignored.
var screenTags = map[string]model.ScreenKind{}

func init() {
	for _, k := range []model.ScreenKind{
		model.ScreenLoading, model.ScreenConnectionError, model.ScreenAmountSelect,
		model.ScreenKeypadEntry, model.ScreenPaymentMethod, model.ScreenQRCode,
		model.ScreenProcessing, model.ScreenTxSuccess, model.ScreenTxFailed,
		model.ScreenLimitError, model.ScreenPrintingTicket, model.ScreenCollectTicket,
		model.ScreenThankYou, model.ScreenDeviceError, model.ScreenTimeout,
		model.ScreenReset,
	} {
		screenTags[string(k)] = k
	}
}

// --- Screen / Transaction Coordinator ---

// Coordinator turns inbound protocol messages and user actions into the
// single current screen, and correlates everything belonging to one
// payment attempt through a transaction id.
type Coordinator struct {
	sender MessageSender

	mu      sync.Mutex
	screen  model.Screen
	txID    string
	amount  float64 // last chosen amount, kept for display
	presets []float64

	subMu      sync.Mutex
	screenSubs []chan model.Screen
}

func NewCoordinator(sender MessageSender) *Coordinator {
	return &Coordinator{
		sender:  sender,
		screen:  model.Screen{Kind: model.ScreenLoading},
		presets: model.DefaultPresets(),
	}
}

// SetPresets overrides the preset amounts used to classify selections
// until the controller supplies its own.
func (co *Coordinator) SetPresets(presets []float64) {
	if len(presets) == 0 {
		return
	}
	co.mu.Lock()
	co.presets = presets
	co.mu.Unlock()
}

// Run consumes the connector's streams until ctx is done.
func (co *Coordinator) Run(ctx context.Context, msgs <-chan model.ProtocolMessage, states <-chan model.ConnectionState) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			co.HandleMessage(msg)
		case st, ok := <-states:
			if !ok {
				return
			}
			co.HandleConnectionState(st)
		}
	}
}

// --- Inbound ---

func (co *Coordinator) HandleMessage(msg model.ProtocolMessage) {
	switch msg.MessageType {
	case model.MessageTypeScreenChange:
		co.handleScreenChange(msg)
	case model.MessageTypeError:
		co.handleError(msg)
	case model.MessageTypeStatusUpdate:
		// Reserved for telemetry; no screen transition.
		log.Printf("[Coordinator] Status update: %s", string(msg.Data))
	default:
		log.Printf("[Coordinator] Ignoring message type %q", msg.MessageType)
	}
}

func (co *Coordinator) HandleConnectionState(st model.ConnectionState) {
	switch st {
	case model.StateDisconnected:
		co.setScreen(model.Screen{Kind: model.ScreenConnectionError})
	case model.StateConnecting:
		co.setScreen(model.Screen{Kind: model.ScreenLoading})
	case model.StateConnected:
		// Wait for an explicit SCREEN_CHANGE.
	}
}

func (co *Coordinator) handleScreenChange(msg model.ProtocolMessage) {
	kind, ok := screenTags[msg.Screen]
	if !ok {
		log.Printf("[Coordinator] Unknown screen tag %q, keeping current screen", msg.Screen)
		return
	}
	data, err := parseScreenData(msg.Data)
	if err != nil {
		log.Printf("[Coordinator] Bad SCREEN_CHANGE payload: %v", err)
		co.setScreen(model.Screen{Kind: model.ScreenDeviceError, ErrorMessage: err.Error()})
		return
	}

	co.mu.Lock()
	// The controller may originate transaction ids of its own.
	if msg.TransactionID != "" {
		co.txID = msg.TransactionID
	}
	if len(data.Presets) > 0 {
		co.presets = data.Presets
	}
	screen := co.buildScreenLocked(kind, data)
	co.mu.Unlock()

	co.setScreen(screen)
}

func (co *Coordinator) handleError(msg model.ProtocolMessage) {
	data, err := parseScreenData(msg.Data)
	if err != nil {
		log.Printf("[Coordinator] Bad ERROR payload: %v", err)
		co.setScreen(model.Screen{Kind: model.ScreenDeviceError, ErrorMessage: err.Error()})
		return
	}
	errMsg := data.ErrorMessage
	if errMsg == "" {
		errMsg = "unknown error"
	}
	co.setScreen(model.Screen{Kind: model.ScreenTxFailed, ErrorMessage: errMsg})
}

func parseScreenData(raw json.RawMessage) (model.ScreenData, error) {
	var data model.ScreenData
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("parsing screen payload: %w", err)
	}
	return data, nil
}

// buildScreenLocked fills documented defaults for fields the payload
// leaves out.
func (co *Coordinator) buildScreenLocked(kind model.ScreenKind, data model.ScreenData) model.Screen {
	screen := model.Screen{
		Kind:         kind,
		Currency:     data.Currency,
		Methods:      data.Methods,
		Presets:      data.Presets,
		QRPayload:    data.QRPayload,
		ErrorMessage: data.ErrorMessage,
		Amount:       co.amount,
	}
	if screen.Currency == "" {
		screen.Currency = model.DefaultCurrency
	}
	if len(screen.Methods) == 0 {
		screen.Methods = model.DefaultMethods()
	}
	if len(screen.Presets) == 0 {
		screen.Presets = model.DefaultPresets()
	}
	screen.MinAmount = model.DefaultMinAmount
	screen.MaxAmount = model.DefaultMaxAmount
	if data.MinAmount != nil {
		screen.MinAmount = *data.MinAmount
	}
	if data.MaxAmount != nil {
		screen.MaxAmount = *data.MaxAmount
	}
	if data.Amount != nil {
		screen.Amount = *data.Amount
	}
	return screen
}

// --- User Actions ---

// SelectAmount handles a user picking an amount. The sentinel AmountReset
// abandons the current transaction: the RESET action goes out under a
// fresh transaction id, guaranteed different from the previous one.
func (co *Coordinator) SelectAmount(amount float64) {
	if amount == model.AmountReset {
		co.mu.Lock()
		co.txID = uuid.NewString()
		co.amount = 0
		txID := co.txID
		co.mu.Unlock()
		co.send(model.ScreenReset, txID, model.ActionData{Action: model.ActionReset})
		return
	}
	if amount <= 0 {
		log.Printf("[Coordinator] Ignoring non-positive amount %v", amount)
		return
	}

	co.mu.Lock()
	co.amount = amount
	selection := model.SelectionCustom
	for _, p := range co.presets {
		if p == amount {
			selection = model.SelectionPreset
			break
		}
	}
	txID := co.ensureTxIDLocked()
	screen := co.screen.Kind
	co.mu.Unlock()

	co.send(screen, txID, model.ActionData{
		Action:          model.ActionAmountSelect,
		Amount:          amount,
		SelectionMethod: selection,
	})
}

// SelectPaymentMethod emits the choice. Redirect-style methods flip the
// screen to the QR code locally without waiting for the controller.
func (co *Coordinator) SelectPaymentMethod(method string) {
	co.mu.Lock()
	txID := co.ensureTxIDLocked()
	screen := co.screen.Kind
	co.mu.Unlock()

	co.send(screen, txID, model.ActionData{
		Action:        model.ActionPaymentMethod,
		PaymentMethod: method,
	})

	if method == "bank-transfer" {
		// Optimistic transition; the controller will follow up with the
		// QR payload.
		co.setScreen(model.Screen{Kind: model.ScreenQRCode})
	}
}

// Cancel emits a CANCEL and a follow-up RESET under the same transaction
// id, then forgets the id so the next action starts a new transaction.
func (co *Coordinator) Cancel() {
	co.mu.Lock()
	txID := co.ensureTxIDLocked()
	screen := co.screen.Kind
	co.txID = ""
	co.amount = 0
	co.mu.Unlock()

	co.send(screen, txID, model.ActionData{Action: model.ActionCancel})
	co.send(model.ScreenReset, txID, model.ActionData{Action: model.ActionReset})
}

func (co *Coordinator) ensureTxIDLocked() string {
	if co.txID == "" {
		co.txID = uuid.NewString()
	}
	return co.txID
}

func (co *Coordinator) send(screen model.ScreenKind, txID string, data model.ActionData) {
	msg := model.NewMessage(model.MessageTypeUserAction, string(screen), txID, data)
	if !co.sender.Send(msg) {
		log.Printf("[Coordinator] Failed to send %s action", data.Action)
	}
}

// --- Observation ---

func (co *Coordinator) Screen() model.Screen {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.screen
}

func (co *Coordinator) TransactionID() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.txID
}

// SubscribeScreen returns a stream of screen changes for the rendering
// layer, primed with the current screen.
func (co *Coordinator) SubscribeScreen() <-chan model.Screen {
	ch := make(chan model.Screen, 16)
	ch <- co.Screen()
	co.subMu.Lock()
	co.screenSubs = append(co.screenSubs, ch)
	co.subMu.Unlock()
	return ch
}

func (co *Coordinator) setScreen(screen model.Screen) {
	co.mu.Lock()
	co.screen = screen
	co.mu.Unlock()

	co.subMu.Lock()
	for _, ch := range co.screenSubs {
		select {
		case ch <- screen:
		default:
		}
	}
	co.subMu.Unlock()
}
