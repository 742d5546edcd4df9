package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
	sqterminal "github.com/square/square-go-sdk/terminal"
)

// Terminal checkout statuses reported by Square.
const (
	TerminalStatusPending         = "PENDING"
	TerminalStatusInProgress      = "IN_PROGRESS"
	TerminalStatusCancelRequested = "CANCEL_REQUESTED"
	TerminalStatusCanceled        = "CANCELED"
	TerminalStatusCompleted       = "COMPLETED"
)

// TerminalCheckoutCreateParams contains the fields required to push a
// checkout to a payment terminal device.
type TerminalCheckoutCreateParams struct {
	DeviceID       string
	AmountCents    int64
	Currency       string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p TerminalCheckoutCreateParams) toSquareRequest(idempotencyKey string) *sqterminal.CreateTerminalCheckoutRequest {
	checkout := &sq.TerminalCheckout{
		AmountMoney: moneyPtr(p.AmountCents, p.Currency),
		DeviceOptions: &sq.DeviceCheckoutOptions{
			DeviceID: p.DeviceID,
		},
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		checkout.ReferenceID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		checkout.Note = ptrString(trimmed)
	}
	return &sqterminal.CreateTerminalCheckoutRequest{
		IdempotencyKey: idempotencyKey,
		Checkout:       checkout,
	}
}

// TerminalCheckoutID extracts the provider checkout id, tolerating nil.
func TerminalCheckoutID(tc *sq.TerminalCheckout) string {
	if tc == nil {
		return ""
	}
	return stringValue(tc.GetID())
}

// TerminalCheckoutStatus extracts the provider status, tolerating nil.
func TerminalCheckoutStatus(tc *sq.TerminalCheckout) string {
	if tc == nil {
		return ""
	}
	return stringValue(tc.GetStatus())
}

// TerminalCheckoutAmount extracts the charged amount in cents, tolerating nil.
func TerminalCheckoutAmount(tc *sq.TerminalCheckout) int64 {
	if tc == nil || tc.AmountMoney == nil || tc.AmountMoney.Amount == nil {
		return 0
	}
	return *tc.AmountMoney.Amount
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
