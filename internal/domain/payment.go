package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodPaypal         PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodBankTransfer,
		PaymentMethodCashOnDelivery, PaymentMethodPaypal:
		return true
	}
	return false
}

type Payment struct {
	ID             string        `json:"id"`
	Amount         int64         `json:"amount"`
	Status         PaymentStatus `json:"status"`
	Method         PaymentMethod `json:"method"`
	TransactionRef string        `json:"transaction_ref,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
}

// MarkCompleted records a successful charge. Legal only from pending;
// a payment that already left pending is reported, not silently
// overwritten.
func (p *Payment) MarkCompleted(transactionRef string, at time.Time) error {
	if p.Status != PaymentStatusPending {
		return &AlreadyProcessedError{PaymentID: p.ID, Status: p.Status}
	}
	p.Status = PaymentStatusCompleted
	p.TransactionRef = transactionRef
	p.PaidAt = &at
	return nil
}

// MarkFailed is legal only from pending. failed -> completed is never
// allowed; a new payment attempt means a new order.
func (p *Payment) MarkFailed() error {
	if p.Status != PaymentStatusPending {
		return &AlreadyProcessedError{PaymentID: p.ID, Status: p.Status}
	}
	p.Status = PaymentStatusFailed
	return nil
}

// MarkRefunded is legal only from completed. The caller owns the rest of
// the refund workflow: cancelling the order and restocking its items.
func (p *Payment) MarkRefunded() error {
	if p.Status != PaymentStatusCompleted {
		return &InvalidTransitionError{
			Entity: "payment",
			From:   string(p.Status),
			To:     string(PaymentStatusRefunded),
		}
	}
	p.Status = PaymentStatusRefunded
	return nil
}
