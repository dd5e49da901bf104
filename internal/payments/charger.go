package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/teamf/dresshop/internal/domain"
)

type CardDetails struct {
	Number      string `json:"card_number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
	HolderName  string `json:"cardholder_name"`
}

func (d CardDetails) validate() *domain.ValidationError {
	fields := map[string]string{}
	if len(d.Number) != 16 {
		fields["card_number"] = "must be 16 digits"
	}
	if d.ExpiryMonth < 1 || d.ExpiryMonth > 12 {
		fields["expiry_month"] = "must be between 1 and 12"
	}
	if d.ExpiryYear < 2000 {
		fields["expiry_year"] = "must be a four digit year"
	}
	if len(d.CVV) != 3 {
		fields["cvv"] = "must be 3 digits"
	}
	if strings.TrimSpace(d.HolderName) == "" {
		fields["cardholder_name"] = "required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Charger abstracts the external payment gateway. A production setup
// injects a real provider; the stub stands in for card and wallet
// capture.
type Charger interface {
	AuthorizeAndCapture(ctx context.Context, amount int64, method domain.PaymentMethod, details CardDetails) (transactionRef string, err error)
}

type StubCharger struct{}

func (StubCharger) AuthorizeAndCapture(_ context.Context, _ int64, _ domain.PaymentMethod, _ CardDetails) (string, error) {
	return "txn_" + strings.ReplaceAll(uuid.New().String(), "-", ""), nil
}
