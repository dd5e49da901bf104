package payments

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/teamf/dresshop/internal/auth"
	"github.com/teamf/dresshop/internal/domain"
	"github.com/teamf/dresshop/internal/orders"
)

type Service struct {
	db        *sql.DB
	repo      *Repository
	orders    *orders.Service
	charger   Charger
	publisher orders.Publisher
	logger    *slog.Logger
}

func NewService(db *sql.DB, repo *Repository, orderService *orders.Service, charger Charger, publisher orders.Publisher, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		orders:    orderService,
		charger:   charger,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) Get(ctx context.Context, id auth.Identity, paymentID string) (*domain.Payment, error) {
	payment, link, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if link.UserID != id.UserID && !id.Admin {
		return nil, domain.ErrForbidden
	}
	return payment, nil
}

// ProcessCard charges the buyer's card through the gateway port,
// completes the payment, and advances the order to processing, all in
// one transaction. A gateway failure marks the payment failed instead.
func (s *Service) ProcessCard(ctx context.Context, id auth.Identity, paymentID string, details CardDetails) (*domain.Payment, error) {
	if verr := details.validate(); verr != nil {
		return nil, verr
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	payment, link, err := getForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if link.UserID != id.UserID {
		return nil, domain.ErrForbidden
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, &domain.AlreadyProcessedError{PaymentID: payment.ID, Status: payment.Status}
	}

	ref, chargeErr := s.charger.AuthorizeAndCapture(ctx, payment.Amount, payment.Method, details)
	if chargeErr != nil {
		if err := payment.MarkFailed(); err != nil {
			return nil, err
		}
		if err := save(ctx, tx, payment); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		s.logger.Error("card charge failed", "error", chargeErr, "payment_id", payment.ID)
		return nil, domain.NewValidationError("card_number", "charge declined")
	}

	now := time.Now().UTC()
	if err := payment.MarkCompleted(ref, now); err != nil {
		return nil, err
	}
	if err := save(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := s.orders.MarkProcessing(ctx, tx, link.OrderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publishCompleted(ctx, payment, link, now)
	s.logger.Info("payment completed", "payment_id", payment.ID, "order_id", link.OrderID, "method", payment.Method)
	return payment, nil
}

// BankDetails are the remittance instructions returned for a bank
// transfer. The payment stays pending until an admin confirms receipt.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	BranchName    string `json:"branch_name"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
}

func (s *Service) ProcessBankTransfer(ctx context.Context, id auth.Identity, paymentID string) (*BankDetails, error) {
	payment, link, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if link.UserID != id.UserID {
		return nil, domain.ErrForbidden
	}
	if payment.Method != domain.PaymentMethodBankTransfer {
		return nil, domain.NewValidationError("payment_method", "payment is not a bank transfer")
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, &domain.AlreadyProcessedError{PaymentID: payment.ID, Status: payment.Status}
	}

	return &BankDetails{
		BankName:      "Dresshop Bank",
		BranchName:    "Main Branch",
		AccountType:   "ordinary",
		AccountNumber: "1234567",
		AccountHolder: "Dresshop Inc.",
		Amount:        payment.Amount,
		Reference:     link.OrderID,
	}, nil
}

// ProcessCashOnDelivery advances the order to processing; the payment
// itself stays pending and is settled at the door.
func (s *Service) ProcessCashOnDelivery(ctx context.Context, id auth.Identity, paymentID string) (*domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	payment, link, err := getForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if link.UserID != id.UserID {
		return nil, domain.ErrForbidden
	}
	if payment.Method != domain.PaymentMethodCashOnDelivery {
		return nil, domain.NewValidationError("payment_method", "payment is not cash on delivery")
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, &domain.AlreadyProcessedError{PaymentID: payment.ID, Status: payment.Status}
	}

	if err := s.orders.MarkProcessing(ctx, tx, link.OrderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("cash on delivery accepted", "payment_id", payment.ID, "order_id", link.OrderID)
	return payment, nil
}

// Confirm is the admin settlement path (bank transfers, cash on
// delivery once collected). Completes the payment and advances the
// order.
func (s *Service) Confirm(ctx context.Context, paymentID, transactionRef string) (*domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	payment, link, err := getForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := payment.MarkCompleted(transactionRef, now); err != nil {
		return nil, err
	}
	if err := save(ctx, tx, payment); err != nil {
		return nil, err
	}

	// Pending orders advance; an order already processing (cash on
	// delivery) stays put.
	if err := s.orders.MarkProcessing(ctx, tx, link.OrderID); err != nil {
		var invalid *domain.InvalidTransitionError
		if !errors.As(err, &invalid) {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publishCompleted(ctx, payment, link, now)
	s.logger.Info("payment confirmed", "payment_id", payment.ID, "order_id", link.OrderID)
	return payment, nil
}

// Refund marks a completed payment refunded and, in the same
// transaction, cancels the linked order and returns its stock.
func (s *Service) Refund(ctx context.Context, paymentID string) (*domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	payment, link, err := getForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := payment.MarkRefunded(); err != nil {
		return nil, err
	}
	if err := save(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := s.orders.CancelForRefund(ctx, tx, link.OrderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("payment refunded", "payment_id", payment.ID, "order_id", link.OrderID)
	return payment, nil
}

func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]domain.Payment, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) publishCompleted(ctx context.Context, payment *domain.Payment, link *linkedOrder, at time.Time) {
	if s.publisher == nil {
		return
	}
	event := domain.PaymentCompletedEvent{
		PaymentID:      payment.ID,
		OrderID:        link.OrderID,
		UserID:         link.UserID,
		Amount:         payment.Amount,
		TransactionRef: payment.TransactionRef,
		Timestamp:      at,
	}
	if err := s.publisher.Publish(ctx, domain.TopicPaymentCompleted, payment.ID, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "topic", domain.TopicPaymentCompleted)
	}
}
