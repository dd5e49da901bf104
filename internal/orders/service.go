package orders

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teamf/dresshop/internal/auth"
	"github.com/teamf/dresshop/internal/domain"
	"github.com/teamf/dresshop/internal/inventory"
)

// Publisher is the slice of the Kafka producer checkout needs. Nil
// disables event publishing.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Service struct {
	db        *sql.DB
	repo      *Repository
	ledger    *inventory.Ledger
	publisher Publisher
	logger    *slog.Logger
}

func NewService(db *sql.DB, repo *Repository, ledger *inventory.Ledger, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
	}
}

type Line struct {
	DressID  string `json:"dress_id"`
	Quantity int    `json:"quantity"`
}

type PlaceOrderInput struct {
	AddressID string               `json:"address_id"`
	Method    domain.PaymentMethod `json:"payment_method"`
	Lines     []Line               `json:"items"`
}

func (in PlaceOrderInput) validate() *domain.ValidationError {
	fields := map[string]string{}
	if in.AddressID == "" {
		fields["address_id"] = "required"
	}
	if !in.Method.Valid() {
		fields["payment_method"] = "must be one of credit_card, bank_transfer, cash_on_delivery, paypal"
	}
	if len(in.Lines) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, line := range in.Lines {
		if line.DressID == "" {
			fields["items"] = fmt.Sprintf("item %d: dress_id is required", i)
		}
		if line.Quantity <= 0 {
			fields["items"] = fmt.Sprintf("item %d: quantity must be positive", i)
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// PlaceOrder turns a cart into a persisted order, payment, items, and
// stock reservation in one transaction. Any failure after validation
// rolls everything back; there is never a partial order or a stray
// stock decrement.
func (s *Service) PlaceOrder(ctx context.Context, id auth.Identity, in PlaceOrderInput) (*domain.Order, error) {
	if verr := in.validate(); verr != nil {
		return nil, verr
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Address must exist and belong to the buyer.
	var addressOwner string
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM addresses WHERE id = $1
	`, in.AddressID).Scan(&addressOwner)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if addressOwner != id.UserID {
		return nil, domain.ErrForbidden
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New().String(),
		UserID:    id.UserID,
		AddressID: in.AddressID,
		Status:    domain.OrderStatusPending,
		OrderedAt: now,
	}

	// Price each line at the current catalog price and pre-check stock
	// so the failure can name the dress. The conditional decrement
	// below remains the authority under concurrency.
	for _, line := range in.Lines {
		var dress domain.Dress
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, price, stock FROM dresses WHERE id = $1
		`, line.DressID).Scan(&dress.ID, &dress.Name, &dress.Price, &dress.Stock)
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		if dress.Stock < line.Quantity {
			return nil, &domain.InsufficientStockError{
				DressID:   dress.ID,
				DressName: dress.Name,
				Requested: line.Quantity,
				Available: dress.Stock,
			}
		}

		item := domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			DressID:   dress.ID,
			DressName: dress.Name,
			Quantity:  line.Quantity,
			UnitPrice: dress.Price,
		}
		order.Items = append(order.Items, item)
		order.TotalPrice += item.Subtotal()
	}

	payment := &domain.Payment{
		ID:     uuid.New().String(),
		Amount: order.TotalPrice,
		Status: domain.PaymentStatusPending,
		Method: in.Method,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, amount, status, method)
		VALUES ($1, $2, $3, $4)
	`, payment.ID, payment.Amount, payment.Status, payment.Method); err != nil {
		return nil, err
	}
	order.PaymentID = payment.ID

	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	for i := range order.Items {
		if err := insertItem(ctx, tx, &order.Items[i]); err != nil {
			return nil, err
		}
		if err := s.ledger.Decrease(ctx, tx, order.Items[i].DressID, order.Items[i].Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Payment = payment

	s.publish(ctx, domain.TopicOrderPlaced, order.ID, domain.OrderPlacedEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Items:      order.Items,
		Timestamp:  now,
	})

	// Re-read to attach the address snapshot.
	placed, err := s.repo.Get(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to reload placed order", "error", err, "order_id", order.ID)
		return order, nil
	}
	return placed, nil
}

// Cancel restores stock for every item and marks the order cancelled.
// Allowed for the owner or an admin while the order is still pending or
// processing.
func (s *Service) Cancel(ctx context.Context, id auth.Identity, orderID string) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, _, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != id.UserID && !id.Admin {
		return nil, domain.ErrForbidden
	}

	if err := s.cancelLocked(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TopicOrderCancelled, order.ID, domain.OrderCancelledEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Timestamp: time.Now().UTC(),
	})

	s.logger.Info("order cancelled", "order_id", order.ID, "user_id", order.UserID)
	return s.repo.Get(ctx, order.ID)
}

// cancelLocked runs inside a transaction holding the order row lock.
// Shared with the refund workflow.
func (s *Service) cancelLocked(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	if !order.Cancellable() {
		return &domain.InvalidTransitionError{
			Entity: "order",
			From:   string(order.Status),
			To:     string(domain.OrderStatusCancelled),
		}
	}

	items, err := itemQuantities(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.ledger.Increase(ctx, tx, item.DressID, item.Quantity); err != nil {
			return err
		}
	}

	order.Status = domain.OrderStatusCancelled
	return updateStatus(ctx, tx, order.ID, domain.OrderStatusCancelled)
}

// CancelForRefund cancels and restocks an order inside the caller's
// transaction, as part of the payment refund workflow.
func (s *Service) CancelForRefund(ctx context.Context, tx *sql.Tx, orderID string) error {
	order, _, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	return s.cancelLocked(ctx, tx, order)
}

// UpdateStatus applies an admin-driven transition. The domain legality
// table decides; shipping additionally requires a completed payment.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	if !target.Valid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, paymentStatus, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if target == domain.OrderStatusCancelled {
		if err := s.cancelLocked(ctx, tx, order); err != nil {
			return nil, err
		}
	} else {
		if err := order.Transition(target, paymentStatus); err != nil {
			return nil, err
		}
		if err := updateStatus(ctx, tx, order.ID, order.Status); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	return s.repo.Get(ctx, order.ID)
}

// MarkProcessing advances a pending order after its payment has been
// handled. Runs inside the payment workflow's transaction.
func (s *Service) MarkProcessing(ctx context.Context, tx *sql.Tx, orderID string) error {
	order, paymentStatus, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if err := order.Transition(domain.OrderStatusProcessing, paymentStatus); err != nil {
		return err
	}
	return updateStatus(ctx, tx, order.ID, order.Status)
}

func (s *Service) Get(ctx context.Context, id auth.Identity, orderID string) (*domain.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if order.UserID != id.UserID && !id.Admin {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (s *Service) ListForUser(ctx context.Context, id auth.Identity, status domain.OrderStatus) ([]domain.Order, error) {
	return s.repo.List(ctx, ListFilter{UserID: id.UserID, Status: status})
}

func (s *Service) ListAll(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return s.repo.List(ctx, ListFilter{Status: status})
}

func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "topic", topic, "key", key)
	}
}
