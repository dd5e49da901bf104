//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/teamf/dresshop/internal/auth"
	"github.com/teamf/dresshop/internal/domain"
	"github.com/teamf/dresshop/internal/inventory"
	"github.com/teamf/dresshop/internal/messaging"
	"github.com/teamf/dresshop/internal/orders"
	"github.com/teamf/dresshop/internal/payments"
	"github.com/teamf/dresshop/internal/worker"
)

type storefront struct {
	db       *sql.DB
	orders   *orders.Service
	payments *payments.Service
	stock    *inventory.Repository
}

func newStorefront(t *testing.T, db *sql.DB) *storefront {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orderService := orders.NewService(db, orders.NewRepository(db), inventory.NewLedger(), nil, logger)
	paymentService := payments.NewService(db, payments.NewRepository(db), orderService, payments.StubCharger{}, nil, logger)

	return &storefront{
		db:       db,
		orders:   orderService,
		payments: paymentService,
		stock:    inventory.NewRepository(db),
	}
}

type fixtures struct {
	buyer        auth.Identity
	admin        auth.Identity
	other        auth.Identity
	addressID    string
	otherAddress string
	dressA       string // price 12800, stock 5
	dressB       string // price 4500, stock 2
}

func seed(t *testing.T, db *sql.DB) fixtures {
	t.Helper()

	f := fixtures{
		buyer:        auth.Identity{UserID: uuid.New().String()},
		admin:        auth.Identity{UserID: uuid.New().String(), Admin: true},
		other:        auth.Identity{UserID: uuid.New().String()},
		addressID:    uuid.New().String(),
		otherAddress: uuid.New().String(),
		dressA:       uuid.New().String(),
		dressB:       uuid.New().String(),
	}

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	exec(`INSERT INTO users (id, name, email, is_admin) VALUES ($1, 'Hanako', $2, FALSE)`,
		f.buyer.UserID, f.buyer.UserID+"@example.com")
	exec(`INSERT INTO users (id, name, email, is_admin) VALUES ($1, 'Admin', $2, TRUE)`,
		f.admin.UserID, f.admin.UserID+"@example.com")
	exec(`INSERT INTO users (id, name, email, is_admin) VALUES ($1, 'Yuki', $2, FALSE)`,
		f.other.UserID, f.other.UserID+"@example.com")

	exec(`INSERT INTO addresses (id, user_id, postal_code, prefecture, city, line1, is_default)
	      VALUES ($1, $2, '1500001', 'Tokyo', 'Shibuya', '1-2-3', TRUE)`,
		f.addressID, f.buyer.UserID)
	exec(`INSERT INTO addresses (id, user_id, postal_code, prefecture, city, line1, is_default)
	      VALUES ($1, $2, '5300001', 'Osaka', 'Kita', '4-5-6', TRUE)`,
		f.otherAddress, f.other.UserID)

	parentID := uuid.New().String()
	childID := uuid.New().String()
	exec(`INSERT INTO parent_categories (id, name, sort_order) VALUES ($1, 'Dresses', 1)`, parentID)
	exec(`INSERT INTO child_categories (id, parent_id, name, sort_order, active)
	      VALUES ($1, $2, 'One Piece', 1, TRUE)`, childID, parentID)

	exec(`INSERT INTO dresses (id, child_category_id, name, description, price, stock)
	      VALUES ($1, $2, 'Silk Evening Dress', '', 12800, 5)`, f.dressA, childID)
	exec(`INSERT INTO dresses (id, child_category_id, name, description, price, stock)
	      VALUES ($1, $2, 'Cotton Summer Dress', '', 4500, 2)`, f.dressB, childID)

	return f
}

func stockOf(t *testing.T, s *storefront, dressID string) int {
	t.Helper()
	level, err := s.stock.GetStock(context.Background(), dressID)
	if err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	if level == nil {
		t.Fatalf("dress %s not found", dressID)
	}
	return level.Stock
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func validCard() payments.CardDetails {
	return payments.CardDetails{
		Number:      "4111111111111111",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
		CVV:         "123",
		HolderName:  "HANAKO YAMADA",
	}
}

func TestCheckoutLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	order, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.addressID,
		Method:    domain.PaymentMethodCreditCard,
		Lines:     []orders.Line{{DressID: f.dressA, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending order, got %s", order.Status)
	}
	if order.TotalPrice != 3*12800 {
		t.Errorf("expected total %d, got %d", 3*12800, order.TotalPrice)
	}
	if order.Payment == nil || order.Payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending payment attached, got %+v", order.Payment)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPrice != 12800 {
		t.Errorf("unexpected items: %+v", order.Items)
	}
	if got := stockOf(t, s, f.dressA); got != 2 {
		t.Errorf("expected stock 2 after checkout, got %d", got)
	}

	payment, err := s.payments.ProcessCard(ctx, f.buyer, order.PaymentID, validCard())
	if err != nil {
		t.Fatalf("card payment failed: %v", err)
	}
	if payment.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected completed payment, got %s", payment.Status)
	}
	if payment.TransactionRef == "" || payment.PaidAt == nil {
		t.Errorf("expected transaction ref and paid_at set, got %+v", payment)
	}

	paid, err := s.orders.Get(ctx, f.buyer, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if paid.Status != domain.OrderStatusProcessing {
		t.Errorf("expected processing order after payment, got %s", paid.Status)
	}

	// Paying twice is rejected.
	if _, err := s.payments.ProcessCard(ctx, f.buyer, order.PaymentID, validCard()); err == nil {
		t.Error("expected second card payment to be rejected")
	} else {
		var already *domain.AlreadyProcessedError
		if !errors.As(err, &already) {
			t.Errorf("expected AlreadyProcessedError, got %v", err)
		}
	}

	shipped, err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
	if err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	if shipped.Status != domain.OrderStatusShipped {
		t.Errorf("expected shipped, got %s", shipped.Status)
	}

	delivered, err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if delivered.Status != domain.OrderStatusDelivered {
		t.Errorf("expected delivered, got %s", delivered.Status)
	}

	// Delivered orders cannot be cancelled.
	if _, err := s.orders.Cancel(ctx, f.buyer, order.ID); err == nil {
		t.Error("expected cancel of delivered order to fail")
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	_, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.addressID,
		Method:    domain.PaymentMethodCreditCard,
		Lines:     []orders.Line{{DressID: f.dressB, Quantity: 3}},
	})

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.DressID != f.dressB || insufficient.Requested != 3 || insufficient.Available != 2 {
		t.Errorf("unexpected error payload: %+v", insufficient)
	}

	if got := stockOf(t, s, f.dressB); got != 2 {
		t.Errorf("expected stock unchanged at 2, got %d", got)
	}
	if n := countRows(t, db, "orders"); n != 0 {
		t.Errorf("expected no orders persisted, got %d", n)
	}
	if n := countRows(t, db, "payments"); n != 0 {
		t.Errorf("expected no payments persisted, got %d", n)
	}
	if n := countRows(t, db, "order_items"); n != 0 {
		t.Errorf("expected no order items persisted, got %d", n)
	}
}

func TestCheckoutMultiLineRollback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	// First line fits, second does not. Nothing may stick.
	_, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.addressID,
		Method:    domain.PaymentMethodCreditCard,
		Lines: []orders.Line{
			{DressID: f.dressA, Quantity: 2},
			{DressID: f.dressB, Quantity: 99},
		},
	})

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	if got := stockOf(t, s, f.dressA); got != 5 {
		t.Errorf("expected first line rolled back to 5, got %d", got)
	}
	if got := stockOf(t, s, f.dressB); got != 2 {
		t.Errorf("expected second line unchanged at 2, got %d", got)
	}
	if n := countRows(t, db, "orders"); n != 0 {
		t.Errorf("expected no orders persisted, got %d", n)
	}
}

func TestCheckoutAddressOwnership(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	lines := []orders.Line{{DressID: f.dressA, Quantity: 1}}

	_, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.otherAddress,
		Method:    domain.PaymentMethodCreditCard,
		Lines:     lines,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for someone else's address, got %v", err)
	}

	_, err = s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: uuid.New().String(),
		Method:    domain.PaymentMethodCreditCard,
		Lines:     lines,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown address, got %v", err)
	}

	if got := stockOf(t, s, f.dressA); got != 5 {
		t.Errorf("expected stock untouched at 5, got %d", got)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	order, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.addressID,
		Method:    domain.PaymentMethodCreditCard,
		Lines:     []orders.Line{{DressID: f.dressA, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if got := stockOf(t, s, f.dressA); got != 2 {
		t.Fatalf("expected stock 2 after checkout, got %d", got)
	}

	// A stranger cannot cancel it.
	if _, err := s.orders.Cancel(ctx, f.other, order.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for stranger cancel, got %v", err)
	}

	cancelled, err := s.orders.Cancel(ctx, f.buyer, order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if got := stockOf(t, s, f.dressA); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}

	// Cancelling twice must not restock twice.
	_, err = s.orders.Cancel(ctx, f.buyer, order.ID)
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError on second cancel, got %v", err)
	}
	if got := stockOf(t, s, f.dressA); got != 5 {
		t.Errorf("expected stock still 5 after rejected cancel, got %d", got)
	}
}

func TestShipRequiresCompletedPayment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	order, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.addressID,
		Method:    domain.PaymentMethodBankTransfer,
		Lines:     []orders.Line{{DressID: f.dressA, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	details, err := s.payments.ProcessBankTransfer(ctx, f.buyer, order.PaymentID)
	if err != nil {
		t.Fatalf("bank transfer failed: %v", err)
	}
	if details.Amount != order.TotalPrice || details.Reference != order.ID {
		t.Errorf("unexpected remittance details: %+v", details)
	}

	if _, err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("mark processing failed: %v", err)
	}

	// Payment still pending, so shipping is blocked.
	_, err = s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError for unpaid ship, got %v", err)
	}

	if _, err := s.payments.Confirm(ctx, order.PaymentID, "bank-ref-001"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	shipped, err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
	if err != nil {
		t.Fatalf("ship after confirm failed: %v", err)
	}
	if shipped.Status != domain.OrderStatusShipped {
		t.Errorf("expected shipped, got %s", shipped.Status)
	}
}

func TestRefundCancelsOrderAndRestocks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	order, err := s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
		AddressID: f.addressID,
		Method:    domain.PaymentMethodCreditCard,
		Lines:     []orders.Line{{DressID: f.dressA, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	// Refunding an unpaid payment is rejected.
	if _, err := s.payments.Refund(ctx, order.PaymentID); err == nil {
		t.Error("expected refund of pending payment to fail")
	}

	if _, err := s.payments.ProcessCard(ctx, f.buyer, order.PaymentID, validCard()); err != nil {
		t.Fatalf("card payment failed: %v", err)
	}

	refunded, err := s.payments.Refund(ctx, order.PaymentID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != domain.PaymentStatusRefunded {
		t.Errorf("expected refunded payment, got %s", refunded.Status)
	}

	after, err := s.orders.Get(ctx, f.admin, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if after.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled order after refund, got %s", after.Status)
	}
	if got := stockOf(t, s, f.dressA); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}

	// Refunding twice is rejected and does not restock again.
	if _, err := s.payments.Refund(ctx, order.PaymentID); err == nil {
		t.Error("expected second refund to fail")
	}
	if got := stockOf(t, s, f.dressA); got != 5 {
		t.Errorf("expected stock still 5, got %d", got)
	}
}

func TestConcurrentCheckoutOversell(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	s := newStorefront(t, db)
	f := seed(t, db)

	if _, err := db.Exec(`UPDATE dresses SET stock = 1 WHERE id = $1`, f.dressA); err != nil {
		t.Fatalf("failed to adjust stock: %v", err)
	}

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orders.PlaceOrder(ctx, f.buyer, orders.PlaceOrderInput{
				AddressID: f.addressID,
				Method:    domain.PaymentMethodCreditCard,
				Lines:     []orders.Line{{DressID: f.dressA, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *domain.InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Errorf("expected InsufficientStockError from loser, got %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("expected exactly 1 successful checkout, got %d", succeeded)
	}
	if got := stockOf(t, s, f.dressA); got != 0 {
		t.Errorf("expected stock 0 after the race, got %d", got)
	}
	if n := countRows(t, db, "orders"); n != 1 {
		t.Errorf("expected 1 order persisted, got %d", n)
	}
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestOrderEventsReachNotificationWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	topics := []string{domain.TopicOrderPlaced, domain.TopicOrderCancelled, domain.TopicPaymentCompleted}
	consumer := messaging.NewConsumer(brokers, "integration-test", topics,
		messaging.WithStartOffset(kafkago.FirstOffset))
	defer func() { _ = consumer.Close() }()

	notificationHandler := worker.NewNotificationHandler(
		emailServer.URL,
		&http.Client{Timeout: 10 * time.Second},
		logger,
	)

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		_ = consumer.Consume(consumeCtx, notificationHandler.Handle)
	}()

	orderID := uuid.New().String()
	event := domain.OrderPlacedEvent{
		OrderID:    orderID,
		UserID:     "user-1",
		TotalPrice: 12800,
		Items:      []domain.OrderItem{{DressID: uuid.New().String(), Quantity: 1, UnitPrice: 12800}},
		Timestamp:  time.Now().UTC(),
	}
	if err := producer.Publish(ctx, domain.TopicOrderPlaced, orderID, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(90 * time.Second)
	for {
		if emails := emailCap.getEmails(); len(emails) > 0 {
			if !strings.Contains(emails[0]["subject"], orderID) {
				t.Fatalf("expected subject to contain order id, got %s", emails[0]["subject"])
			}
			if emails[0]["to"] != "user-1@example.com" {
				t.Fatalf("unexpected recipient: %s", emails[0]["to"])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for notification email")
		}
		time.Sleep(500 * time.Millisecond)
	}
}
