package orders

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/teamf/dresshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.AddressID, &o.PaymentID, &o.Status, &o.TotalPrice, &o.OrderedAt)
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, address_id, payment_id, status, total_price, ordered_at
		FROM orders
		WHERE id = $1
	`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := r.attach(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// attach loads the items, address, and payment for a single order.
func (r *Repository) attach(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.dress_id, d.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN dresses d ON d.id = oi.dress_id
		WHERE oi.order_id = $1
	`, order.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.DressID, &item.DressName, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	address := &domain.Address{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, user_id, postal_code, prefecture, city, line1, COALESCE(line2, ''), is_default, created_at
		FROM addresses
		WHERE id = $1
	`, order.AddressID).Scan(&address.ID, &address.UserID, &address.PostalCode, &address.Prefecture,
		&address.City, &address.Line1, &address.Line2, &address.IsDefault, &address.CreatedAt)
	if err != nil {
		return err
	}
	order.Address = address

	payment := &domain.Payment{}
	var ref sql.NullString
	err = r.db.QueryRowContext(ctx, `
		SELECT id, amount, status, method, transaction_ref, paid_at
		FROM payments
		WHERE id = $1
	`, order.PaymentID).Scan(&payment.ID, &payment.Amount, &payment.Status, &payment.Method, &ref, &payment.PaidAt)
	if err != nil {
		return err
	}
	payment.TransactionRef = ref.String
	order.Payment = payment

	return nil
}

// ListFilter narrows order listings. UserID empty means all users
// (admin view).
type ListFilter struct {
	UserID string
	Status domain.OrderStatus
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	query := `
		SELECT id, user_id, address_id, payment_id, status, total_price, ordered_at
		FROM orders
		WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY ordered_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	// One batched query for all items; the per-order loop is the N+1
	// trap this avoids.
	itemRows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.dress_id, d.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN dresses d ON d.id = oi.dress_id
		WHERE oi.order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.DressID, &item.DressName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// getForUpdate locks the order row and its payment status for the
// duration of the transaction. Status transitions on the same order
// serialize on this lock, so a concurrent cancel and ship cannot both
// win.
func getForUpdate(ctx context.Context, tx dbtx, id string) (*domain.Order, domain.PaymentStatus, error) {
	order := &domain.Order{}

	err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT id, user_id, address_id, payment_id, status, total_price, ordered_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", err
	}

	var paymentStatus domain.PaymentStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM payments WHERE id = $1 FOR UPDATE
	`, order.PaymentID).Scan(&paymentStatus)
	if err != nil {
		return nil, "", err
	}

	return order, paymentStatus, nil
}

func insertOrder(ctx context.Context, tx dbtx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, address_id, payment_id, status, total_price, ordered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, order.ID, order.UserID, order.AddressID, order.PaymentID, order.Status, order.TotalPrice, order.OrderedAt)
	return err
}

func insertItem(ctx context.Context, tx dbtx, item *domain.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, dress_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.OrderID, item.DressID, item.Quantity, item.UnitPrice)
	return err
}

func updateStatus(ctx context.Context, tx dbtx, id string, status domain.OrderStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, id, status)
	return err
}

// itemQuantities returns the (dress, quantity) pairs of an order inside
// the caller's transaction, for restocking.
func itemQuantities(ctx context.Context, tx dbtx, orderID string) ([]domain.OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT dress_id, quantity FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.DressID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
