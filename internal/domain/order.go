package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// orderTransitions is the legality table for order status changes.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func (s OrderStatus) canTransitionTo(target OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	DressID   string `json:"dress_id"`
	DressName string `json:"dress_name,omitempty"`
	Quantity  int    `json:"quantity"`
	// UnitPrice is the dress price captured when the order was placed,
	// deliberately decoupled from the current catalog price.
	UnitPrice int64 `json:"unit_price"`
}

func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	AddressID  string      `json:"address_id"`
	PaymentID  string      `json:"payment_id"`
	Status     OrderStatus `json:"status"`
	TotalPrice int64       `json:"total_price"`
	OrderedAt  time.Time   `json:"ordered_at"`
	Items      []OrderItem `json:"items,omitempty"`
	Address    *Address    `json:"address,omitempty"`
	Payment    *Payment    `json:"payment,omitempty"`
}

// Transition moves the order to target if the legality table allows it.
// Shipping additionally requires the linked payment to be completed.
// On rejection the order is left untouched.
func (o *Order) Transition(target OrderStatus, payment PaymentStatus) error {
	if !o.Status.canTransitionTo(target) {
		return &InvalidTransitionError{Entity: "order", From: string(o.Status), To: string(target)}
	}
	if target == OrderStatusShipped && payment != PaymentStatusCompleted {
		return &InvalidTransitionError{
			Entity: "order",
			From:   string(o.Status),
			To:     string(target),
			Reason: "payment is " + string(payment),
		}
	}
	o.Status = target
	return nil
}

// Cancellable reports whether stock can still be returned for this order.
func (o *Order) Cancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}
