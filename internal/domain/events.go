package domain

import "time"

const (
	TopicOrderPlaced      = "order.placed"
	TopicOrderCancelled   = "order.cancelled"
	TopicPaymentCompleted = "payment.completed"
)

type OrderPlacedEvent struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	TotalPrice int64       `json:"total_price"`
	Items      []OrderItem `json:"items"`
	Timestamp  time.Time   `json:"timestamp"`
}

type OrderCancelledEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentCompletedEvent struct {
	PaymentID      string    `json:"payment_id"`
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	Amount         int64     `json:"amount"`
	TransactionRef string    `json:"transaction_ref"`
	Timestamp      time.Time `json:"timestamp"`
}
