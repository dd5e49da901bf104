package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/teamf/dresshop/internal/domain"
)

// NotificationHandler turns order and payment events into customer
// emails. Stock and status changes happen inside the storefront
// transaction; this worker only notifies.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case domain.TopicOrderPlaced:
		return h.handleOrderPlaced(ctx, payload)
	case domain.TopicOrderCancelled:
		return h.handleOrderCancelled(ctx, payload)
	case domain.TopicPaymentCompleted:
		return h.handlePaymentCompleted(ctx, payload)
	default:
		h.logger.Warn("skipping event from unknown topic", "topic", topic)
		return nil
	}
}

func (h *NotificationHandler) handleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Received: " + event.OrderID,
		"body": fmt.Sprintf("Thank you for your order %s. We received %d items totalling ¥%d.",
			event.OrderID, len(event.Items), event.TotalPrice),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send order placed email: %w", err)
	}
	return nil
}

func (h *NotificationHandler) handleOrderCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order cancelled event: %w", err)
	}

	h.logger.Info("processing order cancelled event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Cancelled: " + event.OrderID,
		"body":    fmt.Sprintf("Your order %s has been cancelled. Any completed payment will be refunded.", event.OrderID),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send order cancelled email: %w", err)
	}
	return nil
}

func (h *NotificationHandler) handlePaymentCompleted(ctx context.Context, payload []byte) error {
	var event domain.PaymentCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment completed event: %w", err)
	}

	h.logger.Info("processing payment completed event", "payment_id", event.PaymentID, "order_id", event.OrderID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Payment Confirmed: " + event.OrderID,
		"body": fmt.Sprintf("We received your payment of ¥%d for order %s (ref %s). Your order is being prepared.",
			event.Amount, event.OrderID, event.TransactionRef),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send payment completed email: %w", err)
	}
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
