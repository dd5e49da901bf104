package domain

import (
	"errors"
	"testing"
)

func TestOrderTransition(t *testing.T) {
	t.Run("pending to processing", func(t *testing.T) {
		o := &Order{Status: OrderStatusPending}
		if err := o.Transition(OrderStatusProcessing, PaymentStatusPending); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != OrderStatusProcessing {
			t.Errorf("expected processing, got %s", o.Status)
		}
	})

	t.Run("shipping requires completed payment", func(t *testing.T) {
		o := &Order{Status: OrderStatusProcessing}
		err := o.Transition(OrderStatusShipped, PaymentStatusPending)
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if o.Status != OrderStatusProcessing {
			t.Errorf("status mutated on rejected transition: %s", o.Status)
		}
	})

	t.Run("shipping with completed payment", func(t *testing.T) {
		o := &Order{Status: OrderStatusProcessing}
		if err := o.Transition(OrderStatusShipped, PaymentStatusCompleted); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != OrderStatusShipped {
			t.Errorf("expected shipped, got %s", o.Status)
		}
	})

	t.Run("shipped to delivered", func(t *testing.T) {
		o := &Order{Status: OrderStatusShipped}
		if err := o.Transition(OrderStatusDelivered, PaymentStatusCompleted); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("cancel from shipped rejected", func(t *testing.T) {
		o := &Order{Status: OrderStatusShipped}
		err := o.Transition(OrderStatusCancelled, PaymentStatusCompleted)
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if o.Status != OrderStatusShipped {
			t.Errorf("status mutated on rejected transition: %s", o.Status)
		}
	})

	t.Run("terminal states reject everything", func(t *testing.T) {
		for _, from := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
			for _, to := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
				o := &Order{Status: from}
				if err := o.Transition(to, PaymentStatusCompleted); err == nil {
					t.Errorf("expected %s -> %s to be rejected", from, to)
				}
			}
		}
	})
}

func TestOrderCancellable(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusPending:    true,
		OrderStatusProcessing: true,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
	}
	for status, want := range cases {
		o := &Order{Status: status}
		if got := o.Cancellable(); got != want {
			t.Errorf("Cancellable() for %s = %v, want %v", status, got, want)
		}
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, UnitPrice: 12800}
	if item.Subtotal() != 38400 {
		t.Errorf("expected 38400, got %d", item.Subtotal())
	}
}
