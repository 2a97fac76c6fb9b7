package model

import "time"

// TrackingEvent is one derived step of an order's fulfilment history.
type TrackingEvent struct {
	Status      OrderStatus `json:"status"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Tracking is the tracking view of an order.
type Tracking struct {
	OrderID           string          `json:"orderId"`
	OrderNumber       string          `json:"orderNumber"`
	TrackingCode      string          `json:"trackingCode"`
	Status            OrderStatus     `json:"status"`
	ShippingStatus    ShippingStatus  `json:"shippingStatus"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
	Events            []TrackingEvent `json:"events"`
}

type milestone struct {
	status      OrderStatus
	description string
	location    string
	at          func(o *Order) *time.Time
}

var milestones = []milestone{
	{OrderPending, "Order placed", "Online store", func(o *Order) *time.Time { return &o.CreatedAt }},
	{OrderConfirmed, "Payment confirmed", "Online store", func(o *Order) *time.Time { return o.ConfirmedAt }},
	{OrderProcessing, "Order being prepared", "Distribution center", func(o *Order) *time.Time { return o.ProcessingAt }},
	{OrderShipped, "Order handed to carrier", "Distribution center", func(o *Order) *time.Time { return o.ShippedAt }},
	{OrderDelivered, "Order delivered", "Delivery address", func(o *Order) *time.Time { return o.DeliveredAt }},
}

func milestoneRank(status OrderStatus) int {
	for i, m := range milestones {
		if m.status == status {
			return i
		}
	}
	return -1
}

// BuildTracking derives the tracking events of an order from its status and
// timestamps. Reaching a milestone implies every earlier one; timestamps never
// decrease along the list.
func BuildTracking(o *Order) []TrackingEvent {
	reached := milestoneRank(o.Status)
	if reached < 0 {
		// Terminal side states keep the milestones they had stamped.
		reached = 0
		for i, m := range milestones {
			if at := m.at(o); at != nil && !at.IsZero() {
				reached = i
			}
		}
	}

	events := make([]TrackingEvent, 0, reached+2)
	var last time.Time
	for _, m := range milestones[:reached+1] {
		ts := last
		if at := m.at(o); at != nil && !at.IsZero() && at.After(last) {
			ts = *at
		}
		events = append(events, TrackingEvent{
			Status:      m.status,
			Description: m.description,
			Location:    m.location,
			Timestamp:   ts,
		})
		last = ts
	}

	switch o.Status {
	case OrderCancelled:
		events = append(events, terminalEvent(OrderCancelled, "Order cancelled", o.CancelledAt, last))
	case OrderRefunded:
		events = append(events, terminalEvent(OrderRefunded, "Order refunded", o.RefundedAt, last))
	}

	return events
}

func terminalEvent(status OrderStatus, description string, at *time.Time, last time.Time) TrackingEvent {
	ts := last
	if at != nil && at.After(last) {
		ts = *at
	}
	return TrackingEvent{Status: status, Description: description, Location: "Online store", Timestamp: ts}
}

// NewTracking assembles the tracking view of an order.
func NewTracking(o *Order) *Tracking {
	return &Tracking{
		OrderID:           o.ID.String(),
		OrderNumber:       o.Number,
		TrackingCode:      o.TrackingCode,
		Status:            o.Status,
		ShippingStatus:    o.ShippingStatus,
		EstimatedDelivery: o.EstimatedDelivery,
		Events:            BuildTracking(o),
	}
}
