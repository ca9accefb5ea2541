package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"pocketwise/internal/budget"
	"pocketwise/internal/lifecycle"
)

const (
	KindSubscriptionExpired      = "subscription_expired"
	KindSubscriptionExpiringSoon = "subscription_expiring_soon"
	KindBudgetExceeded           = "budget_exceeded"
)

// AlertMessage carries one alert to the notification worker. It is
// self-contained: the worker renders it without reading the store.
type AlertMessage struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`

	SubscriptionID string `json:"subscription_id,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
	Category       string `json:"category,omitempty"`
	DaysLeft       int    `json:"days_left,omitempty"`
	EndDate        string `json:"end_date,omitempty"`

	Month  string `json:"month,omitempty"`
	Spend  string `json:"spend,omitempty"`
	Limit  string `json:"limit,omitempty"`
	OverBy string `json:"over_by,omitempty"`
}

func NewSubscriptionAlertMessage(a lifecycle.Alert) *AlertMessage {
	kind := KindSubscriptionExpiringSoon
	if a.Kind == lifecycle.Expired {
		kind = KindSubscriptionExpired
	}
	return &AlertMessage{
		Kind:           kind,
		UserID:         a.UserID,
		Timestamp:      time.Now(),
		SubscriptionID: a.SubscriptionID,
		ExternalID:     a.ExternalID,
		Category:       a.Category,
		DaysLeft:       a.DaysLeft,
		EndDate:        a.EndDate.String(),
	}
}

func NewBudgetAlertMessage(a budget.Alert) *AlertMessage {
	return &AlertMessage{
		Kind:      KindBudgetExceeded,
		UserID:    a.UserID,
		Timestamp: time.Now(),
		Month:     a.Month.String(),
		Spend:     a.Spend.String(),
		Limit:     a.Limit.String(),
		OverBy:    a.OverBy.String(),
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON decodes and checks a message body.
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case KindSubscriptionExpired, KindSubscriptionExpiringSoon, KindBudgetExceeded:
	default:
		return nil, fmt.Errorf("unknown alert kind %q", msg.Kind)
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("alert %s without user_id", msg.Kind)
	}
	return &msg, nil
}
