package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried in EventMessage.Type.
const (
	TypeBudgetAlert = "budget_alert"
	TypeStreak      = "streak"
)

// BudgetAlertMessage describes one alert that passed the dedup gate.
type BudgetAlertMessage struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Level        int    `json:"level"`
	Percent      int64  `json:"percent"`
	Month        string `json:"month"`
	SpendMinor   int64  `json:"spend_minor"`
	LimitMinor   int64  `json:"limit_minor"`
	Text         string `json:"text"`
}

// StreakMessage carries a recomputed streak.
type StreakMessage struct {
	Current  int `json:"current"`
	Longest  int `json:"longest"`
	EpochDay int `json:"epoch_day"`
}

// EventMessage is the envelope published on the exchange. Exactly one of the
// payloads is set, matching Type.
type EventMessage struct {
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Alert     *BudgetAlertMessage `json:"alert,omitempty"`
	Streak    *StreakMessage      `json:"streak,omitempty"`
}

func NewBudgetAlertEvent(alert BudgetAlertMessage) *EventMessage {
	return &EventMessage{
		Type:      TypeBudgetAlert,
		Timestamp: time.Now().UTC(),
		Alert:     &alert,
	}
}

func NewStreakEvent(streak StreakMessage) *EventMessage {
	return &EventMessage{
		Type:      TypeStreak,
		Timestamp: time.Now().UTC(),
		Streak:    &streak,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and checks that the payload matches the type.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypeBudgetAlert:
		if msg.Alert == nil {
			return nil, fmt.Errorf("budget alert event without payload")
		}
	case TypeStreak:
		if msg.Streak == nil {
			return nil, fmt.Errorf("streak event without payload")
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
