// Package events defines the messages pushed to dashboard clients over the
// websocket feed.
package events

import (
	"time"

	"casepulse/pkg/contracts/domain"
)

// MessageType identifies a websocket message.
type MessageType string

const (
	// MessageTypeConnection is sent once to each client after it registers.
	MessageTypeConnection MessageType = "connection"

	// MessageTypeDataUpdate is broadcast after a new dataset snapshot is served.
	MessageTypeDataUpdate MessageType = "data_update"

	MessageTypeError MessageType = "error"
)

// Message is the envelope for every websocket message.
type Message struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// NewMessage wraps data in an envelope stamped with the current time.
func NewMessage(t MessageType, data interface{}) Message {
	return Message{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ConnectionData is the payload of a connection message.
type ConnectionData struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// DataUpdate is the payload of a data_update message. Clients refetch the
// chart and table for their current filter when they receive it.
type DataUpdate struct {
	Summary domain.CaseSummary `json:"summary"`
	Reason  string             `json:"reason"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
