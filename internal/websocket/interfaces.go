package websocket

import (
	"time"
)

// Connection is the subset of *websocket.Conn a Client uses. Tests swap in a
// fake.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error

	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)

	RemoteAddr() string
}
