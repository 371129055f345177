// Package notice carries transient user-visible notices (toast-style) from
// services to the UI shell, which drains them via the transport layer.
package notice

import (
	"sync"

	"github.com/google/uuid"
)

// Level classifies a notice for presentation.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a single transient message.
type Notice struct {
	ID      string `json:"id"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Emitter is the write side used by services.
type Emitter interface {
	Info(message string)
	Success(message string)
	Error(message string)
}

// maxPending bounds the buffer; the oldest notice is dropped when the UI
// falls behind.
const maxPending = 32

// Bus is an in-memory notice buffer. Emit-side methods never block; the UI
// drains with Drain.
type Bus struct {
	mu      sync.Mutex
	pending []Notice
}

// NewBus constructs an empty notice bus.
func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Info(message string)    { b.emit(LevelInfo, message) }
func (b *Bus) Success(message string) { b.emit(LevelSuccess, message) }
func (b *Bus) Error(message string)   { b.emit(LevelError, message) }

func (b *Bus) emit(level Level, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) >= maxPending {
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, Notice{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
	})
}

// Drain returns all pending notices and clears the buffer.
func (b *Bus) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.pending
	b.pending = nil
	return drained
}
