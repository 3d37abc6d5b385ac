// Package emitter delivers detected transfer events: the chat notification
// first, then any configured machine-readable sinks.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/indexing/metrics"
)

// Emitter defines the interface for emitting transfer events
type Emitter interface {
	// Emit delivers a single event
	Emit(ctx context.Context, event domain.TransferEvent) error

	// Name identifies the emitter in logs and metrics
	Name() string

	// Close closes the emitter connection
	Close() error
}

// Multi fans an event out to every emitter. A failing emitter does not stop
// the others; the failures are joined into the returned error.
type Multi struct {
	emitters []Emitter
}

var _ Emitter = (*Multi)(nil)

// NewMulti creates a fan-out emitter. Nil entries are skipped.
func NewMulti(emitters ...Emitter) *Multi {
	m := &Multi{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped emitters.
func (m *Multi) Len() int { return len(m.emitters) }

func (m *Multi) Emit(ctx context.Context, event domain.TransferEvent) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, event); err != nil {
			metrics.DeliveryFailures.WithLabelValues(e.Name()).Inc()
			slog.Warn("Delivery failed",
				"sink", e.Name(),
				"tx", event.TxHash,
				"wallet", event.Wallet,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}
